package asn2ip

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// memoryBackend keeps cache entries in process memory using a TTL-bounded
// LRU. Useful when no external cache daemon is available, and in tests.
type memoryBackend struct {
	lru *expirable.LRU[string, []string]
}

type MemoryBackendOptions struct {
	// Max number of entries, 0 means unlimited.
	Capacity int

	// Entry lifetime, default DefaultTTL.
	TTL time.Duration
}

var _ CacheBackend = (*memoryBackend)(nil)

func NewMemoryBackend(opt MemoryBackendOptions) *memoryBackend {
	if opt.TTL == 0 {
		opt.TTL = DefaultTTL
	}
	return &memoryBackend{
		lru: expirable.NewLRU[string, []string](opt.Capacity, nil, opt.TTL),
	}
}

func (b *memoryBackend) Get(key string) ([]string, error) {
	routes, ok := b.lru.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return routes, nil
}

func (b *memoryBackend) Set(key string, routes []string) error {
	b.lru.Add(key, routes)
	return nil
}

func (b *memoryBackend) Close() error {
	b.lru.Purge()
	return nil
}
