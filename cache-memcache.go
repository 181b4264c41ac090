package asn2ip

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// memcacheBackend stores cache entries in a memcached instance. Values are
// JSON-encoded route lists, expiry is enforced by the server.
type memcacheBackend struct {
	client *memcache.Client
	expire int32
}

type MemcacheBackendOptions struct {
	// Host:port of the memcached instance, or an absolute path to a unix
	// socket. Defaults to "127.0.0.1:11211".
	Addr string

	// Socket timeout for memcached operations, default 10s.
	Timeout time.Duration

	// Entry lifetime, default DefaultTTL.
	TTL time.Duration
}

var _ CacheBackend = (*memcacheBackend)(nil)

func NewMemcacheBackend(opt MemcacheBackendOptions) *memcacheBackend {
	if opt.Addr == "" {
		opt.Addr = "127.0.0.1:11211"
	}
	if opt.Timeout == 0 {
		opt.Timeout = 10 * time.Second
	}
	if opt.TTL == 0 {
		opt.TTL = DefaultTTL
	}
	client := memcache.New(opt.Addr)
	client.Timeout = opt.Timeout
	return &memcacheBackend{
		client: client,
		expire: int32(opt.TTL / time.Second),
	}
}

func (b *memcacheBackend) Get(key string) ([]string, error) {
	item, err := b.client.Get(key)
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	var routes []string
	if err := json.Unmarshal(item.Value, &routes); err != nil {
		// A corrupt entry is treated like a miss so it gets overwritten.
		Log.WithError(err).WithField("key", key).Warn("discarding unreadable cache entry")
		return nil, ErrCacheMiss
	}
	return routes, nil
}

func (b *memcacheBackend) Set(key string, routes []string) error {
	value, err := json.Marshal(routes)
	if err != nil {
		return err
	}
	return b.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: b.expire,
	})
}

func (b *memcacheBackend) Close() error {
	// The memcache client holds no resources beyond idle connections and
	// offers no way to release them early.
	return nil
}
