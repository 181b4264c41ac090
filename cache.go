package asn2ip

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/spaolacci/murmur3"
)

// DefaultTTL is how long cache entries remain valid unless a backend is
// configured otherwise.
const DefaultTTL = 24 * time.Hour

// DefaultCacheAttempts is the total number of attempts a cache operation
// makes against its backend before giving up with a CacheError.
const DefaultCacheAttempts = 2

// CacheBackend stores raw route lists under opaque string keys. Backends
// enforce the entry TTL themselves and are not required to be safe for
// concurrent use; the Cache serializes access.
type CacheBackend interface {
	// Get returns the stored routes, or ErrCacheMiss if the key is absent.
	// A stored empty (or nil) list is a valid result, not a miss.
	Get(key string) ([]string, error)
	Set(key string, routes []string) error
	Close() error
}

// Cache is the key-normalizing front end to a CacheBackend. Keys are hashed
// so backend key length or charset limits are never a concern, access to
// the backend is serialized, and failed operations are re-attempted up to a
// bounded budget before a CacheError is surfaced.
type Cache struct {
	backend  CacheBackend
	attempts uint
	mu       sync.Mutex
}

type CacheOptions struct {
	Backend CacheBackend

	// Total number of attempts per operation, default DefaultCacheAttempts.
	// The operation fails with a CacheError only after the last attempt.
	Attempts int
}

// NewCache returns a new cache front end for the given backend.
func NewCache(opt CacheOptions) *Cache {
	attempts := opt.Attempts
	if attempts <= 0 {
		attempts = DefaultCacheAttempts
	}
	return &Cache{
		backend:  opt.Backend,
		attempts: uint(attempts),
	}
}

// Get looks up the raw route list for one (ASN, family) query. It returns
// ErrCacheMiss if the entry is absent and a CacheError if the backend
// remained unreachable through the retry budget.
func (c *Cache) Get(asn ASN, family Family) ([]string, error) {
	key := cacheKey(asn, family)
	var routes []string
	err := c.do("get", key, func() error {
		var err error
		routes, err = c.backend.Get(key)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger("cache", asn, family).Debug("cache hit")
	return routes, nil
}

// Set stores the raw route list for one (ASN, family) query. Empty lists
// are stored like any other result so a later Get can distinguish "no
// routes" from "not cached".
func (c *Cache) Set(asn ASN, family Family, routes []string) error {
	key := cacheKey(asn, family)
	logger("cache", asn, family).Debug("storing routes")
	return c.do("set", key, func() error {
		return c.backend.Set(key, routes)
	})
}

// Close releases the backend.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend.Close()
}

// do runs one backend operation under the lock, retrying connection-level
// failures. Misses are terminal and returned as-is.
func (c *Cache) do(op, key string, fn func() error) error {
	err := retry.Do(
		func() error {
			c.mu.Lock()
			defer c.mu.Unlock()
			return fn()
		},
		retry.Attempts(c.attempts),
		retry.Delay(100*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, ErrCacheMiss)
		}),
		retry.OnRetry(func(n uint, err error) {
			Log.WithError(err).WithField("key", key).Warn("cache backend failed, retrying")
		}),
	)
	if err == nil || errors.Is(err, ErrCacheMiss) {
		return err
	}
	Log.WithError(err).WithField("key", key).Errorf("cache %s failed after %d attempts", op, c.attempts)
	return CacheError{Op: op, Key: key, Err: err}
}

// keyPrefix namespaces all entries written by this package.
const keyPrefix = "asn2ip_"

// cacheKey builds the backend key for one (ASN, family) query. The textual
// form "<ASN>v<family>" is hashed with 128-bit murmur3 and base64-encoded.
func cacheKey(asn ASN, family Family) string {
	h1, h2 := murmur3.Sum128([]byte(string(asn) + "v" + strconv.Itoa(int(family))))
	var digest [16]byte
	binary.BigEndian.PutUint64(digest[:8], h1)
	binary.BigEndian.PutUint64(digest[8:], h2)
	return keyPrefix + base64.RawStdEncoding.EncodeToString(digest[:])
}
