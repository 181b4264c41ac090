package asn2ip

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisBackend stores cache entries in a Redis instance. Values are
// JSON-encoded route lists, expiry is enforced by the server.
type redisBackend struct {
	client *redis.Client
	ttl    time.Duration
	opTime time.Duration
}

type RedisBackendOptions struct {
	RedisOptions redis.Options

	// Per-operation timeout, default 1s.
	Timeout time.Duration

	// Entry lifetime, default DefaultTTL.
	TTL time.Duration
}

var _ CacheBackend = (*redisBackend)(nil)

func NewRedisBackend(opt RedisBackendOptions) *redisBackend {
	if opt.Timeout == 0 {
		opt.Timeout = time.Second
	}
	if opt.TTL == 0 {
		opt.TTL = DefaultTTL
	}
	return &redisBackend{
		client: redis.NewClient(&opt.RedisOptions),
		ttl:    opt.TTL,
		opTime: opt.Timeout,
	}
}

func (b *redisBackend) Get(key string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), b.opTime)
	defer cancel()
	value, err := b.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	var routes []string
	if err := json.Unmarshal([]byte(value), &routes); err != nil {
		Log.WithError(err).WithField("key", key).Warn("discarding unreadable cache entry")
		return nil, ErrCacheMiss
	}
	return routes, nil
}

func (b *redisBackend) Set(key string, routes []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), b.opTime)
	defer cancel()
	value, err := json.Marshal(routes)
	if err != nil {
		return err
	}
	return b.client.Set(ctx, key, value, b.ttl).Err()
}

func (b *redisBackend) Close() error {
	return b.client.Close()
}
