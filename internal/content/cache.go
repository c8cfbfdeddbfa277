package content

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Cache.Get for absent keys.
var ErrMiss = errors.New("cache miss")

// Cache stores encoded payloads with the time they were fetched. Entries are
// kept past their freshness so a failing backend can still be answered with
// stale data.
type Cache interface {
	Get(ctx context.Context, key string) (data []byte, fetchedAt time.Time, err error)
	Set(ctx context.Context, key string, data []byte) error
}

type memoryEntry struct {
	data      []byte
	fetchedAt time.Time
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, time.Time, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, time.Time{}, ErrMiss
	}
	return e.data, e.fetchedAt, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{data: data, fetchedAt: c.now()}
	return nil
}

// RedisCache shares content between web front replicas. Keys expire after
// retain so abandoned slugs do not accumulate.
type RedisCache struct {
	client *redis.Client
	retain time.Duration
}

const redisPrefix = "aivis:content:"

func NewRedisCache(addr string, retain time.Duration) *RedisCache {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return &RedisCache{client: rdb, retain: retain}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, time.Time, error) {
	vals, err := c.client.HMGet(ctx, redisPrefix+key, "data", "fetched_at").Result()
	if err != nil {
		return nil, time.Time{}, err
	}
	data, ok1 := vals[0].(string)
	stamp, ok2 := vals[1].(string)
	if !ok1 || !ok2 {
		return nil, time.Time{}, ErrMiss
	}
	fetchedAt, err := time.Parse(time.RFC3339Nano, stamp)
	if err != nil {
		return nil, time.Time{}, ErrMiss
	}
	return []byte(data), fetchedAt, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, data []byte) error {
	k := redisPrefix + key
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, k, "data", string(data), "fetched_at", time.Now().UTC().Format(time.RFC3339Nano))
	pipe.Expire(ctx, k, c.retain)
	_, err := pipe.Exec(ctx)
	return err
}
