package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCooldown grants a key at most once per TTL across every process that
// shares the Redis server.
type RedisCooldown struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCooldown(client *redis.Client, prefix string, ttl time.Duration) *RedisCooldown {
	return &RedisCooldown{client: client, prefix: prefix, ttl: ttl}
}

// Acquire reports true when key was free and is now held for the TTL.
func (c *RedisCooldown) Acquire(ctx context.Context, key string) (bool, error) {
	return c.client.SetNX(ctx, c.prefix+key, time.Now().UTC().Unix(), c.ttl).Result()
}

func (c *RedisCooldown) Release(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}

// LocalCooldown is the single-process equivalent of RedisCooldown.
type LocalCooldown struct {
	mu    sync.Mutex
	ttl   time.Duration
	until map[string]time.Time
	now   func() time.Time
}

func NewLocalCooldown(ttl time.Duration) *LocalCooldown {
	return &LocalCooldown{ttl: ttl, until: make(map[string]time.Time), now: time.Now}
}

func (c *LocalCooldown) Acquire(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if until, ok := c.until[key]; ok && now.Before(until) {
		return false, nil
	}
	c.until[key] = now.Add(c.ttl)
	return true, nil
}

func (c *LocalCooldown) Release(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.until, key)
	c.mu.Unlock()
	return nil
}
