package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/fatflowers/tollgate/pkg/config"
)

// LinkCache keeps the shared invite link of each community for its remaining lifetime.
type LinkCache interface {
	Get(ctx context.Context, communityID string) (string, bool, error)
	Set(ctx context.Context, communityID, link string, ttl time.Duration) error
	Delete(ctx context.Context, communityID string) error
}

func NewLinkCache(client *redis.Client, cfg *config.Config) LinkCache {
	if client == nil {
		return NewMemoryLinkCache()
	}
	return &RedisLinkCache{client: client, prefix: cfg.Redis.Prefix}
}

type RedisLinkCache struct {
	client *redis.Client
	prefix string
}

func (c *RedisLinkCache) key(communityID string) string {
	return Key(c.prefix, "invite_link", communityID)
}

func (c *RedisLinkCache) Get(ctx context.Context, communityID string) (string, bool, error) {
	link, err := c.client.Get(ctx, c.key(communityID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return link, true, nil
}

func (c *RedisLinkCache) Set(ctx context.Context, communityID, link string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, c.key(communityID), link, ttl).Err()
}

func (c *RedisLinkCache) Delete(ctx context.Context, communityID string) error {
	return c.client.Del(ctx, c.key(communityID)).Err()
}

// MemoryLinkCache is the single-process LinkCache.
type MemoryLinkCache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	link     string
	expireAt time.Time
}

func NewMemoryLinkCache() *MemoryLinkCache {
	return &MemoryLinkCache{now: time.Now, entries: map[string]memoryEntry{}}
}

func (c *MemoryLinkCache) Get(_ context.Context, communityID string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[communityID]
	if !ok {
		return "", false, nil
	}
	if !c.now().Before(e.expireAt) {
		delete(c.entries, communityID)
		return "", false, nil
	}
	return e.link, true, nil
}

func (c *MemoryLinkCache) Set(_ context.Context, communityID, link string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[communityID] = memoryEntry{link: link, expireAt: c.now().Add(ttl)}
	return nil
}

func (c *MemoryLinkCache) Delete(_ context.Context, communityID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, communityID)
	return nil
}
