// Package cache 提供兩層快取：程序內 go-cache 在前，Redis 在後
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Cache 讀取時先查本地，再查 Redis，命中 Redis 時回填本地
type Cache interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string, dest any) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

type Options struct {
	Prefix          string
	LocalTTL        time.Duration
	CleanupInterval time.Duration
}

var _ Cache = (*TwoTier)(nil)

type TwoTier struct {
	local    *gocache.Cache
	remote   redis.UniversalClient
	prefix   string
	localTTL time.Duration
}

// New 建立兩層快取。remote 為 nil 時只使用本地快取。
func New(remote redis.UniversalClient, opts Options) *TwoTier {
	localTTL := opts.LocalTTL
	if localTTL <= 0 {
		localTTL = time.Minute
	}
	cleanup := opts.CleanupInterval
	if cleanup <= 0 {
		cleanup = 2 * localTTL
	}
	prefix := strings.TrimSpace(opts.Prefix)
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &TwoTier{
		local:    gocache.New(localTTL, cleanup),
		remote:   remote,
		prefix:   prefix,
		localTTL: localTTL,
	}
}

func (c *TwoTier) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value: %w", err)
	}
	k := c.prefix + key
	c.local.Set(k, payload, c.localExpiry(ttl))
	if c.remote == nil {
		return nil
	}
	if err := c.remote.Set(ctx, k, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set redis key %s: %w", k, err)
	}
	return nil
}

func (c *TwoTier) Get(ctx context.Context, key string, dest any) (bool, error) {
	k := c.prefix + key
	if raw, ok := c.local.Get(k); ok {
		if payload, ok := raw.([]byte); ok {
			return true, json.Unmarshal(payload, dest)
		}
	}
	if c.remote == nil {
		return false, nil
	}

	payload, err := c.remote.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get redis key %s: %w", k, err)
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("failed to decode cache value: %w", err)
	}

	// 回填本地快取
	ttl, err := c.remote.TTL(ctx, k).Result()
	if err != nil || ttl <= 0 {
		ttl = c.localTTL
	}
	c.local.Set(k, payload, c.localExpiry(ttl))
	return true, nil
}

func (c *TwoTier) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, 0, len(keys))
	for _, key := range keys {
		k := c.prefix + key
		c.local.Delete(k)
		prefixed = append(prefixed, k)
	}
	if c.remote == nil {
		return nil
	}
	if err := c.remote.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("failed to delete redis keys: %w", err)
	}
	return nil
}

// 本地快取不超過 localTTL，避免多個實例之間長時間不一致
func (c *TwoTier) localExpiry(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > c.localTTL {
		return c.localTTL
	}
	return ttl
}
