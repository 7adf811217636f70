package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"shortlink.local/internal/app/shortlink"
	"shortlink.local/internal/platform/metrics"
)

const keyPrefix = "sl:"

// ShortlinkCache 是 code -> 原始 URL 的两级缓存：L1 ristretto（可选）+ L2 Redis（可选）。
//
// 只缓存正向映射，不做负缓存：一个不存在的短码随时可能被创建成自定义别名。
// Redis 故障包装成 shortlink.ErrCacheUnavailable 返回，由用例层记录后回落到存储。
type ShortlinkCache struct {
	client      *redis.Client
	local       *LocalCache
	ttl         time.Duration
	broadcaster Broadcaster
}

var _ shortlink.Cache = (*ShortlinkCache)(nil)

// NewShortlinkCache 组装两级缓存。client 或 local 为 nil 时跳过对应层；
// ttl 为 L2 的过期时间，0 表示不过期。
func NewShortlinkCache(client *redis.Client, local *LocalCache, ttl time.Duration) *ShortlinkCache {
	return &ShortlinkCache{
		client: client,
		local:  local,
		ttl:    ttl,
	}
}

// WithBroadcaster 让 Invalidate 同时通知其它实例丢弃各自的 L1。
func (c *ShortlinkCache) WithBroadcaster(b Broadcaster) *ShortlinkCache {
	c.broadcaster = b
	return c
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", shortlink.ErrCacheUnavailable, err)
}

func (c *ShortlinkCache) Get(ctx context.Context, code string) (string, bool, error) {
	// L1: 本地缓存
	if c.local != nil {
		if url, ok := c.local.Get(code); ok {
			metrics.CacheOperations.WithLabelValues("l1", "hit").Inc()
			return url, true, nil
		}
		metrics.CacheOperations.WithLabelValues("l1", "miss").Inc()
	}
	if c.client == nil {
		return "", false, nil
	}

	// L2: Redis
	res, err := c.client.Get(ctx, keyPrefix+code).Result()
	if errors.Is(err, redis.Nil) {
		metrics.CacheOperations.WithLabelValues("l2", "miss").Inc()
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable(err)
	}
	metrics.CacheOperations.WithLabelValues("l2", "hit").Inc()

	// 回填本地缓存
	if c.local != nil {
		c.local.Set(code, res)
	}
	return res, true, nil
}

func (c *ShortlinkCache) Set(ctx context.Context, code, url string) error {
	if c.local != nil {
		c.local.Set(code, url)
	}
	if c.client == nil {
		return nil
	}
	if err := c.client.Set(ctx, keyPrefix+code, url, c.ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Invalidate 删除两级缓存并广播；不存在的条目视为成功。
func (c *ShortlinkCache) Invalidate(ctx context.Context, code string) error {
	if c.local != nil {
		c.local.Del(code)
	}
	var errs []error
	if c.client != nil {
		if err := c.client.Del(ctx, keyPrefix+code).Err(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.broadcaster != nil {
		if err := c.broadcaster.Publish(ctx, code); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return unavailable(errors.Join(errs...))
	}
	return nil
}

// Close 关闭本地缓存和广播器。
func (c *ShortlinkCache) Close() {
	if c.local != nil {
		c.local.Close()
	}
	if c.broadcaster != nil {
		if err := c.broadcaster.Close(); err != nil {
			slog.Error("cache broadcaster close failed", "err", err)
		}
	}
	slog.Info("本地缓存已关闭")
}
