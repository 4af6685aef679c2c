// Package cache 提供带过期时间的键值缓存抽象
// 关键词列表与只读模式开关经由此接口缓存，组件通过构造参数注入具体实现
package cache

import (
	"context"
	"time"

	"github.com/fabble/moderation/internal/pkg/logger"
)

// Cache 带 TTL 的键值缓存，值以 JSON 编码存储
type Cache interface {
	// Get 读取并解码到 dest，未命中时返回 false
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set 写入值，ttl <= 0 表示不过期
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete 删除一个或多个键
	Delete(ctx context.Context, keys ...string) error
}

// Fetch 先读缓存，未命中时调用 load 并回写
// 缓存读写失败只记录日志，不影响返回 load 的结果
func Fetch[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	var value T

	hit, err := c.Get(ctx, key, &value)
	if err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("Cache read failed")
	}
	if hit {
		return value, nil
	}

	value, err = load(ctx)
	if err != nil {
		return value, err
	}

	if err := c.Set(ctx, key, value, ttl); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
	return value, nil
}
