package database

import (
	"context"
	"fmt"

	"github.com/fabble/moderation/internal/config"
	"github.com/fabble/moderation/internal/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// NewRedis 创建 Redis 客户端
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		parsed.PoolSize = cfg.PoolSize
		parsed.MinIdleConns = cfg.MinIdleConns
		opts = parsed
	}

	client := redis.NewClient(opts)

	// 测试连接
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info().
		Str("addr", opts.Addr).
		Int("db", opts.DB).
		Msg("Redis connected")

	return client, nil
}

// CloseRedis 关闭 Redis 连接
func CloseRedis(client *redis.Client) error {
	if client != nil {
		logger.Info().Msg("Closing Redis connection")
		return client.Close()
	}
	return nil
}
