package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/gatekeeper/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient initialises a Redis client and verifies it can reach the server
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		// Redis 7.x rejects the client-side caching handshake
		DisableIdentity: true,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info("redis connection established", "addr", cfg.Addr, "db", cfg.DB)

	return client, nil
}
