package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ken-eddy/simplesales/config"
)

// NewRedisClient connects to the redis instance at cfg.RedisAddr.
func NewRedisClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is not set")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("connected to redis", "addr", cfg.RedisAddr)
	return client, nil
}
