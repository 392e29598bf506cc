package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ken-eddy/simplesales/models"
)

// RedisCache stores each business's rows as one JSON value.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func cacheKey(businessID uint) string {
	return fmt.Sprintf("entitlements:%d", businessID)
}

func (c *RedisCache) Get(ctx context.Context, businessID uint) ([]models.ExportAccess, bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(businessID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var rows []models.ExportAccess
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, false, fmt.Errorf("decode cached entitlements: %w", err)
	}
	return rows, true, nil
}

func (c *RedisCache) Set(ctx context.Context, businessID uint, rows []models.ExportAccess) error {
	if rows == nil {
		rows = []models.ExportAccess{}
	}
	raw, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(businessID), raw, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, businessID uint) error {
	return c.client.Del(ctx, cacheKey(businessID)).Err()
}
