// Package cache implements the flat transaction cache on Redis hashes. Each
// transaction aggregate lives under one key as a field map produced by the
// mapper package.
package cache

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"payment-transactions/internal/domain"
	"payment-transactions/internal/errors"
	"payment-transactions/internal/mapper"
)

type TransactionCache struct {
	client *redis.Client
	logger *slog.Logger
}

func NewTransactionCache(client *redis.Client, logger *slog.Logger) *TransactionCache {
	return &TransactionCache{
		client: client,
		logger: logger,
	}
}

var _ domain.TransactionCache = (*TransactionCache)(nil)

func (c *TransactionCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		c.logger.Error("Failed to check cache key", "key", key, "error", err)
		return false, errors.NewAppError(errors.InternalError, "failed to check cache key").WithDetails(err.Error())
	}
	return n > 0, nil
}

func (c *TransactionCache) GetFields(ctx context.Context, key string) (map[string]string, error) {
	// HGETALL returns an empty map, not redis.Nil, for an absent key.
	fields, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		c.logger.Error("Failed to get cache fields", "key", key, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to get cache fields").WithDetails(err.Error())
	}
	if len(fields) == 0 {
		return nil, errors.ErrTransactionNotFound
	}
	return fields, nil
}

func (c *TransactionCache) SetAggregate(ctx context.Context, t *domain.Transaction) error {
	key := domain.CacheKey(t.ID)
	fields := mapper.Flatten(t)

	pipe := c.client.Pipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Error("Failed to write aggregate to cache", "key", key, "error", err)
		return errors.NewAppError(errors.InternalError, "failed to write aggregate to cache").WithDetails(err.Error())
	}

	c.logger.Info("Aggregate cached", "key", key)
	return nil
}

func (c *TransactionCache) SetField(ctx context.Context, key, field, value string) (map[string]string, error) {
	// HSET on an absent key would create it; an absent key must stay a
	// not-found, so check first.
	exists, err := c.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		c.logger.Warn("Cache key not found for field update", "key", key, "field", field)
		return nil, errors.ErrTransactionNotFound
	}

	if err := c.client.HSet(ctx, key, field, value).Err(); err != nil {
		c.logger.Error("Failed to update cache field", "key", key, "field", field, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to update cache field").WithDetails(err.Error())
	}

	return c.GetFields(ctx, key)
}

func (c *TransactionCache) ListKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string

	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Error("Failed to scan cache keys", "pattern", pattern, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to scan cache keys").WithDetails(err.Error())
	}

	return keys, nil
}
