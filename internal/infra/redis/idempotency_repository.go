package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/GrowthSense/buntuanchorastralia/internal/gateway"
	"github.com/redis/go-redis/v9"
)

type IdempotencyRepository struct {
	client *redis.Client
}

func NewIdempotencyRepository(client *redis.Client) *IdempotencyRepository {
	return &IdempotencyRepository{client: client}
}

func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*gateway.CachedReceipt, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil // cache miss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency key: %w", err)
	}

	var receipt gateway.CachedReceipt
	if err := json.Unmarshal([]byte(val), &receipt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached receipt: %w", err)
	}

	return &receipt, nil
}

func (r *IdempotencyRepository) Save(ctx context.Context, key string, receipt gateway.CachedReceipt, ttl time.Duration) error {
	bytes, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("failed to marshal receipt: %w", err)
	}

	return r.client.Set(ctx, key, bytes, ttl).Err()
}
