package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"perfume-storefront/internal/domain"
)

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Load(ctx context.Context, customerID uuid.UUID) (*domain.CartHistory, error) {
	data, err := r.client.Get(ctx, historyKey(customerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var h domain.CartHistory
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("unmarshal cart history failed: %w", err)
	}
	return &h, nil
}

func (r *RedisStore) Save(ctx context.Context, customerID uuid.UUID, h *domain.CartHistory) error {
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("marshal cart history failed: %w", err)
	}
	if err := r.client.Set(ctx, historyKey(customerID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, customerID uuid.UUID) error {
	if err := r.client.Del(ctx, historyKey(customerID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func historyKey(customerID uuid.UUID) string {
	return fmt.Sprintf("cart:history:%s", customerID)
}
