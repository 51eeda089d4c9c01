package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const orderNumberKeyPrefix = "order_number:"

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// ReserveOrderNumber claims number without expiry. The numeric part of an
// order number wraps about every seventeen minutes, so a reservation must outlive it.
func (r *RedisAdapter) ReserveOrderNumber(ctx context.Context, number string) (bool, error) {
	return r.client.SetNX(ctx, orderNumberKeyPrefix+number, 1, 0).Result()
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
