package repository

import (
	"context"
	"fmt"
	"time"

	"unispace/internal/config"

	"github.com/redis/go-redis/v9"
)

// RedisRequestState keeps create-booking idempotency keys and
// scan-operator rate limits in Redis.
type RedisRequestState struct {
	client *redis.Client
}

// NewRedisClient builds a Redis client from config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisRequestState(client *redis.Client) *RedisRequestState {
	return &RedisRequestState{client: client}
}

// ClaimIdempotencyKey atomically binds key to bookingID. If another
// request claimed the key first, the booking it created is returned and
// claimed is false.
func (r *RedisRequestState) ClaimIdempotencyKey(ctx context.Context, key, bookingID string, ttl time.Duration) (string, bool, error) {
	if r.client == nil {
		return "", false, fmt.Errorf("redis client is nil")
	}
	redisKey := fmt.Sprintf("idempotency:%s", key)

	ok, err := r.client.SetNX(ctx, redisKey, bookingID, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	if ok {
		return bookingID, true, nil
	}

	existing, err := r.client.Get(ctx, redisKey).Result()
	if err == redis.Nil {
		// Key expired between SetNX and Get; treat as a fresh claim.
		return bookingID, true, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	return existing, false, nil
}

func (r *RedisRequestState) CheckRateLimit(ctx context.Context, operatorID string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	key := fmt.Sprintf("scan_rate:%s", operatorID)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		r.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

// Ping verifies the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
