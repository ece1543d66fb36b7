package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "mercadito:cart:"

// RedisBackend stores carts in Redis keyed by session id.
type RedisBackend struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisBackend wraps an existing client. Keys expire after ttl of inactivity.
func NewRedisBackend(client *redis.Client, ttl time.Duration) *RedisBackend {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisBackend{client: client, ttl: ttl}
}

// Name implements Backend.
func (b *RedisBackend) Name() string { return "redis" }

// Open implements Backend.
func (b *RedisBackend) Open(_ http.ResponseWriter, _ *http.Request, sessionID string) Store {
	return &redisStore{backend: b, key: redisKey(sessionID)}
}

// Ping checks connectivity, used at startup and by the health check.
func (b *RedisBackend) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cart: redis ping: %w", err)
	}
	return nil
}

func redisKey(sessionID string) string {
	return redisKeyPrefix + sessionID
}

type redisStore struct {
	backend *RedisBackend
	key     string
}

func (s *redisStore) Load(ctx context.Context) (*Cart, error) {
	raw, err := s.backend.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("cart: redis get: %w", err)
	}
	return decodeStored(ctx, s.backend.Name(), raw), nil
}

func (s *redisStore) Save(ctx context.Context, c *Cart) error {
	if c.IsEmpty() {
		return s.Clear(ctx)
	}
	raw, err := c.Encode()
	if err != nil {
		return err
	}
	if err := s.backend.client.Set(ctx, s.key, raw, s.backend.ttl).Err(); err != nil {
		return fmt.Errorf("cart: redis set: %w", err)
	}
	return nil
}

func (s *redisStore) Clear(ctx context.Context) error {
	if err := s.backend.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("cart: redis delete: %w", err)
	}
	return nil
}
