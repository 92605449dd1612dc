package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig holds the configuration for the Redis-backed store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore implements Store on Redis. SET NX with an expiry is a single
// atomic command, so concurrent duplicate deliveries cannot both observe
// "stored".
type RedisStore struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisStore creates and connects a new RedisStore. It pings the Redis
// server to ensure connectivity before returning.
func NewRedisStore(ctx context.Context, cfg *RedisConfig, logger zerolog.Logger) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info().Str("redis_address", cfg.Addr).Msg("Successfully connected to Redis.")

	return &RedisStore{
		client: rdb,
		logger: logger.With().Str("component", "RedisStore").Logger(),
	}, nil
}

// SetIfAbsent writes a first-seen marker atomically via SET NX EX.
func (s *RedisStore) SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	stored, err := s.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Redis SETNX failed.")
		return false, fmt.Errorf("redis setnx for %s: %w", key, err)
	}
	return stored, nil
}

// Close closes the Redis client connection.
func (s *RedisStore) Close() error {
	if s.client != nil {
		s.logger.Info().Msg("Closing Redis client connection...")
		return s.client.Close()
	}
	return nil
}
