package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"whaleflow/config"
	"whaleflow/logger"
)

// RedisStore is the outer cache tier. It is optional; a nil *RedisStore is
// a valid no-op tier.
type RedisStore struct {
	client *redis.Client
	prefix string
	log    *logger.Log
}

// NewRedisStore connects to Redis using the configured address. It returns
// nil (disabled tier) when the configuration disables Redis.
func NewRedisStore(cfg config.RedisConfig) *RedisStore {
	if !cfg.Enabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisStore{
		client: client,
		prefix: cfg.KeyPrefix,
		log:    logger.GetLogger(),
	}
}

// Ping verifies connectivity. Used at startup to log a warning early instead
// of on the first request.
func (s *RedisStore) Ping(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	if s == nil {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) key(name string) string {
	return fmt.Sprintf("%s:%s", s.prefix, name)
}

// GetJSON reads and decodes an envelope. The bool is false on miss; decode
// failures count as misses and are logged, never surfaced.
func (s *RedisStore) GetJSON(ctx context.Context, name string, dest any) bool {
	if s == nil {
		return false
	}
	payload, err := s.client.Get(ctx, s.key(name)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.log.WithComponent("redis_cache").WithError(err).Warn("redis read failed")
		}
		return false
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		s.log.WithComponent("redis_cache").WithError(err).Warn("discarding undecodable cache entry")
		return false
	}
	return true
}

// SetJSON encodes and stores an envelope with the given TTL.
func (s *RedisStore) SetJSON(ctx context.Context, name string, value any, ttl time.Duration) error {
	if s == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := s.client.Set(ctx, s.key(name), payload, ttl).Err(); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}
