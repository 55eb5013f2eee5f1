package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tutorhive/livehub/internal/slogging"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("store: key not found")

// RedisConfig holds the configuration for the Redis connection
type RedisConfig struct {
	Host     string
	Port     string
	Password string //nolint:gosec // Redis connection password
	DB       int
	// OpTimeout bounds every store round trip so a slow store cannot
	// wedge a connection handler indefinitely.
	OpTimeout time.Duration
}

// RedisStore is the shared state store backing all registries. Every server
// process talks to the same Redis, which is the only source of
// cross-process truth for presence, call membership, and peer signaling.
type RedisStore struct {
	client    *redis.Client
	cfg       RedisConfig
	opTimeout time.Duration
}

// NewRedisStore creates a new Redis store connection
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	logger := slogging.Get()
	logger.Debug("Initializing Redis connection to %s:%s DB=%d", cfg.Host, cfg.Port, cfg.DB)

	opTimeout := cfg.OpTimeout
	if opTimeout <= 0 {
		opTimeout = 3 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:            fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:        cfg.Password,
		DB:              cfg.DB,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     opTimeout,
		WriteTimeout:    opTimeout,
		PoolSize:        10,
		MinIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to ping Redis: %v", err)
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	logger.Debug("Redis connection established successfully")

	return &RedisStore{
		client:    client,
		cfg:       cfg,
		opTimeout: opTimeout,
	}, nil
}

// NewRedisStoreFromClient wraps an existing client. Used by tests to point
// the registries at a miniredis instance.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:    client,
		opTimeout: 3 * time.Second,
	}
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	logger := slogging.Get()
	if s.client != nil {
		err := s.client.Close()
		if err != nil {
			logger.Error("Error closing Redis connection: %v", err)
		}
		return err
	}
	return nil
}

// GetClient returns the underlying Redis client
func (s *RedisStore) GetClient() *redis.Client {
	return s.client
}

// Ping checks if the Redis connection is alive
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// opContext derives a bounded context for a single store round trip.
func (s *RedisStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// Set sets a key-value pair with expiration (0 = no expiration)
func (s *RedisStore) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.client.Set(ctx, key, value, expiration).Err()
}

// Get gets a value by key. Returns ErrNotFound when the key is absent.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	result, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return result, err
}

// Del deletes one or more keys
func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.client.Del(ctx, keys...).Err()
}

// Expire sets or refreshes a key's time to live. A no-op when the key is
// absent.
func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.client.Expire(ctx, key, ttl).Err()
}

// SAdd adds members to a set. Adding an already-present member is a no-op,
// which is what makes registry inserts idempotent under racing handlers.
func (s *RedisStore) SAdd(ctx context.Context, key string, members ...any) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.client.SAdd(ctx, key, members...).Err()
}

// SRem removes members from a set
func (s *RedisStore) SRem(ctx context.Context, key string, members ...any) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.client.SRem(ctx, key, members...).Err()
}

// SMembers returns all members of a set (empty slice when the key is absent)
func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.client.SMembers(ctx, key).Result()
}

// SIsMember reports whether member is in the set
func (s *RedisStore) SIsMember(ctx context.Context, key string, member any) (bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.client.SIsMember(ctx, key, member).Result()
}

// Incr atomically increments a counter and returns the new value
func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.client.Incr(ctx, key).Result()
}

// Decr atomically decrements a counter and returns the new value
func (s *RedisStore) Decr(ctx context.Context, key string) (int64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.client.Decr(ctx, key).Result()
}

// Publish publishes a message on a pub/sub channel
func (s *RedisStore) Publish(ctx context.Context, channel string, payload []byte) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.client.Publish(ctx, channel, payload).Err()
}

// Subscribe subscribes to a pub/sub channel. The returned PubSub must be
// closed by the caller; receives are not bounded by the op timeout.
func (s *RedisStore) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return s.client.Subscribe(ctx, channel)
}
