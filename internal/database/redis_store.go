package database

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"adaptive-trading-bot/internal/logging"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisPrefix namespaces engine keys: {prefix}:{namespace}:{key}
	DefaultRedisPrefix = "adaptive"

	redisPingTimeout   = 2 * time.Second
	redisRecheckPeriod = 30 * time.Second
)

// RedisStore keeps records in Redis with an in-memory fallback so that a
// Redis outage never blocks a tick. Writes always land in memory first.
type RedisStore struct {
	client         *redis.Client
	prefix         string
	fallback       *MemoryStore
	redisAvailable atomic.Bool
	lastCheck      atomic.Int64
	logger         *logging.Logger
}

// NewRedisStore creates a RedisStore. If client is nil the store operates
// in memory-only mode.
func NewRedisStore(client *redis.Client, namespace string, logger *logging.Logger) *RedisStore {
	if logger == nil {
		logger = logging.Default()
	}
	prefix := DefaultRedisPrefix
	if namespace != "" {
		prefix = fmt.Sprintf("%s:%s", DefaultRedisPrefix, namespace)
	}

	s := &RedisStore{
		client:   client,
		prefix:   prefix,
		fallback: NewMemoryStore(),
		logger:   logger.WithComponent("redis-store"),
	}

	if client == nil {
		s.logger.Warn("No Redis client provided, using in-memory cache only")
		return s
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	s.checkAvailability(ctx)
	return s
}

// NewRedisClient builds a client from connection options
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// NewRedisClientFromURL builds a client from a redis:// URL
func NewRedisClientFromURL(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (s *RedisStore) checkAvailability(ctx context.Context) bool {
	s.lastCheck.Store(time.Now().UnixNano())
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.logger.Warn("Redis unavailable, using in-memory cache", "error", err)
		s.redisAvailable.Store(false)
		return false
	}
	if !s.redisAvailable.Swap(true) {
		s.logger.Info("Redis connected")
	}
	return true
}

// available reports whether Redis should be used, re-pinging at most once
// per recheck period after a failure
func (s *RedisStore) available(ctx context.Context) bool {
	if s.client == nil {
		return false
	}
	if s.redisAvailable.Load() {
		return true
	}
	if time.Since(time.Unix(0, s.lastCheck.Load())) < redisRecheckPeriod {
		return false
	}
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	return s.checkAvailability(pingCtx)
}

// Available reports whether the last Redis interaction succeeded
func (s *RedisStore) Available() bool {
	return s.redisAvailable.Load()
}

func (s *RedisStore) key(key string) string {
	return fmt.Sprintf("%s:%s", s.prefix, key)
}

// Get reads from Redis, falling back to the in-memory cache
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if !s.available(ctx) {
		return s.fallback.Get(ctx, key)
	}

	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return s.fallback.Get(ctx, key)
		}
		s.logger.Warn("Redis read error, using in-memory cache", "key", key, "error", err)
		s.redisAvailable.Store(false)
		return s.fallback.Get(ctx, key)
	}

	_ = s.fallback.Put(ctx, key, data)
	return data, nil
}

// Put writes to the in-memory cache and then to Redis. A Redis failure is
// logged, not returned: the cached copy already holds the record.
func (s *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.fallback.Put(ctx, key, value); err != nil {
		return err
	}
	if !s.available(ctx) {
		return nil
	}

	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		s.logger.Warn("Failed to save to Redis, kept in-memory copy", "key", key, "error", err)
		s.redisAvailable.Store(false)
	}
	return nil
}

// Close closes the underlying client
func (s *RedisStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
