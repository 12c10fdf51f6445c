package database

import (
	"context"
	"fmt"

	"adaptive-trading-bot/internal/logging"
)

// Backend names accepted by Open
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Options selects and configures a backend
type Options struct {
	Backend    string
	Namespace  string
	SQLitePath string
	RedisURL   string
	RedisAddr  string
	RedisPass  string
	RedisDB    int
	Postgres   PostgresConfig
}

// Open builds the configured Store
func Open(ctx context.Context, opts Options, logger *logging.Logger) (Store, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite:
		return NewSQLiteStore(ctx, opts.SQLitePath, opts.Namespace, logger)
	case BackendRedis:
		client := NewRedisClient(opts.RedisAddr, opts.RedisPass, opts.RedisDB)
		if opts.RedisURL != "" {
			var err error
			if client, err = NewRedisClientFromURL(opts.RedisURL); err != nil {
				return nil, err
			}
		}
		return NewRedisStore(client, opts.Namespace, logger), nil
	case BackendPostgres:
		return NewPostgresStore(ctx, opts.Postgres, opts.Namespace, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
