// Package bootstrap wires optional infrastructure (Redis, Postgres,
// object storage) from configuration. Every builder degrades to nil
// when its backing service is not configured, so binaries stay runnable
// in minimal local setups.
package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/collectwise/collections-ai-platform/internal/config"
	"github.com/collectwise/collections-ai-platform/internal/events"
	"github.com/collectwise/collections-ai-platform/internal/transcript"
	"github.com/collectwise/collections-ai-platform/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildCallStateStore returns the Redis-backed live call-state and
// transcript store, or nil without Redis.
func BuildCallStateStore(redisClient *redis.Client) *transcript.Store {
	if redisClient == nil {
		return nil
	}
	return transcript.NewStore(redisClient)
}

// BuildEventStore opens Postgres for the audit event store, or returns
// nil when no database is configured.
func BuildEventStore(cfg *appconfig.Config, logger *logging.Logger) (*events.Store, *sql.DB) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Warn("postgres not available, audit events will not be persisted", "error", err)
		return nil, nil
	}
	return events.NewStore(db), db
}

// BuildDedupPool opens a pgx pool for the dispatch idempotency store,
// or returns nil when no database is configured.
func BuildDedupPool(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *pgxpool.Pool {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Warn("postgres pool not available, dispatch dedup disabled", "error", err)
		return nil
	}
	return pool
}
