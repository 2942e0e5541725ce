package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ChatSift/Social/config"
	"github.com/ChatSift/Social/internal/application/eligibility"
	"github.com/ChatSift/Social/internal/infrastructure/persistence/memory"
	"github.com/ChatSift/Social/internal/infrastructure/persistence/postgres"
	"github.com/ChatSift/Social/internal/infrastructure/persistence/redis"
	"github.com/ChatSift/Social/internal/interface/http/handlers"
	"github.com/ChatSift/Social/pkg/retry"
)

// dialOptions backs off between startup dials so replicas restarting
// together do not hit a recovering dependency in lockstep.
func dialOptions(cfg *config.Config, log *slog.Logger, dependency string) []retry.Option {
	return []retry.Option{
		retry.WithMaxAttempts(cfg.App.StartupMaxAttempts),
		retry.WithInitialDelay(500 * time.Millisecond),
		retry.WithMaxDelay(10 * time.Second),
		retry.WithJitter(0.2),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn(dependency+" not reachable yet", "attempt", attempt, "retry_in", delay.String(), "error", err)
		}),
	}
}

// openPostgres dials the database, retrying while it comes up.
func openPostgres(ctx context.Context, cfg *config.Config, log *slog.Logger) (*postgres.Connection, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.Database.URL
	pgCfg.MaxConns = cfg.Database.MaxConns
	pgCfg.MinConns = cfg.Database.MinConns
	pgCfg.Logger = log

	log.Info("connecting to database...")
	conn, err := retry.DoWithResult(ctx, func(ctx context.Context) (*postgres.Connection, error) {
		conn, err := postgres.NewConnection(ctx, pgCfg)
		if errors.Is(err, postgres.ErrInvalidConfig) {
			return nil, retry.Permanent(err)
		}
		return conn, err
	}, dialOptions(cfg, log, "database")...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("database connection established")
	return conn, nil
}

// openEligibilityStore returns the Redis-backed store, or the in-process
// one when Redis is disabled. The returned check is nil for the latter.
func openEligibilityStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (eligibility.Store, handlers.HealthCheckFunc, func(), error) {
	if cfg.Redis.Disabled {
		log.Warn("redis disabled; eligibility state is kept in memory and lost on restart")
		return memory.NewTTLStore(nil), nil, func() {}, nil
	}

	redisCfg := redis.DefaultConfig()
	redisCfg.Addr = cfg.Redis.Addr
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.PoolSize = cfg.Redis.PoolSize

	log.Info("connecting to Redis...", "addr", redisCfg.Addr)
	client, err := retry.DoWithResult(ctx, func(ctx context.Context) (*redis.Client, error) {
		return redis.NewClient(ctx, redisCfg)
	}, dialOptions(cfg, log, "redis")...)
	if err != nil {
		return nil, nil, nil, err
	}
	log.Info("Redis connection established")

	closeFn := func() {
		if err := client.Close(); err != nil {
			log.Warn("failed to close redis client", "error", err)
		}
	}
	return redis.NewEligibilityStore(client), handlers.PingCheck(client), closeFn, nil
}
