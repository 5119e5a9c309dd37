// Package storage opens the capture.Repository selected by configuration.
package storage

import (
	"context"
	"fmt"

	"github.com/marcelsud/webhook-inspector/capture"
	"github.com/marcelsud/webhook-inspector/capture/memory"
	"github.com/marcelsud/webhook-inspector/capture/postgres"
	"github.com/marcelsud/webhook-inspector/capture/redis"
	"github.com/marcelsud/webhook-inspector/capture/sqlite"
	"github.com/marcelsud/webhook-inspector/config"
)

// Open connects to the configured store and makes sure its schema exists
func Open(ctx context.Context, cfg *config.Config) (capture.Repository, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return memory.NewRepository(), nil

	case config.DriverSQLite:
		repo, err := sqlite.NewRepository(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return repo, nil

	case config.DriverPostgres:
		repo, err := postgres.NewRepositoryWithPoolConfig(
			cfg.PostgresDSN(),
			cfg.PostgresMaxOpenConns,
			cfg.PostgresMaxIdleConns,
			cfg.PostgresConnMaxLifeMinutes,
		)
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		if err := repo.CreateTable(ctx); err != nil {
			_ = repo.Close(ctx)
			return nil, fmt.Errorf("preparing postgres store: %w", err)
		}
		return repo, nil

	case config.DriverRedis:
		repo, err := redis.NewRepository(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("opening redis store: %w", err)
		}
		return repo, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
