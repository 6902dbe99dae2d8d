package db

import (
	"context"
	"fmt"
	"time"

	"ecoguard/pkg/types"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// minPoolConns keeps one connection for the feed listener and one for
	// queries.
	minPoolConns = 2
	pingTimeout  = 5 * time.Second
)

// Connect opens the pool and verifies the database answers.
func Connect(ctx context.Context, config *types.Config) (*pgxpool.Pool, error) {
	cfg, err := poolConfig(config)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

func poolConfig(config *types.Config) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	// A search_path in the URL wins over DATABASE_SCHEMA.
	params := cfg.ConnConfig.RuntimeParams
	if _, ok := params["search_path"]; !ok && config.DatabaseSchema != "" {
		params["search_path"] = config.DatabaseSchema
	}

	cfg.MaxConns = max(config.DatabaseMaxConns, minPoolConns)
	cfg.MaxConnIdleTime = 15 * time.Minute
	cfg.MaxConnLifetime = 45 * time.Minute

	return cfg, nil
}
