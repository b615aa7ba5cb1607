package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/marketdraft/go/internal/dbconfig"
)

// setupDatabase opens the pgx pool the repositories run on. The plain DSN
// is returned as well; the outbox listener needs it for lib/pq
// LISTEN/NOTIFY, which pgx does not serve.
func setupDatabase(ctx context.Context) (*pgxpool.Pool, string, error) {
	dbCfg := dbconfig.NewConfigFromEnv()

	pool, err := pgxpool.New(ctx, dbCfg.PoolDSN())
	if err != nil {
		return nil, "", fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, "", fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", dbCfg.Host).
		Int("port", dbCfg.Port).
		Str("database", dbCfg.Database).
		Msg("connected to database")
	return pool, dbCfg.DSN(), nil
}
