package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftcoord/go/internal/dbconfig"
	"github.com/mcdev12/draftcoord/go/internal/draft/backend"
)

func setupDatabase(ctx context.Context) (*sql.DB, error) {
	cfg := dbconfig.NewConfigFromEnv()

	database, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if getEnv("DB_MIGRATE", "false") == "true" {
		if _, err := database.ExecContext(ctx, backend.Schema); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
		log.Info().Msg("applied schema")
	}

	log.Info().
		Str("user", cfg.User).
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("connected to database")
	return database, nil
}
