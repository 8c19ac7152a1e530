package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Options struct {
	DSN         string
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

func Connect(ctx context.Context, opts Options) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxOpen)
	db.SetMaxIdleConns(opts.MaxIdle)
	db.SetConnMaxLifetime(opts.MaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			username TEXT NOT NULL,
			avatar_url TEXT,
			profile_hidden BOOLEAN NOT NULL DEFAULT FALSE,
			accepts_requests BOOLEAN NOT NULL DEFAULT TRUE
			)`,
		`ALTER TABLE IF EXISTS users ADD COLUMN IF NOT EXISTS profile_hidden BOOLEAN NOT NULL DEFAULT FALSE`,
		`ALTER TABLE IF EXISTS users ADD COLUMN IF NOT EXISTS accepts_requests BOOLEAN NOT NULL DEFAULT TRUE`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_username_idx ON users (username)`,
		`CREATE TABLE IF NOT EXISTS relationships (
			id UUID PRIMARY KEY,
			requester_id BIGINT NOT NULL,
			requestee_id BIGINT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('PENDING','FRIENDS','REQUESTER_BLOCKED_REQUESTEE','REQUESTEE_BLOCKED_REQUESTER')),
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CHECK (requester_id <> requestee_id)
			)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS relationships_pair_idx
			ON relationships (LEAST(requester_id, requestee_id), GREATEST(requester_id, requestee_id))`,
		`CREATE INDEX IF NOT EXISTS relationships_requester_idx ON relationships (requester_id, status)`,
		`CREATE INDEX IF NOT EXISTS relationships_requestee_idx ON relationships (requestee_id, status)`,
	}

	for _, q := range queries {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	return nil
}
