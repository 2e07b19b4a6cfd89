package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const adminsSchema = `
CREATE TABLE IF NOT EXISTS admins (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL UNIQUE,
	password_hash BYTEA NOT NULL,
	role          TEXT NOT NULL CHECK (role IN ('admin', 'superadmin')),
	last_login_at TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// EnsureSchema creates the admins table when it does not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, adminsSchema); err != nil {
		return fmt.Errorf("ensure admins schema: %w", err)
	}
	return nil
}
