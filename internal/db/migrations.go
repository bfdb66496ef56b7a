package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type migration struct {
	version int
	name    string
	sql     string
}

// migrations se aplican en orden y cada una una sola vez.
var migrations = []migration{
	{
		version: 1,
		name:    "users_and_auth",
		sql: `
			CREATE TABLE IF NOT EXISTS users (
				id                TEXT PRIMARY KEY,
				email             TEXT NOT NULL UNIQUE,
				username          VARCHAR(150) NOT NULL UNIQUE,
				first_name        VARCHAR(150) NOT NULL DEFAULT '',
				last_name         VARCHAR(150) NOT NULL DEFAULT '',
				is_email_verified BOOLEAN NOT NULL DEFAULT FALSE,
				google_id         VARCHAR(100) UNIQUE,
				avatar_url        TEXT,
				is_active         BOOLEAN NOT NULL DEFAULT TRUE,
				created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
			);

			CREATE TABLE IF NOT EXISTS user_credentials (
				user_id       TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
				password_hash TEXT NOT NULL,
				updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
			);

			CREATE TABLE IF NOT EXISTS magic_links (
				id         TEXT PRIMARY KEY,
				user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				token      VARCHAR(255) NOT NULL UNIQUE,
				email      TEXT NOT NULL,
				is_signup  BOOLEAN NOT NULL DEFAULT FALSE,
				is_used    BOOLEAN NOT NULL DEFAULT FALSE,
				expires_at TIMESTAMPTZ NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				used_at    TIMESTAMPTZ
			);
			CREATE INDEX IF NOT EXISTS magic_links_user_id_idx ON magic_links (user_id);

			CREATE TABLE IF NOT EXISTS user_sessions (
				id            TEXT PRIMARY KEY,
				user_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				session_key   VARCHAR(40) NOT NULL,
				ip_address    TEXT NOT NULL DEFAULT '',
				user_agent    TEXT NOT NULL DEFAULT '',
				login_method  VARCHAR(20) NOT NULL
					CHECK (login_method IN ('magic_link', 'google_oauth', 'password')),
				is_active     BOOLEAN NOT NULL DEFAULT TRUE,
				created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
				last_activity TIMESTAMPTZ NOT NULL DEFAULT now(),
				UNIQUE (user_id, session_key)
			);
		`,
	},
	{
		version: 2,
		name:    "portfolio_content",
		sql: `
			CREATE TABLE IF NOT EXISTS tags (
				id    BIGSERIAL PRIMARY KEY,
				name  VARCHAR(50) NOT NULL UNIQUE,
				icon  TEXT,
				color VARCHAR(7)
			);

			CREATE TABLE IF NOT EXISTS technologies (
				id   BIGSERIAL PRIMARY KEY,
				name VARCHAR(50) NOT NULL UNIQUE,
				icon TEXT
			);

			CREATE TABLE IF NOT EXISTS projects (
				id          BIGSERIAL PRIMARY KEY,
				name        VARCHAR(100) NOT NULL,
				description TEXT,
				summary     TEXT,
				thumbnail   TEXT,
				priority    INTEGER NOT NULL DEFAULT 0,
				created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
			);
			CREATE INDEX IF NOT EXISTS projects_ordering_idx ON projects (priority DESC, created_at DESC);

			CREATE TABLE IF NOT EXISTS project_technologies (
				project_id    BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
				technology_id BIGINT NOT NULL REFERENCES technologies(id) ON DELETE CASCADE,
				PRIMARY KEY (project_id, technology_id)
			);

			CREATE TABLE IF NOT EXISTS project_tags (
				project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
				tag_id     BIGINT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
				PRIMARY KEY (project_id, tag_id)
			);

			CREATE TABLE IF NOT EXISTS links (
				id         BIGSERIAL PRIMARY KEY,
				project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
				name       VARCHAR(100) NOT NULL,
				url        TEXT NOT NULL,
				icon       TEXT
			);

			CREATE TABLE IF NOT EXISTS project_images (
				id         BIGSERIAL PRIMARY KEY,
				project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
				image      TEXT NOT NULL,
				caption    VARCHAR(200)
			);
		`,
	},
}

// Migrate aplica las migraciones pendientes dentro de una transaccion por version.
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	const createVersions = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	if _, err := pool.Exec(ctx, createVersions); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		if err := applyMigration(ctx, pool, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		if logger != nil {
			logger.Debug("migration checked", zap.Int("version", m.version), zap.String("name", m.name))
		}
	}
	return nil
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, m migration) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		var applied bool
		err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, m.version).Scan(&applied)
		if err != nil {
			return err
		}
		if applied {
			return nil
		}
		if _, err := tx.Exec(ctx, m.sql); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.version, m.name)
		return err
	})
}
