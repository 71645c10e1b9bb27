package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// migrations contains all database migrations in order.
var migrations = []struct {
	Version string
	SQL     string
}{
	{
		Version: "000001_create_videos",
		SQL: `
			CREATE TABLE IF NOT EXISTS videos (
				id               VARCHAR(36)      PRIMARY KEY,
				filename         VARCHAR(255)     NOT NULL,
				storage_handle   VARCHAR(512)     NOT NULL UNIQUE,
				format           VARCHAR(64)      NOT NULL,
				size_bytes       BIGINT           NOT NULL CHECK (size_bytes >= 0),
				duration_seconds DOUBLE PRECISION NOT NULL CHECK (duration_seconds >= 0),
				source_ids       TEXT[]           NOT NULL DEFAULT '{}',
				created_at       TIMESTAMPTZ      NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_videos_created_at ON videos(created_at);
		`,
	},
	{
		Version: "000002_create_share_links",
		SQL: `
			CREATE TABLE IF NOT EXISTS share_links (
				id            VARCHAR(36)  PRIMARY KEY,
				video_id      VARCHAR(36)  NOT NULL REFERENCES videos(id),
				token         VARCHAR(64)  NOT NULL,
				password_hash VARCHAR(255),
				expires_at    TIMESTAMPTZ  NOT NULL,
				created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
				CONSTRAINT share_links_token_key UNIQUE (token)
			);
			CREATE INDEX IF NOT EXISTS idx_share_links_video_id ON share_links(video_id);
			CREATE INDEX IF NOT EXISTS idx_share_links_expires_at ON share_links(expires_at);
		`,
	},
}

// DB wraps a pgxpool connection pool and provides health checks and migrations.
type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

// New creates a new database connection pool.
// The caller owns the returned handle and must Close it.
func New(ctx context.Context, databaseURL string, log zerolog.Logger) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log = log.With().Str("component", "database").Logger()
	log.Info().Msg("connected to database")
	return &DB{Pool: pool, log: log}, nil
}

// migrationLockID serialises migrations across replicas starting at once.
const migrationLockID = 0x7265656c

// RunMigrations applies all pending database migrations in order.
func (db *DB) RunMigrations(ctx context.Context) error {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for migrations: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return fmt.Errorf("failed to take migration lock: %w", err)
	}
	defer conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockID)

	_, err = conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range migrations {
		applied, err := db.applyMigration(ctx, conn.Conn(), m.Version, m.SQL)
		if err != nil {
			return err
		}
		if applied {
			db.log.Info().Str("version", m.Version).Msg("applied migration")
		}
	}

	return nil
}

// applyMigration runs one migration in its own transaction unless it is
// already recorded in schema_migrations.
func (db *DB) applyMigration(ctx context.Context, conn *pgx.Conn, version, sql string) (bool, error) {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction for migration %s: %w", version, err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", version,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check migration status for %s: %w", version, err)
	}
	if exists {
		return false, nil
	}

	if _, err := tx.Exec(ctx, sql); err != nil {
		return false, fmt.Errorf("failed to execute migration %s: %w", version, err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
		return false, fmt.Errorf("failed to record migration %s: %w", version, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit migration %s: %w", version, err)
	}
	return true, nil
}

// HealthCheck verifies the database connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
