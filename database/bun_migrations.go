package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// runMigrations runs all Bun migrations
func (b *BunDB) runMigrations(ctx context.Context) error {
	// Detect database dialect - check if it's PostgreSQL by checking dialect features
	_, isPostgres := b.db.Dialect().(interface{ SupportsReturning() bool })

	// Create a simple migrations tracking table
	var trackingSQL string
	if isPostgres {
		trackingSQL = `
			CREATE TABLE IF NOT EXISTS bun_schema_migrations (
				id SERIAL PRIMARY KEY,
				version TEXT NOT NULL UNIQUE,
				applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)
		`
	} else {
		trackingSQL = `
			CREATE TABLE IF NOT EXISTS bun_schema_migrations (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				version TEXT NOT NULL UNIQUE,
				applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)
		`
	}
	_, err := b.db.ExecContext(ctx, trackingSQL)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	// Check which migrations have been applied
	type AppliedMigration struct {
		bun.BaseModel `bun:"table:bun_schema_migrations"`
		Version       string `bun:"version"`
	}
	var applied []AppliedMigration
	err = b.db.NewSelect().
		Model(&applied).
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("failed to check applied migrations: %w", err)
	}

	appliedMap := make(map[string]bool)
	for _, m := range applied {
		appliedMap[m.Version] = true
	}

	// Run migrations in order
	migrations := []struct {
		version string
		name    string
		up      func(context.Context, *bun.DB) error
	}{
		{"001", "create_conversions_table", init001CreateConversionsTable},
		{"002", "create_server_config_table", init002CreateServerConfigTable},
		{"003", "create_jobs_table", init003CreateJobsTable},
	}

	for _, m := range migrations {
		if appliedMap[m.version] {
			continue
		}

		Logger.Info("Running migration", "version", m.version, "name", m.name)
		if err := m.up(ctx, b.db); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", m.version, err)
		}

		// Mark as applied
		_, err = b.db.NewInsert().
			Model(&AppliedMigration{Version: m.version}).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to mark migration %s as applied: %w", m.version, err)
		}
	}

	Logger.Info("All migrations completed successfully")
	return nil
}

// Migration 001: Create conversions table
func init001CreateConversionsTable(ctx context.Context, db *bun.DB) error {
	Logger.Info("Running migration 001: Create conversions table")

	// Detect database dialect - check if it's PostgreSQL by checking dialect features
	_, isPostgres := db.Dialect().(interface{ SupportsReturning() bool })

	var createTableSQL string
	if isPostgres {
		createTableSQL = `
			CREATE TABLE IF NOT EXISTS conversions (
				id SERIAL PRIMARY KEY,
				ulid TEXT NOT NULL UNIQUE,
				job_id TEXT NOT NULL,
				name TEXT NOT NULL,
				input_path TEXT NOT NULL,
				output_dir TEXT NOT NULL,
				dpi INTEGER NOT NULL,
				format TEXT NOT NULL,
				page_count INTEGER DEFAULT 0,
				pages_done INTEGER DEFAULT 0,
				page_errors INTEGER DEFAULT 0,
				status TEXT DEFAULT 'pending',
				error TEXT,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				completed_at TIMESTAMP
			)
		`
	} else {
		createTableSQL = `
			CREATE TABLE IF NOT EXISTS conversions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				ulid TEXT NOT NULL UNIQUE,
				job_id TEXT NOT NULL,
				name TEXT NOT NULL,
				input_path TEXT NOT NULL,
				output_dir TEXT NOT NULL,
				dpi INTEGER NOT NULL,
				format TEXT NOT NULL,
				page_count INTEGER DEFAULT 0,
				pages_done INTEGER DEFAULT 0,
				page_errors INTEGER DEFAULT 0,
				status TEXT DEFAULT 'pending',
				error TEXT,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				completed_at TIMESTAMP
			)
		`
	}

	_, err := db.ExecContext(ctx, createTableSQL)
	if err != nil {
		return fmt.Errorf("failed to create conversions table: %w", err)
	}

	// Create indexes for conversions
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_conversions_ulid ON conversions(ulid)",
		"CREATE INDEX IF NOT EXISTS idx_conversions_job_id ON conversions(job_id)",
		"CREATE INDEX IF NOT EXISTS idx_conversions_status ON conversions(status)",
		"CREATE INDEX IF NOT EXISTS idx_conversions_created_at ON conversions(created_at DESC)",
	}

	for _, idx := range indexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	Logger.Info("Migration 001 completed successfully")
	return nil
}

func init001RollbackConversionsTable(ctx context.Context, db *bun.DB) error {
	Logger.Info("Rolling back migration 001")

	_, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS conversions")
	return err
}

// Migration 002: Create server_config table
func init002CreateServerConfigTable(ctx context.Context, db *bun.DB) error {
	Logger.Info("Running migration 002: Create server_config table")

	// Detect database dialect
	_, isPostgres := db.Dialect().(interface{ SupportsReturning() bool })

	var createConfigSQL string
	var insertConfigSQL string
	if isPostgres {
		createConfigSQL = `
			CREATE TABLE IF NOT EXISTS server_config (
				id INTEGER PRIMARY KEY CHECK (id = 1),
				listen_addr_ip TEXT DEFAULT '',
				listen_addr_port TEXT NOT NULL DEFAULT '8000',
				upload_path TEXT NOT NULL DEFAULT '',
				output_path TEXT NOT NULL DEFAULT '',
				keep_uploads BOOLEAN NOT NULL DEFAULT false,
				default_dpi INTEGER NOT NULL DEFAULT 300,
				default_format TEXT NOT NULL DEFAULT 'png',
				renderer TEXT NOT NULL DEFAULT 'fitz',
				jpeg_quality INTEGER NOT NULL DEFAULT 90,
				grayscale BOOLEAN NOT NULL DEFAULT false,
				max_width INTEGER NOT NULL DEFAULT 0,
				retention_days INTEGER NOT NULL DEFAULT 14,
				cleanup_interval INTEGER NOT NULL DEFAULT 60,
				use_reverse_proxy BOOLEAN NOT NULL DEFAULT false,
				base_url TEXT DEFAULT '',
				recent_conversion_count INTEGER NOT NULL DEFAULT 10,
				server_api_url TEXT DEFAULT '',
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)
		`
		insertConfigSQL = `INSERT INTO server_config (id) VALUES (1) ON CONFLICT (id) DO NOTHING`
	} else {
		createConfigSQL = `
			CREATE TABLE IF NOT EXISTS server_config (
				id INTEGER PRIMARY KEY CHECK (id = 1),
				listen_addr_ip TEXT DEFAULT '',
				listen_addr_port TEXT NOT NULL DEFAULT '8000',
				upload_path TEXT NOT NULL DEFAULT '',
				output_path TEXT NOT NULL DEFAULT '',
				keep_uploads BOOLEAN NOT NULL DEFAULT 0,
				default_dpi INTEGER NOT NULL DEFAULT 300,
				default_format TEXT NOT NULL DEFAULT 'png',
				renderer TEXT NOT NULL DEFAULT 'fitz',
				jpeg_quality INTEGER NOT NULL DEFAULT 90,
				grayscale BOOLEAN NOT NULL DEFAULT 0,
				max_width INTEGER NOT NULL DEFAULT 0,
				retention_days INTEGER NOT NULL DEFAULT 14,
				cleanup_interval INTEGER NOT NULL DEFAULT 60,
				use_reverse_proxy BOOLEAN NOT NULL DEFAULT 0,
				base_url TEXT DEFAULT '',
				recent_conversion_count INTEGER NOT NULL DEFAULT 10,
				server_api_url TEXT DEFAULT '',
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)
		`
		insertConfigSQL = `INSERT OR IGNORE INTO server_config (id) VALUES (1)`
	}

	_, err := db.ExecContext(ctx, createConfigSQL)
	if err != nil {
		return fmt.Errorf("failed to create server_config table: %w", err)
	}

	// Insert default config row
	_, err = db.ExecContext(ctx, insertConfigSQL)
	if err != nil {
		return fmt.Errorf("failed to insert default config: %w", err)
	}

	Logger.Info("Migration 002 completed successfully")
	return nil
}

func init002RollbackServerConfigTable(ctx context.Context, db *bun.DB) error {
	Logger.Info("Rolling back migration 002")

	_, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS server_config")
	return err
}

// Migration 003: Create jobs table
func init003CreateJobsTable(ctx context.Context, db *bun.DB) error {
	Logger.Info("Running migration 003: Create jobs table")

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			status TEXT DEFAULT 'pending',
			progress INTEGER DEFAULT 0,
			current_step TEXT DEFAULT '',
			total_steps INTEGER DEFAULT 0,
			message TEXT DEFAULT '',
			error TEXT,
			result TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			started_at TIMESTAMP,
			completed_at TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create jobs table: %w", err)
	}

	// Create indexes
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)",
		"CREATE INDEX IF NOT EXISTS idx_jobs_type ON jobs(type)",
		"CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_jobs_completed_at ON jobs(completed_at) WHERE completed_at IS NOT NULL",
	}

	for _, idx := range indexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			// Partial indexes might not be supported in all SQLite versions
			Logger.Warn("Could not create index (might not be supported)", "error", err)
		}
	}

	Logger.Info("Migration 003 completed successfully")
	return nil
}

func init003RollbackJobsTable(ctx context.Context, db *bun.DB) error {
	Logger.Info("Rolling back migration 003")

	_, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS jobs")
	return err
}
