package state

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database schema migration.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrations is the list of all database migrations in order.
var Migrations = []Migration{
	{
		Version: 1,
		Name:    "clustering_state",
		SQL: `
			-- Persisted clustering state, one row per vault
			CREATE TABLE IF NOT EXISTS clustering_state (
				vault TEXT PRIMARY KEY,
				state TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				updated_at_epoch INTEGER NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_clustering_state_updated ON clustering_state(updated_at_epoch DESC);
		`,
	},
	{
		Version: 2,
		Name:    "embedding_cache",
		SQL: `
			-- Embedding cache, keyed by vault and content hash so pruning
			-- one vault never touches another's rows
			CREATE TABLE IF NOT EXISTS embedding_cache (
				vault TEXT NOT NULL,
				content_hash TEXT NOT NULL,
				note_path TEXT NOT NULL,
				model TEXT NOT NULL,
				dimensions INTEGER NOT NULL,
				embedding TEXT NOT NULL,
				token_count INTEGER NOT NULL DEFAULT 0,
				created_at_epoch INTEGER NOT NULL,
				PRIMARY KEY (vault, content_hash)
			);

			CREATE INDEX IF NOT EXISTS idx_embedding_cache_note ON embedding_cache(note_path);
			CREATE INDEX IF NOT EXISTS idx_embedding_cache_model ON embedding_cache(model);
		`,
	},
}

// MigrationManager applies schema migrations in order.
type MigrationManager struct {
	db *sql.DB
}

// NewMigrationManager creates a migration manager for the given database.
func NewMigrationManager(db *sql.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

// RunMigrations applies all pending migrations inside transactions.
func (m *MigrationManager) RunMigrations() error {
	if _, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	for _, migration := range Migrations {
		applied, err := m.isApplied(migration.Version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		tx, err := m.db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", migration.Version, err)
		}

		if _, err := tx.Exec(migration.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec(
			`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
			migration.Version, migration.Name, time.Now().Format(time.RFC3339),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// isApplied reports whether a migration version has already been applied.
func (m *MigrationManager) isApplied(version int) (bool, error) {
	var count int
	err := m.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check migration %d: %w", version, err)
	}
	return count > 0, nil
}
