package database

import (
	"database/sql"
	"fmt"
	"log"
)

type Migration struct {
	Version string
	Name    string
	SQL     string
}

var migrations = []Migration{
	{
		Version: "001",
		Name:    "create_kv",
		SQL: `CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
	},
	{
		Version: "002",
		Name:    "create_captures",
		SQL: `CREATE TABLE IF NOT EXISTS captures (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			method TEXT NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			size INTEGER NOT NULL,
			captured_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_captures_captured_at ON captures(captured_at);`,
	},
}

// Migrations returns the schema migrations in the order they are applied.
func Migrations() []Migration {
	return append([]Migration(nil), migrations...)
}

type Migrator struct {
	db *sql.DB
}

func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Initialize creates the migrations tracking table if it doesn't exist
func (m *Migrator) Initialize() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := m.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns a list of already applied migration versions
func (m *Migrator) GetAppliedMigrations() (map[string]bool, error) {
	applied := make(map[string]bool)

	rows, err := m.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

func (m *Migrator) Up() error {
	if err := m.Initialize(); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations()
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if applied[migration.Version] {
			continue
		}
		if err := m.apply(migration); err != nil {
			return err
		}
		log.Printf("Applied migration %s_%s", migration.Version, migration.Name)
	}
	return nil
}

func (m *Migrator) apply(migration Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(migration.SQL); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", migration.Version, err)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", migration.Version); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
	}

	return tx.Commit()
}
