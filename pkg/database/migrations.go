package database

import (
	"database/sql"
	"fmt"
	"sort"
)

// Migration is one schema change, applied in version order inside a
// transaction.
type Migration struct {
	Version     string
	Description string
	SQL         string
}

// Migrations are embedded in the binary so a deployment is always able to
// bring a fresh database file up to the schema it was built against.
var migrations = []Migration{
	{
		Version:     "001",
		Description: "initial_chat_schema",
		SQL:         initialSchema,
	},
}

const initialSchema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	nickname TEXT NOT NULL DEFAULT '',
	avatar TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT 'user',
	disabled INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS user_sessions (
	token TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_user_sessions_user ON user_sessions(user_id);

CREATE TABLE IF NOT EXISTS chat_messages (
	id TEXT PRIMARY KEY,
	message TEXT NOT NULL,
	nickname TEXT NOT NULL DEFAULT '',
	user_id TEXT NOT NULL,
	username TEXT NOT NULL DEFAULT '',
	avatar TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	deleted INTEGER NOT NULL DEFAULT 0,
	deleted_at INTEGER,
	deleted_by TEXT
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_created ON chat_messages(created_at);

CREATE TABLE IF NOT EXISTS chat_mutes (
	user_id TEXT PRIMARY KEY,
	nickname TEXT NOT NULL DEFAULT '',
	username TEXT NOT NULL DEFAULT '',
	expires_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_chat_mutes_expires ON chat_mutes(expires_at);

CREATE TABLE IF NOT EXISTS chat_settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// MigrationManager applies embedded migrations and validates the result.
type MigrationManager struct {
	db *sql.DB
}

// NewMigrationManager creates a new migration manager.
func NewMigrationManager(db *sql.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

// ApplyMigrations applies all pending migrations in version order.
func (m *MigrationManager) ApplyMigrations() error {
	if err := m.createMigrationTable(); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	applied, err := m.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	pending := make([]Migration, 0, len(migrations))
	for _, migration := range migrations {
		if !contains(applied, migration.Version) {
			pending = append(pending, migration)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Version < pending[j].Version
	})

	for _, migration := range pending {
		if err := m.applyMigration(migration); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}
	}

	return nil
}

func (m *MigrationManager) createMigrationTable() error {
	sql := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`
	_, err := m.db.Exec(sql)
	return err
}

func (m *MigrationManager) getAppliedMigrations() ([]string, error) {
	rows, err := m.db.Query("SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var versions []string
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}

	return versions, rows.Err()
}

// applyMigration applies a single migration within a transaction.
func (m *MigrationManager) applyMigration(migration Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.Exec(migration.SQL); err != nil {
		return err
	}

	if _, err = tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", migration.Version); err != nil {
		return err
	}

	return tx.Commit()
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
