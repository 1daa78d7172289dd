package storage

import (
	"database/sql"
	"fmt"
)

// Migration represents a database schema migration.
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order.
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up:      migration001InitialSchema,
	},
	{
		Version: 2,
		Name:    "add_recon_runs_table",
		Up:      migration002AddReconRunsTable,
	},
	{
		Version: 3,
		Name:    "add_audit_indexes",
		Up:      migration003AddAuditIndexes,
	},
}

// runMigrations executes all pending migrations.
func (s *Storage) runMigrations() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec(
			`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`,
			migration.Version, migration.Name,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

func (s *Storage) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	return err
}

func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func migration001InitialSchema(tx *sql.Tx) error {
	statements := []string{
		`CREATE TABLE receipts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			vendor_raw TEXT NOT NULL,
			canonical_vendor TEXT NOT NULL DEFAULT '',
			amount TEXT NOT NULL,
			credit INTEGER NOT NULL DEFAULT 0,
			date TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			payment_method TEXT NOT NULL DEFAULT 'unknown',
			source_reference TEXT NOT NULL DEFAULT '',
			gl_account TEXT,
			vehicle_id TEXT,
			employee_id TEXT,
			reserve_number TEXT,
			split_group_id TEXT REFERENCES split_groups(id),
			banking_transaction_id INTEGER REFERENCES bank_transactions(id),
			created_at DATETIME NOT NULL
		)`,
		// Natural-key backstop: the importer's existence check is only a
		// fast path, this constraint is what actually prevents race
		// duplicates under concurrent imports.
		`CREATE UNIQUE INDEX idx_receipts_natural_key
			ON receipts (vendor_raw, amount, date)`,
		`CREATE TABLE bank_transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id TEXT NOT NULL,
			date TEXT NOT NULL,
			debit TEXT NOT NULL DEFAULT '0.00',
			credit TEXT NOT NULL DEFAULT '0.00',
			description TEXT NOT NULL DEFAULT '',
			desc_hash INTEGER NOT NULL,
			matched_receipt_id INTEGER REFERENCES receipts(id),
			matched_group_id TEXT REFERENCES split_groups(id),
			created_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX idx_transactions_natural_key
			ON bank_transactions (account_id, date, debit, credit, desc_hash)`,
		`CREATE TABLE split_groups (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			expected_total TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE split_group_members (
			group_id TEXT NOT NULL REFERENCES split_groups(id),
			position INTEGER NOT NULL,
			member_id INTEGER NOT NULL,
			amount TEXT NOT NULL,
			PRIMARY KEY (group_id, position)
		)`,
		`CREATE TABLE audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			action_type TEXT NOT NULL,
			entity_table TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			before_snapshot TEXT,
			after_snapshot TEXT,
			timestamp DATETIME NOT NULL,
			reason TEXT NOT NULL DEFAULT ''
		)`,
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func migration002AddReconRunsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE TABLE recon_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		state TEXT NOT NULL,
		dry_run INTEGER NOT NULL DEFAULT 0,
		matched INTEGER NOT NULL DEFAULT 0,
		grouped INTEGER NOT NULL DEFAULT 0,
		flagged INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		error_message TEXT
	)`)
	return err
}

func migration003AddAuditIndexes(tx *sql.Tx) error {
	statements := []string{
		`CREATE INDEX idx_audit_entity ON audit_log (entity_table, entity_id)`,
		`CREATE INDEX idx_audit_timestamp ON audit_log (timestamp)`,
		`CREATE INDEX idx_receipts_vendor ON receipts (vendor_raw)`,
		`CREATE INDEX idx_transactions_date ON bank_transactions (date)`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
