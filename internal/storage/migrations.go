package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 5

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS properties (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT UNIQUE NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					property_id INTEGER NOT NULL,
					hash TEXT NOT NULL,
					date TEXT NOT NULL,
					amount TEXT NOT NULL,
					label TEXT NOT NULL DEFAULT '',
					level_1 TEXT NOT NULL DEFAULT '',
					level_2 TEXT NOT NULL DEFAULT '',
					level_3 TEXT NOT NULL DEFAULT '',
					running_balance TEXT NOT NULL DEFAULT '0',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (property_id) REFERENCES properties(id)
				)`,
				`CREATE INDEX idx_transactions_property_date ON transactions(property_id, date, id)`,
				`CREATE INDEX idx_transactions_hash ON transactions(hash)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Add category mappings and statement scope",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS category_mappings (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					property_id INTEGER NOT NULL,
					statement TEXT NOT NULL,
					category_name TEXT NOT NULL,
					type TEXT NOT NULL,
					sub_category TEXT NOT NULL DEFAULT '',
					level_1_values TEXT NOT NULL DEFAULT '[]',
					is_special BOOLEAN NOT NULL DEFAULT 0,
					special_source TEXT NOT NULL DEFAULT '',
					UNIQUE (property_id, statement, category_name)
				)`,
				`CREATE TABLE IF NOT EXISTS statement_configs (
					property_id INTEGER NOT NULL,
					statement TEXT NOT NULL,
					level_3_values TEXT NOT NULL DEFAULT '[]',
					PRIMARY KEY (property_id, statement)
				)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Add loans",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS loan_configs (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					property_id INTEGER NOT NULL,
					name TEXT NOT NULL,
					credit_amount TEXT NOT NULL,
					interest_rate TEXT NOT NULL,
					duration_years INTEGER NOT NULL DEFAULT 0,
					initial_deferral_months INTEGER NOT NULL DEFAULT 0,
					deferral_mode TEXT NOT NULL DEFAULT 'interest_only',
					loan_start_date TEXT,
					loan_end_date TEXT,
					UNIQUE (property_id, name)
				)`,
				`CREATE TABLE IF NOT EXISTS loan_payments (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					property_id INTEGER NOT NULL,
					loan_name TEXT NOT NULL,
					date TEXT NOT NULL,
					principal_portion TEXT NOT NULL,
					interest_portion TEXT NOT NULL,
					UNIQUE (property_id, loan_name, date)
				)`,
			})
		},
	},
	{
		Version:     4,
		Description: "Add result overrides and depreciation table",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS compte_resultat_overrides (
					property_id INTEGER NOT NULL,
					year INTEGER NOT NULL,
					override_value TEXT NOT NULL,
					PRIMARY KEY (property_id, year)
				)`,
				`CREATE TABLE IF NOT EXISTS depreciation (
					property_id INTEGER NOT NULL,
					year INTEGER NOT NULL,
					amount TEXT NOT NULL,
					PRIMARY KEY (property_id, year)
				)`,
			})
		},
	},
	{
		Version:     5,
		Description: "Add forecast configuration",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS annual_forecast_configs (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					property_id INTEGER NOT NULL,
					year INTEGER NOT NULL,
					level_1 TEXT NOT NULL,
					target_type TEXT NOT NULL,
					base_annual_amount TEXT NOT NULL,
					annual_growth_rate TEXT NOT NULL,
					UNIQUE (property_id, year, level_1, target_type)
				)`,
				`CREATE TABLE IF NOT EXISTS prorata_settings (
					property_id INTEGER NOT NULL,
					target TEXT NOT NULL,
					prorata_enabled BOOLEAN NOT NULL DEFAULT 0,
					forecast_enabled BOOLEAN NOT NULL DEFAULT 0,
					forecast_years INTEGER NOT NULL DEFAULT 3,
					PRIMARY KEY (property_id, target)
				)`,
			})
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion reads PRAGMA user_version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return v, nil
}
