package config

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// SetupDatabase initializes the database connection
func SetupDatabase(cfg *Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(cfg.Database.PoolMax)
	db.SetMaxIdleConns(cfg.Database.PoolIdle)

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// createTables creates the necessary tables in the database
func createTables(db *sqlx.DB) error {
	// Create users table
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			username VARCHAR(64) PRIMARY KEY,
			full_name VARCHAR(255) NOT NULL DEFAULT '',
			default_payday_day INTEGER
		)
	`)
	if err != nil {
		return err
	}

	// Create accounts table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			account_id UUID PRIMARY KEY,
			username VARCHAR(64) NOT NULL REFERENCES users(username) ON DELETE CASCADE,
			account_name VARCHAR(255) NOT NULL,
			monthly_limit BIGINT,
			no_limit BOOLEAN NOT NULL DEFAULT FALSE,
			UNIQUE (username, account_name)
		)
	`)
	if err != nil {
		return err
	}

	// Create transactions table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			transaction_id UUID PRIMARY KEY,
			account_id UUID NOT NULL REFERENCES accounts(account_id) ON DELETE CASCADE,
			transaction_type VARCHAR(6) NOT NULL CHECK (transaction_type IN ('debit', 'credit')),
			transaction_name VARCHAR(255) NOT NULL,
			amount BIGINT NOT NULL CHECK (amount > 0),
			date TIMESTAMP NOT NULL,
			is_transfer BOOLEAN NOT NULL DEFAULT FALSE,
			is_cycle_topup BOOLEAN NOT NULL DEFAULT FALSE,
			transfer_id UUID,
			deleted_at TIMESTAMP,
			deleted_by VARCHAR(64),
			delete_reason TEXT
		)
	`)
	if err != nil {
		return err
	}

	// Create budgets table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS budgets (
			budget_id UUID PRIMARY KEY,
			username VARCHAR(64) NOT NULL REFERENCES users(username) ON DELETE CASCADE,
			account_id UUID NOT NULL REFERENCES accounts(account_id) ON DELETE CASCADE,
			month CHAR(7) NOT NULL,
			amount BIGINT NOT NULL CHECK (amount >= 0),
			UNIQUE (username, account_id, month)
		)
	`)
	if err != nil {
		return err
	}

	// Create payday_overrides table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS payday_overrides (
			username VARCHAR(64) NOT NULL REFERENCES users(username) ON DELETE CASCADE,
			month CHAR(7) NOT NULL,
			payday_day INTEGER NOT NULL CHECK (payday_day BETWEEN 1 AND 31),
			PRIMARY KEY (username, month)
		)
	`)
	if err != nil {
		return err
	}

	// Create transaction_audit table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS transaction_audit (
			audit_id UUID PRIMARY KEY,
			transaction_id UUID NOT NULL,
			account_id UUID NOT NULL,
			username VARCHAR(64) NOT NULL,
			action VARCHAR(16) NOT NULL,
			payload JSONB NOT NULL,
			performed_by VARCHAR(64) NOT NULL,
			performed_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}

	// Create indexes for better performance
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_accounts_username ON accounts(username)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_account_date ON transactions(account_id, date) WHERE deleted_at IS NULL",
		"CREATE INDEX IF NOT EXISTS idx_transactions_transfer_id ON transactions(transfer_id) WHERE transfer_id IS NOT NULL",
		"CREATE INDEX IF NOT EXISTS idx_budgets_username_month ON budgets(username, month)",
		"CREATE INDEX IF NOT EXISTS idx_audit_transaction_id ON transaction_audit(transaction_id)",
		"CREATE INDEX IF NOT EXISTS idx_audit_username ON transaction_audit(username, performed_at)",
	}

	for _, idx := range indexes {
		_, err = db.Exec(idx)
		if err != nil {
			log.Printf("Warning: Failed to create index: %v", err)
			// Don't return error here, indexes are not critical
		}
	}

	return nil
}
