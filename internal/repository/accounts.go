package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/adiwira/cashflow-server/internal/ledger"
	"github.com/adiwira/cashflow-server/internal/models"
)

const uniqueViolation = "23505"

// User repository methods
func (r *PostgresRepository) GetUser(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT username, full_name, default_payday_day FROM users WHERE username = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresRepository) SetDefaultPaydayDay(ctx context.Context, username string, day int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (username, default_payday_day)
		VALUES ($1, $2)
		ON CONFLICT (username)
		DO UPDATE SET default_payday_day = EXCLUDED.default_payday_day
	`, username, day)
	return err
}

// ensureUser makes sure the owner row exists before rows referencing it
// are written.
func ensureUser(ctx context.Context, q execer, username string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO users (username) VALUES ($1)
		ON CONFLICT (username) DO NOTHING
	`, username)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Account repository methods

// CreateAccount inserts the account and, when an opening balance is given,
// a matching top-up debit so the balance is reconstructible from the
// transaction log alone.
func (r *PostgresRepository) CreateAccount(ctx context.Context, username, name string, initialBalance int64, monthlyLimit *int64, noLimit bool) (*models.Account, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	if err = ensureUser(ctx, tx, username); err != nil {
		return nil, err
	}

	account := &models.Account{
		ID:           uuid.NewString(),
		Username:     username,
		Name:         name,
		MonthlyLimit: monthlyLimit,
		NoLimit:      noLimit,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO accounts (account_id, username, account_name, monthly_limit, no_limit)
		VALUES ($1::uuid, $2, $3, $4, $5)
	`, account.ID, username, name, monthlyLimit, noLimit)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			err = ledger.ErrAccountExists
		}
		return nil, err
	}

	if initialBalance > 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO transactions (transaction_id, account_id, transaction_type, transaction_name, amount, date, is_transfer)
			VALUES ($1::uuid, $2::uuid, 'debit', $3, $4, $5, false)
		`, uuid.NewString(), account.ID, "Top Up Balance", initialBalance, time.Now().UTC())
		if err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return account, nil
}

func (r *PostgresRepository) ListAccounts(ctx context.Context, username string) ([]models.Account, error) {
	query := `
		SELECT account_id, username, account_name, monthly_limit, no_limit
		FROM accounts
		WHERE username = $1
		ORDER BY account_name
	`

	var accounts []models.Account
	err := r.db.SelectContext(ctx, &accounts, query, username)
	if err != nil {
		return nil, err
	}

	return accounts, nil
}

func (r *PostgresRepository) GetAccount(ctx context.Context, username, accountID string) (*models.Account, error) {
	query := `
		SELECT account_id, username, account_name, monthly_limit, no_limit
		FROM accounts
		WHERE username = $1 AND account_id = $2::uuid
	`

	var account models.Account
	err := r.db.GetContext(ctx, &account, query, username, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrAccountNotFound
		}
		return nil, err
	}

	return &account, nil
}

func (r *PostgresRepository) RenameAccount(ctx context.Context, username, accountID, name string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET account_name = $1
		WHERE username = $2 AND account_id = $3::uuid
	`, name, username, accountID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ledger.ErrAccountExists
		}
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

// DeleteAccount removes the account and, via cascade, its transactions and
// budgets.
func (r *PostgresRepository) DeleteAccount(ctx context.Context, username, accountID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM accounts WHERE username = $1 AND account_id = $2::uuid
	`, username, accountID)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}
