package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/adiwira/cashflow-server/internal/ledger"
	"github.com/adiwira/cashflow-server/internal/models"
)

// Budget repository methods
func (r *PostgresRepository) ListBudgets(ctx context.Context, username, month string) ([]models.Budget, error) {
	query := `
		SELECT b.budget_id, b.username, b.account_id, b.month, b.amount
		FROM budgets b
		JOIN accounts a ON a.account_id = b.account_id
		WHERE b.username = $1 AND b.month = $2
		ORDER BY a.account_name
	`

	var budgets []models.Budget
	err := r.db.SelectContext(ctx, &budgets, query, username, month)
	if err != nil {
		return nil, err
	}

	return budgets, nil
}

func (r *PostgresRepository) UpsertBudget(ctx context.Context, username, accountID, month string, amount int64) (string, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE username = $1 AND account_id = $2::uuid)`,
		username, accountID)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", ledger.ErrAccountNotFound
	}

	var budgetID string
	err = r.db.GetContext(ctx, &budgetID, `
		INSERT INTO budgets (budget_id, username, account_id, month, amount)
		VALUES ($1::uuid, $2, $3::uuid, $4, $5)
		ON CONFLICT (username, account_id, month)
		DO UPDATE SET amount = EXCLUDED.amount
		RETURNING budget_id::text
	`, uuid.NewString(), username, accountID, month, amount)
	if err != nil {
		return "", err
	}

	return budgetID, nil
}

func (r *PostgresRepository) UpdateBudget(ctx context.Context, username, budgetID string, amount int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE budgets SET amount = $1
		WHERE budget_id = $2::uuid AND username = $3
	`, amount, budgetID, username)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ledger.ErrBudgetNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteBudget(ctx context.Context, username, budgetID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM budgets WHERE budget_id = $1::uuid AND username = $2
	`, budgetID, username)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ledger.ErrBudgetNotFound
	}
	return nil
}

// Payday repository methods

// DefaultPaydayDay returns the owner's configured default payday day, or
// the fallback when the owner has never set one.
func (r *PostgresRepository) DefaultPaydayDay(ctx context.Context, username string) (int, error) {
	var day *int
	err := r.db.GetContext(ctx, &day,
		`SELECT default_payday_day FROM users WHERE username = $1`, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.FallbackPaydayDay, nil
		}
		return 0, err
	}
	if day == nil {
		return ledger.FallbackPaydayDay, nil
	}
	return *day, nil
}

// PaydayDay resolves one month's payday day: the month's override when
// present, otherwise the owner's default.
func (r *PostgresRepository) PaydayDay(ctx context.Context, username, month string) (int, string, *int, error) {
	var override models.PaydayOverride
	err := r.db.GetContext(ctx, &override,
		`SELECT username, month, payday_day FROM payday_overrides WHERE username = $1 AND month = $2`,
		username, month)
	if err == nil {
		return override.PaydayDay, "override", &override.PaydayDay, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, "", nil, err
	}

	defaultDay, err := r.DefaultPaydayDay(ctx, username)
	if err != nil {
		return 0, "", nil, err
	}
	return defaultDay, "default", nil, nil
}

func (r *PostgresRepository) SetPaydayOverride(ctx context.Context, username, month string, day int) error {
	if err := ensureUser(ctx, r.db, username); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payday_overrides (username, month, payday_day)
		VALUES ($1, $2, $3)
		ON CONFLICT (username, month)
		DO UPDATE SET payday_day = EXCLUDED.payday_day
	`, username, month, day)
	return err
}

func (r *PostgresRepository) ClearPaydayOverride(ctx context.Context, username, month string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM payday_overrides WHERE username = $1 AND month = $2`,
		username, month)
	return err
}
