package repository

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/adiwira/cashflow-server/internal/ledger"
	"github.com/adiwira/cashflow-server/internal/models"
)

// Repository interface defines the methods that any repository implementation must satisfy
type Repository interface {
	// User operations
	GetUser(ctx context.Context, username string) (*models.User, error)
	SetDefaultPaydayDay(ctx context.Context, username string, day int) error

	// Account operations
	CreateAccount(ctx context.Context, username, name string, initialBalance int64, monthlyLimit *int64, noLimit bool) (*models.Account, error)
	ListAccounts(ctx context.Context, username string) ([]models.Account, error)
	GetAccount(ctx context.Context, username, accountID string) (*models.Account, error)
	RenameAccount(ctx context.Context, username, accountID, name string) error
	DeleteAccount(ctx context.Context, username, accountID string) error

	// Transaction operations
	CreateTransaction(ctx context.Context, username string, txn *models.Transaction) error
	UpdateTransaction(ctx context.Context, username, transactionID string, upd TransactionUpdate) error
	SoftDeleteTransaction(ctx context.Context, username, transactionID, reason string) error
	AuditRecords(ctx context.Context, username, transactionID string, limit int) ([]models.AuditRecord, error)

	// Switch operations
	CreateSwitch(ctx context.Context, username, sourceAccountID, targetAccountID string, amount int64, date time.Time) (string, error)
	GetSwitch(ctx context.Context, username, transferID string) (*models.Switch, error)
	UpdateSwitch(ctx context.Context, username, transferID string, upd SwitchUpdate) error
	DeleteSwitch(ctx context.Context, username, transferID, reason string) error

	// Budget and payday operations
	ListBudgets(ctx context.Context, username, month string) ([]models.Budget, error)
	UpsertBudget(ctx context.Context, username, accountID, month string, amount int64) (string, error)
	UpdateBudget(ctx context.Context, username, budgetID string, amount int64) error
	DeleteBudget(ctx context.Context, username, budgetID string) error
	DefaultPaydayDay(ctx context.Context, username string) (int, error)
	PaydayDay(ctx context.Context, username, month string) (day int, source string, overrideDay *int, err error)
	SetPaydayOverride(ctx context.Context, username, month string, day int) error
	ClearPaydayOverride(ctx context.Context, username, month string) error

	// Ledger read operations
	LedgerPage(ctx context.Context, q LedgerQuery) ([]LedgerEvent, error)
	BaseBalance(ctx context.Context, username, scope, accountID string, before time.Time) (int64, error)
	AccountBalances(ctx context.Context, username string, upTo time.Time) (map[string]int64, error)
	PeriodAccountTotals(ctx context.Context, username string, from, to time.Time) ([]AccountFlow, error)
	SwitchAccountTotals(ctx context.Context, username string, from, to time.Time) ([]SwitchFlow, error)
	SwitchEdges(ctx context.Context, username string, from, to time.Time) ([]ledger.SwitchEdge, error)
	OwnerTotals(ctx context.Context, username string, from, to time.Time) (totalIn, totalOut int64, err error)
	DailyTotals(ctx context.Context, username string, from, to time.Time) ([]DayFlow, error)
	AccountEntries(ctx context.Context, accountID string) ([]ledger.Entry, error)
}

// TransactionUpdate carries the fields of a transaction edit; nil keeps
// the stored value.
type TransactionUpdate struct {
	AccountID    *string
	Type         *string
	Name         *string
	Amount       *int64
	Date         *time.Time
	IsCycleTopup *bool
}

// SwitchUpdate carries the fields of a switch edit; nil keeps the stored
// value.
type SwitchUpdate struct {
	SourceAccountID *string
	TargetAccountID *string
	Amount          *int64
	Date            *time.Time
}

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// GetDB returns the underlying database connection
func (r *PostgresRepository) GetDB() *sqlx.DB {
	return r.db
}

// placeholder returns the n-th positional bind parameter.
func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

// execRows runs a statement and returns the affected row count.
func execRows(ctx context.Context, tx *sqlx.Tx, query string, args ...interface{}) (int64, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// lockAccounts takes row locks on the given accounts in sorted id order so
// concurrent mutations touching the same accounts serialize instead of
// deadlocking. Returns ErrAccountNotFound when any id is missing or owned
// by someone else.
func lockAccounts(ctx context.Context, tx *sqlx.Tx, username string, accountIDs ...string) error {
	seen := make(map[string]struct{}, len(accountIDs))
	unique := make([]string, 0, len(accountIDs))
	for _, id := range accountIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return nil
	}
	sort.Strings(unique)

	var locked []string
	err := tx.SelectContext(ctx, &locked, `
		SELECT account_id::text
		FROM accounts
		WHERE username=$1 AND account_id = ANY($2::uuid[])
		ORDER BY account_id
		FOR UPDATE
	`, username, pq.Array(unique))
	if err != nil {
		return err
	}
	if len(locked) != len(unique) {
		return ledger.ErrAccountNotFound
	}
	return nil
}

// balanceBefore returns an account's balance strictly before the given
// instant, optionally excluding transactions that are about to be moved or
// removed.
func balanceBefore(ctx context.Context, tx *sqlx.Tx, accountID string, before time.Time, excludeIDs []string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN transaction_type='debit' THEN amount ELSE -amount END), 0)
		FROM transactions
		WHERE account_id=$1::uuid AND date < $2 AND deleted_at IS NULL
	`
	args := []interface{}{accountID, before}
	if len(excludeIDs) > 0 {
		query += ` AND transaction_id <> ALL($3::uuid[])`
		args = append(args, pq.Array(excludeIDs))
	}

	var balance int64
	if err := tx.GetContext(ctx, &balance, query, args...); err != nil {
		return 0, err
	}
	return balance, nil
}

// windowEntries returns an account's live entries from the given instant
// onwards, ordered by (date, id).
func windowEntries(ctx context.Context, tx *sqlx.Tx, accountID string, from time.Time, excludeIDs []string) ([]ledger.Entry, error) {
	query := `
		SELECT transaction_id::text AS id,
		       date,
		       transaction_type AS type,
		       amount
		FROM transactions
		WHERE account_id=$1::uuid AND date >= $2 AND deleted_at IS NULL
	`
	args := []interface{}{accountID, from}
	if len(excludeIDs) > 0 {
		query += ` AND transaction_id <> ALL($3::uuid[])`
		args = append(args, pq.Array(excludeIDs))
	}
	query += ` ORDER BY date ASC, transaction_id ASC`

	var entries []ledger.Entry
	if err := tx.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, err
	}
	return entries, nil
}

// ensureNonNegative replays an account's trajectory from the earliest
// affected instant with the proposed rows applied and the excluded rows
// removed. Callers must hold the account's row lock.
func ensureNonNegative(ctx context.Context, tx *sqlx.Tx, accountID string, from time.Time, proposed []ledger.Entry, excludeIDs []string) error {
	start, err := balanceBefore(ctx, tx, accountID, from, excludeIDs)
	if err != nil {
		return err
	}
	existing, err := windowEntries(ctx, tx, accountID, from, excludeIDs)
	if err != nil {
		return err
	}
	return ledger.EnsureNonNegative(start, existing, proposed)
}

// writeAudit snapshots a transaction row into the audit table within the
// same database transaction as the mutation it records.
func writeAudit(ctx context.Context, tx *sqlx.Tx, username, performedBy, action string, txn *models.Transaction) error {
	payload, err := json.Marshal(models.AuditPayload{
		TransactionID: txn.ID,
		AccountID:     txn.AccountID,
		Type:          txn.Type,
		Name:          txn.Name,
		Amount:        txn.Amount,
		Date:          txn.Date,
		IsTransfer:    txn.IsTransfer,
		IsCycleTopup:  txn.IsCycleTopup,
		TransferID:    txn.TransferID,
		DeletedAt:     txn.DeletedAt,
		DeletedBy:     txn.DeletedBy,
		DeleteReason:  txn.DeleteReason,
	})
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transaction_audit (audit_id, transaction_id, account_id, username, action, payload, performed_by, performed_at)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6::jsonb, $7, $8)
	`, uuid.NewString(), txn.ID, txn.AccountID, username, action, payload, performedBy, time.Now().UTC())
	return err
}
