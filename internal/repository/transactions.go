package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/adiwira/cashflow-server/internal/ledger"
	"github.com/adiwira/cashflow-server/internal/models"
)

// Transaction repository methods

// CreateTransaction validates the proposed row against the account's
// trajectory under the account lock and inserts it. txn.ID is assigned.
func (r *PostgresRepository) CreateTransaction(ctx context.Context, username string, txn *models.Transaction) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	if err = lockAccounts(ctx, tx, username, txn.AccountID); err != nil {
		return err
	}

	txn.ID = uuid.NewString()
	proposed := []ledger.Entry{{
		ID:     txn.ID,
		Date:   txn.Date,
		Type:   txn.Type,
		Amount: txn.Amount,
	}}
	if err = ensureNonNegative(ctx, tx, txn.AccountID, txn.Date, proposed, nil); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (transaction_id, account_id, transaction_type, transaction_name, amount, date, is_transfer, is_cycle_topup)
		VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, false, $7)
	`, txn.ID, txn.AccountID, txn.Type, txn.Name, txn.Amount, txn.Date, txn.IsCycleTopup)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// getLiveTransaction loads a non-deleted transaction owned by username.
func getLiveTransaction(ctx context.Context, q queryer, username, transactionID string) (*models.Transaction, error) {
	query := `
		SELECT t.transaction_id, t.account_id, t.transaction_type, t.transaction_name,
		       t.amount, t.date, t.is_transfer, t.is_cycle_topup, t.transfer_id,
		       t.deleted_at, t.deleted_by, t.delete_reason
		FROM transactions t
		JOIN accounts a ON a.account_id = t.account_id
		WHERE t.transaction_id = $1::uuid AND a.username = $2 AND t.deleted_at IS NULL
	`

	var txn models.Transaction
	err := q.GetContext(ctx, &txn, query, transactionID, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrTransactionNotFound
		}
		return nil, err
	}
	return &txn, nil
}

type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// UpdateTransaction edits a plain transaction. Transfer legs are rejected;
// those only change through the switch operations so the pair stays
// consistent. Validation replays every affected account from the earliest
// touched instant.
func (r *PostgresRepository) UpdateTransaction(ctx context.Context, username, transactionID string, upd TransactionUpdate) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	current, err := getLiveTransaction(ctx, tx, username, transactionID)
	if err != nil {
		return err
	}
	if current.IsTransfer {
		err = ledger.ErrIsTransfer
		return err
	}

	newAccountID := current.AccountID
	if upd.AccountID != nil {
		newAccountID = *upd.AccountID
	}
	newType := current.Type
	if upd.Type != nil {
		newType = *upd.Type
	}
	newName := current.Name
	if upd.Name != nil {
		newName = *upd.Name
	}
	newAmount := current.Amount
	if upd.Amount != nil {
		newAmount = *upd.Amount
	}
	newDate := current.Date
	if upd.Date != nil {
		newDate = *upd.Date
	}
	newCycleTopup := current.IsCycleTopup
	if upd.IsCycleTopup != nil {
		newCycleTopup = *upd.IsCycleTopup
	}
	if newCycleTopup && newType == ledger.Credit {
		err = fmt.Errorf("%w: cycle top-up only applies to debits", ledger.ErrValidation)
		return err
	}

	if err = lockAccounts(ctx, tx, username, current.AccountID, newAccountID); err != nil {
		return err
	}

	proposed := []ledger.Entry{{
		ID:     transactionID,
		Date:   newDate,
		Type:   newType,
		Amount: newAmount,
	}}
	exclude := []string{transactionID}

	if newAccountID != current.AccountID {
		// The row leaves one account and joins another; both replay.
		if err = ensureNonNegative(ctx, tx, current.AccountID, current.Date, nil, exclude); err != nil {
			return err
		}
		if err = ensureNonNegative(ctx, tx, newAccountID, newDate, proposed, nil); err != nil {
			return err
		}
	} else {
		effectiveFrom := current.Date
		if newDate.Before(effectiveFrom) {
			effectiveFrom = newDate
		}
		if err = ensureNonNegative(ctx, tx, current.AccountID, effectiveFrom, proposed, exclude); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET account_id = $1::uuid,
		    transaction_type = $2,
		    transaction_name = $3,
		    amount = $4,
		    date = $5,
		    is_cycle_topup = $6
		WHERE transaction_id = $7::uuid AND deleted_at IS NULL
	`, newAccountID, newType, newName, newAmount, newDate, newCycleTopup, transactionID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows != 1 {
		err = ledger.ErrConflict
		return err
	}

	return tx.Commit()
}

// SoftDeleteTransaction marks the row deleted and writes the audit
// snapshot in the same database transaction. Removing a debit can push
// later balances negative, so that case replays before the update.
func (r *PostgresRepository) SoftDeleteTransaction(ctx context.Context, username, transactionID, reason string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	current, err := getLiveTransaction(ctx, tx, username, transactionID)
	if err != nil {
		return err
	}
	if current.IsTransfer {
		err = ledger.ErrIsTransfer
		return err
	}

	if err = lockAccounts(ctx, tx, username, current.AccountID); err != nil {
		return err
	}

	// Deleting a debit can push later balances negative.
	if current.Type == ledger.Debit {
		if err = ensureNonNegative(ctx, tx, current.AccountID, current.Date, nil, []string{transactionID}); err != nil {
			return err
		}
	}

	deletedAt := time.Now().UTC()
	var deleted models.Transaction
	err = tx.GetContext(ctx, &deleted, `
		UPDATE transactions
		SET deleted_at = $1, deleted_by = $2, delete_reason = $3
		WHERE transaction_id = $4::uuid AND deleted_at IS NULL
		RETURNING transaction_id, account_id, transaction_type, transaction_name,
		          amount, date, is_transfer, is_cycle_topup, transfer_id,
		          deleted_at, deleted_by, delete_reason
	`, deletedAt, username, reason, transactionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ledger.ErrConflict
		}
		return err
	}

	if err = writeAudit(ctx, tx, username, username, "soft_delete", &deleted); err != nil {
		return err
	}

	return tx.Commit()
}

// AuditRecords lists audit snapshots for the owner, newest first,
// optionally filtered to one transaction.
func (r *PostgresRepository) AuditRecords(ctx context.Context, username, transactionID string, limit int) ([]models.AuditRecord, error) {
	query := `
		SELECT audit_id, transaction_id, account_id, username, action, payload, performed_by, performed_at
		FROM transaction_audit
		WHERE username = $1
	`
	args := []interface{}{username}
	if transactionID != "" {
		query += ` AND transaction_id = $2::uuid`
		args = append(args, transactionID)
	}
	query += ` ORDER BY performed_at DESC LIMIT ` + placeholder(len(args)+1)
	args = append(args, limit)

	var records []models.AuditRecord
	err := r.db.SelectContext(ctx, &records, query, args...)
	if err != nil {
		return nil, err
	}

	return records, nil
}
