package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/adiwira/cashflow-server/internal/ledger"
	"github.com/adiwira/cashflow-server/internal/models"
)

// switchLeg is one transaction row of a transfer pair.
type switchLeg struct {
	TransactionID string    `db:"transaction_id"`
	AccountID     string    `db:"account_id"`
	AccountName   string    `db:"account_name"`
	Type          string    `db:"transaction_type"`
	Name          string    `db:"transaction_name"`
	Amount        int64     `db:"amount"`
	Date          time.Time `db:"date"`
	IsTransfer    bool      `db:"is_transfer"`
	TransferID    *string   `db:"transfer_id"`
}

// loadSwitchLegs returns the live pair for a transfer id. Anything other
// than exactly two legs means the switch does not exist for this owner.
func loadSwitchLegs(ctx context.Context, q selecter, username, transferID string) (source, target *switchLeg, err error) {
	query := `
		SELECT t.transaction_id::text AS transaction_id,
		       t.account_id::text AS account_id,
		       a.account_name,
		       t.transaction_type,
		       t.transaction_name,
		       t.amount,
		       t.date,
		       t.is_transfer,
		       t.transfer_id::text AS transfer_id
		FROM transactions t
		JOIN accounts a ON a.account_id = t.account_id
		WHERE t.transfer_id = $1::uuid AND a.username = $2 AND t.deleted_at IS NULL
	`

	var legs []switchLeg
	if err := q.SelectContext(ctx, &legs, query, transferID, username); err != nil {
		return nil, nil, err
	}
	if len(legs) != 2 {
		return nil, nil, ledger.ErrSwitchNotFound
	}
	for i := range legs {
		switch legs[i].Type {
		case ledger.Credit:
			source = &legs[i]
		case ledger.Debit:
			target = &legs[i]
		}
	}
	if source == nil || target == nil {
		return nil, nil, ledger.ErrSwitchNotFound
	}
	return source, target, nil
}

type selecter interface {
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// Switch repository methods

// CreateSwitch inserts the credit and debit legs atomically. Only the
// source account needs validation: the target can only gain.
func (r *PostgresRepository) CreateSwitch(ctx context.Context, username, sourceAccountID, targetAccountID string, amount int64, date time.Time) (string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	if err = lockAccounts(ctx, tx, username, sourceAccountID, targetAccountID); err != nil {
		return "", err
	}

	names, err := accountNames(ctx, tx, username, sourceAccountID, targetAccountID)
	if err != nil {
		return "", err
	}

	sourceLegID := uuid.NewString()
	proposed := []ledger.Entry{{
		ID:     sourceLegID,
		Date:   date,
		Type:   ledger.Credit,
		Amount: amount,
	}}
	if err = ensureNonNegative(ctx, tx, sourceAccountID, date, proposed, nil); err != nil {
		return "", err
	}

	transferID := uuid.NewString()
	sourceName := "Switching to " + names[targetAccountID]
	targetName := "Switching from " + names[sourceAccountID]
	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (transaction_id, account_id, transaction_type, transaction_name, amount, date, is_transfer, transfer_id)
		VALUES
		  ($1::uuid, $2::uuid, 'credit', $3, $4, $5, true, $6::uuid),
		  ($7::uuid, $8::uuid, 'debit', $9, $10, $11, true, $12::uuid)
	`,
		sourceLegID, sourceAccountID, sourceName, amount, date, transferID,
		uuid.NewString(), targetAccountID, targetName, amount, date, transferID,
	)
	if err != nil {
		return "", err
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}
	return transferID, nil
}

func accountNames(ctx context.Context, q selecter, username string, accountIDs ...string) (map[string]string, error) {
	query := `
		SELECT account_id::text AS account_id, account_name
		FROM accounts
		WHERE username = $1 AND account_id = ANY($2::uuid[])
	`
	var rows []struct {
		AccountID   string `db:"account_id"`
		AccountName string `db:"account_name"`
	}
	ids := append([]string(nil), accountIDs...)
	if err := q.SelectContext(ctx, &rows, query, username, pq.Array(ids)); err != nil {
		return nil, err
	}

	names := make(map[string]string, len(rows))
	for _, row := range rows {
		names[row.AccountID] = row.AccountName
	}
	for _, id := range accountIDs {
		if _, ok := names[id]; !ok {
			return nil, ledger.ErrAccountNotFound
		}
	}
	return names, nil
}

func (r *PostgresRepository) GetSwitch(ctx context.Context, username, transferID string) (*models.Switch, error) {
	source, target, err := loadSwitchLegs(ctx, r.db, username, transferID)
	if err != nil {
		return nil, err
	}

	return &models.Switch{
		TransferID:      transferID,
		SourceAccountID: source.AccountID,
		TargetAccountID: target.AccountID,
		Amount:          source.Amount,
		Date:            source.Date,
	}, nil
}

// UpdateSwitch rewrites both legs. Every account the pair leaves, joins,
// or stays in replays from the earliest touched instant with the old legs
// excluded and the new legs applied.
func (r *PostgresRepository) UpdateSwitch(ctx context.Context, username, transferID string, upd SwitchUpdate) error {
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

	source, target, err := loadSwitchLegs(ctx, tx, username, transferID)
	if err != nil {
		return err
	}

	newSourceID := source.AccountID
	if upd.SourceAccountID != nil {
		newSourceID = *upd.SourceAccountID
	}
	newTargetID := target.AccountID
	if upd.TargetAccountID != nil {
		newTargetID = *upd.TargetAccountID
	}
	if newSourceID == newTargetID {
		err = ledger.ErrValidation
		return err
	}
	newAmount := source.Amount
	if upd.Amount != nil {
		newAmount = *upd.Amount
	}
	newDate := source.Date
	if upd.Date != nil {
		newDate = *upd.Date
	}

	if err = lockAccounts(ctx, tx, username, source.AccountID, target.AccountID, newSourceID, newTargetID); err != nil {
		return err
	}

	names, err := accountNames(ctx, tx, username, newSourceID, newTargetID)
	if err != nil {
		return err
	}
	sourceName := "Switching to " + names[newTargetID]
	targetName := "Switching from " + names[newSourceID]

	// Collect, per account, the legs that leave it and the legs that land
	// in it, then replay each from its earliest affected instant.
	type affected struct {
		exclude  []string
		proposed []ledger.Entry
		earliest time.Time
	}
	byAccount := make(map[string]*affected)
	touch := func(accountID string, at time.Time) *affected {
		a, ok := byAccount[accountID]
		if !ok {
			a = &affected{earliest: at}
			byAccount[accountID] = a
		} else if at.Before(a.earliest) {
			a.earliest = at
		}
		return a
	}

	for _, leg := range []*switchLeg{source, target} {
		a := touch(leg.AccountID, leg.Date)
		a.exclude = append(a.exclude, leg.TransactionID)
	}
	newLegs := []ledger.Entry{
		{ID: source.TransactionID, Date: newDate, Type: ledger.Credit, Amount: newAmount},
		{ID: target.TransactionID, Date: newDate, Type: ledger.Debit, Amount: newAmount},
	}
	newLegAccounts := []string{newSourceID, newTargetID}
	for i, entry := range newLegs {
		a := touch(newLegAccounts[i], entry.Date)
		a.proposed = append(a.proposed, entry)
	}

	for accountID, a := range byAccount {
		if err = ensureNonNegative(ctx, tx, accountID, a.earliest, a.proposed, a.exclude); err != nil {
			return err
		}
	}

	for _, leg := range []struct {
		id, accountID, txType, name string
	}{
		{source.TransactionID, newSourceID, ledger.Credit, sourceName},
		{target.TransactionID, newTargetID, ledger.Debit, targetName},
	} {
		var res int64
		res, err = execRows(ctx, tx, `
			UPDATE transactions
			SET account_id = $1::uuid,
			    transaction_type = $2,
			    transaction_name = $3,
			    amount = $4,
			    date = $5,
			    is_transfer = true
			WHERE transaction_id = $6::uuid AND transfer_id = $7::uuid AND deleted_at IS NULL
		`, leg.accountID, leg.txType, leg.name, newAmount, newDate, leg.id, transferID)
		if err != nil {
			return err
		}
		if res != 1 {
			err = ledger.ErrConflict
			return err
		}
	}

	return tx.Commit()
}

// DeleteSwitch soft-deletes both legs and audits each. Removing the debit
// leg can push the target account negative, so the target replays without
// the pair before the delete lands.
func (r *PostgresRepository) DeleteSwitch(ctx context.Context, username, transferID, reason string) error {
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

	source, target, err := loadSwitchLegs(ctx, tx, username, transferID)
	if err != nil {
		return err
	}

	if err = lockAccounts(ctx, tx, username, source.AccountID, target.AccountID); err != nil {
		return err
	}

	if err = ensureNonNegative(ctx, tx, target.AccountID, target.Date, nil, []string{target.TransactionID}); err != nil {
		return err
	}

	deletedAt := time.Now().UTC()
	var deleted []models.Transaction
	err = tx.SelectContext(ctx, &deleted, `
		UPDATE transactions
		SET deleted_at = $1, deleted_by = $2, delete_reason = $3
		WHERE transfer_id = $4::uuid AND deleted_at IS NULL
		RETURNING transaction_id, account_id, transaction_type, transaction_name,
		          amount, date, is_transfer, is_cycle_topup, transfer_id,
		          deleted_at, deleted_by, delete_reason
	`, deletedAt, username, reason, transferID)
	if err != nil {
		return err
	}
	if len(deleted) != 2 {
		err = ledger.ErrConflict
		return err
	}

	for i := range deleted {
		if err = writeAudit(ctx, tx, username, username, "soft_delete", &deleted[i]); err != nil {
			return err
		}
	}

	return tx.Commit()
}
