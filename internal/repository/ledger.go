package repository

import (
	"context"
	"time"

	"github.com/adiwira/cashflow-server/internal/ledger"
)

// LedgerQuery selects one page of ledger events. From/To are inclusive
// instants, Order is "asc" or "desc", Search is an ILIKE pattern or empty,
// Limit is the raw row cap (callers pass page size + 1 to detect more).
type LedgerQuery struct {
	Username       string
	Scope          string
	AccountID      string
	From           time.Time
	To             time.Time
	Limit          int
	Offset         int
	Order          string
	Search         string
	ExpandSwitches bool
}

// LedgerEvent is one raw page row. RunningDelta is the cumulative signed
// sum over the whole window in (date, event id) order, independent of
// search filtering and page position, so the caller can add it to the
// pre-window base balance.
type LedgerEvent struct {
	EventID      string    `db:"event_id"`
	AccountID    *string   `db:"account_id"`
	AccountName  string    `db:"account_name"`
	Name         string    `db:"transaction_name"`
	Date         time.Time `db:"date"`
	Debit        int64     `db:"debit"`
	Credit       int64     `db:"credit"`
	IsTransfer   bool      `db:"is_transfer"`
	IsCycleTopup bool      `db:"is_cycle_topup"`
	TransferID   *string   `db:"transfer_id"`
	RunningDelta int64     `db:"running_delta"`
}

// AccountFlow is one account's non-transfer in/out totals for a window.
type AccountFlow struct {
	AccountID   string `db:"account_id"`
	AccountName string `db:"account_name"`
	TotalIn     int64  `db:"total_in"`
	TotalOut    int64  `db:"total_out"`
}

// SwitchFlow is one account's transfer-leg totals for a window.
type SwitchFlow struct {
	AccountID string `db:"account_id"`
	SwitchIn  int64  `db:"switch_in"`
	SwitchOut int64  `db:"switch_out"`
}

// DayFlow is one day's in/out totals.
type DayFlow struct {
	Day      time.Time `db:"day"`
	TotalIn  int64     `db:"total_in"`
	TotalOut int64     `db:"total_out"`
}

// allScopeCollapsedSQL merges each transfer pair into one synthetic event
// with zero signed delta: an internal move never changes total assets.
const allScopeCollapsedSQL = `
	WITH tx AS (
		SELECT t.transaction_id::text AS transaction_id,
		       t.account_id::text AS account_id,
		       a.account_name,
		       t.transaction_type,
		       t.transaction_name,
		       t.amount,
		       t.date,
		       t.is_cycle_topup,
		       t.transfer_id::text AS transfer_id
		FROM transactions t
		JOIN accounts a ON a.account_id = t.account_id
		WHERE a.username = $1
		  AND t.deleted_at IS NULL
		  AND t.date >= $2
		  AND t.date <= $3
	),
	non_transfer AS (
		SELECT transaction_id AS event_id,
		       account_id,
		       account_name,
		       transaction_name,
		       date,
		       false AS is_transfer,
		       is_cycle_topup,
		       NULL::text AS transfer_id,
		       CASE WHEN transaction_type='debit' THEN amount ELSE -amount END AS signed_delta,
		       CASE WHEN transaction_type='debit' THEN amount ELSE 0 END AS debit,
		       CASE WHEN transaction_type='credit' THEN amount ELSE 0 END AS credit
		FROM tx
		WHERE transfer_id IS NULL
	),
	transfer_group AS (
		SELECT 'switch:' || transfer_id AS event_id,
		       NULL::text AS account_id,
		       'Internal'::text AS account_name,
		       CONCAT(
		           'Switch: ',
		           COALESCE(MAX(CASE WHEN transaction_type='credit' THEN account_name END), 'Unknown'),
		           ' -> ',
		           COALESCE(MAX(CASE WHEN transaction_type='debit' THEN account_name END), 'Unknown')
		       ) AS transaction_name,
		       MAX(date) AS date,
		       true AS is_transfer,
		       BOOL_OR(is_cycle_topup) AS is_cycle_topup,
		       transfer_id,
		       0::bigint AS signed_delta,
		       COALESCE(MAX(CASE WHEN transaction_type='debit' THEN amount ELSE 0 END), 0) AS debit,
		       COALESCE(MAX(CASE WHEN transaction_type='credit' THEN amount ELSE 0 END), 0) AS credit
		FROM tx
		WHERE transfer_id IS NOT NULL
		GROUP BY transfer_id
	),
	events AS (
		SELECT * FROM non_transfer
		UNION ALL
		SELECT * FROM transfer_group
	),
	events_running AS (
		SELECT event_id, account_id, account_name, transaction_name, date,
		       is_transfer, is_cycle_topup, transfer_id, debit, credit,
		       SUM(signed_delta) OVER (ORDER BY date ASC, event_id ASC) AS running_delta
		FROM events
	)
	SELECT event_id, account_id, account_name, transaction_name, date,
	       is_transfer, is_cycle_topup, transfer_id, debit, credit, running_delta
	FROM events_running
`

// allScopeExpandedSQL keeps transfer legs as individual rows.
const allScopeExpandedSQL = `
	WITH events AS (
		SELECT t.transaction_id::text AS event_id,
		       t.account_id::text AS account_id,
		       a.account_name,
		       t.transaction_name,
		       t.date,
		       t.is_transfer,
		       t.is_cycle_topup,
		       t.transfer_id::text AS transfer_id,
		       CASE WHEN t.transaction_type='debit' THEN t.amount ELSE -t.amount END AS signed_delta,
		       CASE WHEN t.transaction_type='debit' THEN t.amount ELSE 0 END AS debit,
		       CASE WHEN t.transaction_type='credit' THEN t.amount ELSE 0 END AS credit
		FROM transactions t
		JOIN accounts a ON a.account_id = t.account_id
		WHERE a.username = $1
		  AND t.deleted_at IS NULL
		  AND t.date >= $2
		  AND t.date <= $3
	),
	events_running AS (
		SELECT event_id, account_id, account_name, transaction_name, date,
		       is_transfer, is_cycle_topup, transfer_id, debit, credit,
		       SUM(signed_delta) OVER (ORDER BY date ASC, event_id ASC) AS running_delta
		FROM events
	)
	SELECT event_id, account_id, account_name, transaction_name, date,
	       is_transfer, is_cycle_topup, transfer_id, debit, credit, running_delta
	FROM events_running
`

// accountScopeSQL follows one account's own trajectory.
const accountScopeSQL = `
	WITH events_running AS (
		SELECT t.transaction_id::text AS event_id,
		       t.account_id::text AS account_id,
		       a.account_name,
		       t.transaction_name,
		       t.date,
		       t.is_transfer,
		       t.is_cycle_topup,
		       t.transfer_id::text AS transfer_id,
		       CASE WHEN t.transaction_type='debit' THEN t.amount ELSE 0 END AS debit,
		       CASE WHEN t.transaction_type='credit' THEN t.amount ELSE 0 END AS credit,
		       SUM(CASE WHEN t.transaction_type='debit' THEN t.amount ELSE -t.amount END)
		         OVER (ORDER BY t.date ASC, t.transaction_id ASC) AS running_delta
		FROM transactions t
		JOIN accounts a ON a.account_id = t.account_id
		WHERE a.username = $1
		  AND t.deleted_at IS NULL
		  AND t.date >= $2
		  AND t.date <= $3
		  AND t.account_id = $4::uuid
	)
	SELECT event_id, account_id, account_name, transaction_name, date,
	       is_transfer, is_cycle_topup, transfer_id, debit, credit, running_delta
	FROM events_running
`

// LedgerPage returns one window-ordered page of events. The search filter
// applies after the running delta is computed, so filtered rows keep their
// true balances.
func (r *PostgresRepository) LedgerPage(ctx context.Context, q LedgerQuery) ([]LedgerEvent, error) {
	var base string
	args := []interface{}{q.Username, q.From, q.To}
	switch {
	case q.Scope == "account":
		base = accountScopeSQL
		args = append(args, q.AccountID)
	case q.ExpandSwitches:
		base = allScopeExpandedSQL
	default:
		base = allScopeCollapsedSQL
	}

	if q.Search != "" {
		base += ` WHERE transaction_name ILIKE ` + placeholder(len(args)+1)
		args = append(args, q.Search)
	}

	dir := "DESC"
	if q.Order == "asc" {
		dir = "ASC"
	}
	base += ` ORDER BY date ` + dir + `, event_id ` + dir
	base += ` LIMIT ` + placeholder(len(args)+1) + ` OFFSET ` + placeholder(len(args)+2)
	args = append(args, q.Limit, q.Offset)

	var events []LedgerEvent
	if err := r.db.SelectContext(ctx, &events, base, args...); err != nil {
		return nil, err
	}
	return events, nil
}

// BaseBalance returns the balance strictly before the window start: the
// summed trajectory of every account in all scope, one account's in
// account scope.
func (r *PostgresRepository) BaseBalance(ctx context.Context, username, scope, accountID string, before time.Time) (int64, error) {
	var query string
	var args []interface{}
	if scope == "account" {
		query = `
			SELECT COALESCE(SUM(CASE WHEN t.transaction_type='debit' THEN t.amount ELSE -t.amount END), 0)
			FROM transactions t
			WHERE t.account_id = $1::uuid AND t.date < $2 AND t.deleted_at IS NULL
		`
		args = []interface{}{accountID, before}
	} else {
		query = `
			SELECT COALESCE(SUM(CASE WHEN t.transaction_type='debit' THEN t.amount ELSE -t.amount END), 0)
			FROM transactions t
			JOIN accounts a ON a.account_id = t.account_id
			WHERE a.username = $1 AND t.date < $2 AND t.deleted_at IS NULL
		`
		args = []interface{}{username, before}
	}

	var balance int64
	if err := r.db.GetContext(ctx, &balance, query, args...); err != nil {
		return 0, err
	}
	return balance, nil
}

// AccountBalances returns each of the owner's account balances up to and
// including the given instant. Accounts without transactions report zero.
func (r *PostgresRepository) AccountBalances(ctx context.Context, username string, upTo time.Time) (map[string]int64, error) {
	query := `
		SELECT a.account_id::text AS account_id,
		       COALESCE(SUM(CASE WHEN t.transaction_type='debit' THEN t.amount ELSE -t.amount END), 0) AS balance
		FROM accounts a
		LEFT JOIN transactions t
		  ON t.account_id = a.account_id AND t.date <= $1 AND t.deleted_at IS NULL
		WHERE a.username = $2
		GROUP BY a.account_id
	`

	var rows []struct {
		AccountID string `db:"account_id"`
		Balance   int64  `db:"balance"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, upTo, username); err != nil {
		return nil, err
	}

	balances := make(map[string]int64, len(rows))
	for _, row := range rows {
		balances[row.AccountID] = row.Balance
	}
	return balances, nil
}

// PeriodAccountTotals returns per-account non-transfer in/out totals for a
// window, biggest spenders first.
func (r *PostgresRepository) PeriodAccountTotals(ctx context.Context, username string, from, to time.Time) ([]AccountFlow, error) {
	query := `
		SELECT t.account_id::text AS account_id,
		       a.account_name,
		       COALESCE(SUM(CASE WHEN t.transaction_type='debit' THEN t.amount ELSE 0 END), 0) AS total_in,
		       COALESCE(SUM(CASE WHEN t.transaction_type='credit' THEN t.amount ELSE 0 END), 0) AS total_out
		FROM transactions t
		JOIN accounts a ON a.account_id = t.account_id
		WHERE a.username = $1
		  AND t.deleted_at IS NULL
		  AND t.transfer_id IS NULL
		  AND t.date >= $2
		  AND t.date <= $3
		GROUP BY t.account_id, a.account_name
		ORDER BY total_out DESC, a.account_name ASC
	`

	var flows []AccountFlow
	if err := r.db.SelectContext(ctx, &flows, query, username, from, to); err != nil {
		return nil, err
	}
	return flows, nil
}

// SwitchAccountTotals returns per-account transfer-leg totals for a window.
func (r *PostgresRepository) SwitchAccountTotals(ctx context.Context, username string, from, to time.Time) ([]SwitchFlow, error) {
	query := `
		SELECT t.account_id::text AS account_id,
		       COALESCE(SUM(CASE WHEN t.transaction_type='debit' THEN t.amount ELSE 0 END), 0) AS switch_in,
		       COALESCE(SUM(CASE WHEN t.transaction_type='credit' THEN t.amount ELSE 0 END), 0) AS switch_out
		FROM transactions t
		JOIN accounts a ON a.account_id = t.account_id
		WHERE a.username = $1
		  AND t.deleted_at IS NULL
		  AND t.transfer_id IS NOT NULL
		  AND t.date >= $2
		  AND t.date <= $3
		GROUP BY t.account_id
	`

	var flows []SwitchFlow
	if err := r.db.SelectContext(ctx, &flows, query, username, from, to); err != nil {
		return nil, err
	}
	return flows, nil
}

// SwitchEdges aggregates transfer volume per (source, target) account pair
// for a window, largest first.
func (r *PostgresRepository) SwitchEdges(ctx context.Context, username string, from, to time.Time) ([]ledger.SwitchEdge, error) {
	query := `
		SELECT src.account_id::text AS source_account_id,
		       src.account_name AS source_account_name,
		       dst.account_id::text AS target_account_id,
		       dst.account_name AS target_account_name,
		       COALESCE(SUM(t_out.amount), 0) AS amount
		FROM transactions t_out
		JOIN transactions t_in
		  ON t_in.transfer_id = t_out.transfer_id
		 AND t_in.deleted_at IS NULL
		 AND t_in.transaction_type = 'debit'
		JOIN accounts src ON src.account_id = t_out.account_id
		JOIN accounts dst ON dst.account_id = t_in.account_id
		WHERE t_out.deleted_at IS NULL
		  AND t_out.transaction_type = 'credit'
		  AND src.username = $1
		  AND dst.username = $1
		  AND t_out.date >= $2
		  AND t_out.date <= $3
		GROUP BY src.account_id, src.account_name, dst.account_id, dst.account_name
		ORDER BY amount DESC, src.account_name ASC, dst.account_name ASC
	`

	var edges []ledger.SwitchEdge
	if err := r.db.SelectContext(ctx, &edges, query, username, from, to); err != nil {
		return nil, err
	}
	return edges, nil
}

// OwnerTotals returns the owner's non-transfer in/out totals for a window.
func (r *PostgresRepository) OwnerTotals(ctx context.Context, username string, from, to time.Time) (int64, int64, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN t.transaction_type='debit' THEN t.amount ELSE 0 END), 0) AS total_in,
		       COALESCE(SUM(CASE WHEN t.transaction_type='credit' THEN t.amount ELSE 0 END), 0) AS total_out
		FROM transactions t
		JOIN accounts a ON a.account_id = t.account_id
		WHERE a.username = $1
		  AND t.deleted_at IS NULL
		  AND t.transfer_id IS NULL
		  AND t.date >= $2
		  AND t.date <= $3
	`

	var totals struct {
		TotalIn  int64 `db:"total_in"`
		TotalOut int64 `db:"total_out"`
	}
	if err := r.db.GetContext(ctx, &totals, query, username, from, to); err != nil {
		return 0, 0, err
	}
	return totals.TotalIn, totals.TotalOut, nil
}

// DailyTotals returns per-day non-transfer in/out totals for a window.
// date is a naive UTC timestamp, so the plain cast buckets by stored day
// no matter what time zone the session runs in.
func (r *PostgresRepository) DailyTotals(ctx context.Context, username string, from, to time.Time) ([]DayFlow, error) {
	query := `
		SELECT t.date::date AS day,
		       COALESCE(SUM(CASE WHEN t.transaction_type='debit' THEN t.amount ELSE 0 END), 0) AS total_in,
		       COALESCE(SUM(CASE WHEN t.transaction_type='credit' THEN t.amount ELSE 0 END), 0) AS total_out
		FROM transactions t
		JOIN accounts a ON a.account_id = t.account_id
		WHERE a.username = $1
		  AND t.deleted_at IS NULL
		  AND t.transfer_id IS NULL
		  AND t.date >= $2
		  AND t.date <= $3
		GROUP BY day
		ORDER BY day
	`

	var days []DayFlow
	if err := r.db.SelectContext(ctx, &days, query, username, from, to); err != nil {
		return nil, err
	}
	return days, nil
}

// AccountEntries returns an account's full live history in replay order.
func (r *PostgresRepository) AccountEntries(ctx context.Context, accountID string) ([]ledger.Entry, error) {
	query := `
		SELECT transaction_id::text AS id,
		       date,
		       transaction_type AS type,
		       amount
		FROM transactions
		WHERE account_id = $1::uuid AND deleted_at IS NULL
		ORDER BY date ASC, transaction_id ASC
	`

	var entries []ledger.Entry
	if err := r.db.SelectContext(ctx, &entries, query, accountID); err != nil {
		return nil, err
	}
	return entries, nil
}
