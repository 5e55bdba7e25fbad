package ledger

import (
	"sort"
	"time"
)

// Transaction directions. A debit increases an account's balance, a
// credit decreases it.
const (
	Debit  = "debit"
	Credit = "credit"
)

// Entry is one balance-affecting row in an account's timeline. It is the
// minimal projection the validator needs: rows may come from the database
// or be proposed rows that do not exist yet.
type Entry struct {
	ID     string
	Date   time.Time
	Type   string
	Amount int64
}

// Signed returns the entry's contribution to the running balance.
func (e Entry) Signed() int64 {
	if e.Type == Credit {
		return -e.Amount
	}
	return e.Amount
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.Before(entries[j].Date)
		}
		// Same-instant events order by id so replays are deterministic.
		return entries[i].ID < entries[j].ID
	})
}

// EnsureNonNegative replays an account's timeline from a known starting
// balance and fails if the running balance ever drops below zero.
//
// start is the signed sum of everything strictly before the window.
// existing are the live rows at or after the window start, already
// filtered of soft-deleted rows and of any rows the caller is replacing;
// proposed are the new or edited rows to merge in. The merged sequence is
// ordered by (date, id) before the walk, so a row moved earlier in time is
// checked against every later instant it can affect.
func EnsureNonNegative(start int64, existing, proposed []Entry) error {
	merged := make([]Entry, 0, len(existing)+len(proposed))
	merged = append(merged, existing...)
	merged = append(merged, proposed...)
	sortEntries(merged)

	balance := start
	for _, e := range merged {
		balance += e.Signed()
		if balance < 0 {
			return ErrInsufficientBalance
		}
	}
	return nil
}

// ReplayResult summarizes a full from-zero replay of one account.
type ReplayResult struct {
	Count           int
	Balance         int64
	MinBalance      int64
	FirstNegativeAt *time.Time
}

// Replay walks an account's complete timeline from zero and reports the
// closing balance, the lowest point reached and the first instant the
// balance went negative, if any. Used by the consistency report.
func Replay(entries []Entry) ReplayResult {
	ordered := make([]Entry, len(entries))
	copy(ordered, entries)
	sortEntries(ordered)

	res := ReplayResult{Count: len(ordered)}
	for _, e := range ordered {
		res.Balance += e.Signed()
		if res.Balance < res.MinBalance {
			res.MinBalance = res.Balance
		}
		if res.Balance < 0 && res.FirstNegativeAt == nil {
			at := e.Date
			res.FirstNegativeAt = &at
		}
	}
	return res
}
