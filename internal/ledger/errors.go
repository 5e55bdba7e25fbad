package ledger

import "errors"

// Sentinel errors shared by the repository, service and API layers.
// Handlers map these onto HTTP status codes; everything else is treated
// as an internal failure.
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountExists       = errors.New("account name already exists")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrSwitchNotFound      = errors.New("switch not found")
	ErrBudgetNotFound      = errors.New("budget not found")

	// ErrInsufficientBalance means the requested mutation would drive an
	// account's running balance below zero at some instant.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrIsTransfer guards single-transaction endpoints against switch
	// legs, which must be edited or deleted as a pair.
	ErrIsTransfer = errors.New("transaction belongs to a switch")

	ErrInvalidCursor  = errors.New("invalid cursor")
	ErrCursorMismatch = errors.New("cursor does not match query")

	// ErrConflict is returned when a guarded update hits a row that was
	// changed by a concurrent request. Safe to retry.
	ErrConflict = errors.New("row changed concurrently, please retry")

	ErrRateLimited = errors.New("rate limit exceeded")

	ErrValidation = errors.New("invalid request")
)
