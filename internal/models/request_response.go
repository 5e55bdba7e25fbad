package models

import (
	"time"

	"github.com/adiwira/cashflow-server/internal/ledger"
)

// Request models
type CreateAccountRequest struct {
	Name           string `json:"name" binding:"required"`
	InitialBalance int64  `json:"initialBalance" binding:"gte=0"`
	MonthlyLimit   *int64 `json:"monthlyLimit" binding:"omitempty,gte=0"`
	NoLimit        bool   `json:"noLimit"`
}

type RenameAccountRequest struct {
	Name string `json:"name" binding:"required"`
}

type CreateTransactionRequest struct {
	AccountID    string `json:"accountId" binding:"required,uuid"`
	Type         string `json:"type" binding:"required,oneof=debit credit"`
	Name         string `json:"name" binding:"required"`
	Amount       int64  `json:"amount" binding:"required,gt=0"`
	Date         string `json:"date" binding:"required"`
	IsCycleTopup bool   `json:"isCycleTopup"`
}

// UpdateTransactionRequest carries only the fields the caller wants to
// change; nil means keep the stored value.
type UpdateTransactionRequest struct {
	AccountID    *string `json:"accountId" binding:"omitempty,uuid"`
	Type         *string `json:"type" binding:"omitempty,oneof=debit credit"`
	Name         *string `json:"name"`
	Amount       *int64  `json:"amount" binding:"omitempty,gt=0"`
	Date         *string `json:"date"`
	IsCycleTopup *bool   `json:"isCycleTopup"`
}

type CreateSwitchRequest struct {
	SourceAccountID string `json:"sourceAccountId" binding:"required,uuid"`
	TargetAccountID string `json:"targetAccountId" binding:"required,uuid"`
	Amount          int64  `json:"amount" binding:"required,gt=0"`
	Date            string `json:"date"`
}

type UpdateSwitchRequest struct {
	SourceAccountID *string `json:"sourceAccountId" binding:"omitempty,uuid"`
	TargetAccountID *string `json:"targetAccountId" binding:"omitempty,uuid"`
	Amount          *int64  `json:"amount" binding:"omitempty,gt=0"`
	Date            *string `json:"date"`
}

type UpsertBudgetRequest struct {
	AccountID string `json:"accountId" binding:"required,uuid"`
	Month     string `json:"month" binding:"required"`
	Amount    int64  `json:"amount" binding:"gte=0"`
}

type UpdateBudgetRequest struct {
	Amount int64 `json:"amount" binding:"gte=0"`
}

// SetPaydayRequest updates the payday configuration. With Month set it
// writes (or, with ClearOverride, removes) that month's override;
// without Month it updates the owner's default day.
type SetPaydayRequest struct {
	Month         string `json:"month"`
	Day           int    `json:"day" binding:"omitempty,min=1,max=31"`
	ClearOverride bool   `json:"clearOverride"`
}

// LedgerPageRequest is the query surface of the ledger read path. Cursor,
// when present, must have been issued for the same scope/range/order/
// search; only its offset advances.
type LedgerPageRequest struct {
	Scope          string `form:"scope"`
	AccountID      string `form:"account_id"`
	FromDate       string `form:"from"`
	ToDate         string `form:"to"`
	Limit          int    `form:"limit"`
	Offset         int    `form:"offset"`
	Cursor         string `form:"cursor"`
	Order          string `form:"order"`
	Search         string `form:"q"`
	ExpandSwitches bool   `form:"expand_switches"`
	IncludeSummary *bool  `form:"include_summary"`
}

// Response models

// LedgerRow is one display row of a ledger page. EventID is a transaction
// id, or a synthetic switch event id in collapsed all-scope pages (where
// AccountID is nil). Balance is the running balance at this row: the
// account's own trajectory in account scope, the total-asset trajectory in
// all scope.
type LedgerRow struct {
	No           int       `json:"no"`
	EventID      string    `json:"eventId"`
	AccountID    *string   `json:"accountId"`
	AccountName  string    `json:"accountName"`
	Name         string    `json:"name"`
	Date         time.Time `json:"date"`
	Debit        int64     `json:"debit"`
	Credit       int64     `json:"credit"`
	Balance      int64     `json:"balance"`
	IsTransfer   bool      `json:"isTransfer"`
	IsCycleTopup bool      `json:"isCycleTopup"`
	TransferID   *string   `json:"transferId,omitempty"`
}

type Paging struct {
	Limit      int    `json:"limit"`
	Offset     int    `json:"offset"`
	HasMore    bool   `json:"hasMore"`
	NextOffset int    `json:"nextOffset"`
	NextCursor string `json:"nextCursor,omitempty"`
}

type SummaryAccountBalance struct {
	AccountID   string `json:"accountId"`
	AccountName string `json:"accountName"`
	Balance     int64  `json:"balance"`
}

type LedgerSummary struct {
	Accounts   []SummaryAccountBalance `json:"accounts"`
	TotalAsset int64                   `json:"totalAsset"`
}

type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type LedgerPageResponse struct {
	Scope   string         `json:"scope"`
	Range   DateRange      `json:"range"`
	Rows    []LedgerRow    `json:"rows"`
	Paging  Paging         `json:"paging"`
	Summary *LedgerSummary `json:"summary,omitempty"`
}

// PaydayInfo reports how a month's payday day was resolved. CycleToDate
// is the elapsed slice of the cycle in progress, from the last payday on
// or before today through today; it is only set when the requested month
// is the current one.
type PaydayInfo struct {
	Month       string     `json:"month"`
	Day         int        `json:"day"`
	Source      string     `json:"source"`
	DefaultDay  int        `json:"defaultDay"`
	OverrideDay *int       `json:"overrideDay"`
	CycleToDate *DateRange `json:"cycleToDate,omitempty"`
}

// MonthAccountSummary is one account's cycle summary with budget status.
// Budget fields stay nil when no limit applies, which is distinct from a
// zero limit.
type MonthAccountSummary struct {
	AccountID       string  `json:"accountId"`
	AccountName     string  `json:"accountName"`
	StartingBalance int64   `json:"startingBalance"`
	CurrentBalance  int64   `json:"currentBalance"`
	TotalIn         int64   `json:"totalIn"`
	TotalOut        int64   `json:"totalOut"`
	BudgetID        *string `json:"budgetId"`
	Budget          *int64  `json:"budget"`
	BudgetUsed      *int64  `json:"budgetUsed"`
	BudgetRemaining *int64  `json:"budgetRemaining"`
	BudgetPct       *int    `json:"budgetPct"`
	BudgetStatus    string  `json:"budgetStatus,omitempty"`
}

type MonthSummaryResponse struct {
	Month      string                `json:"month"`
	Range      DateRange             `json:"range"`
	Payday     PaydayInfo            `json:"payday"`
	TotalAsset int64                 `json:"totalAsset"`
	Accounts   []MonthAccountSummary `json:"accounts"`
}

type FlowTotals struct {
	TotalIn  int64 `json:"totalIn"`
	TotalOut int64 `json:"totalOut"`
	Net      int64 `json:"net"`
}

type CategoryTotal struct {
	AccountID   string `json:"accountId"`
	AccountName string `json:"accountName"`
	TotalIn     int64  `json:"totalIn"`
	TotalOut    int64  `json:"totalOut"`
	Net         int64  `json:"net"`
	SwitchIn    int64  `json:"switchIn"`
	SwitchOut   int64  `json:"switchOut"`
}

type AnalysisResponse struct {
	Month      string               `json:"month"`
	Range      DateRange            `json:"range"`
	Payday     PaydayInfo           `json:"payday"`
	TotalAsset int64                `json:"totalAsset"`
	Totals     FlowTotals           `json:"totals"`
	Daily      []ledger.DailyPoint  `json:"daily"`
	Weekly     []ledger.WeeklyPoint `json:"weekly"`
	Categories []CategoryTotal      `json:"categories"`
}

// RecomputeAccount is one account's full-replay consistency check.
type RecomputeAccount struct {
	AccountID         string     `json:"accountId"`
	AccountName       string     `json:"accountName"`
	TransactionsCount int        `json:"transactionsCount"`
	CurrentBalance    int64      `json:"currentBalance"`
	MinBalance        int64      `json:"minBalance"`
	FirstNegativeAt   *time.Time `json:"firstNegativeAt"`
}

type RecomputeReport struct {
	CheckedAt   time.Time          `json:"checkedAt"`
	Accounts    []RecomputeAccount `json:"accounts"`
	HasNegative bool               `json:"hasNegative"`
	TotalAsset  int64              `json:"totalAsset"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
