package models

import (
	"encoding/json"
	"time"
)

// User holds the per-owner settings this service cares about.
// Authentication itself lives outside this service; the row exists for
// payday defaults and foreign keys.
type User struct {
	Username         string `db:"username" json:"username"`
	FullName         string `db:"full_name" json:"fullName"`
	DefaultPaydayDay *int   `db:"default_payday_day" json:"defaultPaydayDay,omitempty"`
}

// Account is one named balance owned by a user. Name is unique per owner.
// MonthlyLimit, when set, overrides per-month budget rows; NoLimit marks
// accounts excluded from budget analysis entirely.
type Account struct {
	ID           string `db:"account_id" json:"id"`
	Username     string `db:"username" json:"-"`
	Name         string `db:"account_name" json:"name"`
	MonthlyLimit *int64 `db:"monthly_limit" json:"monthlyLimit,omitempty"`
	NoLimit      bool   `db:"no_limit" json:"noLimit"`
}

// Transaction is one signed money movement. Amount is a positive integer
// in minor units; the direction carries the sign. Date is the effective
// instant, not the insertion time. Soft-deleted rows keep their fields and
// are filtered out of every read path.
type Transaction struct {
	ID           string     `db:"transaction_id" json:"id"`
	AccountID    string     `db:"account_id" json:"accountId"`
	Type         string     `db:"transaction_type" json:"type"`
	Name         string     `db:"transaction_name" json:"name"`
	Amount       int64      `db:"amount" json:"amount"`
	Date         time.Time  `db:"date" json:"date"`
	IsTransfer   bool       `db:"is_transfer" json:"isTransfer"`
	IsCycleTopup bool       `db:"is_cycle_topup" json:"isCycleTopup"`
	TransferID   *string    `db:"transfer_id" json:"transferId,omitempty"`
	DeletedAt    *time.Time `db:"deleted_at" json:"-"`
	DeletedBy    *string    `db:"deleted_by" json:"-"`
	DeleteReason *string    `db:"delete_reason" json:"-"`
}

// Switch is the derived view of an internal transfer: the two linked legs
// collapsed into source, target, amount and instant.
type Switch struct {
	TransferID      string    `json:"transferId"`
	SourceAccountID string    `json:"sourceAccountId"`
	TargetAccountID string    `json:"targetAccountId"`
	Amount          int64     `json:"amount"`
	Date            time.Time `json:"date"`
}

// Budget is one (owner, account, month) spending limit.
type Budget struct {
	ID        string `db:"budget_id" json:"budgetId"`
	Username  string `db:"username" json:"-"`
	AccountID string `db:"account_id" json:"accountId"`
	Month     string `db:"month" json:"month"`
	Amount    int64  `db:"amount" json:"amount"`
}

// PaydayOverride pins one month's payday day for an owner; absent months
// fall back to the owner's default day.
type PaydayOverride struct {
	Username  string `db:"username" json:"-"`
	Month     string `db:"month" json:"month"`
	PaydayDay int    `db:"payday_day" json:"paydayDay"`
}

// AuditRecord is an immutable snapshot of a transaction at the moment of a
// mutating action. Written in the same database transaction as the
// mutation it describes.
type AuditRecord struct {
	AuditID       string          `db:"audit_id" json:"auditId"`
	TransactionID string          `db:"transaction_id" json:"transactionId"`
	AccountID     string          `db:"account_id" json:"accountId"`
	Username      string          `db:"username" json:"username"`
	Action        string          `db:"action" json:"action"`
	Payload       json.RawMessage `db:"payload" json:"payload"`
	PerformedBy   string          `db:"performed_by" json:"performedBy"`
	PerformedAt   time.Time       `db:"performed_at" json:"performedAt"`
}

// AuditPayload is the field set snapshotted into an audit record.
type AuditPayload struct {
	TransactionID string     `json:"transaction_id"`
	AccountID     string     `json:"account_id"`
	Type          string     `json:"transaction_type"`
	Name          string     `json:"transaction_name"`
	Amount        int64      `json:"amount"`
	Date          time.Time  `json:"date"`
	IsTransfer    bool       `json:"is_transfer"`
	IsCycleTopup  bool       `json:"is_cycle_topup"`
	TransferID    *string    `json:"transfer_id"`
	DeletedAt     *time.Time `json:"deleted_at"`
	DeletedBy     *string    `json:"deleted_by"`
	DeleteReason  *string    `json:"delete_reason"`
}
