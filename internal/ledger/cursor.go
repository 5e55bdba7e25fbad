package ledger

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Cursor is the opaque paging token handed to API callers. It records the
// query it was issued for; reuse against a different query is rejected so
// a stale token can never silently return wrong balances.
type Cursor struct {
	Offset    int    `json:"offset"`
	Scope     string `json:"scope"`
	AccountID string `json:"account_id,omitempty"`
	FromDate  string `json:"from_date"`
	ToDate    string `json:"to_date"`
	Order     string `json:"order"`
	Search    string `json:"q,omitempty"`
}

// Encode serializes the cursor as unpadded URL-safe base64 JSON.
func (c Cursor) Encode() string {
	raw, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses a client-supplied token. An empty token means first
// page and decodes to nil.
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, ErrInvalidCursor
	}
	if c.Offset < 0 {
		return nil, ErrInvalidCursor
	}
	return &c, nil
}

// Bind checks the cursor against the request it is being replayed with.
// Offset is the only field allowed to differ.
func (c *Cursor) Bind(scope, accountID, fromDate, toDate, order, search string) error {
	if c.Scope != scope {
		return fmt.Errorf("%w: scope", ErrCursorMismatch)
	}
	if c.AccountID != accountID {
		return fmt.Errorf("%w: account", ErrCursorMismatch)
	}
	if c.FromDate != fromDate || c.ToDate != toDate {
		return fmt.Errorf("%w: date range", ErrCursorMismatch)
	}
	if c.Order != order {
		return fmt.Errorf("%w: order", ErrCursorMismatch)
	}
	if c.Search != search {
		return fmt.Errorf("%w: search", ErrCursorMismatch)
	}
	return nil
}
