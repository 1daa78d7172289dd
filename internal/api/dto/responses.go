package dto

import (
	"encoding/json"
	"time"
)

// HealthResponse is returned by the health check endpoint. Database
// reports storage reachability; LastRunState carries the state of the
// newest reconciliation run, when any exists.
type HealthResponse struct {
	Status       string `json:"status"`
	Database     string `json:"database"`
	LastRunState string `json:"last_run_state,omitempty"`
	Timestamp    string `json:"timestamp"`
}

// AuditEntryResponse is one audit log record.
type AuditEntryResponse struct {
	ID          int64           `json:"entry_id"`
	Action      string          `json:"action_type"`
	EntityTable string          `json:"entity_table"`
	EntityID    string          `json:"entity_id"`
	Before      json.RawMessage `json:"before_snapshot,omitempty"`
	After       json.RawMessage `json:"after_snapshot,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Reason      string          `json:"reason"`
}

// AuditListResponse wraps a page of audit entries.
type AuditListResponse struct {
	Entries []AuditEntryResponse `json:"entries"`
	Count   int                  `json:"count"`
	Offset  int                  `json:"offset"`
}

// RunResponse is one reconciliation run.
type RunResponse struct {
	ID         int64      `json:"run_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	State      string     `json:"state"`
	DryRun     bool       `json:"dry_run"`
	Matched    int        `json:"matched"`
	Grouped    int        `json:"grouped"`
	Flagged    int        `json:"flagged"`
	Skipped    int        `json:"skipped"`
	Error      string     `json:"error,omitempty"`
}

// RunListResponse wraps a list of runs.
type RunListResponse struct {
	Runs  []RunResponse `json:"runs"`
	Count int           `json:"count"`
}

// ReceiptResponse is one receipt in API responses. Amounts are decimal
// strings; clients must not round-trip them through floats.
type ReceiptResponse struct {
	ID            int64  `json:"receipt_id"`
	Vendor        string `json:"vendor"`
	Amount        string `json:"amount"`
	Credit        bool   `json:"credit"`
	Date          string `json:"date"`
	Description   string `json:"description,omitempty"`
	PaymentMethod string `json:"payment_method"`
}

// TransactionResponse is one bank transaction in API responses.
type TransactionResponse struct {
	ID          int64  `json:"transaction_id"`
	AccountID   string `json:"account_id"`
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Credit      bool   `json:"credit"`
	Description string `json:"description,omitempty"`
}

// UnmatchedResponse reports both open sides of the ledger.
type UnmatchedResponse struct {
	Receipts         []ReceiptResponse     `json:"receipts"`
	Transactions     []TransactionResponse `json:"transactions"`
	ReceiptCount     int                   `json:"receipt_count"`
	TransactionCount int                   `json:"transaction_count"`
}
