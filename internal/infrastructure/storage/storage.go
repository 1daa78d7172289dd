// Package storage provides SQLite persistence for the reconciliation
// engine: receipts, banking transactions, split groups, the append-only
// audit log and reconciliation run records.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/brightbooks/recon-engine/internal/domain/ledger"
)

// Repository defines the complete storage interface. It allows swapping
// implementations and makes testing with the in-memory mock
// straightforward.
type Repository interface {
	ReceiptRepository
	TransactionRepository
	SplitGroupRepository
	AuditRepository
	RunRepository

	// WithTx runs fn inside a single database transaction. The
	// Repository passed to fn shares that transaction; any error rolls
	// everything back.
	WithTx(ctx context.Context, fn func(Repository) error) error

	Close() error
}

// ReceiptRepository handles receipt rows.
type ReceiptRepository interface {
	// InsertReceipt inserts a receipt if no row with the same natural
	// key (vendor, amount, date) exists. Returns ledger.ErrDuplicateKey
	// when the unique backstop fires; the check and the insert are one
	// conditional statement.
	InsertReceipt(ctx context.Context, r *ledger.Receipt) error

	// GetReceipt returns a receipt by ID, or nil when absent.
	GetReceipt(ctx context.Context, id int64) (*ledger.Receipt, error)

	// ReceiptExists reports whether a row with the receipt's natural
	// key is already present. Read-only; import dry runs use it to
	// preview what a real run would skip.
	ReceiptExists(ctx context.Context, r *ledger.Receipt) (bool, error)

	// UnmatchedReceipts returns up to limit receipts with no banking
	// transaction and no split group, ordered by ID.
	UnmatchedReceipts(ctx context.Context, limit int) ([]*ledger.Receipt, error)

	// ReceiptsByVendor returns the vendor's receipts ordered by date,
	// used as classifier history.
	ReceiptsByVendor(ctx context.Context, vendor string, limit int) ([]*ledger.Receipt, error)

	// LinkReceipt records a 1:1 match. Fails if either side is already
	// linked.
	LinkReceipt(ctx context.Context, receiptID, transactionID int64) error

	// DeleteReceipt removes a receipt row. Only the duplicate-removal
	// path calls this, always with an audit entry in the same
	// transaction.
	DeleteReceipt(ctx context.Context, id int64) error

	// ReceiptColumns reports the column names of the receipts table,
	// used for schema-aware import of optional columns.
	ReceiptColumns(ctx context.Context) (map[string]bool, error)
}

// TransactionRepository handles bank-statement rows.
type TransactionRepository interface {
	// InsertTransaction inserts a transaction if no row with the same
	// natural key (account, date, debit, credit, description hash)
	// exists. Returns ledger.ErrDuplicateKey on conflict.
	InsertTransaction(ctx context.Context, t *ledger.BankTransaction) error

	// GetTransaction returns a transaction by ID, or nil when absent.
	GetTransaction(ctx context.Context, id int64) (*ledger.BankTransaction, error)

	// TransactionExists reports whether a row with the transaction's
	// natural key is already present. Read-only counterpart of
	// InsertTransaction for import dry runs.
	TransactionExists(ctx context.Context, t *ledger.BankTransaction) (bool, error)

	// UnmatchedTransactions returns up to limit transactions with no
	// matched receipt or group, ordered by ID.
	UnmatchedTransactions(ctx context.Context, limit int) ([]*ledger.BankTransaction, error)
}

// SplitGroupRepository handles split groups.
type SplitGroupRepository interface {
	// SaveSplitGroup persists the group, stamps every member receipt
	// with the group ID and links the anchor transaction to the group.
	SaveSplitGroup(ctx context.Context, g *ledger.SplitGroup, anchorTransactionID int64) error

	// GetSplitGroup returns a group by ID, or nil when absent.
	GetSplitGroup(ctx context.Context, id uuid.UUID) (*ledger.SplitGroup, error)
}

// AuditRepository handles the append-only audit log. Consumers may read;
// nothing ever updates or deletes an entry.
type AuditRepository interface {
	AppendAudit(ctx context.Context, e *ledger.AuditEntry) error
	ListAudit(ctx context.Context, limit, offset int) ([]*ledger.AuditEntry, error)
}

// RunRecord tracks one reconciliation run.
type RunRecord struct {
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

// RunRepository tracks reconciliation runs for the reporting surface.
type RunRepository interface {
	StartRun(ctx context.Context, r *RunRecord) error
	FinishRun(ctx context.Context, r *RunRecord) error
	GetRun(ctx context.Context, id int64) (*RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]*RunRecord, error)
}
