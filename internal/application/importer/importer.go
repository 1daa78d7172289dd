// Package importer loads receipt and bank-transaction batches into
// storage. Imports are idempotent: each record carries a natural key
// and re-running a batch inserts nothing new.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/brightbooks/recon-engine/internal/domain/ledger"
	"github.com/brightbooks/recon-engine/internal/infrastructure/storage"
)

// Kind selects which side of the ledger a batch feeds.
type Kind string

const (
	KindReceipts     Kind = "receipts"
	KindTransactions Kind = "transactions"
)

// ParseKind maps CLI input to a batch kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindReceipts, KindTransactions:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown batch kind %q (want receipts or transactions)", s)
}

// Options control one import run.
type Options struct {
	BatchID string
	DryRun  bool
}

// Report summarizes one import run. SkippedAsDuplicate counts rows
// whose natural key already existed; they are not failures.
type Report struct {
	Inserted           int        `json:"inserted"`
	SkippedAsDuplicate int        `json:"skipped_as_duplicate"`
	Failed             int        `json:"failed"`
	FailedRows         []RowError `json:"failed_rows,omitempty"`
}

// Importer writes batches into a Repository, auditing every insert.
type Importer struct {
	repo storage.Repository
	log  *slog.Logger
}

// New creates an Importer.
func New(repo storage.Repository, logger *slog.Logger) *Importer {
	return &Importer{repo: repo, log: logger}
}

// ImportBatch imports every row of a batch. Rows fail independently:
// a bad row is reported and the rest of the batch proceeds. Duplicate
// detection and insert are a single conditional statement in storage,
// so concurrent imports of the same batch cannot double-insert.
func (i *Importer) ImportBatch(ctx context.Context, kind Kind, rows []Row, opts Options) (*Report, error) {
	report := &Report{}

	var schema map[string]bool
	if kind == KindReceipts {
		var err error
		schema, err = i.repo.ReceiptColumns(ctx)
		if err != nil {
			return nil, fmt.Errorf("load receipt schema: %w", err)
		}
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		var err error
		switch kind {
		case KindReceipts:
			err = i.importReceipt(ctx, row, schema, opts)
		case KindTransactions:
			err = i.importTransaction(ctx, row, opts)
		default:
			return nil, fmt.Errorf("unknown batch kind %q", kind)
		}

		switch {
		case err == nil:
			report.Inserted++
		case errors.Is(err, ledger.ErrDuplicateKey):
			report.SkippedAsDuplicate++
			i.log.Debug("skipping duplicate row", "batch", opts.BatchID, "line", row.Line)
		default:
			report.Failed++
			report.FailedRows = append(report.FailedRows, RowError{Line: row.Line, Reason: err.Error()})
			i.log.Warn("row failed", "batch", opts.BatchID, "line", row.Line, "error", err)
		}
	}

	i.log.Info("batch imported",
		"batch", opts.BatchID,
		"kind", string(kind),
		"dry_run", opts.DryRun,
		"inserted", report.Inserted,
		"skipped", report.SkippedAsDuplicate,
		"failed", report.Failed)
	return report, nil
}

func (i *Importer) importReceipt(ctx context.Context, row Row, schema map[string]bool, opts Options) error {
	r, err := buildReceipt(row, schema)
	if err != nil {
		return err
	}
	if opts.DryRun {
		if err := r.Validate(); err != nil {
			return err
		}
		exists, err := i.repo.ReceiptExists(ctx, r)
		if err != nil {
			return err
		}
		if exists {
			return ledger.ErrDuplicateKey
		}
		return nil
	}

	return i.repo.WithTx(ctx, func(repo storage.Repository) error {
		if err := repo.InsertReceipt(ctx, r); err != nil {
			return err
		}
		entry, err := ledger.NewAuditEntry(ledger.ActionInsert, "receipts",
			strconv.FormatInt(r.ID, 10), nil, r, auditReason(opts.BatchID, row.Line))
		if err != nil {
			return err
		}
		return repo.AppendAudit(ctx, entry)
	})
}

func (i *Importer) importTransaction(ctx context.Context, row Row, opts Options) error {
	t, err := buildTransaction(row)
	if err != nil {
		return err
	}
	if opts.DryRun {
		if err := t.Validate(); err != nil {
			return err
		}
		exists, err := i.repo.TransactionExists(ctx, t)
		if err != nil {
			return err
		}
		if exists {
			return ledger.ErrDuplicateKey
		}
		return nil
	}

	return i.repo.WithTx(ctx, func(repo storage.Repository) error {
		if err := repo.InsertTransaction(ctx, t); err != nil {
			return err
		}
		entry, err := ledger.NewAuditEntry(ledger.ActionInsert, "bank_transactions",
			strconv.FormatInt(t.ID, 10), nil, t, auditReason(opts.BatchID, row.Line))
		if err != nil {
			return err
		}
		return repo.AppendAudit(ctx, entry)
	})
}

func auditReason(batchID string, line int) string {
	return fmt.Sprintf("batch %s row %d", batchID, line)
}

// ShadowFromTransaction creates an auto-generated placeholder receipt
// for a bank transaction that has no paper trail, so the transaction
// can still be linked. The shadow is marked through its source
// reference and carries the statement description as its vendor.
func (i *Importer) ShadowFromTransaction(ctx context.Context, t *ledger.BankTransaction) (*ledger.Receipt, error) {
	if t.Linked() {
		return nil, fmt.Errorf("transaction %d is already linked", t.ID)
	}

	shadow := &ledger.Receipt{
		VendorRaw:       t.Description,
		Amount:          t.Amount(),
		Credit:          t.IsCredit(),
		Date:            t.Date,
		Description:     "auto-generated from bank transaction",
		PaymentMethod:   ledger.PaymentUnknown,
		SourceReference: fmt.Sprintf("shadow:transaction:%d", t.ID),
	}

	err := i.repo.WithTx(ctx, func(repo storage.Repository) error {
		if err := repo.InsertReceipt(ctx, shadow); err != nil {
			return err
		}
		entry, err := ledger.NewAuditEntry(ledger.ActionInsert, "receipts",
			strconv.FormatInt(shadow.ID, 10), nil, shadow,
			fmt.Sprintf("shadow receipt for transaction %d", t.ID))
		if err != nil {
			return err
		}
		return repo.AppendAudit(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	i.log.Info("created shadow receipt",
		"receipt_id", shadow.ID, "transaction_id", t.ID, "amount", shadow.Amount.String())
	return shadow, nil
}
