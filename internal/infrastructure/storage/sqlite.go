package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/brightbooks/recon-engine/internal/domain/ledger"
	"github.com/brightbooks/recon-engine/internal/domain/money"
)

// dbtx is the subset of *sql.DB and *sql.Tx the queries need, so the
// same methods serve both autocommit and in-transaction calls.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Storage provides SQLite database access. It implements Repository.
type Storage struct {
	db *sql.DB
	q  dbtx
}

// Compile-time check that Storage implements Repository.
var _ Repository = (*Storage)(nil)

// NewStorage opens (or creates) the SQLite database at dbPath and runs
// all pending migrations.
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db, q: db}

	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// WithTx runs fn within one transaction; the Repository handed to fn
// routes every query through that transaction.
func (s *Storage) WithTx(ctx context.Context, fn func(Repository) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		// Already inside a transaction: join it.
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&Storage{db: s.db, q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Backup writes a consistent snapshot of the database to path.
func (s *Storage) Backup(path string) error {
	_, err := s.db.Exec("VACUUM INTO ?", path)
	return err
}

// descriptionHash folds the statement description into the transaction
// natural key. FNV-1a: stable, cheap, only used inside the unique index.
func descriptionHash(description string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(description))
	return int64(h.Sum64())
}

// --- receipts ---

func (s *Storage) InsertReceipt(ctx context.Context, r *ledger.Receipt) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	var groupID interface{}
	if r.SplitGroupID != nil {
		groupID = r.SplitGroupID.String()
	}

	res, err := s.q.ExecContext(ctx, `
	INSERT OR IGNORE INTO receipts
	(vendor_raw, canonical_vendor, amount, credit, date, description,
	 payment_method, source_reference, gl_account, vehicle_id, employee_id,
	 reserve_number, split_group_id, banking_transaction_id, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.VendorRaw, r.CanonicalVendor, r.Amount, r.Credit, r.Date,
		r.Description, string(r.PaymentMethod), r.SourceReference,
		r.GLAccount, r.VehicleID, r.EmployeeID, r.ReserveNumber,
		groupID, r.BankingTransactionID, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledger.ErrDuplicateKey
	}

	r.ID, err = res.LastInsertId()
	return err
}

const receiptColumns = `
	id, vendor_raw, canonical_vendor, amount, credit, date, description,
	payment_method, source_reference, gl_account, vehicle_id, employee_id,
	reserve_number, split_group_id, banking_transaction_id, created_at`

func (s *Storage) GetReceipt(ctx context.Context, id int64) (*ledger.Receipt, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+receiptColumns+` FROM receipts WHERE id = ?`, id)
	r, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// ReceiptExists checks the same natural key the insert backstop guards.
func (s *Storage) ReceiptExists(ctx context.Context, r *ledger.Receipt) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx, `
	SELECT EXISTS(SELECT 1 FROM receipts WHERE vendor_raw = ? AND amount = ? AND date = ?)`,
		r.VendorRaw, r.Amount, r.Date).Scan(&exists)
	return exists, err
}

func (s *Storage) UnmatchedReceipts(ctx context.Context, limit int) ([]*ledger.Receipt, error) {
	rows, err := s.q.QueryContext(ctx, `
	SELECT `+receiptColumns+`
	FROM receipts
	WHERE banking_transaction_id IS NULL AND split_group_id IS NULL
	ORDER BY id
	LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReceipts(rows)
}

func (s *Storage) ReceiptsByVendor(ctx context.Context, vendor string, limit int) ([]*ledger.Receipt, error) {
	rows, err := s.q.QueryContext(ctx, `
	SELECT `+receiptColumns+`
	FROM receipts
	WHERE lower(coalesce(nullif(canonical_vendor, ''), vendor_raw)) = lower(?)
	ORDER BY date, id
	LIMIT ?`, vendor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReceipts(rows)
}

func (s *Storage) LinkReceipt(ctx context.Context, receiptID, transactionID int64) error {
	// Both sides of the link land together or not at all.
	return s.WithTx(ctx, func(repo Repository) error {
		return repo.(*Storage).linkReceipt(ctx, receiptID, transactionID)
	})
}

func (s *Storage) linkReceipt(ctx context.Context, receiptID, transactionID int64) error {
	res, err := s.q.ExecContext(ctx, `
	UPDATE receipts SET banking_transaction_id = ?
	WHERE id = ? AND banking_transaction_id IS NULL AND split_group_id IS NULL`,
		transactionID, receiptID)
	if err != nil {
		return fmt.Errorf("link receipt %d: %w", receiptID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("receipt %d is missing or already linked", receiptID)
	}

	res, err = s.q.ExecContext(ctx, `
	UPDATE bank_transactions SET matched_receipt_id = ?
	WHERE id = ? AND matched_receipt_id IS NULL AND matched_group_id IS NULL`,
		receiptID, transactionID)
	if err != nil {
		return fmt.Errorf("link transaction %d: %w", transactionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %d is missing or already linked", transactionID)
	}
	return nil
}

func (s *Storage) DeleteReceipt(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM receipts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete receipt %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("receipt %d not found", id)
	}
	return nil
}

func (s *Storage) ReceiptColumns(ctx context.Context) (map[string]bool, error) {
	rows, err := s.q.QueryContext(ctx, `PRAGMA table_info(receipts)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// --- bank transactions ---

func (s *Storage) InsertTransaction(ctx context.Context, t *ledger.BankTransaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	res, err := s.q.ExecContext(ctx, `
	INSERT OR IGNORE INTO bank_transactions
	(account_id, date, debit, credit, description, desc_hash,
	 matched_receipt_id, matched_group_id, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.AccountID, t.Date, t.Debit, t.Credit, t.Description,
		descriptionHash(t.Description), t.MatchedReceiptID, nil, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledger.ErrDuplicateKey
	}

	t.ID, err = res.LastInsertId()
	return err
}

const transactionColumns = `
	id, account_id, date, debit, credit, description,
	matched_receipt_id, matched_group_id, created_at`

func (s *Storage) GetTransaction(ctx context.Context, id int64) (*ledger.BankTransaction, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM bank_transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// TransactionExists checks the same natural key the insert backstop guards.
func (s *Storage) TransactionExists(ctx context.Context, t *ledger.BankTransaction) (bool, error) {
	var exists bool
	err := s.q.QueryRowContext(ctx, `
	SELECT EXISTS(SELECT 1 FROM bank_transactions
	WHERE account_id = ? AND date = ? AND debit = ? AND credit = ? AND desc_hash = ?)`,
		t.AccountID, t.Date, t.Debit, t.Credit, descriptionHash(t.Description)).Scan(&exists)
	return exists, err
}

func (s *Storage) UnmatchedTransactions(ctx context.Context, limit int) ([]*ledger.BankTransaction, error) {
	rows, err := s.q.QueryContext(ctx, `
	SELECT `+transactionColumns+`
	FROM bank_transactions
	WHERE matched_receipt_id IS NULL AND matched_group_id IS NULL
	ORDER BY id
	LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []*ledger.BankTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// --- split groups ---

func (s *Storage) SaveSplitGroup(ctx context.Context, g *ledger.SplitGroup, anchorTransactionID int64) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}

	// Group row, member stamps and anchor link land together or not at
	// all. WithTx joins the caller's transaction when there is one.
	return s.WithTx(ctx, func(repo Repository) error {
		return repo.(*Storage).saveSplitGroup(ctx, g, anchorTransactionID)
	})
}

func (s *Storage) saveSplitGroup(ctx context.Context, g *ledger.SplitGroup, anchorTransactionID int64) error {
	if _, err := s.q.ExecContext(ctx, `
	INSERT INTO split_groups (id, kind, expected_total, created_at)
	VALUES (?, ?, ?, ?)`,
		g.ID.String(), string(g.Kind), g.ExpectedTotal, g.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert split group: %w", err)
	}

	for i, memberID := range g.MemberIDs {
		if _, err := s.q.ExecContext(ctx, `
		INSERT INTO split_group_members (group_id, position, member_id, amount)
		VALUES (?, ?, ?, ?)`,
			g.ID.String(), i, memberID, g.MemberAmounts[i],
		); err != nil {
			return fmt.Errorf("insert split member %d: %w", memberID, err)
		}

		res, err := s.q.ExecContext(ctx, `
		UPDATE receipts SET split_group_id = ?
		WHERE id = ? AND banking_transaction_id IS NULL AND split_group_id IS NULL`,
			g.ID.String(), memberID)
		if err != nil {
			return fmt.Errorf("assign receipt %d to group: %w", memberID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("receipt %d is missing or already linked", memberID)
		}
	}

	res, err := s.q.ExecContext(ctx, `
	UPDATE bank_transactions SET matched_group_id = ?
	WHERE id = ? AND matched_receipt_id IS NULL AND matched_group_id IS NULL`,
		g.ID.String(), anchorTransactionID)
	if err != nil {
		return fmt.Errorf("link anchor transaction %d: %w", anchorTransactionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %d is missing or already linked", anchorTransactionID)
	}
	return nil
}

func (s *Storage) GetSplitGroup(ctx context.Context, id uuid.UUID) (*ledger.SplitGroup, error) {
	row := s.q.QueryRowContext(ctx, `
	SELECT id, kind, expected_total, created_at FROM split_groups WHERE id = ?`,
		id.String())

	var (
		g     ledger.SplitGroup
		rawID string
		kind  string
	)
	err := row.Scan(&rawID, &kind, &g.ExpectedTotal, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	g.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, err
	}
	g.Kind = ledger.GroupKind(kind)

	rows, err := s.q.QueryContext(ctx, `
	SELECT member_id, amount FROM split_group_members
	WHERE group_id = ? ORDER BY position`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			memberID int64
			amount   money.Money
		)
		if err := rows.Scan(&memberID, &amount); err != nil {
			return nil, err
		}
		g.MemberIDs = append(g.MemberIDs, memberID)
		g.MemberAmounts = append(g.MemberAmounts, amount)
	}
	return &g, rows.Err()
}

// --- audit log ---

func (s *Storage) AppendAudit(ctx context.Context, e *ledger.AuditEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	res, err := s.q.ExecContext(ctx, `
	INSERT INTO audit_log (action_type, entity_table, entity_id,
	 before_snapshot, after_snapshot, timestamp, reason)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(e.Action), e.EntityTable, e.EntityID,
		nullableJSON(e.Before), nullableJSON(e.After), e.Timestamp, e.Reason,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	e.ID, err = res.LastInsertId()
	return err
}

func (s *Storage) ListAudit(ctx context.Context, limit, offset int) ([]*ledger.AuditEntry, error) {
	rows, err := s.q.QueryContext(ctx, `
	SELECT id, action_type, entity_table, entity_id,
	       before_snapshot, after_snapshot, timestamp, reason
	FROM audit_log
	ORDER BY id DESC
	LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*ledger.AuditEntry
	for rows.Next() {
		var (
			e             ledger.AuditEntry
			action        string
			before, after sql.NullString
		)
		if err := rows.Scan(&e.ID, &action, &e.EntityTable, &e.EntityID,
			&before, &after, &e.Timestamp, &e.Reason); err != nil {
			return nil, err
		}
		e.Action = ledger.ActionType(action)
		if before.Valid {
			e.Before = json.RawMessage(before.String)
		}
		if after.Valid {
			e.After = json.RawMessage(after.String)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// --- runs ---

func (s *Storage) StartRun(ctx context.Context, r *RunRecord) error {
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}
	res, err := s.q.ExecContext(ctx, `
	INSERT INTO recon_runs (started_at, state, dry_run)
	VALUES (?, ?, ?)`, r.StartedAt, r.State, r.DryRun)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	r.ID, err = res.LastInsertId()
	return err
}

func (s *Storage) FinishRun(ctx context.Context, r *RunRecord) error {
	now := time.Now().UTC()
	if r.FinishedAt == nil {
		r.FinishedAt = &now
	}
	_, err := s.q.ExecContext(ctx, `
	UPDATE recon_runs
	SET finished_at = ?, state = ?, matched = ?, grouped = ?,
	    flagged = ?, skipped = ?, error_message = ?
	WHERE id = ?`,
		r.FinishedAt, r.State, r.Matched, r.Grouped,
		r.Flagged, r.Skipped, r.Error, r.ID)
	return err
}

func (s *Storage) GetRun(ctx context.Context, id int64) (*RunRecord, error) {
	row := s.q.QueryRowContext(ctx, `
	SELECT id, started_at, finished_at, state, dry_run,
	       matched, grouped, flagged, skipped, error_message
	FROM recon_runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func (s *Storage) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	rows, err := s.q.QueryContext(ctx, `
	SELECT id, started_at, finished_at, state, dry_run,
	       matched, grouped, flagged, skipped, error_message
	FROM recon_runs
	ORDER BY id DESC
	LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// --- scanning helpers ---

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReceipt(row rowScanner) (*ledger.Receipt, error) {
	var (
		r       ledger.Receipt
		method  string
		groupID sql.NullString
	)
	err := row.Scan(&r.ID, &r.VendorRaw, &r.CanonicalVendor, &r.Amount,
		&r.Credit, &r.Date, &r.Description, &method, &r.SourceReference,
		&r.GLAccount, &r.VehicleID, &r.EmployeeID, &r.ReserveNumber,
		&groupID, &r.BankingTransactionID, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.PaymentMethod = ledger.PaymentMethod(method)
	if groupID.Valid {
		id, err := uuid.Parse(groupID.String)
		if err != nil {
			return nil, fmt.Errorf("receipt %d: bad split group id: %w", r.ID, err)
		}
		r.SplitGroupID = &id
	}
	return &r, nil
}

func collectReceipts(rows *sql.Rows) ([]*ledger.Receipt, error) {
	var receipts []*ledger.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

func scanTransaction(row rowScanner) (*ledger.BankTransaction, error) {
	var (
		t       ledger.BankTransaction
		groupID sql.NullString
	)
	err := row.Scan(&t.ID, &t.AccountID, &t.Date, &t.Debit, &t.Credit,
		&t.Description, &t.MatchedReceiptID, &groupID, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if groupID.Valid {
		id, err := uuid.Parse(groupID.String)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: bad group id: %w", t.ID, err)
		}
		t.MatchedGroupID = &id
	}
	return &t, nil
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var (
		r        RunRecord
		finished sql.NullTime
		errMsg   sql.NullString
	)
	err := row.Scan(&r.ID, &r.StartedAt, &finished, &r.State, &r.DryRun,
		&r.Matched, &r.Grouped, &r.Flagged, &r.Skipped, &errMsg)
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}
	if errMsg.Valid {
		r.Error = errMsg.String
	}
	return &r, nil
}

func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
