package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brightbooks/recon-engine/internal/domain/ledger"
)

// MockRepository is an in-memory implementation of Repository for
// testing. WithTx snapshots the maps up front and restores them when fn
// fails, mirroring the rollback semantics of the SQLite implementation.
type MockRepository struct {
	receipts     map[int64]*ledger.Receipt
	transactions map[int64]*ledger.BankTransaction
	groups       map[uuid.UUID]*ledger.SplitGroup
	audit        []*ledger.AuditEntry
	runs         map[int64]*RunRecord
	nextReceipt  int64
	nextTx       int64
	nextRun      int64

	// Error injection for testing failure paths.
	InsertReceiptErr error
	LinkReceiptErr   error
	SaveGroupErr     error
	DeleteReceiptErr error
	AppendAuditErr   error
	ListRunsErr      error
}

// Compile-time check that MockRepository implements Repository.
var _ Repository = (*MockRepository)(nil)

// NewMockRepository creates an empty in-memory repository.
func NewMockRepository() *MockRepository {
	return &MockRepository{
		receipts:     make(map[int64]*ledger.Receipt),
		transactions: make(map[int64]*ledger.BankTransaction),
		groups:       make(map[uuid.UUID]*ledger.SplitGroup),
		runs:         make(map[int64]*RunRecord),
		nextReceipt:  1,
		nextTx:       1,
		nextRun:      1,
	}
}

func receiptKey(vendor string, amount, date string) string {
	return strings.ToLower(vendor) + "|" + amount + "|" + date
}

func (m *MockRepository) naturalKeyExists(r *ledger.Receipt) bool {
	key := receiptKey(r.VendorRaw, r.Amount.String(), r.Date.String())
	for _, existing := range m.receipts {
		if receiptKey(existing.VendorRaw, existing.Amount.String(), existing.Date.String()) == key {
			return true
		}
	}
	return false
}

func (m *MockRepository) InsertReceipt(_ context.Context, r *ledger.Receipt) error {
	if m.InsertReceiptErr != nil {
		return m.InsertReceiptErr
	}
	if err := r.Validate(); err != nil {
		return err
	}
	if m.naturalKeyExists(r) {
		return ledger.ErrDuplicateKey
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	r.ID = m.nextReceipt
	m.nextReceipt++
	clone := *r
	m.receipts[r.ID] = &clone
	return nil
}

func (m *MockRepository) ReceiptExists(_ context.Context, r *ledger.Receipt) (bool, error) {
	return m.naturalKeyExists(r), nil
}

func (m *MockRepository) GetReceipt(_ context.Context, id int64) (*ledger.Receipt, error) {
	r, ok := m.receipts[id]
	if !ok {
		return nil, nil
	}
	clone := *r
	return &clone, nil
}

func (m *MockRepository) UnmatchedReceipts(_ context.Context, limit int) ([]*ledger.Receipt, error) {
	var out []*ledger.Receipt
	for id := int64(1); id < m.nextReceipt && len(out) < limit; id++ {
		r, ok := m.receipts[id]
		if !ok || r.Matched() || r.InSplit() {
			continue
		}
		clone := *r
		out = append(out, &clone)
	}
	return out, nil
}

func (m *MockRepository) ReceiptsByVendor(_ context.Context, vendor string, limit int) ([]*ledger.Receipt, error) {
	var out []*ledger.Receipt
	for id := int64(1); id < m.nextReceipt && len(out) < limit; id++ {
		r, ok := m.receipts[id]
		if !ok || !strings.EqualFold(r.Vendor(), vendor) {
			continue
		}
		clone := *r
		out = append(out, &clone)
	}
	return out, nil
}

func (m *MockRepository) LinkReceipt(_ context.Context, receiptID, transactionID int64) error {
	if m.LinkReceiptErr != nil {
		return m.LinkReceiptErr
	}
	r, ok := m.receipts[receiptID]
	if !ok || r.Matched() || r.InSplit() {
		return fmt.Errorf("receipt %d is missing or already linked", receiptID)
	}
	t, ok := m.transactions[transactionID]
	if !ok || t.Linked() {
		return fmt.Errorf("transaction %d is missing or already linked", transactionID)
	}
	r.BankingTransactionID = &transactionID
	t.MatchedReceiptID = &receiptID
	return nil
}

func (m *MockRepository) DeleteReceipt(_ context.Context, id int64) error {
	if m.DeleteReceiptErr != nil {
		return m.DeleteReceiptErr
	}
	if _, ok := m.receipts[id]; !ok {
		return fmt.Errorf("receipt %d not found", id)
	}
	delete(m.receipts, id)
	return nil
}

func (m *MockRepository) ReceiptColumns(_ context.Context) (map[string]bool, error) {
	return map[string]bool{
		"id": true, "vendor_raw": true, "canonical_vendor": true,
		"amount": true, "credit": true, "date": true, "description": true,
		"payment_method": true, "source_reference": true,
		"gl_account": true, "vehicle_id": true, "employee_id": true,
		"reserve_number": true,
		"split_group_id": true, "banking_transaction_id": true,
		"created_at": true,
	}, nil
}

func (m *MockRepository) transactionKeyExists(t *ledger.BankTransaction) bool {
	for _, existing := range m.transactions {
		if existing.AccountID == t.AccountID &&
			existing.Date.Equal(t.Date) &&
			existing.Debit.Equal(t.Debit) &&
			existing.Credit.Equal(t.Credit) &&
			existing.Description == t.Description {
			return true
		}
	}
	return false
}

func (m *MockRepository) InsertTransaction(_ context.Context, t *ledger.BankTransaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if m.transactionKeyExists(t) {
		return ledger.ErrDuplicateKey
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	t.ID = m.nextTx
	m.nextTx++
	clone := *t
	m.transactions[t.ID] = &clone
	return nil
}

func (m *MockRepository) TransactionExists(_ context.Context, t *ledger.BankTransaction) (bool, error) {
	return m.transactionKeyExists(t), nil
}

func (m *MockRepository) GetTransaction(_ context.Context, id int64) (*ledger.BankTransaction, error) {
	t, ok := m.transactions[id]
	if !ok {
		return nil, nil
	}
	clone := *t
	return &clone, nil
}

func (m *MockRepository) UnmatchedTransactions(_ context.Context, limit int) ([]*ledger.BankTransaction, error) {
	var out []*ledger.BankTransaction
	for id := int64(1); id < m.nextTx && len(out) < limit; id++ {
		t, ok := m.transactions[id]
		if !ok || t.Linked() {
			continue
		}
		clone := *t
		out = append(out, &clone)
	}
	return out, nil
}

func (m *MockRepository) SaveSplitGroup(_ context.Context, g *ledger.SplitGroup, anchorTransactionID int64) error {
	if m.SaveGroupErr != nil {
		return m.SaveGroupErr
	}
	if err := g.Validate(); err != nil {
		return err
	}
	t, ok := m.transactions[anchorTransactionID]
	if !ok || t.Linked() {
		return fmt.Errorf("transaction %d is missing or already linked", anchorTransactionID)
	}
	for _, memberID := range g.MemberIDs {
		r, ok := m.receipts[memberID]
		if !ok || r.Matched() || r.InSplit() {
			return fmt.Errorf("receipt %d is missing or already linked", memberID)
		}
	}
	for _, memberID := range g.MemberIDs {
		groupID := g.ID
		m.receipts[memberID].SplitGroupID = &groupID
	}
	groupID := g.ID
	t.MatchedGroupID = &groupID
	clone := *g
	m.groups[g.ID] = &clone
	return nil
}

func (m *MockRepository) GetSplitGroup(_ context.Context, id uuid.UUID) (*ledger.SplitGroup, error) {
	g, ok := m.groups[id]
	if !ok {
		return nil, nil
	}
	clone := *g
	return &clone, nil
}

func (m *MockRepository) AppendAudit(_ context.Context, e *ledger.AuditEntry) error {
	if m.AppendAuditErr != nil {
		return m.AppendAuditErr
	}
	e.ID = int64(len(m.audit) + 1)
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	clone := *e
	m.audit = append(m.audit, &clone)
	return nil
}

func (m *MockRepository) ListAudit(_ context.Context, limit, offset int) ([]*ledger.AuditEntry, error) {
	var out []*ledger.AuditEntry
	for i := len(m.audit) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		clone := *m.audit[i]
		out = append(out, &clone)
	}
	return out, nil
}

// AuditEntries exposes every appended entry, oldest first. Test helper.
func (m *MockRepository) AuditEntries() []*ledger.AuditEntry {
	return m.audit
}

// ReceiptCount reports how many receipts are stored. Test helper.
func (m *MockRepository) ReceiptCount() int {
	return len(m.receipts)
}

func (m *MockRepository) StartRun(_ context.Context, r *RunRecord) error {
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}
	r.ID = m.nextRun
	m.nextRun++
	clone := *r
	m.runs[r.ID] = &clone
	return nil
}

func (m *MockRepository) FinishRun(_ context.Context, r *RunRecord) error {
	if r.FinishedAt == nil {
		now := time.Now().UTC()
		r.FinishedAt = &now
	}
	clone := *r
	m.runs[r.ID] = &clone
	return nil
}

func (m *MockRepository) GetRun(_ context.Context, id int64) (*RunRecord, error) {
	r, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	clone := *r
	return &clone, nil
}

func (m *MockRepository) ListRuns(_ context.Context, limit int) ([]*RunRecord, error) {
	if m.ListRunsErr != nil {
		return nil, m.ListRunsErr
	}
	var out []*RunRecord
	for id := m.nextRun - 1; id >= 1 && len(out) < limit; id-- {
		if r, ok := m.runs[id]; ok {
			clone := *r
			out = append(out, &clone)
		}
	}
	return out, nil
}

// WithTx snapshots state, runs fn, and restores the snapshot if fn fails.
func (m *MockRepository) WithTx(_ context.Context, fn func(Repository) error) error {
	snapshot := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

func (m *MockRepository) Close() error { return nil }

type mockSnapshot struct {
	receipts     map[int64]*ledger.Receipt
	transactions map[int64]*ledger.BankTransaction
	groups       map[uuid.UUID]*ledger.SplitGroup
	audit        []*ledger.AuditEntry
	nextReceipt  int64
	nextTx       int64
}

func (m *MockRepository) snapshot() mockSnapshot {
	snap := mockSnapshot{
		receipts:     make(map[int64]*ledger.Receipt, len(m.receipts)),
		transactions: make(map[int64]*ledger.BankTransaction, len(m.transactions)),
		groups:       make(map[uuid.UUID]*ledger.SplitGroup, len(m.groups)),
		audit:        make([]*ledger.AuditEntry, len(m.audit)),
		nextReceipt:  m.nextReceipt,
		nextTx:       m.nextTx,
	}
	for id, r := range m.receipts {
		clone := *r
		snap.receipts[id] = &clone
	}
	for id, t := range m.transactions {
		clone := *t
		snap.transactions[id] = &clone
	}
	for id, g := range m.groups {
		clone := *g
		snap.groups[id] = &clone
	}
	copy(snap.audit, m.audit)
	return snap
}

func (m *MockRepository) restore(snap mockSnapshot) {
	m.receipts = snap.receipts
	m.transactions = snap.transactions
	m.groups = snap.groups
	m.audit = snap.audit
	m.nextReceipt = snap.nextReceipt
	m.nextTx = snap.nextTx
}
