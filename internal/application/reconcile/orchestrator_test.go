package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightbooks/recon-engine/internal/domain/ledger"
	"github.com/brightbooks/recon-engine/internal/domain/money"
	"github.com/brightbooks/recon-engine/internal/infrastructure/config"
	"github.com/brightbooks/recon-engine/internal/infrastructure/storage"
)

type recordingNotifier struct {
	notifications []ledger.LinkNotification
}

func (n *recordingNotifier) NotifyLink(_ context.Context, notification ledger.LinkNotification) {
	n.notifications = append(n.notifications, notification)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestOrchestrator(t *testing.T, repo storage.Repository, notifier Notifier) *Orchestrator {
	t.Helper()
	o, err := New(repo, config.DefaultReconcile(), testLogger(), notifier)
	require.NoError(t, err)
	return o
}

func addReceipt(t *testing.T, repo *storage.MockRepository, vendor, amount, date string) *ledger.Receipt {
	t.Helper()
	r := &ledger.Receipt{
		VendorRaw:     vendor,
		Amount:        money.MustFromString(amount),
		Date:          money.MustParseDate(date),
		PaymentMethod: ledger.PaymentCard,
	}
	require.NoError(t, repo.InsertReceipt(context.Background(), r))
	return r
}

func addTransaction(t *testing.T, repo *storage.MockRepository, date, debit, description string) *ledger.BankTransaction {
	t.Helper()
	tx := &ledger.BankTransaction{
		AccountID:   "chequing",
		Date:        money.MustParseDate(date),
		Debit:       money.MustFromString(debit),
		Description: description,
	}
	require.NoError(t, repo.InsertTransaction(context.Background(), tx))
	return tx
}

func TestRunAutoLinksSingleTopCandidate(t *testing.T) {
	repo := storage.NewMockRepository()
	notifier := &recordingNotifier{}
	o := newTestOrchestrator(t, repo, notifier)
	ctx := context.Background()

	// Cheque recorded Dec 23, cleared Dec 20: exact amount, 3-day delta.
	r := addReceipt(t, repo, "CHEQUE 482", "500.00", "2025-12-23")
	tx := addTransaction(t, repo, "2025-12-20", "500.00", "CHEQUE 482")

	summary, err := o.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, summary.State)
	assert.Equal(t, 1, summary.Matched)
	assert.Equal(t, 0, summary.Skipped)
	assert.Empty(t, summary.ManualReview)

	got, err := repo.GetReceipt(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, got.BankingTransactionID)
	assert.Equal(t, tx.ID, *got.BankingTransactionID)

	require.Len(t, notifier.notifications, 1)
	assert.Equal(t, tx.ID, notifier.notifications[0].TransactionID)

	// The link is audited.
	var linked bool
	for _, e := range repo.AuditEntries() {
		if e.Action == ledger.ActionLink {
			linked = true
		}
	}
	assert.True(t, linked)
}

func TestRunResolvesSplitGroup(t *testing.T) {
	repo := storage.NewMockRepository()
	o := newTestOrchestrator(t, repo, &recordingNotifier{})
	ctx := context.Background()

	// One card settlement covering three same-day receipts.
	a := addReceipt(t, repo, "FAS GAS", "80.00", "2025-03-14")
	b := addReceipt(t, repo, "FAS GAS CARWASH", "40.20", "2025-03-14")
	c := addReceipt(t, repo, "FAS GAS SNACKS", "5.76", "2025-03-14")
	tx := addTransaction(t, repo, "2025-03-14", "125.96", "POS PURCHASE FAS GAS")

	summary, err := o.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, summary.State)
	assert.Equal(t, 0, summary.Matched)
	assert.Equal(t, 1, summary.Grouped)
	assert.Equal(t, 0, summary.Skipped)

	gotTx, err := repo.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	require.NotNil(t, gotTx.MatchedGroupID)

	group, err := repo.GetSplitGroup(ctx, *gotTx.MatchedGroupID)
	require.NoError(t, err)
	require.NotNil(t, group)
	assert.ElementsMatch(t, []int64{a.ID, b.ID, c.ID}, group.MemberIDs)
	assert.True(t, group.ExpectedTotal.Equal(money.MustFromString("125.96")))
}

func TestRunDoesNotSplitAcrossUnrelatedVendors(t *testing.T) {
	repo := storage.NewMockRepository()
	o := newTestOrchestrator(t, repo, &recordingNotifier{})
	ctx := context.Background()

	// Two unrelated purchases happen to sum to the fuel charge. They
	// must not be grouped under it.
	a := addReceipt(t, repo, "STAPLES", "60.00", "2025-04-02")
	b := addReceipt(t, repo, "TIM HORTONS", "40.00", "2025-04-02")
	tx := addTransaction(t, repo, "2025-04-02", "100.00", "FAS GAS LACOMBE")

	summary, err := o.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, summary.State)
	assert.Equal(t, 0, summary.Matched)
	assert.Equal(t, 0, summary.Grouped)
	assert.Equal(t, 2, summary.Skipped)

	gotTx, err := repo.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Nil(t, gotTx.MatchedGroupID)

	for _, id := range []int64{a.ID, b.ID} {
		got, err := repo.GetReceipt(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, got.BankingTransactionID)
	}
}

func TestRunAmbiguousTieGoesToManualReview(t *testing.T) {
	repo := storage.NewMockRepository()
	o := newTestOrchestrator(t, repo, &recordingNotifier{})
	ctx := context.Background()

	r := addReceipt(t, repo, "HOME DEPOT", "100.00", "2025-05-10")
	addTransaction(t, repo, "2025-05-10", "100.00", "HOME DEPOT #42")
	addTransaction(t, repo, "2025-05-10", "100.00", "HOME DEPOT #43")

	summary, err := o.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Matched)
	require.Len(t, summary.ManualReview, 1)
	assert.Equal(t, r.ID, summary.ManualReview[0].ReceiptID)
	assert.Len(t, summary.ManualReview[0].Candidates, 2)

	// The receipt stays unmatched.
	got, err := repo.GetReceipt(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, got.Matched())
}

func TestRunDeletesTrueDuplicate(t *testing.T) {
	repo := storage.NewMockRepository()
	o := newTestOrchestrator(t, repo, &recordingNotifier{})
	ctx := context.Background()

	// Same payroll remittance keyed twice from two source batches. The
	// raw vendor spellings differ; the canonical vendor matches.
	first := addReceipt(t, repo, "RECEIVER GENERAL", "23577.00", "2025-01-15")
	second := &ledger.Receipt{
		VendorRaw:       "RECEIVER GEN PAYMENT",
		CanonicalVendor: "RECEIVER GENERAL",
		Amount:          money.MustFromString("23577.00"),
		Date:            money.MustParseDate("2025-01-15"),
		PaymentMethod:   ledger.PaymentCard,
	}
	require.NoError(t, repo.InsertReceipt(ctx, second))

	summary, err := o.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, summary.State)
	assert.Equal(t, 1, summary.Flagged)
	require.Len(t, summary.Deleted, 1)
	assert.Equal(t, second.ID, summary.Deleted[0])

	// Earliest row survives, the deletion is audited with a snapshot.
	kept, err := repo.GetReceipt(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, kept)

	gone, err := repo.GetReceipt(ctx, second.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	var deleteEntry *ledger.AuditEntry
	for _, e := range repo.AuditEntries() {
		if e.Action == ledger.ActionDelete {
			deleteEntry = e
		}
	}
	require.NotNil(t, deleteEntry)
	assert.NotNil(t, deleteEntry.Before)
	assert.Contains(t, deleteEntry.Reason, "true duplicate")
}

func TestRunNetflixCadenceIsNotDeleted(t *testing.T) {
	repo := storage.NewMockRepository()
	o := newTestOrchestrator(t, repo, &recordingNotifier{})
	ctx := context.Background()

	addReceipt(t, repo, "NETFLIX", "20.99", "2025-01-05")
	addReceipt(t, repo, "NETFLIX", "20.99", "2025-02-05")

	summary, err := o.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Flagged)
	assert.Empty(t, summary.Deleted)
	assert.Equal(t, 2, repo.ReceiptCount())
}

func TestRunRollsBackWhenApplyFails(t *testing.T) {
	repo := storage.NewMockRepository()
	o := newTestOrchestrator(t, repo, &recordingNotifier{})
	ctx := context.Background()

	r := addReceipt(t, repo, "CHEQUE 482", "500.00", "2025-12-23")
	addTransaction(t, repo, "2025-12-20", "500.00", "CHEQUE 482")
	repo.LinkReceiptErr = errors.New("disk I/O error")

	summary, err := o.Run(ctx, false)
	require.ErrorIs(t, err, ledger.ErrRolledBack)
	assert.Equal(t, StateRolledBack, summary.State)

	// Nothing from the failed batch may stick.
	got, getErr := repo.GetReceipt(ctx, r.ID)
	require.NoError(t, getErr)
	assert.False(t, got.Matched())
	assert.Empty(t, repo.AuditEntries())

	// The failure is recorded on the run.
	run, runErr := repo.GetRun(ctx, summary.RunID)
	require.NoError(t, runErr)
	require.NotNil(t, run)
	assert.Equal(t, string(StateRolledBack), run.State)
	assert.Contains(t, run.Error, "disk I/O error")
}

func TestRunDryRunPlansWithoutWriting(t *testing.T) {
	repo := storage.NewMockRepository()
	notifier := &recordingNotifier{}
	o := newTestOrchestrator(t, repo, notifier)
	ctx := context.Background()

	r := addReceipt(t, repo, "CHEQUE 482", "500.00", "2025-12-23")
	addTransaction(t, repo, "2025-12-20", "500.00", "CHEQUE 482")

	summary, err := o.Run(ctx, true)
	require.NoError(t, err)
	assert.True(t, summary.DryRun)
	assert.Equal(t, 1, summary.Matched)
	require.Len(t, summary.Links, 1)

	got, getErr := repo.GetReceipt(ctx, r.ID)
	require.NoError(t, getErr)
	assert.False(t, got.Matched())
	assert.Empty(t, repo.AuditEntries())
	assert.Empty(t, notifier.notifications)

	run, runErr := repo.GetRun(ctx, summary.RunID)
	require.NoError(t, runErr)
	require.NotNil(t, run)
	assert.True(t, run.DryRun)
	assert.Equal(t, string(StateCommitted), run.State)
}

func TestRunHonorsCancellation(t *testing.T) {
	repo := storage.NewMockRepository()
	o := newTestOrchestrator(t, repo, &recordingNotifier{})

	addReceipt(t, repo, "CHEQUE 482", "500.00", "2025-12-23")
	addTransaction(t, repo, "2025-12-20", "500.00", "CHEQUE 482")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Run(ctx, false)
	require.ErrorIs(t, err, context.Canceled)

	// Nothing was applied.
	got, getErr := repo.GetReceipt(context.Background(), 1)
	require.NoError(t, getErr)
	assert.False(t, got.Matched())
}

func TestRunLeavesUnexplainedDiscrepancyUnmatched(t *testing.T) {
	repo := storage.NewMockRepository()
	o := newTestOrchestrator(t, repo, &recordingNotifier{})
	ctx := context.Background()

	// No subset of receipts explains the withdrawal; it stays open and
	// the receipts stay open with it.
	addReceipt(t, repo, "SHOP SUPPLIES", "120.00", "2025-07-02")
	addReceipt(t, repo, "SHOP SUPPLIES LTD", "300.00", "2025-07-03")
	tx := addTransaction(t, repo, "2025-07-02", "795.00", "WITHDRAWAL")

	summary, err := o.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Matched)
	assert.Equal(t, 0, summary.Grouped)
	assert.Equal(t, 2, summary.Skipped)

	gotTx, getErr := repo.GetTransaction(ctx, tx.ID)
	require.NoError(t, getErr)
	assert.False(t, gotTx.Linked())
}
