// Package reconcile runs the matching pipeline over a bounded batch of
// unmatched records and applies the results in one storage transaction.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/brightbooks/recon-engine/internal/domain/classifier"
	"github.com/brightbooks/recon-engine/internal/domain/ledger"
	"github.com/brightbooks/recon-engine/internal/domain/matcher"
	"github.com/brightbooks/recon-engine/internal/domain/splitter"
	"github.com/brightbooks/recon-engine/internal/infrastructure/config"
	"github.com/brightbooks/recon-engine/internal/infrastructure/storage"
)

// State names one phase of a reconciliation run.
type State string

const (
	StateIdle            State = "idle"
	StateLoading         State = "loading-unmatched"
	StateMatching        State = "matching"
	StateResolvingSplits State = "resolving-splits"
	StateClassifying     State = "classifying-duplicates"
	StateApplying        State = "applying"
	StateCommitted       State = "committed"
	StateRolledBack      State = "rolled-back"
)

// ManualReviewItem is a receipt whose top candidates tied in confidence.
// It stays unmatched; the candidates are surfaced for a human to pick.
type ManualReviewItem struct {
	ReceiptID  int64                   `json:"receipt_id"`
	Candidates []ledger.MatchCandidate `json:"candidates"`
}

// Summary is the result of one reconciliation run.
type Summary struct {
	RunID        int64                     `json:"run_id"`
	State        State                     `json:"state"`
	DryRun       bool                      `json:"dry_run"`
	Matched      int                       `json:"matched"`
	Grouped      int                       `json:"grouped"`
	Flagged      int                       `json:"flagged"`
	Skipped      int                       `json:"skipped"`
	Links        []ledger.LinkNotification `json:"links,omitempty"`
	ManualReview []ManualReviewItem        `json:"manual_review,omitempty"`
	Deleted      []int64                   `json:"deleted_receipt_ids,omitempty"`
}

// plannedLink is a 1:1 link decided during Matching.
type plannedLink struct {
	receipt   *ledger.Receipt
	candidate ledger.MatchCandidate
}

// plannedGroup is a split group decided during ResolvingSplits.
type plannedGroup struct {
	group  *ledger.SplitGroup
	anchor *ledger.BankTransaction
}

// plannedDeletion is an audited duplicate removal decided during
// ClassifyingDuplicates.
type plannedDeletion struct {
	remove *ledger.Receipt
	keep   *ledger.Receipt
}

// Orchestrator drives one run through its states. All decisions are made
// against an in-memory plan; nothing touches storage until Applying, and
// Applying is a single transaction.
type Orchestrator struct {
	repo       storage.Repository
	matcher    *matcher.Matcher
	classifier *classifier.Classifier
	notifier   Notifier
	log        *slog.Logger
	cfg        config.ReconcileConfig
	state      State
}

// New creates an orchestrator. A nil notifier falls back to logging.
func New(repo storage.Repository, cfg config.ReconcileConfig, logger *slog.Logger, notifier Notifier) (*Orchestrator, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = config.DefaultReconcile().BatchSize
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = config.DefaultReconcile().MinConfidence
	}
	if cfg.MaxSplitMembers <= 0 {
		cfg.MaxSplitMembers = config.DefaultReconcile().MaxSplitMembers
	}

	m, err := matcher.NewMatcher(matcher.Config{
		AmountToleranceCents: cfg.AmountToleranceCents,
		DateWindowDays:       cfg.DateWindowDays,
	})
	if err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}

	return &Orchestrator{
		repo:       repo,
		matcher:    m,
		classifier: classifier.New(nil),
		notifier:   notifier,
		log:        logger,
		cfg:        cfg,
		state:      StateIdle,
	}, nil
}

// State returns the current run phase.
func (o *Orchestrator) State() State {
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.log.Debug("state transition", "from", string(o.state), "to", string(s))
	o.state = s
}

// Run executes one reconciliation pass. In dry-run mode the plan is
// built and summarized but nothing is written except the run record.
// Cancellation is honored between states; once Applying starts, the
// batch commits or rolls back as a whole.
func (o *Orchestrator) Run(ctx context.Context, dryRun bool) (*Summary, error) {
	summary := &Summary{DryRun: dryRun}

	run := &storage.RunRecord{State: "running", DryRun: dryRun}
	if err := o.repo.StartRun(ctx, run); err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	summary.RunID = run.ID

	err := o.run(ctx, summary)

	run.State = string(o.state)
	run.Matched = summary.Matched
	run.Grouped = summary.Grouped
	run.Flagged = summary.Flagged
	run.Skipped = summary.Skipped
	if err != nil {
		run.Error = err.Error()
	}
	now := time.Now().UTC()
	run.FinishedAt = &now
	if finishErr := o.repo.FinishRun(ctx, run); finishErr != nil {
		o.log.Error("failed to record run outcome", "run_id", run.ID, "error", finishErr)
	}

	summary.State = o.state
	return summary, err
}

func (o *Orchestrator) run(ctx context.Context, summary *Summary) error {
	o.setState(StateLoading)
	receipts, err := o.repo.UnmatchedReceipts(ctx, o.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("load unmatched receipts: %w", err)
	}
	transactions, err := o.repo.UnmatchedTransactions(ctx, o.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("load unmatched transactions: %w", err)
	}
	o.log.Info("loaded batch",
		"receipts", len(receipts), "transactions", len(transactions))

	o.setState(StateMatching)
	links, leftoverReceipts := o.match(receipts, transactions, summary)

	if err := ctx.Err(); err != nil {
		return err
	}

	o.setState(StateResolvingSplits)
	groups, leftoverReceipts := o.resolveSplits(leftoverReceipts, transactions, links)

	if err := ctx.Err(); err != nil {
		return err
	}

	o.setState(StateClassifying)
	deletions, err := o.classifyDuplicates(ctx, leftoverReceipts, summary)
	if err != nil {
		return fmt.Errorf("classify duplicates: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	summary.Matched = len(links)
	summary.Grouped = len(groups)
	// Whatever is left after links, groups and deletions stays unmatched.
	summary.Skipped = len(leftoverReceipts) - len(deletions)

	if summary.DryRun {
		o.setState(StateCommitted)
		o.report(ctx, summary, links, groups, deletions)
		return nil
	}

	o.setState(StateApplying)
	if err := o.apply(ctx, links, groups, deletions); err != nil {
		o.setState(StateRolledBack)
		return fmt.Errorf("%w: %v", ledger.ErrRolledBack, err)
	}

	o.setState(StateCommitted)
	o.report(ctx, summary, links, groups, deletions)
	return nil
}

// match plans 1:1 links. Each transaction is consumed by at most one
// receipt; receipts are visited in ID order so runs are deterministic.
func (o *Orchestrator) match(receipts []*ledger.Receipt, transactions []*ledger.BankTransaction, summary *Summary) ([]plannedLink, []*ledger.Receipt) {
	usedTx := make(map[int64]bool)
	var links []plannedLink
	var leftovers []*ledger.Receipt

	for _, receipt := range receipts {
		pool := make([]*ledger.BankTransaction, 0, len(transactions))
		for _, t := range transactions {
			if !usedTx[t.ID] {
				pool = append(pool, t)
			}
		}

		candidates := o.matcher.FindCandidates(receipt, pool)
		candidates = atOrAbove(candidates, o.cfg.MinConfidence)
		if len(candidates) == 0 {
			leftovers = append(leftovers, receipt)
			continue
		}
		if matcher.AmbiguousTop(candidates) {
			summary.ManualReview = append(summary.ManualReview, ManualReviewItem{
				ReceiptID:  receipt.ID,
				Candidates: candidates,
			})
			leftovers = append(leftovers, receipt)
			o.log.Warn("ambiguous match, leaving unmatched for review",
				"receipt_id", receipt.ID, "candidates", len(candidates))
			continue
		}

		best := candidates[0]
		usedTx[best.TransactionID] = true
		links = append(links, plannedLink{receipt: receipt, candidate: best})
	}
	return links, leftovers
}

func atOrAbove(candidates []ledger.MatchCandidate, min float64) []ledger.MatchCandidate {
	kept := candidates[:0]
	for _, c := range candidates {
		if c.Confidence >= min {
			kept = append(kept, c)
		}
	}
	return kept
}

// splitVendorAffinity is the minimum vendor similarity for two receipts
// to be considered the same merchant when forming split groups.
const splitVendorAffinity = 0.5

// clusterByVendor partitions receipts into same-merchant clusters.
// Each receipt joins the first existing cluster whose seed vendor it
// resembles, so the partition is deterministic for a given input order.
func clusterByVendor(pool []*ledger.Receipt) [][]*ledger.Receipt {
	var clusters [][]*ledger.Receipt
	for _, r := range pool {
		placed := false
		for i, cluster := range clusters {
			if matcher.VendorSimilarity(r.Vendor(), cluster[0].Vendor()) >= splitVendorAffinity {
				clusters[i] = append(cluster, r)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, []*ledger.Receipt{r})
		}
	}
	return clusters
}

// resolveSplits tries to explain each still-unmatched transaction as a
// sum of same-vendor leftover receipts dated near it.
func (o *Orchestrator) resolveSplits(receipts []*ledger.Receipt, transactions []*ledger.BankTransaction, links []plannedLink) ([]plannedGroup, []*ledger.Receipt) {
	usedTx := make(map[int64]bool, len(links))
	for _, l := range links {
		usedTx[l.candidate.TransactionID] = true
	}
	usedReceipt := make(map[int64]bool)

	window := o.cfg.DateWindowDays
	if window <= 0 {
		window = config.DefaultReconcile().DateWindowDays
	}

	var groups []plannedGroup
	for _, anchor := range transactions {
		if usedTx[anchor.ID] {
			continue
		}

		var pool []*ledger.Receipt
		for _, r := range receipts {
			if usedReceipt[r.ID] || r.Credit != anchor.IsCredit() {
				continue
			}
			if !r.Date.WithinDays(anchor.Date, window) {
				continue
			}
			pool = append(pool, r)
		}

		// Members of a split must share a vendor. Unrelated receipts
		// that happen to sum to the anchor are not a split.
		for _, cluster := range clusterByVendor(pool) {
			if len(cluster) < 2 {
				continue
			}
			members := make([]splitter.Member, len(cluster))
			for i, r := range cluster {
				members[i] = splitter.Member{ID: r.ID, Amount: r.Amount}
			}

			group, err := splitter.ResolveSplit(anchor.Amount(), members, splitter.Options{
				ToleranceCents: o.cfg.AmountToleranceCents,
				MaxMembers:     o.cfg.MaxSplitMembers,
				Kind:           ledger.GroupOfReceipts,
			})
			if err != nil {
				// No subset of this vendor explains the transaction.
				continue
			}

			for _, id := range group.MemberIDs {
				usedReceipt[id] = true
			}
			usedTx[anchor.ID] = true
			groups = append(groups, plannedGroup{group: group, anchor: anchor})
			o.log.Info("resolved split",
				"transaction_id", anchor.ID,
				"members", len(group.MemberIDs),
				"total", group.ExpectedTotal.String())
			break
		}
	}

	var leftovers []*ledger.Receipt
	for _, r := range receipts {
		if !usedReceipt[r.ID] {
			leftovers = append(leftovers, r)
		}
	}
	return groups, leftovers
}

// classifyDuplicates inspects still-unmatched receipts that share a
// vendor and amount and plans audited deletions for true duplicates.
// The lowest-ID record of a duplicate pair survives.
func (o *Orchestrator) classifyDuplicates(ctx context.Context, receipts []*ledger.Receipt, summary *Summary) ([]plannedDeletion, error) {
	byKey := make(map[string][]*ledger.Receipt)
	for _, r := range receipts {
		key := strings.ToLower(r.Vendor()) + "|" + r.Amount.String() + "|" + strconv.FormatBool(r.Credit)
		byKey[key] = append(byKey[key], r)
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var deletions []plannedDeletion
	removed := make(map[int64]bool)

	for _, key := range keys {
		group := byKey[key]
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })

		history, err := o.repo.ReceiptsByVendor(ctx, group[0].Vendor(), 200)
		if err != nil {
			return nil, err
		}

		for i := 0; i < len(group)-1; i++ {
			a, b := group[i], group[i+1]
			if removed[a.ID] || removed[b.ID] {
				continue
			}
			verdict := o.classifier.Classify(a, b, history)
			if verdict == classifier.VerdictNotDuplicate {
				continue
			}
			summary.Flagged++
			o.log.Info("duplicate pair classified",
				"vendor", a.Vendor(),
				"amount", a.Amount.String(),
				"receipt_a", a.ID, "receipt_b", b.ID,
				"verdict", string(verdict))
			if verdict != classifier.VerdictTrueDuplicate {
				continue
			}
			remove := classifier.DeletionCandidate(a, b)
			if remove == nil {
				continue
			}
			keep := a
			if remove.ID == a.ID {
				keep = b
			}
			removed[remove.ID] = true
			deletions = append(deletions, plannedDeletion{remove: remove, keep: keep})
		}
	}
	return deletions, nil
}

// apply persists the whole plan in one transaction. Any failure rolls
// everything back.
func (o *Orchestrator) apply(ctx context.Context, links []plannedLink, groups []plannedGroup, deletions []plannedDeletion) error {
	return o.repo.WithTx(ctx, func(repo storage.Repository) error {
		for _, l := range links {
			if err := repo.LinkReceipt(ctx, l.receipt.ID, l.candidate.TransactionID); err != nil {
				return fmt.Errorf("link receipt %d to transaction %d: %w",
					l.receipt.ID, l.candidate.TransactionID, err)
			}
			after := *l.receipt
			after.BankingTransactionID = &l.candidate.TransactionID
			entry, err := ledger.NewAuditEntry(ledger.ActionLink, "receipts",
				strconv.FormatInt(l.receipt.ID, 10), l.receipt, &after,
				fmt.Sprintf("auto-link %s confidence %.2f", l.candidate.Rule, l.candidate.Confidence))
			if err != nil {
				return err
			}
			if err := repo.AppendAudit(ctx, entry); err != nil {
				return err
			}
		}

		for _, g := range groups {
			if err := repo.SaveSplitGroup(ctx, g.group, g.anchor.ID); err != nil {
				return fmt.Errorf("save split group for transaction %d: %w", g.anchor.ID, err)
			}
			entry, err := ledger.NewAuditEntry(ledger.ActionSplitAssign, "split_groups",
				g.group.ID.String(), nil, g.group,
				fmt.Sprintf("split of transaction %d into %d receipts", g.anchor.ID, len(g.group.MemberIDs)))
			if err != nil {
				return err
			}
			if err := repo.AppendAudit(ctx, entry); err != nil {
				return err
			}
		}

		for _, d := range deletions {
			if err := repo.DeleteReceipt(ctx, d.remove.ID); err != nil {
				return fmt.Errorf("delete duplicate receipt %d: %w", d.remove.ID, err)
			}
			entry, err := ledger.NewAuditEntry(ledger.ActionDelete, "receipts",
				strconv.FormatInt(d.remove.ID, 10), d.remove, nil,
				fmt.Sprintf("true duplicate of receipt %d", d.keep.ID))
			if err != nil {
				return err
			}
			if err := repo.AppendAudit(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
}

// report fills the summary's notification lists and emits them.
func (o *Orchestrator) report(ctx context.Context, summary *Summary, links []plannedLink, groups []plannedGroup, deletions []plannedDeletion) {
	for _, l := range links {
		receiptID := l.receipt.ID
		n := ledger.LinkNotification{
			ReceiptID:     &receiptID,
			TransactionID: l.candidate.TransactionID,
			Confidence:    l.candidate.Confidence,
			RuleApplied:   l.candidate.Rule,
		}
		summary.Links = append(summary.Links, n)
		if !summary.DryRun {
			o.notifier.NotifyLink(ctx, n)
		}
	}
	for _, g := range groups {
		groupID := g.group.ID
		n := ledger.LinkNotification{
			SplitGroupID:  &groupID,
			TransactionID: g.anchor.ID,
			Confidence:    1.0,
			RuleApplied:   "split-sum",
		}
		summary.Links = append(summary.Links, n)
		if !summary.DryRun {
			o.notifier.NotifyLink(ctx, n)
		}
	}
	for _, d := range deletions {
		summary.Deleted = append(summary.Deleted, d.remove.ID)
	}
}
