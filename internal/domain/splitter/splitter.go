// Package splitter assembles split groups: sets of receipts (or,
// symmetrically, transactions) whose amounts jointly sum to one
// counterpart record within a one-cent tolerance.
package splitter

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/brightbooks/recon-engine/internal/domain/ledger"
	"github.com/brightbooks/recon-engine/internal/domain/money"
)

// MaxMembers caps the subset-sum search depth. Real-world splits are
// 2–4 pieces; the cap guarantees termination on large candidate pools.
const MaxMembers = 6

// Member is one candidate piece of a split.
type Member struct {
	ID     int64
	Amount money.Money
}

// Options control the subset-sum search. Zero values use defaults.
type Options struct {
	ToleranceCents int64 // default 1
	MaxMembers     int   // default 6
	Kind           ledger.GroupKind
}

// ResolveSplit searches candidateMembers for a subset summing to
// anchorAmount within tolerance and returns it as a validated SplitGroup.
//
// Candidates are considered largest-piece-first (the observed convention
// is that the largest component is the cash/primary payment), with
// bounded backtracking when the greedy path overshoots. Members of the
// returned group are listed in descending-amount order.
//
// Returns ledger.ErrNotASplit when the only subset within tolerance has a
// single member (the caller should record a direct 1:1 match instead) and
// ledger.ErrSplitNotFound when no subset fits.
func ResolveSplit(anchorAmount money.Money, candidateMembers []Member, opts Options) (*ledger.SplitGroup, error) {
	if opts.ToleranceCents < 0 {
		return nil, fmt.Errorf("split tolerance %d cents: %w",
			opts.ToleranceCents, ledger.ErrToleranceViolation)
	}
	if opts.ToleranceCents == 0 {
		opts.ToleranceCents = ledger.SplitToleranceCents
	}
	if opts.MaxMembers <= 0 {
		opts.MaxMembers = MaxMembers
	}
	if opts.Kind == "" {
		opts.Kind = ledger.GroupOfReceipts
	}
	if !anchorAmount.IsPositive() {
		return nil, fmt.Errorf("anchor amount %s must be positive", anchorAmount)
	}

	// Each member must be strictly smaller than the target; a piece
	// equal to the whole is a direct match, not a split part.
	eligible := make([]Member, 0, len(candidateMembers))
	for _, m := range candidateMembers {
		if m.Amount.IsPositive() && m.Amount.Cmp(anchorAmount) < 0 {
			eligible = append(eligible, m)
		}
	}
	if len(eligible) == 0 {
		if hasDirectMatch(anchorAmount, candidateMembers, opts.ToleranceCents) {
			return nil, ledger.ErrNotASplit
		}
		return nil, ledger.ErrSplitNotFound
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if c := eligible[i].Amount.Cmp(eligible[j].Amount); c != 0 {
			return c > 0
		}
		return eligible[i].ID < eligible[j].ID
	})

	s := &search{
		members:   eligible,
		target:    anchorAmount,
		tolerance: opts.ToleranceCents,
		maxDepth:  opts.MaxMembers,
	}
	subset := s.run(0, money.Zero, nil)
	if subset == nil {
		if hasDirectMatch(anchorAmount, candidateMembers, opts.ToleranceCents) {
			return nil, ledger.ErrNotASplit
		}
		return nil, ledger.ErrSplitNotFound
	}

	group := &ledger.SplitGroup{
		ID:            uuid.New(),
		Kind:          opts.Kind,
		MemberIDs:     make([]int64, 0, len(subset)),
		MemberAmounts: make([]money.Money, 0, len(subset)),
		ExpectedTotal: anchorAmount,
		CreatedAt:     time.Now().UTC(),
	}
	for _, m := range subset {
		group.MemberIDs = append(group.MemberIDs, m.ID)
		group.MemberAmounts = append(group.MemberAmounts, m.Amount)
	}
	if err := group.Validate(); err != nil {
		return nil, err
	}
	return group, nil
}

// hasDirectMatch reports whether some single candidate alone satisfies
// the anchor, which makes the case a 1:1 match rather than a split.
func hasDirectMatch(anchor money.Money, members []Member, toleranceCents int64) bool {
	for _, m := range members {
		if m.Amount.WithinCents(anchor, toleranceCents) {
			return true
		}
	}
	return false
}

type search struct {
	members   []Member
	target    money.Money
	tolerance int64
	maxDepth  int
}

// run explores include/exclude decisions over members in descending
// amount order. Including each largest remaining piece first makes the
// greedy path the first one tried; backtracking handles overshoot.
func (s *search) run(idx int, sum money.Money, chosen []Member) []Member {
	if len(chosen) >= 2 && sum.WithinCents(s.target, s.tolerance) {
		result := make([]Member, len(chosen))
		copy(result, chosen)
		return result
	}
	if idx >= len(s.members) || len(chosen) >= s.maxDepth {
		return nil
	}

	// Prune: even taking every remaining piece cannot reach the target.
	remaining := money.Zero
	for _, m := range s.members[idx:] {
		remaining = remaining.Add(m.Amount)
	}
	if sum.Add(remaining).Cmp(s.target.Sub(money.FromCents(s.tolerance))) < 0 {
		return nil
	}

	next := sum.Add(s.members[idx].Amount)
	// Overshoot beyond tolerance: this piece cannot be part of the sum.
	if next.Sub(s.target).Cents() <= s.tolerance {
		if found := s.run(idx+1, next, append(chosen, s.members[idx])); found != nil {
			return found
		}
	}
	return s.run(idx+1, sum, chosen)
}
