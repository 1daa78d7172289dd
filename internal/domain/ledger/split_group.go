package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brightbooks/recon-engine/internal/domain/money"
)

// SplitToleranceCents is the allowed gap between a split group's member
// sum and its expected total.
const SplitToleranceCents = 1

// GroupKind identifies which side of the ledger a split group collects.
type GroupKind string

const (
	GroupOfReceipts     GroupKind = "receipts"
	GroupOfTransactions GroupKind = "transactions"
)

// SplitGroup is a named set of receipts (or, symmetrically, transactions)
// whose amounts jointly satisfy one counterpart record.
//
// MemberIDs are stored in descending-amount order; by convention the
// largest piece is the cash/primary payment and comes first.
type SplitGroup struct {
	ID            uuid.UUID     `json:"split_group_id"`
	Kind          GroupKind     `json:"kind"`
	MemberIDs     []int64       `json:"member_ids"`
	MemberAmounts []money.Money `json:"member_amounts"`
	ExpectedTotal money.Money   `json:"expected_total"`
	CreatedAt     time.Time     `json:"created_at"`
}

// MemberSum returns the sum of all member amounts.
func (g *SplitGroup) MemberSum() money.Money {
	sum := money.Zero
	for _, a := range g.MemberAmounts {
		sum = sum.Add(a)
	}
	return sum
}

// Validate enforces the split-group invariants: at least two members,
// aligned member slices, and a member sum within one cent of the
// expected total. A single-member group must collapse to a direct match.
func (g *SplitGroup) Validate() error {
	if len(g.MemberIDs) < 2 {
		return ErrNotASplit
	}
	if len(g.MemberIDs) != len(g.MemberAmounts) {
		return fmt.Errorf("split group %s: %d member ids but %d amounts",
			g.ID, len(g.MemberIDs), len(g.MemberAmounts))
	}
	sum := g.MemberSum()
	if !sum.WithinCents(g.ExpectedTotal, SplitToleranceCents) {
		return fmt.Errorf("split group %s: members sum to %s, expected %s: %w",
			g.ID, sum, g.ExpectedTotal, ErrSplitNotFound)
	}
	return nil
}

// MatchCandidate is an ephemeral proposed pairing produced by the matcher.
// It is never persisted.
type MatchCandidate struct {
	ReceiptID        int64       `json:"receipt_id"`
	TransactionID    int64       `json:"transaction_id"`
	AmountDelta      money.Money `json:"amount_delta"`
	DateDeltaDays    int         `json:"date_delta_days"`
	VendorSimilarity float64     `json:"vendor_similarity"`
	Confidence       float64     `json:"confidence"`
	Rule             string      `json:"rule"`
}

// LinkNotification is the output-only record emitted after a successful
// match or split, for consumption by reporting/UI layers.
type LinkNotification struct {
	ReceiptID     *int64     `json:"receipt_id,omitempty"`
	SplitGroupID  *uuid.UUID `json:"split_group_id,omitempty"`
	TransactionID int64      `json:"transaction_id"`
	Confidence    float64    `json:"confidence"`
	RuleApplied   string     `json:"rule_applied"`
}
