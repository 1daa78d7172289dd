// Package matcher proposes ranked receipt ↔ banking-transaction pairings.
//
// The matcher is a pure function over its inputs: it never mutates
// records and its output ordering is fully deterministic so that
// reconciliation runs are reproducible.
//
// Candidate filtering:
//   - Transaction date within the symmetric date window (default 7 days)
//   - |transaction amount - receipt amount| within the amount tolerance
//     (default 1 cent; widened to $1.00 for fee-adjusted cases)
//   - Already-linked transactions are excluded unless re-evaluation is
//     explicitly requested (unlink-and-re-match maintenance)
package matcher

import (
	"fmt"
	"sort"

	"github.com/brightbooks/recon-engine/internal/domain/ledger"
	"github.com/brightbooks/recon-engine/internal/domain/money"
)

// Confidence tiers. Ties at the top tier are surfaced as ambiguous by
// the caller rather than auto-resolved.
const (
	ConfidenceHigh = 0.95
	ConfidenceMid  = 0.75
	ConfidenceLow  = 0.40
	ConfidenceWeak = 0.20
)

// vendorMatchThreshold is the minimum similarity treated as a vendor match.
const vendorMatchThreshold = 0.5

// Config holds matcher tolerances. Zero values are replaced by defaults
// in NewMatcher.
type Config struct {
	AmountToleranceCents int64 // default 1
	DateWindowDays       int   // default 7, symmetric
	IncludeLinked        bool  // re-evaluate already-linked transactions
}

// DefaultConfig returns the standard tolerances.
func DefaultConfig() Config {
	return Config{
		AmountToleranceCents: 1,
		DateWindowDays:       7,
	}
}

// Matcher ranks candidate transactions for receipts.
type Matcher struct {
	config Config
}

// NewMatcher validates the config and creates a matcher. Negative
// tolerances are rejected at this boundary.
func NewMatcher(config Config) (*Matcher, error) {
	if config.AmountToleranceCents < 0 {
		return nil, fmt.Errorf("amount tolerance %d cents: %w",
			config.AmountToleranceCents, ledger.ErrToleranceViolation)
	}
	if config.DateWindowDays < 0 {
		return nil, fmt.Errorf("date window %d days: %w",
			config.DateWindowDays, ledger.ErrToleranceViolation)
	}
	if config.AmountToleranceCents == 0 {
		config.AmountToleranceCents = 1
	}
	if config.DateWindowDays == 0 {
		config.DateWindowDays = 7
	}
	return &Matcher{config: config}, nil
}

// FindCandidates returns every transaction in the pool that falls inside
// the amount and date windows for the receipt, ranked best-first.
//
// Ordering: confidence descending, then smallest |date delta|, then
// smallest |amount delta|, then lowest transaction ID.
func (m *Matcher) FindCandidates(receipt *ledger.Receipt, pool []*ledger.BankTransaction) []ledger.MatchCandidate {
	var candidates []ledger.MatchCandidate

	for _, tx := range pool {
		if tx.Linked() && !m.config.IncludeLinked {
			continue
		}
		// A credit receipt (refund) only matches money-in lines and
		// vice versa.
		if receipt.Credit != tx.IsCredit() {
			continue
		}
		if !receipt.Date.WithinDays(tx.Date, m.config.DateWindowDays) {
			continue
		}
		if !receipt.Amount.WithinCents(tx.Amount(), m.config.AmountToleranceCents) {
			continue
		}

		similarity := VendorSimilarity(receipt.Vendor(), tx.Description)
		dateDelta := money.DaysBetween(receipt.Date, tx.Date)
		confidence, rule := score(receipt, tx, similarity, dateDelta)

		candidates = append(candidates, ledger.MatchCandidate{
			ReceiptID:        receipt.ID,
			TransactionID:    tx.ID,
			AmountDelta:      tx.Amount().Sub(receipt.Amount),
			DateDeltaDays:    dateDelta,
			VendorSimilarity: similarity,
			Confidence:       confidence,
			Rule:             rule,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if abs(a.DateDeltaDays) != abs(b.DateDeltaDays) {
			return abs(a.DateDeltaDays) < abs(b.DateDeltaDays)
		}
		da, db := absCents(a.AmountDelta), absCents(b.AmountDelta)
		if da != db {
			return da < db
		}
		return a.TransactionID < b.TransactionID
	})

	return candidates
}

// AmbiguousTop reports whether the two best candidates tie at top
// confidence, which callers must surface for manual review instead of
// auto-resolving.
func AmbiguousTop(candidates []ledger.MatchCandidate) bool {
	return len(candidates) >= 2 && candidates[0].Confidence == candidates[1].Confidence
}

// score assigns a confidence tier.
//
// A receipt with no vendor at all cannot be penalized for a missing
// vendor match, so exact-amount close-date candidates still reach the
// top tier (bare bank transfers often carry no vendor text).
func score(receipt *ledger.Receipt, tx *ledger.BankTransaction, similarity float64, dateDelta int) (float64, string) {
	exactAmount := receipt.Amount.Equal(tx.Amount())
	closeDate := abs(dateDelta) <= 3
	vendorOK := similarity >= vendorMatchThreshold || receipt.Vendor() == ""

	switch {
	case exactAmount && closeDate && vendorOK:
		return ConfidenceHigh, "exact-amount-close-date"
	case exactAmount:
		return ConfidenceMid, "exact-amount-wide-date"
	case similarity >= vendorMatchThreshold:
		return ConfidenceLow, "near-amount-vendor-match"
	default:
		return ConfidenceWeak, "near-amount-only"
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func absCents(m money.Money) int64 {
	c := m.Cents()
	if c < 0 {
		return -c
	}
	return c
}
