// Package classifier decides whether two records with equal
// vendor+amount are a true duplicate, a legitimate recurring charge, or
// a protected bank fee.
//
// The rule ordering carries a deliberate safety bias: a record is only
// ever proposed for deletion when the true-duplicate rule applies
// unambiguously; every other kind of repeat needs evidence beyond the
// amount.
package classifier

import (
	"strings"

	"github.com/brightbooks/recon-engine/internal/domain/ledger"
	"github.com/brightbooks/recon-engine/internal/domain/money"
)

// Verdict is the classification of a candidate pair.
type Verdict string

const (
	VerdictTrueDuplicate       Verdict = "true-duplicate"
	VerdictLegitimateRecurring Verdict = "legitimate-recurring"
	VerdictProtectedFee        Verdict = "protected-fee"
	VerdictNotDuplicate        Verdict = "not-duplicate"
)

// recurringMinDayGap is the smallest date spread treated as a recurring
// cadence (weekly subscriptions are the tightest seen in practice).
const recurringMinDayGap = 7

// DefaultFeePatterns matches bank fee lines that repeat legitimately:
// e-transfer fees, NSF charges, card service fees.
var DefaultFeePatterns = []string{
	"e-transfer fee",
	"etransfer fee",
	"nsf",
	"service charge",
	"card service fee",
	"overdraft",
}

// Classifier applies the duplicate decision policy.
type Classifier struct {
	feePatterns []string
}

// New creates a classifier with the given fee patterns, defaulting to
// DefaultFeePatterns.
func New(feePatterns []string) *Classifier {
	if len(feePatterns) == 0 {
		feePatterns = DefaultFeePatterns
	}
	lowered := make([]string, len(feePatterns))
	for i, p := range feePatterns {
		lowered[i] = strings.ToLower(p)
	}
	return &Classifier{feePatterns: lowered}
}

// Classify evaluates a pair of same-vendor, same-amount receipts.
// history is the vendor's other receipts, used for recurring-cadence and
// fee-reversal evidence; it may include a and b themselves.
//
// Rules, in order:
//  1. identical date+amount+vendor with at most one of the pair linked
//     → true duplicate (fee-pattern records are exempt; see rule 3)
//  2. the amount recurs across materially different dates → recurring
//  3. fee-pattern vendor/description with no reversal → protected fee
//  4. cash payment → amount repetition alone is never enough
//  5. otherwise → not a duplicate
func (c *Classifier) Classify(a, b *ledger.Receipt, history []*ledger.Receipt) Verdict {
	if !a.SameVendor(b) || !a.Amount.Equal(b.Amount) {
		return VerdictNotDuplicate
	}

	bothLinked := a.Matched() && b.Matched()
	if a.Date.Equal(b.Date) && !bothLinked && !c.isFee(a) && !c.isFee(b) {
		return VerdictTrueDuplicate
	}

	if c.recursAcrossDates(a, b, history) {
		return VerdictLegitimateRecurring
	}

	if c.isFee(a) || c.isFee(b) {
		fee := a
		if !c.isFee(a) {
			fee = b
		}
		if !hasReversal(fee, history) {
			return VerdictProtectedFee
		}
	}

	if a.PaymentMethod == ledger.PaymentCash || b.PaymentMethod == ledger.PaymentCash {
		return VerdictNotDuplicate
	}

	return VerdictNotDuplicate
}

// DeletionCandidate picks which of a true-duplicate pair to remove: the
// unlinked one, or the later-created (higher ID) when neither is linked.
// The earliest row of a duplicate set is always kept.
func DeletionCandidate(a, b *ledger.Receipt) *ledger.Receipt {
	if a.Matched() && !b.Matched() {
		return b
	}
	if b.Matched() && !a.Matched() {
		return a
	}
	if a.ID < b.ID {
		return b
	}
	return a
}

// recursAcrossDates reports whether the pair's amount shows up on dates
// far enough apart to look like a subscription or lease cadence.
func (c *Classifier) recursAcrossDates(a, b *ledger.Receipt, history []*ledger.Receipt) bool {
	gap := money.DaysBetween(a.Date, b.Date)
	if gap < 0 {
		gap = -gap
	}
	if gap >= recurringMinDayGap {
		return true
	}

	// Same-or-near dates: look for further occurrences of the amount in
	// the vendor history.
	for _, h := range history {
		if h.ID == a.ID || h.ID == b.ID {
			continue
		}
		if !h.SameVendor(a) || !h.Amount.Equal(a.Amount) {
			continue
		}
		d := money.DaysBetween(a.Date, h.Date)
		if d < 0 {
			d = -d
		}
		if d >= recurringMinDayGap {
			return true
		}
	}
	return false
}

// isFee matches the receipt's vendor or description against the known
// fee patterns.
func (c *Classifier) isFee(r *ledger.Receipt) bool {
	vendor := strings.ToLower(r.Vendor())
	desc := strings.ToLower(r.Description)
	for _, p := range c.feePatterns {
		if strings.Contains(vendor, p) || strings.Contains(desc, p) {
			return true
		}
	}
	return false
}

// hasReversal looks for a credit of the same amount near the fee date;
// a reversed fee loses its protection.
func hasReversal(fee *ledger.Receipt, history []*ledger.Receipt) bool {
	for _, h := range history {
		if h.ID == fee.ID || !h.Credit {
			continue
		}
		if h.Amount.Equal(fee.Amount) && h.Date.WithinDays(fee.Date, 30) {
			return true
		}
	}
	return false
}
