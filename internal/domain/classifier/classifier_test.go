package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brightbooks/recon-engine/internal/domain/ledger"
	"github.com/brightbooks/recon-engine/internal/domain/money"
)

func receipt(id int64, vendor, amount, date string, method ledger.PaymentMethod) *ledger.Receipt {
	return &ledger.Receipt{
		ID:            id,
		VendorRaw:     vendor,
		Amount:        money.MustFromString(amount),
		Date:          money.MustParseDate(date),
		PaymentMethod: method,
	}
}

func linked(r *ledger.Receipt, txID int64) *ledger.Receipt {
	r.BankingTransactionID = &txID
	return r
}

func TestClassify_TrueDuplicateWithOneLinked(t *testing.T) {
	// Two identical RECEIVER GENERAL remittances, one already linked:
	// the unlinked one is the deletion candidate.
	c := New(nil)

	a := linked(receipt(59819, "RECEIVER GENERAL", "23577.00", "2025-06-15", ledger.PaymentBankTransfer), 400)
	b := receipt(59820, "RECEIVER GENERAL", "23577.00", "2025-06-15", ledger.PaymentBankTransfer)

	assert.Equal(t, VerdictTrueDuplicate, c.Classify(a, b, nil))
	assert.Equal(t, b, DeletionCandidate(a, b))
}

func TestClassify_BothLinkedIsNotDuplicate(t *testing.T) {
	c := New(nil)

	a := linked(receipt(1, "RECEIVER GENERAL", "23577.00", "2025-06-15", ledger.PaymentBankTransfer), 400)
	b := linked(receipt(2, "RECEIVER GENERAL", "23577.00", "2025-06-15", ledger.PaymentBankTransfer), 401)

	assert.Equal(t, VerdictNotDuplicate, c.Classify(a, b, nil))
}

func TestClassify_BothUnlinkedKeepsLowestID(t *testing.T) {
	c := New(nil)

	a := receipt(100, "Test Vendor", "50.00", "2025-06-15", ledger.PaymentCard)
	b := receipt(101, "Test Vendor", "50.00", "2025-06-15", ledger.PaymentCard)

	assert.Equal(t, VerdictTrueDuplicate, c.Classify(a, b, nil))
	assert.Equal(t, b, DeletionCandidate(a, b))
}

func TestClassify_RecurringSubscription(t *testing.T) {
	c := New(nil)

	a := receipt(1, "Netflix", "16.49", "2025-01-05", ledger.PaymentCard)
	b := receipt(2, "Netflix", "16.49", "2025-02-05", ledger.PaymentCard)

	assert.Equal(t, VerdictLegitimateRecurring, c.Classify(a, b, nil))
}

func TestClassify_RecurringEvidenceFromHistory(t *testing.T) {
	// Near-identical dates, but history shows the amount repeating
	// monthly: lease payments, never duplicates.
	c := New(nil)

	a := receipt(10, "Acme Leasing", "795.00", "2025-03-01", ledger.PaymentCheck)
	b := receipt(11, "Acme Leasing", "795.00", "2025-03-02", ledger.PaymentCheck)
	// Same-day rule does not apply (dates differ) and both unlinked.
	history := []*ledger.Receipt{
		receipt(8, "Acme Leasing", "795.00", "2025-01-01", ledger.PaymentCheck),
		receipt(9, "Acme Leasing", "795.00", "2025-02-01", ledger.PaymentCheck),
	}

	assert.Equal(t, VerdictLegitimateRecurring, c.Classify(a, b, history))
}

func TestClassify_ProtectedFeeSameDay(t *testing.T) {
	// Two NSF charges on the same day repeat legitimately; the fee
	// pattern shields them from the same-day duplicate rule.
	c := New(nil)

	a := receipt(1, "SCOTIABANK", "48.00", "2025-04-10", ledger.PaymentBankTransfer)
	a.Description = "NSF CHARGE"
	b := receipt(2, "SCOTIABANK", "48.00", "2025-04-10", ledger.PaymentBankTransfer)
	b.Description = "NSF CHARGE"

	assert.Equal(t, VerdictProtectedFee, c.Classify(a, b, nil))
}

func TestClassify_ReversedFeeLosesProtection(t *testing.T) {
	c := New(nil)

	a := receipt(1, "SCOTIABANK", "48.00", "2025-04-10", ledger.PaymentBankTransfer)
	a.Description = "NSF CHARGE"
	b := receipt(2, "SCOTIABANK", "48.00", "2025-04-12", ledger.PaymentBankTransfer)
	b.Description = "NSF CHARGE"

	reversal := receipt(3, "SCOTIABANK", "48.00", "2025-04-11", ledger.PaymentBankTransfer)
	reversal.Credit = true

	verdict := c.Classify(a, b, []*ledger.Receipt{reversal})
	assert.NotEqual(t, VerdictProtectedFee, verdict)
	// Reversal evidence removes fee protection but never upgrades the
	// pair to auto-deletion.
	assert.NotEqual(t, VerdictTrueDuplicate, verdict)
}

func TestClassify_ReversalWindowAnchorsOnFeeRecord(t *testing.T) {
	// Only b carries the fee pattern, and the reversal lands 28 days
	// after b but 33 after a. The window must follow the fee record.
	c := New(nil)

	a := receipt(1, "SCOTIABANK", "48.00", "2025-04-01", ledger.PaymentBankTransfer)
	b := receipt(2, "SCOTIABANK", "48.00", "2025-04-06", ledger.PaymentBankTransfer)
	b.Description = "NSF CHARGE"

	reversal := receipt(3, "FEE REFUND", "48.00", "2025-05-04", ledger.PaymentBankTransfer)
	reversal.Credit = true

	verdict := c.Classify(a, b, []*ledger.Receipt{reversal})
	assert.NotEqual(t, VerdictProtectedFee, verdict)
	assert.Equal(t, VerdictNotDuplicate, verdict)
}

func TestClassify_CashNeverAmountOnlyDuplicate(t *testing.T) {
	c := New(nil)

	a := receipt(1, "Farm Supply", "200.00", "2025-05-01", ledger.PaymentCash)
	b := receipt(2, "Farm Supply", "200.00", "2025-05-03", ledger.PaymentCash)

	assert.Equal(t, VerdictNotDuplicate, c.Classify(a, b, nil))
}

func TestClassify_DifferentVendorOrAmount(t *testing.T) {
	c := New(nil)

	a := receipt(1, "Vendor A", "10.00", "2025-05-01", ledger.PaymentCard)
	b := receipt(2, "Vendor B", "10.00", "2025-05-01", ledger.PaymentCard)
	assert.Equal(t, VerdictNotDuplicate, c.Classify(a, b, nil))

	c2 := receipt(3, "Vendor A", "10.01", "2025-05-01", ledger.PaymentCard)
	assert.Equal(t, VerdictNotDuplicate, c.Classify(a, c2, nil))
}
