// Package ledger defines the core record types of the reconciliation
// engine: receipts, banking transactions, split groups, match candidates
// and the append-only audit entry, plus the shared error taxonomy.
package ledger

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brightbooks/recon-engine/internal/domain/money"
)

// PaymentMethod is how a receipt was paid.
type PaymentMethod string

const (
	PaymentCash           PaymentMethod = "cash"
	PaymentCheck          PaymentMethod = "check"
	PaymentCard           PaymentMethod = "card"
	PaymentBankTransfer   PaymentMethod = "bank-transfer"
	PaymentTradeOfService PaymentMethod = "trade-of-service"
	PaymentUnknown        PaymentMethod = "unknown"
)

// IsValid reports whether the payment method is one of the known values.
func (p PaymentMethod) IsValid() bool {
	switch p {
	case PaymentCash, PaymentCheck, PaymentCard, PaymentBankTransfer,
		PaymentTradeOfService, PaymentUnknown:
		return true
	}
	return false
}

// ParsePaymentMethod maps free-form input to a PaymentMethod,
// defaulting to unknown.
func ParsePaymentMethod(s string) PaymentMethod {
	p := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case "cheque":
		return PaymentCheck
	case "debit", "credit", "visa", "mastercard":
		return PaymentCard
	case "etransfer", "e-transfer", "eft":
		return PaymentBankTransfer
	}
	if p.IsValid() {
		return p
	}
	return PaymentUnknown
}

// Receipt is an expense/vendor record.
//
// A receipt with BankingTransactionID set is matched; once matched it is
// immutable except through an explicit audited update. SplitGroupID and
// BankingTransactionID are mutually exclusive unless the split group
// itself has been fully linked.
type Receipt struct {
	ID              int64         `json:"receipt_id"`
	VendorRaw       string        `json:"vendor_name_raw"`
	CanonicalVendor string        `json:"canonical_vendor,omitempty"`
	Amount          money.Money   `json:"amount"`
	Credit          bool          `json:"credit"`
	Date            money.Date    `json:"date"`
	Description     string        `json:"description,omitempty"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
	SourceReference string        `json:"source_reference,omitempty"`

	// Optional bookkeeping attributes. Present only when the source
	// batch carries them and the schema defines the matching column.
	GLAccount     *string `json:"gl_account,omitempty"`
	VehicleID     *string `json:"vehicle_id,omitempty"`
	EmployeeID    *string `json:"employee_id,omitempty"`
	ReserveNumber *string `json:"reserve_number,omitempty"`

	SplitGroupID         *uuid.UUID `json:"split_group_id,omitempty"`
	BankingTransactionID *int64     `json:"banking_transaction_id,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// Vendor returns the canonical vendor when resolved, the raw name otherwise.
func (r *Receipt) Vendor() string {
	if r.CanonicalVendor != "" {
		return r.CanonicalVendor
	}
	return r.VendorRaw
}

// Matched reports whether the receipt is linked to a banking transaction.
func (r *Receipt) Matched() bool {
	return r.BankingTransactionID != nil
}

// InSplit reports whether the receipt belongs to a split group.
func (r *Receipt) InSplit() bool {
	return r.SplitGroupID != nil
}

// SameVendor compares vendors case-insensitively, preferring canonical names.
func (r *Receipt) SameVendor(other *Receipt) bool {
	return strings.EqualFold(r.Vendor(), other.Vendor())
}

// Validate checks the structural invariants of a receipt.
func (r *Receipt) Validate() error {
	if strings.TrimSpace(r.VendorRaw) == "" {
		return errors.New("receipt vendor is required")
	}
	if r.Amount.IsNegative() {
		return errors.New("receipt amount must be a non-negative magnitude")
	}
	if r.Date.IsZero() {
		return errors.New("receipt date is required")
	}
	if !r.PaymentMethod.IsValid() {
		return errors.New("unknown payment method")
	}
	if r.SplitGroupID != nil && r.BankingTransactionID != nil {
		return errors.New("receipt cannot be both direct-linked and split-grouped")
	}
	return nil
}
