package ledger

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brightbooks/recon-engine/internal/domain/money"
)

// BankTransaction is a bank-statement line item.
//
// At most one receipt (or exactly the receipts of one split group whose
// amounts sum to this transaction's amount within one cent) may be linked
// to a given transaction.
type BankTransaction struct {
	ID               int64       `json:"transaction_id"`
	AccountID        string      `json:"account_id"`
	Date             money.Date  `json:"date"`
	Debit            money.Money `json:"debit_amount"`
	Credit           money.Money `json:"credit_amount"`
	Description      string      `json:"description"`
	MatchedReceiptID *int64      `json:"matched_receipt_id,omitempty"`
	MatchedGroupID   *uuid.UUID  `json:"matched_group_id,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

// Amount returns the transaction magnitude, whichever side is non-zero.
func (t *BankTransaction) Amount() money.Money {
	if !t.Debit.IsZero() {
		return t.Debit
	}
	return t.Credit
}

// IsCredit reports whether the transaction is money in.
func (t *BankTransaction) IsCredit() bool {
	return !t.Credit.IsZero()
}

// Linked reports whether the transaction already has a matched receipt
// or split group.
func (t *BankTransaction) Linked() bool {
	return t.MatchedReceiptID != nil || t.MatchedGroupID != nil
}

// Validate checks the structural invariants of a transaction.
func (t *BankTransaction) Validate() error {
	if strings.TrimSpace(t.AccountID) == "" {
		return errors.New("transaction account is required")
	}
	if t.Date.IsZero() {
		return errors.New("transaction date is required")
	}
	if t.Debit.IsNegative() || t.Credit.IsNegative() {
		return errors.New("debit and credit amounts must be non-negative")
	}
	if !t.Debit.IsZero() && !t.Credit.IsZero() {
		return errors.New("at most one of debit and credit may be non-zero")
	}
	if t.MatchedReceiptID != nil && t.MatchedGroupID != nil {
		return errors.New("transaction cannot be linked to both a receipt and a split group")
	}
	return nil
}
