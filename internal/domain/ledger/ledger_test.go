package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightbooks/recon-engine/internal/domain/money"
)

func TestParsePaymentMethod(t *testing.T) {
	tests := []struct {
		in   string
		want PaymentMethod
	}{
		{"cash", PaymentCash},
		{"Cheque", PaymentCheck},
		{"VISA", PaymentCard},
		{"e-transfer", PaymentBankTransfer},
		{"trade-of-service", PaymentTradeOfService},
		{"???", PaymentUnknown},
		{"", PaymentUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParsePaymentMethod(tt.in), "input %q", tt.in)
	}
}

func TestReceipt_Validate(t *testing.T) {
	valid := Receipt{
		VendorRaw:     "FAS GAS",
		Amount:        money.MustFromString("40.20"),
		Date:          money.MustParseDate("2019-01-09"),
		PaymentMethod: PaymentCard,
	}
	require.NoError(t, valid.Validate())

	negative := valid
	negative.Amount = money.MustFromString("-1.00")
	assert.Error(t, negative.Validate())

	noVendor := valid
	noVendor.VendorRaw = "  "
	assert.Error(t, noVendor.Validate())

	bothLinks := valid
	txID := int64(7)
	groupID := uuid.New()
	bothLinks.BankingTransactionID = &txID
	bothLinks.SplitGroupID = &groupID
	assert.Error(t, bothLinks.Validate())
}

func TestReceipt_VendorPrefersCanonical(t *testing.T) {
	r := Receipt{VendorRaw: "FAS GAS #42 LACOMBE", CanonicalVendor: "Fas Gas"}
	assert.Equal(t, "Fas Gas", r.Vendor())

	r.CanonicalVendor = ""
	assert.Equal(t, "FAS GAS #42 LACOMBE", r.Vendor())
}

func TestBankTransaction_Validate(t *testing.T) {
	valid := BankTransaction{
		AccountID: "chequing-001",
		Date:      money.MustParseDate("2025-12-20"),
		Debit:     money.MustFromString("500.00"),
	}
	require.NoError(t, valid.Validate())

	both := valid
	both.Credit = money.MustFromString("1.00")
	assert.Error(t, both.Validate())

	assert.True(t, valid.Amount().Equal(money.MustFromString("500.00")))
	assert.False(t, valid.IsCredit())
}

func TestSplitGroup_Validate(t *testing.T) {
	g := SplitGroup{
		ID:   uuid.New(),
		Kind: GroupOfReceipts,
		MemberIDs: []int64{1, 2, 3},
		MemberAmounts: []money.Money{
			money.MustFromString("80.00"),
			money.MustFromString("40.20"),
			money.MustFromString("5.76"),
		},
		ExpectedTotal: money.MustFromString("125.96"),
	}
	require.NoError(t, g.Validate())

	// One cent off still passes; two cents off fails.
	g.ExpectedTotal = money.MustFromString("125.97")
	assert.NoError(t, g.Validate())
	g.ExpectedTotal = money.MustFromString("125.98")
	assert.ErrorIs(t, g.Validate(), ErrSplitNotFound)

	single := SplitGroup{
		ID:            uuid.New(),
		Kind:          GroupOfReceipts,
		MemberIDs:     []int64{1},
		MemberAmounts: []money.Money{money.MustFromString("80.00")},
		ExpectedTotal: money.MustFromString("80.00"),
	}
	assert.ErrorIs(t, single.Validate(), ErrNotASplit)
}

func TestNewAuditEntry_Snapshots(t *testing.T) {
	r := Receipt{VendorRaw: "Test Vendor", Amount: money.MustFromString("100.00")}

	entry, err := NewAuditEntry(ActionDelete, "receipts", "59820", r, nil, "duplicate removal: kept #59819")
	require.NoError(t, err)

	assert.Equal(t, ActionDelete, entry.Action)
	assert.NotEmpty(t, entry.Before)
	assert.Empty(t, entry.After)
	assert.False(t, entry.Timestamp.IsZero())
	assert.Contains(t, entry.Reason, "kept #59819")
}
