package money

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoney_SumOfPartsIsExact(t *testing.T) {
	// The classic float trap: 80.00 + 40.20 + 5.76 must equal 125.96 exactly.
	parts := []Money{
		MustFromString("80.00"),
		MustFromString("40.20"),
		MustFromString("5.76"),
	}

	total := Zero
	for _, p := range parts {
		total = total.Add(p)
	}

	assert.True(t, total.Equal(MustFromString("125.96")))
	assert.Equal(t, int64(12596), total.Cents())
}

func TestMoney_WithinCentsBoundary(t *testing.T) {
	a := MustFromString("100.00")

	tests := []struct {
		name   string
		other  string
		cents  int64
		within bool
	}{
		{"exact", "100.00", 1, true},
		{"at boundary", "100.01", 1, true},
		{"one cent beyond", "100.02", 1, false},
		{"below at boundary", "99.99", 1, true},
		{"below beyond", "99.98", 1, false},
		{"dollar tolerance at boundary", "101.00", 100, true},
		{"dollar tolerance beyond", "101.01", 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.within, a.WithinCents(MustFromString(tt.other), tt.cents))
		})
	}
}

func TestMoney_FromCents(t *testing.T) {
	m := FromCents(12596)
	assert.Equal(t, "125.96", m.String())
	assert.Equal(t, int64(12596), m.Cents())
}

func TestMoney_DeltaCents(t *testing.T) {
	a := MustFromString("100.00")
	b := MustFromString("99.75")
	assert.Equal(t, int64(25), a.DeltaCents(b))
	assert.Equal(t, int64(-25), b.DeltaCents(a))
}

func TestMoney_JSONRoundTrip(t *testing.T) {
	m := MustFromString("23577.00")

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `"23577.00"`, string(data))

	var back Money
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, m.Equal(back))
}

func TestMoney_ScanText(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan("42.50"))
	assert.Equal(t, "42.50", m.String())

	require.NoError(t, m.Scan([]byte("7.99")))
	assert.Equal(t, "7.99", m.String())
}

func TestExtractTax(t *testing.T) {
	// GST 5%, tax-included: 105.00 gross contains 5.00 tax.
	gross := MustFromString("105.00")
	rate := decimal.NewFromFloat(0.05)

	tax, err := ExtractTax(gross, rate)
	require.NoError(t, err)
	assert.Equal(t, "5.00", tax.String())
}

func TestExtractTax_NegativeRateRejected(t *testing.T) {
	_, err := ExtractTax(MustFromString("10.00"), decimal.NewFromFloat(-0.05))
	assert.Error(t, err)
}

func TestDaysBetween(t *testing.T) {
	a := MustParseDate("2025-12-20")
	b := MustParseDate("2025-12-23")

	assert.Equal(t, 3, DaysBetween(a, b))
	assert.Equal(t, -3, DaysBetween(b, a))
	assert.Equal(t, 0, DaysBetween(a, a))
}

func TestDate_WithinDaysBoundary(t *testing.T) {
	a := MustParseDate("2025-12-20")

	assert.True(t, a.WithinDays(MustParseDate("2025-12-27"), 7))
	assert.False(t, a.WithinDays(MustParseDate("2025-12-28"), 7))
	assert.True(t, a.WithinDays(MustParseDate("2025-12-13"), 7))
	assert.False(t, a.WithinDays(MustParseDate("2025-12-12"), 7))
}

func TestDateOf_TruncatesTime(t *testing.T) {
	ts := time.Date(2025, 12, 23, 17, 45, 9, 0, time.UTC)
	d := DateOf(ts)
	assert.Equal(t, "2025-12-23", d.String())
}
