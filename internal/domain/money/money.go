// Package money provides exact decimal currency and calendar-date value
// types for the reconciliation engine.
//
// Amounts are backed by arbitrary-precision decimals so that
// sum(parts) == whole comparisons are exact at the cent level. Binary
// floating point is never used for stored amounts.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an immutable monetary amount. All operations return new values.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{d: decimal.Zero}

// FromString parses a decimal string like "125.96" into Money.
func FromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Money{d: d}, nil
}

// MustFromString parses a decimal string and panics on failure.
// Intended for constants and tests.
func MustFromString(s string) Money {
	m, err := FromString(s)
	if err != nil {
		panic(err)
	}
	return m
}

// FromCents builds Money from integer minor units.
func FromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -2)}
}

// FromFloat converts a float64 to Money, rounding to the nearest cent.
// Only for boundary input (CSV columns parsed elsewhere as floats).
func FromFloat(f float64) Money {
	return Money{d: decimal.NewFromFloat(f).Round(2)}
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{d: m.d.Add(other.d)}
}

// Sub returns m - other.
func (m Money) Sub(other Money) Money {
	return Money{d: m.d.Sub(other.d)}
}

// Neg returns -m.
func (m Money) Neg() Money {
	return Money{d: m.d.Neg()}
}

// Abs returns the absolute value of m.
func (m Money) Abs() Money {
	return Money{d: m.d.Abs()}
}

// Cmp compares m and other: -1 if m < other, 0 if equal, 1 if m > other.
func (m Money) Cmp(other Money) int {
	return m.d.Cmp(other.d)
}

// Equal reports whether m and other are exactly equal.
func (m Money) Equal(other Money) bool {
	return m.d.Equal(other.d)
}

// IsZero reports whether m is exactly zero.
func (m Money) IsZero() bool {
	return m.d.IsZero()
}

// IsNegative reports whether m is less than zero.
func (m Money) IsNegative() bool {
	return m.d.IsNegative()
}

// IsPositive reports whether m is greater than zero.
func (m Money) IsPositive() bool {
	return m.d.IsPositive()
}

// Cents returns the amount in integer minor units, rounded to the
// nearest cent.
func (m Money) Cents() int64 {
	return m.d.Round(2).Shift(2).IntPart()
}

// WithinCents reports whether |m - other| <= cents.
// The boundary itself is inside the tolerance.
func (m Money) WithinCents(other Money, cents int64) bool {
	diff := m.d.Sub(other.d).Abs()
	return diff.Cmp(decimal.New(cents, -2)) <= 0
}

// DeltaCents returns (m - other) in signed minor units.
func (m Money) DeltaCents(other Money) int64 {
	return m.d.Sub(other.d).Round(2).Shift(2).IntPart()
}

// String renders the amount with two decimal places.
func (m Money) String() string {
	return m.d.StringFixed(2)
}

// Decimal exposes the underlying decimal for callers that need to do
// their own arithmetic (e.g. tax extraction rates).
func (m Money) Decimal() decimal.Decimal {
	return m.d
}

// MarshalJSON encodes the amount as a JSON string to preserve precision.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts both string and numeric JSON amounts.
func (m *Money) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Fall back to a bare JSON number.
		var d decimal.Decimal
		if err := json.Unmarshal(data, &d); err != nil {
			return fmt.Errorf("invalid money value %s", data)
		}
		m.d = d
		return nil
	}
	parsed, err := FromString(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value implements driver.Valuer, storing the amount as TEXT.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Scan implements sql.Scanner for TEXT and REAL columns.
func (m *Money) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		parsed, err := FromString(v)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	case []byte:
		parsed, err := FromString(string(v))
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	case float64:
		*m = FromFloat(v)
		return nil
	case int64:
		*m = Money{d: decimal.NewFromInt(v)}
		return nil
	case nil:
		*m = Zero
		return nil
	}
	return fmt.Errorf("cannot scan %T into Money", src)
}

// ExtractTax returns the tax portion of a tax-included gross amount:
// gross * rate / (1 + rate), rounded to the cent.
// The engine itself never assumes a rate; this exists for callers
// outside the matching pipeline.
func ExtractTax(gross Money, rate decimal.Decimal) (Money, error) {
	if rate.IsNegative() {
		return Money{}, errors.New("tax rate cannot be negative")
	}
	one := decimal.NewFromInt(1)
	tax := gross.d.Mul(rate).Div(one.Add(rate)).Round(2)
	return Money{d: tax}, nil
}
