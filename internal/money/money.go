// Package money provides the fixed-point amount type used for every monetary
// value in the point-of-sale ledger.
package money

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits carried by a Money value.
const Scale = 2

var (
	// ErrInvalidAmount is returned when an amount cannot be parsed.
	ErrInvalidAmount = errors.New("money: invalid amount")
	// ErrPrecision is returned when an amount carries more fractional digits than Scale.
	ErrPrecision = errors.New("money: too many fractional digits")
	// ErrOverflow is returned when arithmetic leaves the int64 range.
	ErrOverflow = errors.New("money: overflow")
)

var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// Money is an amount expressed in minor units (cents). All arithmetic is
// integer-only.
//
// Examples:
//   - Money(450) = 4.50
//   - Money(1000) = 10.00
type Money int64

// FromMinor wraps a minor-unit count.
func FromMinor(minor int64) Money { return Money(minor) }

// Minor returns the amount in minor units.
func (m Money) Minor() int64 { return int64(m) }

// Parse converts a decimal string such as "4.5" or "10" into Money. Amounts
// with more than Scale fractional digits are rejected rather than rounded.
func Parse(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, clip(s))
	}
	m, err := FromDecimal(d)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", err, clip(s))
	}
	return m, nil
}

// MustParse is like Parse but panics on error. Intended for fixtures.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// maxDigits is the number of decimal digits in math.MaxInt64.
const maxDigits = 19

// FromDecimal converts an exact decimal into Money. The exponent is checked
// before any rescaling so that inputs such as 1e10000000 fail in constant time.
func FromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsZero() {
		return 0, nil
	}
	digits := d.NumDigits()
	exp := int64(d.Exponent())
	if int64(digits)+exp > maxDigits {
		return 0, ErrOverflow
	}
	// A non-zero coefficient has at most digits-1 trailing zeros.
	if exp < -Scale && -exp-Scale >= int64(digits) {
		return 0, ErrPrecision
	}
	shifted := d.Shift(Scale)
	if !shifted.IsInteger() {
		return 0, ErrPrecision
	}
	if shifted.GreaterThan(maxMinor) || shifted.LessThan(minMinor) {
		return 0, ErrOverflow
	}
	return Money(shifted.IntPart()), nil
}

// clip shortens user input quoted in error messages.
func clip(s string) string {
	const limit = 32
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

// Decimal returns the exact decimal representation.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -Scale)
}

// Add adds two amounts. Use AddChecked where overflow must be detected.
func (m Money) Add(other Money) Money { return m + other }

// Sub subtracts other from m.
func (m Money) Sub(other Money) Money { return m - other }

// Mul multiplies the amount by a quantity.
func (m Money) Mul(qty int64) Money { return Money(int64(m) * qty) }

// AddChecked adds two amounts and reports int64 overflow.
func (m Money) AddChecked(other Money) (Money, error) {
	a, b := int64(m), int64(other)
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, ErrOverflow
	}
	return Money(a + b), nil
}

// MulChecked multiplies the amount by qty and reports int64 overflow.
func (m Money) MulChecked(qty int64) (Money, error) {
	a := int64(m)
	if a == 0 || qty == 0 {
		return 0, nil
	}
	r := a * qty
	if r/qty != a || (a == -1 && qty == math.MinInt64) || (qty == -1 && a == math.MinInt64) {
		return 0, ErrOverflow
	}
	return Money(r), nil
}

// Sum adds all values, reporting overflow.
func Sum(values ...Money) (Money, error) {
	var total Money
	for _, v := range values {
		var err error
		total, err = total.AddChecked(v)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m == 0 }

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool { return m < 0 }

// FormatMajor returns the amount in major units with Scale digits: "4.50".
func (m Money) FormatMajor() string {
	return m.Decimal().StringFixed(Scale)
}

// String implements fmt.Stringer.
func (m Money) String() string { return m.FormatMajor() }

// MarshalJSON emits the amount as a JSON number in major units.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.FormatMajor()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
