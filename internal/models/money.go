package models

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// minorUnitExponent is the number of decimal places held in minor units (paise/cents).
const minorUnitExponent = 2

// Money is an amount in integer minor currency units.
// Arithmetic on Money never goes through floating point; decimal conversion
// happens only when parsing request input or rendering a response.
type Money int64

// ParseMoney converts a decimal string such as "10000.50" into Money.
// More than two fractional digits is an error rather than a silent rounding.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	shifted := d.Shift(minorUnitExponent)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("invalid amount %q: at most %d decimal places allowed", s, minorUnitExponent)
	}
	if shifted.Abs().GreaterThan(decimal.NewFromInt(1 << 62)) {
		return 0, fmt.Errorf("invalid amount %q: out of range", s)
	}
	return Money(shifted.IntPart()), nil
}

// MustMoney is ParseMoney for constants in tests and seed data.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Decimal returns the amount as a decimal in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -minorUnitExponent)
}

// String renders the amount with exactly two decimal places.
func (m Money) String() string {
	return m.Decimal().StringFixed(minorUnitExponent)
}

// BasisPoints returns m * bps / 10000, truncated toward zero.
func (m Money) BasisPoints(bps int64) Money {
	return Money(int64(m) * bps / 10000)
}

// MarshalJSON renders Money as a decimal string to avoid float precision loss in clients.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts either a decimal string or a JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("failed to unmarshal money: %w", err)
		}
		s = n.String()
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
