// Package types provides common type aliases and money arithmetic.
package types

import (
	"github.com/shopspring/decimal"
)

// Money is a fixed-point monetary value with 2 fractional digits.
// Uses decimal.Decimal to avoid floating-point errors; every arithmetic
// result crossing a boundary must go through Round2 (banker's rounding).
type Money = decimal.Decimal

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// NewMoneyFromString creates a Money value from a decimal string.
// This is the preferred constructor for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// NewMoneyFromInt creates a Money value from whole currency units.
func NewMoneyFromInt(v int64) Money {
	return decimal.NewFromInt(v)
}

// Round2 rounds to 2 decimal places using banker's rounding (half to even).
func Round2(m Money) Money {
	return m.RoundBank(2)
}

// MoneyString serializes a monetary value as a decimal string with
// exactly two fractional digits (the wire format for all external services).
func MoneyString(m Money) string {
	return Round2(m).StringFixed(2)
}

// SplitGross derives the net and VAT parts of a gross amount for a given
// VAT rate in percent: net = gross / (1 + rate/100) rounded half-even to
// 2 decimals, vat = gross - net. A zero rate yields net = gross, vat = 0.
func SplitGross(gross Money, vatRate Money) (net Money, vat Money) {
	if vatRate.IsZero() {
		return Round2(gross), Zero()
	}
	divisor := decimal.NewFromInt(1).Add(vatRate.Div(decimal.NewFromInt(100)))
	net = gross.DivRound(divisor, 8).RoundBank(2)
	vat = Round2(gross).Sub(net)
	return net, vat
}

// Percent returns part/total*100 rounded to 2 decimals, or zero when the
// total is zero.
func Percent(part, total Money) Money {
	if total.IsZero() {
		return Zero()
	}
	return part.Mul(decimal.NewFromInt(100)).DivRound(total, 8).RoundBank(2)
}
