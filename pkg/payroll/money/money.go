// Package money holds the rounding and parsing rules shared by the payroll
// calculators. Amounts are whole rupiah; rates are fractions.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CentScale is the number of fractional digits a stored amount may carry.
const CentScale = 2

var (
	Zero   = decimal.Zero
	twelve = decimal.NewFromInt(12)
)

// RoundHalfUp rounds to whole currency units, halves away from zero.
// Every calculator input is non-negative, so this is plain half-up.
func RoundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}

// MulRoundHalfUp multiplies an amount by a fractional rate and rounds the
// product independently.
func MulRoundHalfUp(amount decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	if amount.IsZero() || rate.IsZero() {
		return Zero
	}
	return RoundHalfUp(amount.Mul(rate))
}

func Annualize(monthly decimal.Decimal) decimal.Decimal {
	return monthly.Mul(twelve)
}

// Monthly divides an annual amount by twelve with enough precision that the
// following half-up rounding is exact.
func Monthly(annual decimal.Decimal) decimal.Decimal {
	return annual.DivRound(twelve, 8)
}

func Max0(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return Zero
	}
	return d
}

// FitsCents reports whether d has no digits beyond CentScale, so storing it
// in a numeric(18,2) column is lossless.
func FitsCents(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(CentScale))
}

// CapAt returns min(amount, cap). A cap <= 0 means uncapped.
func CapAt(amount decimal.Decimal, cap decimal.Decimal) decimal.Decimal {
	if !cap.IsPositive() {
		return amount
	}
	return decimal.Min(amount, cap)
}

// Parse reads a stored decimal string, tolerating surrounding blanks and
// thousands separators written with underscores.
func Parse(raw string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), "_", "")
	if s == "" {
		return Zero, fmt.Errorf("money: empty value")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("money: invalid decimal %q: %w", raw, err)
	}
	return d, nil
}

// SumOf adds amounts without intermediate rounding.
func SumOf(amounts ...decimal.Decimal) decimal.Decimal {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
