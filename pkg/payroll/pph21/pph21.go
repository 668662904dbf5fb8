// Package pph21 computes Indonesian employee income tax withholding
// (PPh Pasal 21) with a PTKP allowance and progressive annual brackets.
package pph21

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/iyanrinri/hr-app-tenant-backend-sub001/pkg/payroll/money"
	"github.com/shopspring/decimal"
)

const (
	MaritalStatusMarried = "MARRIED"

	MaxDependents = 3

	categoryMarried   = "K"
	categoryUnmarried = "TK"
)

var (
	ErrNoBrackets = errors.New("pph21: no tax brackets configured")
	ErrNoPTKP     = errors.New("pph21: no TK/0 allowance configured")
)

// Bracket is one marginal band. A nil UpperBound marks the unbounded band.
type Bracket struct {
	UpperBound *decimal.Decimal `json:"upper_bound"`
	Rate       decimal.Decimal  `json:"rate"`
}

type Config struct {
	// PTKP is keyed by table key, e.g. "TK_0" or "K_3".
	PTKP     map[string]decimal.Decimal `json:"ptkp"`
	Brackets []Bracket                  `json:"brackets"`
}

// Clone returns a copy that shares no map, slice or bound with c.
func (c Config) Clone() Config {
	out := Config{PTKP: maps.Clone(c.PTKP)}
	if c.Brackets != nil {
		out.Brackets = make([]Bracket, len(c.Brackets))
		for i, b := range c.Brackets {
			out.Brackets[i] = Bracket{Rate: b.Rate}
			if b.UpperBound != nil {
				ub := *b.UpperBound
				out.Brackets[i].UpperBound = &ub
			}
		}
	}
	return out
}

type BracketContribution struct {
	LowerBound    decimal.Decimal  `json:"lower_bound"`
	UpperBound    *decimal.Decimal `json:"upper_bound"`
	Rate          decimal.Decimal  `json:"rate"`
	TaxableAmount decimal.Decimal  `json:"taxable_amount"`
	Tax           decimal.Decimal  `json:"tax"`
}

type Result struct {
	MonthlyGross       decimal.Decimal       `json:"monthly_gross"`
	AnnualGross        decimal.Decimal       `json:"annual_gross"`
	PTKPCategory       string                `json:"ptkp_category"`
	PTKPAmount         decimal.Decimal       `json:"ptkp_amount"`
	PTKPFallback       bool                  `json:"ptkp_fallback"`
	Dependents         int                   `json:"dependents"`
	TaxableIncome      decimal.Decimal       `json:"taxable_income"`
	AnnualTaxUnrounded decimal.Decimal       `json:"annual_tax_unrounded"`
	AnnualTax          decimal.Decimal       `json:"annual_tax"`
	MonthlyTax         decimal.Decimal       `json:"monthly_tax"`
	Brackets           []BracketContribution `json:"brackets"`
}

func ClampDependents(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxDependents {
		return MaxDependents
	}
	return n
}

// Category returns the PTKP label, e.g. "K/2".
func Category(maritalStatus string, dependents int) string {
	prefix := categoryUnmarried
	if maritalStatus == MaritalStatusMarried {
		prefix = categoryMarried
	}
	return fmt.Sprintf("%s/%d", prefix, ClampDependents(dependents))
}

// TableKey maps a category label to its PTKP table key ("K/2" -> "K_2").
func TableKey(category string) string {
	return strings.ReplaceAll(category, "/", "_")
}

func (c Config) lookupPTKP(category string) (decimal.Decimal, bool, error) {
	if v, ok := c.PTKP[TableKey(category)]; ok {
		return v, false, nil
	}
	if v, ok := c.PTKP[TableKey(categoryUnmarried+"/0")]; ok {
		return v, true, nil
	}
	return money.Zero, false, ErrNoPTKP
}

// OrderedBrackets returns bounded brackets ascending by upper bound followed by
// the unbounded bracket, if any.
func (c Config) OrderedBrackets() []Bracket {
	out := make([]Bracket, 0, len(c.Brackets))
	var unbounded []Bracket
	for _, b := range c.Brackets {
		if b.UpperBound == nil {
			unbounded = append(unbounded, b)
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpperBound.LessThan(*out[j].UpperBound)
	})
	if len(unbounded) > 0 {
		out = append(out, unbounded[0])
	}
	return out
}

// Calculate computes monthly withholding from a monthly gross. The last
// ordered bracket is applied without an upper bound.
func Calculate(cfg Config, monthlyGross decimal.Decimal, maritalStatus string, dependents int) (Result, error) {
	brackets := cfg.OrderedBrackets()
	if len(brackets) == 0 {
		return Result{}, ErrNoBrackets
	}

	category := Category(maritalStatus, dependents)
	ptkp, fallback, err := cfg.lookupPTKP(category)
	if err != nil {
		return Result{}, err
	}

	annualGross := money.Annualize(monthlyGross)
	taxable := money.Max0(annualGross.Sub(ptkp))

	out := Result{
		MonthlyGross:       monthlyGross,
		AnnualGross:        annualGross,
		PTKPCategory:       category,
		PTKPAmount:         ptkp,
		PTKPFallback:       fallback,
		Dependents:         ClampDependents(dependents),
		TaxableIncome:      taxable,
		AnnualTaxUnrounded: money.Zero,
		AnnualTax:          money.Zero,
		MonthlyTax:         money.Zero,
		Brackets:           []BracketContribution{},
	}
	if !taxable.IsPositive() {
		return out, nil
	}

	contributions, total := progressive(brackets, taxable)
	out.Brackets = contributions
	out.AnnualTaxUnrounded = total
	out.AnnualTax = money.RoundHalfUp(total)
	out.MonthlyTax = money.RoundHalfUp(money.Monthly(out.AnnualTax))
	return out, nil
}

func progressive(brackets []Bracket, taxable decimal.Decimal) ([]BracketContribution, decimal.Decimal) {
	var out []BracketContribution
	total := money.Zero
	remaining := taxable
	previous := money.Zero

	for i, b := range brackets {
		if !remaining.IsPositive() {
			break
		}
		last := i == len(brackets)-1

		slice := remaining
		var upper *decimal.Decimal
		if !last && b.UpperBound != nil {
			width := b.UpperBound.Sub(previous)
			if !width.IsPositive() {
				continue
			}
			slice = decimal.Min(remaining, width)
			u := *b.UpperBound
			upper = &u
		}

		tax := slice.Mul(b.Rate)
		out = append(out, BracketContribution{
			LowerBound:    previous,
			UpperBound:    upper,
			Rate:          b.Rate,
			TaxableAmount: slice,
			Tax:           tax,
		})
		total = total.Add(tax)
		remaining = remaining.Sub(slice)
		if upper != nil {
			previous = *upper
		}
	}
	return out, total
}
