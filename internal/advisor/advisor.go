// Package advisor computes the suggested maximum bid for a candidate.
//
// The computation is pure and deterministic given a ledger state and a
// candidate. Adjustments are applied in a fixed order and the result never
// exceeds MaxBudgetShare of the remaining budget.
package advisor

import (
	"math"

	"github.com/shopspring/decimal"

	"auction-advisor/internal/catalog"
	"auction-advisor/internal/ledger"
)

// MaxBudgetShare caps a single recommendation as a fraction of remaining budget.
const MaxBudgetShare = 0.4

// Factor is one multiplicative adjustment that was applied.
type Factor struct {
	Name       string  `json:"name"`
	Multiplier float64 `json:"multiplier"`
}

// Calculation is the full breakdown behind a suggested price.
type Calculation struct {
	AvgBudgetPerSlot  float64         `json:"avg_budget_per_slot"`
	ConvenienceFactor float64         `json:"convenience_factor"`
	BasePrice         float64         `json:"base_price"`
	AdjustedPrice     float64         `json:"adjusted_price"`
	Ceiling           float64         `json:"ceiling"`
	Suggested         decimal.Decimal `json:"suggested"`
	Factors           []Factor        `json:"factors"`
	Reason            string          `json:"reason,omitempty"`
}

type rule struct {
	name       string
	multiplier float64
	applies    func(c catalog.Candidate) bool
}

// rules are applied in this exact order.
var rules = []rule{
	{"injured", 0.7, func(c catalog.Candidate) bool { return c.Injured }},
	{"new_signing", 0.85, func(c catalog.Candidate) bool { return c.NewSigning }},
	{"trend_up", 1.1, func(c catalog.Candidate) bool { return c.Trend == catalog.TrendUp }},
	{"trend_down", 0.9, func(c catalog.Candidate) bool { return c.Trend == catalog.TrendDown }},
	{"season_average_7", 1.2, func(c catalog.Candidate) bool { return c.SeasonAverage > 7 }},
	{"season_average_8", 1.3, func(c catalog.Candidate) bool { return c.SeasonAverage > 8 }},
	{"expected_goals", 1.15, func(c catalog.Candidate) bool { return c.XG > 10 }},
	{"expected_assists", 1.1, func(c catalog.Candidate) bool { return c.XA > 5 }},
	{"composite_index", 1.1, func(c catalog.Candidate) bool { return c.CompositeIndex > 80 }},
	{"yellow_cards", 0.9, func(c catalog.Candidate) bool { return c.YellowCards > 8 }},
	{"red_cards", 0.85, func(c catalog.Candidate) bool { return c.RedCards > 1 }},
}

// SuggestedPrice returns the maximum bid the operator should place.
func SuggestedPrice(state ledger.State, cand catalog.Candidate) decimal.Decimal {
	return Calculate(state, cand).Suggested
}

// Calculate runs the pricing algorithm and returns every intermediate value.
func Calculate(state ledger.State, cand catalog.Candidate) Calculation {
	calc := Calculation{Suggested: decimal.Zero}

	slots := state.SlotsInfo()
	totalRemaining := 0
	for _, info := range slots {
		totalRemaining += info.Remaining
	}
	if totalRemaining <= 0 {
		calc.Reason = "no slots remaining"
		return calc
	}

	remaining := state.RemainingBudget.InexactFloat64()
	calc.AvgBudgetPerSlot = remaining / float64(totalRemaining)
	calc.ConvenienceFactor = math.Min(cand.ConvenienceScore/50, 2)
	calc.BasePrice = calc.AvgBudgetPerSlot * calc.ConvenienceFactor

	price := calc.BasePrice
	for _, r := range rules {
		if r.applies(cand) {
			price *= r.multiplier
			calc.Factors = append(calc.Factors, Factor{Name: r.name, Multiplier: r.multiplier})
		}
	}

	if info, ok := slots[cand.Position]; ok {
		switch {
		case info.Remaining <= 0:
			calc.AdjustedPrice = 0
			calc.Reason = "position complete"
			return calc
		case info.Remaining == 1:
			price *= 1.2
			calc.Factors = append(calc.Factors, Factor{Name: "last_slot", Multiplier: 1.2})
		}
	}
	calc.AdjustedPrice = price

	calc.Ceiling = remaining * MaxBudgetShare
	final := math.Min(price, calc.Ceiling)
	if final < 0 || math.IsNaN(final) {
		final = 0
	}
	suggested := decimal.NewFromFloat(final).Round(0)
	// rounding must not push the bid past the ceiling
	ceiling := state.RemainingBudget.Mul(decimal.NewFromFloat(MaxBudgetShare))
	if suggested.GreaterThan(ceiling) {
		suggested = decimal.NewFromFloat(final).Floor()
	}
	if suggested.IsNegative() {
		suggested = decimal.Zero
	}
	calc.Suggested = suggested
	return calc
}

// Multiplier returns the compound multiplier of the applied factors.
func (c Calculation) Multiplier() float64 {
	m := 1.0
	for _, f := range c.Factors {
		m *= f.Multiplier
	}
	return m
}
