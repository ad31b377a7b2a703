package service

import (
	"sort"

	"github.com/shopspring/decimal"

	"auction-advisor/internal/catalog"
	"auction-advisor/internal/ledger"
)

const (
	topPurchases       = 5
	bestDealsMinConv   = 60
	dangerousRemaining = 100
	dangerousComplete  = 60
)

// Deal is a purchase ranked by convenience per credit.
type Deal struct {
	Candidate catalog.Candidate `json:"candidate"`
	Ratio     float64           `json:"ratio"`
}

// Stats summarises the auction so far.
type Stats struct {
	Candidates int `json:"candidates"`
	Sold       int `json:"sold"`
	// Progress is the sold share of the catalog in percent, rounded.
	Progress           int                                  `json:"progress"`
	TotalSpent         decimal.Decimal                      `json:"total_spent"`
	MySpent            decimal.Decimal                      `json:"my_spent"`
	AvgPriceByPosition map[catalog.Position]decimal.Decimal `json:"avg_price_by_position"`
	TopPurchases       []catalog.Candidate                  `json:"top_purchases"`
	BestDeals          []Deal                               `json:"best_deals"`
	// LeaguePosition is one plus the number of rivals that spent less than
	// the operator.
	LeaguePosition int `json:"league_position"`
}

// RivalSummary is the overview of one rival team.
type RivalSummary struct {
	Name      string                   `json:"name"`
	Counts    map[catalog.Position]int `json:"counts"`
	Spent     decimal.Decimal          `json:"spent"`
	Remaining decimal.Decimal          `json:"remaining"`
	AvgPrice  decimal.Decimal          `json:"avg_price"`
	// Completion is the filled share of the roster in percent, rounded.
	Completion int `json:"completion"`
	// Dangerous flags rivals that are nearly complete yet still rich.
	Dangerous bool `json:"dangerous"`
}

// Stats computes the auction statistics.
func (s *Session) Stats() Stats {
	return ComputeStats(s.State())
}

// RivalOverview summarises every rival in first-purchase order.
func (s *Session) RivalOverview() []RivalSummary {
	s.mu.Lock()
	names := s.ledger.RivalNames()
	state := s.ledger.State()
	s.mu.Unlock()
	return ComputeRivals(state, names)
}

// ComputeStats derives Stats from a ledger state.
func ComputeStats(state ledger.State) Stats {
	st := Stats{
		Candidates:         len(state.Candidates),
		TotalSpent:         decimal.Zero,
		MySpent:            state.Spent(),
		AvgPriceByPosition: make(map[catalog.Position]decimal.Decimal, len(catalog.Positions)),
	}

	var sold []catalog.Candidate
	for _, c := range state.Candidates {
		if c.Available() {
			continue
		}
		st.Sold++
		if c.PaidPrice.IsPositive() {
			sold = append(sold, c)
			st.TotalSpent = st.TotalSpent.Add(c.PaidPrice)
		}
	}
	if st.Candidates > 0 {
		st.Progress = int(decimal.NewFromInt(int64(st.Sold * 100)).
			Div(decimal.NewFromInt(int64(st.Candidates))).Round(0).IntPart())
	}

	for _, pos := range catalog.Positions {
		sum, n := decimal.Zero, 0
		for _, c := range sold {
			if c.Position == pos {
				sum = sum.Add(c.PaidPrice)
				n++
			}
		}
		avg := decimal.Zero
		if n > 0 {
			avg = sum.Div(decimal.NewFromInt(int64(n))).Round(0)
		}
		st.AvgPriceByPosition[pos] = avg
	}

	byPrice := append([]catalog.Candidate(nil), sold...)
	sort.SliceStable(byPrice, func(i, j int) bool {
		return byPrice[i].PaidPrice.GreaterThan(byPrice[j].PaidPrice)
	})
	st.TopPurchases = head(byPrice, topPurchases)

	for _, c := range sold {
		if c.ConvenienceScore > bestDealsMinConv {
			st.BestDeals = append(st.BestDeals, Deal{
				Candidate: c,
				Ratio:     c.ConvenienceScore / c.PaidPrice.InexactFloat64(),
			})
		}
	}
	sort.SliceStable(st.BestDeals, func(i, j int) bool {
		return st.BestDeals[i].Ratio > st.BestDeals[j].Ratio
	})
	if len(st.BestDeals) > topPurchases {
		st.BestDeals = st.BestDeals[:topPurchases]
	}

	st.LeaguePosition = 1
	for _, r := range state.Rivals {
		if r.BudgetSpent.LessThan(st.MySpent) {
			st.LeaguePosition++
		}
	}
	return st
}

// ComputeRivals summarises the rivals of state in the given name order.
func ComputeRivals(state ledger.State, names []string) []RivalSummary {
	total := state.Config.TotalSlots()
	out := make([]RivalSummary, 0, len(names))
	for _, name := range names {
		team, ok := state.Rivals[name]
		if !ok {
			continue
		}
		sum := RivalSummary{
			Name:      name,
			Counts:    make(map[catalog.Position]int, len(catalog.Positions)),
			Spent:     team.BudgetSpent,
			Remaining: state.Config.TotalBudget.Sub(team.BudgetSpent),
			AvgPrice:  decimal.Zero,
		}
		for _, pos := range catalog.Positions {
			sum.Counts[pos] = 0
		}
		for _, c := range team.Purchased {
			sum.Counts[c.Position]++
		}
		if n := len(team.Purchased); n > 0 {
			sum.AvgPrice = team.BudgetSpent.Div(decimal.NewFromInt(int64(n))).Round(0)
			if total > 0 {
				sum.Completion = int(decimal.NewFromInt(int64(n * 100)).
					Div(decimal.NewFromInt(int64(total))).Round(0).IntPart())
			}
		}
		sum.Dangerous = sum.Remaining.GreaterThan(decimal.NewFromInt(dangerousRemaining)) &&
			sum.Completion > dangerousComplete
		out = append(out, sum)
	}
	return out
}

func head(cands []catalog.Candidate, n int) []catalog.Candidate {
	if len(cands) > n {
		return cands[:n]
	}
	return cands
}
