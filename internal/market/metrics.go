package market

import (
	"time"

	"github.com/shopspring/decimal"

	"auction-advisor/internal/catalog"
	"auction-advisor/internal/ledger"
)

const (
	window5  = 5 * time.Minute
	window10 = 10 * time.Minute
	window30 = 30 * time.Minute
)

// computeMetrics derives the market picture from the purchase history and
// the ledger state at now.
func computeMetrics(now time.Time, state ledger.State, history []ledger.PurchaseEvent, profiles []CompetitorProfile, p Params) Metrics {
	m := emptyMetrics()
	m.ComputedAt = now
	m.Velocity = velocity(now, history)

	total := make(map[catalog.Position]int, len(catalog.Positions))
	available := make(map[catalog.Position]int, len(catalog.Positions))
	for _, c := range state.Candidates {
		total[c.Position]++
		if c.Available() {
			available[c.Position]++
			if c.ConvenienceScore > p.TopConvenience {
				m.TopRemaining[c.Position]++
			}
		}
	}
	for _, pos := range catalog.Positions {
		if total[pos] > 0 {
			m.Scarcity[pos] = 1 - float64(available[pos])/float64(total[pos])
		}
	}

	cutoff := now.Add(-window30)
	recentPaid := make(map[catalog.Position]float64)
	recentExpected := make(map[catalog.Position]float64)
	allPaid := make(map[catalog.Position]float64)
	allCount := make(map[catalog.Position]int)
	for _, evt := range history {
		pos := evt.Candidate.Position
		price := evt.Price.InexactFloat64()
		allPaid[pos] += price
		allCount[pos]++
		// purchases without a positive expectation carry no inflation signal
		if evt.Timestamp.After(cutoff) && evt.Expected.IsPositive() {
			recentPaid[pos] += price
			recentExpected[pos] += evt.Expected.InexactFloat64()
		}
	}
	for _, pos := range catalog.Positions {
		if recentExpected[pos] > 0 {
			m.Inflation[pos] = recentPaid[pos] / recentExpected[pos]
		}
		if allCount[pos] > 0 {
			m.AvgPrice[pos] = allPaid[pos] / float64(allCount[pos])
		}
	}

	m.Competitors = make([]CompetitorProfile, len(profiles))
	for i, prof := range profiles {
		prof.PreferredPositions = append([]catalog.Position(nil), prof.PreferredPositions...)
		m.Competitors[i] = prof
	}
	return m
}

func velocity(now time.Time, history []ledger.PurchaseEvent) Velocity {
	var v Velocity
	for _, evt := range history {
		age := now.Sub(evt.Timestamp)
		if age < window5 {
			v.Last5++
		}
		if age < window10 {
			v.Last10++
		}
		if age < window30 {
			v.Last30++
		}
	}
	v.Trend = classifyTrend(v.Last5, v.Last10)
	return v
}

// classifyTrend compares the last five minutes with the five before them.
func classifyTrend(last5, last10 int) Trend {
	recent := float64(last5) / 5
	prior := float64(last10-last5) / 5
	switch {
	case recent > prior*1.3:
		return TrendAccelerating
	case recent < prior*0.7:
		return TrendSlowing
	default:
		return TrendStable
	}
}

// classifyPattern buckets a rival by average paid price.
func classifyPattern(avg float64, p Params) SpendingPattern {
	switch {
	case avg > p.AggressiveAvgPrice:
		return PatternAggressive
	case avg < p.ConservativeAvgPrice:
		return PatternConservative
	default:
		return PatternBalanced
	}
}

// profileBook tracks competitor profiles in first-purchase order.
type profileBook struct {
	order    []string
	profiles map[string]*CompetitorProfile
}

func newProfileBook() *profileBook {
	return &profileBook{profiles: make(map[string]*CompetitorProfile)}
}

// record folds a rival purchase into its profile. history must already
// contain evt.
func (b *profileBook) record(evt ledger.PurchaseEvent, history []ledger.PurchaseEvent, totalBudget decimal.Decimal, p Params) CompetitorProfile {
	prof, ok := b.profiles[evt.Owner]
	if !ok {
		prof = &CompetitorProfile{Name: evt.Owner, BudgetRemaining: totalBudget, Pattern: PatternBalanced}
		b.profiles[evt.Owner] = prof
		b.order = append(b.order, evt.Owner)
	}

	sum, n := 0.0, 0
	for _, h := range history {
		if h.Owner == evt.Owner {
			sum += h.Price.InexactFloat64()
			n++
		}
	}
	if n > 0 {
		prof.AvgPurchasePrice = sum / float64(n)
	}
	prof.Purchases = n
	prof.BudgetRemaining = prof.BudgetRemaining.Sub(evt.Price)
	prof.Pattern = classifyPattern(prof.AvgPurchasePrice, p)
	if !prof.Prefers(evt.Candidate.Position) {
		prof.PreferredPositions = append(prof.PreferredPositions, evt.Candidate.Position)
	}
	prof.LastPurchase = evt.Timestamp
	return *prof
}

func (b *profileBook) list() []CompetitorProfile {
	out := make([]CompetitorProfile, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, *b.profiles[name])
	}
	return out
}

func (b *profileBook) get(name string) (CompetitorProfile, bool) {
	prof, ok := b.profiles[name]
	if !ok {
		return CompetitorProfile{}, false
	}
	return *prof, true
}
