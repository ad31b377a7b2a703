package ledger

import (
	"github.com/shopspring/decimal"

	"auction-advisor/internal/catalog"
)

// rivalBook is the name-keyed association of rival teams with upsert semantics.
type rivalBook struct {
	order []string
	teams map[string]*RivalTeam
}

func newRivalBook() *rivalBook {
	return &rivalBook{teams: make(map[string]*RivalTeam)}
}

// upsert creates the team on first use and records the purchase.
func (b *rivalBook) upsert(name string, cand catalog.Candidate, price decimal.Decimal) *RivalTeam {
	team, ok := b.teams[name]
	if !ok {
		team = &RivalTeam{Name: name, BudgetSpent: decimal.Zero}
		b.teams[name] = team
		b.order = append(b.order, name)
	}
	team.Purchased = append(team.Purchased, cand)
	team.BudgetSpent = team.BudgetSpent.Add(price)
	return team
}

func (b *rivalBook) put(team RivalTeam) {
	if _, ok := b.teams[team.Name]; !ok {
		b.order = append(b.order, team.Name)
	}
	copyTeam := team
	copyTeam.Purchased = append([]catalog.Candidate(nil), team.Purchased...)
	b.teams[team.Name] = &copyTeam
}

func (b *rivalBook) snapshot() map[string]RivalTeam {
	out := make(map[string]RivalTeam, len(b.teams))
	for _, name := range b.order {
		team := *b.teams[name]
		team.Purchased = append([]catalog.Candidate(nil), team.Purchased...)
		out[name] = team
	}
	return out
}

func (b *rivalBook) names() []string {
	return append([]string(nil), b.order...)
}
