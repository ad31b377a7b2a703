package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"auction-advisor/internal/catalog"
)

// DefaultOperator is the owner name that denotes the local operator.
const DefaultOperator = "me"

// Config describes the auction rules the ledger enforces.
type Config struct {
	TotalBudget decimal.Decimal          `json:"total_budget"`
	Slots       map[catalog.Position]int `json:"slots"`
	Teams       int                      `json:"teams"`
	Operator    string                   `json:"operator"`
}

// DefaultConfig mirrors a standard 25-player, 500-credit league.
func DefaultConfig() Config {
	return Config{
		TotalBudget: decimal.NewFromInt(500),
		Slots: map[catalog.Position]int{
			catalog.Goalkeeper: 3,
			catalog.Defender:   8,
			catalog.Midfielder: 8,
			catalog.Forward:    6,
		},
		Teams:    10,
		Operator: DefaultOperator,
	}
}

// TotalSlots sums the capacity of every position.
func (c Config) TotalSlots() int {
	total := 0
	for _, n := range c.Slots {
		total += n
	}
	return total
}

// IsOperator reports whether owner denotes the local operator. An empty owner
// is treated as the operator.
func (c Config) IsOperator(owner string) bool {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return true
	}
	op := c.Operator
	if op == "" {
		op = DefaultOperator
	}
	return strings.EqualFold(owner, op)
}

// Phase is the current position filter, or PhaseIdle.
type Phase string

// PhaseIdle means no position filter is active.
const PhaseIdle Phase = "idle"

// RivalTeam aggregates the purchases attributed to one rival name.
type RivalTeam struct {
	Name        string              `json:"name"`
	BudgetSpent decimal.Decimal     `json:"budget_spent"`
	Purchased   []catalog.Candidate `json:"purchased"`
}

// PurchaseEvent is an immutable record in the append-only purchase log.
// Expected holds the suggested price computed against the pre-commit state.
type PurchaseEvent struct {
	Seq       int               `json:"seq"`
	Candidate catalog.Candidate `json:"candidate"`
	Price     decimal.Decimal   `json:"price"`
	Owner     string            `json:"owner"`
	Timestamp time.Time         `json:"timestamp"`
	Expected  decimal.Decimal   `json:"expected"`
}

// Slots reports slot usage for one position. Remaining is negative when the
// operator has exceeded capacity.
type Slots struct {
	Taken     int `json:"taken"`
	Total     int `json:"total"`
	Remaining int `json:"remaining"`
}

// State is a point-in-time copy of the ledger.
type State struct {
	Config          Config               `json:"config"`
	Candidates      []catalog.Candidate  `json:"candidates"`
	MyTeam          []catalog.Candidate  `json:"my_team"`
	RemainingBudget decimal.Decimal      `json:"remaining_budget"`
	Rivals          map[string]RivalTeam `json:"rivals"`
	Selected        *catalog.Candidate   `json:"selected,omitempty"`
	Phase           Phase                `json:"phase"`
}

// SlotsInfo computes per-position slot usage from the own roster.
func (s State) SlotsInfo() map[catalog.Position]Slots {
	return slotsInfo(s.Config, s.MyTeam)
}

// TotalSlotsRemaining sums remaining slots across positions.
func (s State) TotalSlotsRemaining() int {
	total := 0
	for _, info := range s.SlotsInfo() {
		total += info.Remaining
	}
	return total
}

// Spent is the amount the operator has committed so far.
func (s State) Spent() decimal.Decimal {
	return s.Config.TotalBudget.Sub(s.RemainingBudget)
}

// Snapshot is the persisted form of the ledger.
type Snapshot struct {
	State
	Purchases []PurchaseEvent `json:"purchases"`
}

func slotsInfo(cfg Config, team []catalog.Candidate) map[catalog.Position]Slots {
	info := make(map[catalog.Position]Slots, len(catalog.Positions))
	for _, pos := range catalog.Positions {
		total := cfg.Slots[pos]
		taken := 0
		for _, c := range team {
			if c.Position == pos {
				taken++
			}
		}
		info[pos] = Slots{Taken: taken, Total: total, Remaining: total - taken}
	}
	return info
}
