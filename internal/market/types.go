package market

import (
	"time"

	"github.com/shopspring/decimal"

	"auction-advisor/internal/alertcfg"
	"auction-advisor/internal/catalog"
)

// Metadata references the entities an alert is about.
type Metadata struct {
	CandidateID int              `json:"candidate_id,omitempty"`
	Position    catalog.Position `json:"position,omitempty"`
	Team        string           `json:"team,omitempty"`
	Reasoning   string           `json:"reasoning,omitempty"`
}

// SmartAlert is an immutable notification. Updates publish a replacement.
type SmartAlert struct {
	ID         string            `json:"id"`
	Seq        uint64            `json:"seq"`
	CreatedAt  time.Time         `json:"created_at"`
	Level      alertcfg.Level    `json:"level"`
	Category   alertcfg.Category `json:"category"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	Confidence int               `json:"confidence"`
	Priority   int               `json:"priority"`
	TTL        time.Duration     `json:"ttl,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Metadata   Metadata          `json:"metadata"`

	// Key identifies the condition behind a recurring alert; empty for
	// one-off purchase alerts.
	Key string `json:"key,omitempty"`
}

// Expired reports whether the TTL has elapsed at now.
func (a SmartAlert) Expired(now time.Time) bool {
	return a.TTL > 0 && now.Sub(a.CreatedAt) >= a.TTL
}

// ExpiresAt returns the expiry time, or the zero time without a TTL.
func (a SmartAlert) ExpiresAt() time.Time {
	if a.TTL <= 0 {
		return time.Time{}
	}
	return a.CreatedAt.Add(a.TTL)
}

func (a SmartAlert) sameContent(b SmartAlert) bool {
	return a.Level == b.Level && a.Category == b.Category && a.Title == b.Title &&
		a.Message == b.Message && a.Priority == b.Priority && a.Suggestion == b.Suggestion
}

// Trend classifies purchase pace.
type Trend string

const (
	TrendAccelerating Trend = "accelerating"
	TrendStable       Trend = "stable"
	TrendSlowing      Trend = "slowing"
)

// Velocity counts purchases over trailing windows.
type Velocity struct {
	Last5  int   `json:"last_5m"`
	Last10 int   `json:"last_10m"`
	Last30 int   `json:"last_30m"`
	Trend  Trend `json:"trend"`
}

// PerMinute returns the purchase rate over the ten minute window.
func (v Velocity) PerMinute() float64 {
	return float64(v.Last10) / 10
}

// SpendingPattern classifies a rival by average paid price.
type SpendingPattern string

const (
	PatternAggressive   SpendingPattern = "aggressive"
	PatternBalanced     SpendingPattern = "balanced"
	PatternConservative SpendingPattern = "conservative"
)

// CompetitorProfile summarises one rival's behaviour.
type CompetitorProfile struct {
	Name               string             `json:"name"`
	Pattern            SpendingPattern    `json:"pattern"`
	AvgPurchasePrice   float64            `json:"avg_purchase_price"`
	BudgetRemaining    decimal.Decimal    `json:"budget_remaining"`
	PreferredPositions []catalog.Position `json:"preferred_positions"`
	LastPurchase       time.Time          `json:"last_purchase"`
	Purchases          int                `json:"purchases"`
}

// Prefers reports whether the rival has bought in position before.
func (p CompetitorProfile) Prefers(pos catalog.Position) bool {
	for _, pp := range p.PreferredPositions {
		if pp == pos {
			return true
		}
	}
	return false
}

// Metrics is the derived market picture. It is recomputed, never edited.
type Metrics struct {
	ComputedAt   time.Time                    `json:"computed_at"`
	Velocity     Velocity                     `json:"velocity"`
	Scarcity     map[catalog.Position]float64 `json:"scarcity"`
	TopRemaining map[catalog.Position]int     `json:"top_remaining"`
	Inflation    map[catalog.Position]float64 `json:"inflation"`
	AvgPrice     map[catalog.Position]float64 `json:"avg_price"`
	Competitors  []CompetitorProfile          `json:"competitors"`
}

func emptyMetrics() Metrics {
	m := Metrics{
		Velocity:     Velocity{Trend: TrendStable},
		Scarcity:     make(map[catalog.Position]float64, len(catalog.Positions)),
		TopRemaining: make(map[catalog.Position]int, len(catalog.Positions)),
		Inflation:    make(map[catalog.Position]float64, len(catalog.Positions)),
		AvgPrice:     make(map[catalog.Position]float64, len(catalog.Positions)),
	}
	for _, pos := range catalog.Positions {
		m.Inflation[pos] = 1
	}
	return m
}

// Params are the tuning constants of the engine.
type Params struct {
	OverpayRatio          float64         `mapstructure:"overpay_ratio"`
	BargainRatio          float64         `mapstructure:"bargain_ratio"`
	BargainMinConvenience float64         `mapstructure:"bargain_min_convenience"`
	TopConvenience        float64         `mapstructure:"top_convenience"`
	AggressiveAvgPrice    float64         `mapstructure:"aggressive_avg_price"`
	ConservativeAvgPrice  float64         `mapstructure:"conservative_avg_price"`
	AggressiveRivalBudget decimal.Decimal `mapstructure:"aggressive_rival_budget"`
	StrategicRatio        float64         `mapstructure:"strategic_ratio"`
	StrategyRosterLimit   int             `mapstructure:"strategy_roster_limit"`
	OpportunityInflation  float64         `mapstructure:"opportunity_inflation"`
	TopShare              float64         `mapstructure:"top_share"`
	ExhaustionHorizon     time.Duration   `mapstructure:"exhaustion_horizon"`
	InflationTrendRate    float64         `mapstructure:"inflation_trend_rate"`
	InflationWindow       int             `mapstructure:"inflation_window"`
	VelocityTTL           time.Duration   `mapstructure:"velocity_ttl"`
	OpportunityTTL        time.Duration   `mapstructure:"opportunity_ttl"`
}

// DefaultParams returns the stock tuning.
func DefaultParams() Params {
	return Params{
		OverpayRatio:          1.5,
		BargainRatio:          0.7,
		BargainMinConvenience: 60,
		TopConvenience:        70,
		AggressiveAvgPrice:    40,
		ConservativeAvgPrice:  20,
		AggressiveRivalBudget: decimal.NewFromInt(100),
		StrategicRatio:        0.7,
		StrategyRosterLimit:   10,
		OpportunityInflation:  0.9,
		TopShare:              0.3,
		ExhaustionHorizon:     15 * time.Minute,
		InflationTrendRate:    0.1,
		InflationWindow:       10,
		VelocityTTL:           5 * time.Minute,
		OpportunityTTL:        3 * time.Minute,
	}
}

// withDefaults fills zero fields from DefaultParams.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.OverpayRatio <= 0 {
		p.OverpayRatio = d.OverpayRatio
	}
	if p.BargainRatio <= 0 {
		p.BargainRatio = d.BargainRatio
	}
	if p.BargainMinConvenience <= 0 {
		p.BargainMinConvenience = d.BargainMinConvenience
	}
	if p.TopConvenience <= 0 {
		p.TopConvenience = d.TopConvenience
	}
	if p.AggressiveAvgPrice <= 0 {
		p.AggressiveAvgPrice = d.AggressiveAvgPrice
	}
	if p.ConservativeAvgPrice <= 0 {
		p.ConservativeAvgPrice = d.ConservativeAvgPrice
	}
	if p.AggressiveRivalBudget.IsZero() {
		p.AggressiveRivalBudget = d.AggressiveRivalBudget
	}
	if p.StrategicRatio <= 0 {
		p.StrategicRatio = d.StrategicRatio
	}
	if p.OpportunityInflation <= 0 {
		p.OpportunityInflation = d.OpportunityInflation
	}
	if p.TopShare <= 0 {
		p.TopShare = d.TopShare
	}
	if p.ExhaustionHorizon <= 0 {
		p.ExhaustionHorizon = d.ExhaustionHorizon
	}
	if p.InflationTrendRate <= 0 {
		p.InflationTrendRate = d.InflationTrendRate
	}
	if p.InflationWindow <= 0 {
		p.InflationWindow = d.InflationWindow
	}
	if p.VelocityTTL <= 0 {
		p.VelocityTTL = d.VelocityTTL
	}
	if p.OpportunityTTL <= 0 {
		p.OpportunityTTL = d.OpportunityTTL
	}
	return p
}
