// Package catalog holds the draftable candidates and their descriptive attributes.
package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Position is one of the fixed roster roles.
type Position string

const (
	Goalkeeper Position = "P"
	Defender   Position = "D"
	Midfielder Position = "C"
	Forward    Position = "A"
)

// FallbackPosition is assigned to candidates whose role cannot be recognised.
const FallbackPosition = Defender

// Positions lists every valid position in roster order.
var Positions = []Position{Goalkeeper, Defender, Midfielder, Forward}

// Valid reports whether p is one of the known positions.
func (p Position) Valid() bool {
	switch p {
	case Goalkeeper, Defender, Midfielder, Forward:
		return true
	}
	return false
}

// ParsePosition normalises free-form role text. Unknown values fall back to
// FallbackPosition and ok is false.
func ParsePosition(raw string) (Position, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	if p := Position(normalized); p.Valid() {
		return p, true
	}
	if normalized != "" {
		if p := Position(normalized[:1]); p.Valid() {
			return p, true
		}
	}
	return FallbackPosition, false
}

// Status tracks who holds a candidate during the auction.
type Status string

const (
	StatusAvailable Status = "available"
	StatusMine      Status = "mine"
	StatusTaken     Status = "taken"
)

// Trend is the recent form direction supplied by the loader.
type Trend string

const (
	TrendUp     Trend = "UP"
	TrendDown   Trend = "DOWN"
	TrendStable Trend = "STABLE"
)

// ParseTrend maps loader text to a Trend, defaulting to stable.
func ParseTrend(raw string) Trend {
	switch Trend(strings.ToUpper(strings.TrimSpace(raw))) {
	case TrendUp:
		return TrendUp
	case TrendDown:
		return TrendDown
	default:
		return TrendStable
	}
}

// Candidate is a draftable entity. Descriptive fields are immutable once loaded;
// Status, Owner and PaidPrice change only through a ledger purchase or reset.
type Candidate struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Position Position `json:"position"`
	Team     string   `json:"team"`

	ConvenienceScore float64 `json:"convenience_score"`
	Convenience      float64 `json:"convenience"`
	Score            float64 `json:"score"`
	Quotation        float64 `json:"quotation"`
	SeasonAverage    float64 `json:"season_average"`
	PreviousAverage  float64 `json:"previous_average"`
	Appearances      int     `json:"appearances"`
	Goals            int     `json:"goals"`
	Assists          int     `json:"assists"`
	XG               float64 `json:"xg"`
	XA               float64 `json:"xa"`
	CompositeIndex   float64 `json:"composite_index"`
	DealScore        float64 `json:"deal_score"`
	Reliability      float64 `json:"reliability"`
	YellowCards      int     `json:"yellow_cards"`
	RedCards         int     `json:"red_cards"`

	Trend      Trend `json:"trend"`
	Injured    bool  `json:"injured"`
	NewSigning bool  `json:"new_signing"`

	Status    Status          `json:"status"`
	Owner     string          `json:"owner,omitempty"`
	PaidPrice decimal.Decimal `json:"paid_price"`
}

// Available reports whether the candidate can still be bought.
func (c Candidate) Available() bool {
	return c.Status == StatusAvailable || c.Status == ""
}

// Released returns a copy of the candidate with auction state cleared.
func (c Candidate) Released() Candidate {
	c.Status = StatusAvailable
	c.Owner = ""
	c.PaidPrice = decimal.Zero
	return c
}
