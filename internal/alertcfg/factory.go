package alertcfg

import "math"

// Priority bounds for displayed alerts.
const (
	MinPriority = 1
	MaxPriority = 10
)

// Signal is a measured quantity that ShouldGenerate classifies.
type Signal string

const (
	SignalBudget    Signal = "budget"
	SignalScarcity  Signal = "scarcity"
	SignalVelocity  Signal = "velocity"
	SignalInflation Signal = "inflation"
)

// Situation selects a play-style hint appended to alert messages.
type Situation string

const (
	SituationLowBudget    Situation = "low_budget"
	SituationHighScarcity Situation = "high_scarcity"
	SituationOpportunity  Situation = "opportunity"
	SituationCompetition  Situation = "competition"
)

var styleHints = map[PlayStyle]map[Situation]string{
	Aggressive: {
		SituationLowBudget:    "You spent big and it paid off. Now hunt for bargains.",
		SituationHighScarcity: "Top picks are running out. Act now or settle.",
		SituationOpportunity:  "Bargain on the table. Do not overthink it.",
		SituationCompetition:  "Fight for this one. Do not give up easily.",
	},
	Balanced: {
		SituationLowBudget:    "Spread the last credits to complete the roster.",
		SituationHighScarcity: "Decide whether to compete or move to alternatives.",
		SituationOpportunity:  "Good chance. Weigh it against your needs.",
		SituationCompetition:  "Set a maximum price and stick to it.",
	},
	Conservative: {
		SituationLowBudget:    "Budget well managed. Keep buying selectively under 15.",
		SituationHighScarcity: "Look at cheaper alternatives and avoid panic bids.",
		SituationOpportunity:  "Interesting, but make sure it really is a deal.",
		SituationCompetition:  "Let them fight over it and target solid alternatives.",
	},
	ValueHunter: {
		SituationLowBudget:    "Now is the best moment for bargains.",
		SituationHighScarcity: "Skip the stars and look for undervalued picks.",
		SituationOpportunity:  "Deal detected. This is your moment.",
		SituationCompetition:  "Walk away if the price climbs, other deals will come.",
	},
}

// StyleHint returns the hint for style and situation, or "".
func StyleHint(style PlayStyle, s Situation) string {
	return styleHints[style][s]
}

// Factory applies a profile to alert synthesis.
type Factory struct {
	cfg Config
}

// NewFactory binds a factory to cfg.
func NewFactory(cfg Config) Factory {
	return Factory{cfg: cfg}
}

// Config returns the bound profile.
func (f Factory) Config() Config {
	return f.cfg
}

// AdjustPriority scales base by the category weight and rounds half away
// from zero. A zero weight counts as 1. The result is clamped to 1..10.
func (f Factory) AdjustPriority(base int, c Category) int {
	w := f.cfg.Weights.For(c)
	if w == 0 {
		w = 1
	}
	p := int(math.Round(float64(base) * w))
	if p < MinPriority {
		return MinPriority
	}
	if p > MaxPriority {
		return MaxPriority
	}
	return p
}

// ShouldGenerate classifies value against the thresholds for signal.
func (f Factory) ShouldGenerate(signal Signal, value float64) (Level, bool) {
	t := f.cfg.Thresholds
	switch signal {
	case SignalBudget:
		if value <= t.Budget.Critical {
			return LevelCritical, true
		}
		if value <= t.Budget.Warning {
			return LevelWarning, true
		}
	case SignalScarcity:
		if value >= t.Scarcity.Critical {
			return LevelCritical, true
		}
		if value >= t.Scarcity.Warning {
			return LevelWarning, true
		}
	case SignalVelocity:
		if value >= t.Velocity.Fast || value <= t.Velocity.Slow {
			return LevelInfo, true
		}
	case SignalInflation:
		if value >= t.Inflation.High {
			return LevelWarning, true
		}
		if value <= t.Inflation.Low {
			return LevelOpportunity, true
		}
	}
	return "", false
}

// PersonalizeMessage appends the play-style hint for s, if any.
func (f Factory) PersonalizeMessage(msg string, s Situation) string {
	hint := StyleHint(f.cfg.PlayStyle, s)
	if hint == "" {
		return msg
	}
	return msg + " " + hint
}
