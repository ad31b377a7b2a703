// Package alertcfg holds the alert configuration profiles and the factory
// helpers that scale and classify alerts for the active profile.
package alertcfg

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// PlayStyle names a built-in profile.
type PlayStyle string

const (
	Aggressive   PlayStyle = "aggressive"
	Balanced     PlayStyle = "balanced"
	Conservative PlayStyle = "conservative"
	ValueHunter  PlayStyle = "value_hunter"
)

// PlayStyles lists the built-in profiles.
var PlayStyles = []PlayStyle{Aggressive, Balanced, Conservative, ValueHunter}

// ParsePlayStyle accepts a case-insensitive style name; "value-hunter" is
// also accepted.
func ParsePlayStyle(raw string) (PlayStyle, error) {
	s := PlayStyle(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), "-", "_"))
	if _, ok := presets[s]; ok {
		return s, nil
	}
	return "", fmt.Errorf("unknown play style %q", raw)
}

// Level is the severity of an alert.
type Level string

const (
	LevelInfo        Level = "info"
	LevelWarning     Level = "warning"
	LevelCritical    Level = "critical"
	LevelOpportunity Level = "opportunity"
)

// Category groups alerts for priority weighting.
type Category string

const (
	CategoryBudget      Category = "budget"
	CategoryStrategy    Category = "strategy"
	CategoryTiming      Category = "timing"
	CategoryCompetition Category = "competition"
	CategoryScarcity    Category = "scarcity"
)

// Range is a critical/warning pair.
type Range struct {
	Critical float64 `json:"critical" mapstructure:"critical"`
	Warning  float64 `json:"warning" mapstructure:"warning"`
}

// Pace is a fast/slow purchase rate pair, in purchases per minute.
type Pace struct {
	Fast float64 `json:"fast" mapstructure:"fast"`
	Slow float64 `json:"slow" mapstructure:"slow"`
}

// Band is a high/low ratio pair.
type Band struct {
	High float64 `json:"high" mapstructure:"high"`
	Low  float64 `json:"low" mapstructure:"low"`
}

// Thresholds drive alert generation.
type Thresholds struct {
	Budget    Range `json:"budget"`
	Scarcity  Range `json:"scarcity"`
	Velocity  Pace  `json:"velocity"`
	Inflation Band  `json:"inflation"`
}

// Behavior holds the operator toggles.
type Behavior struct {
	Predictive         bool          `json:"predictive"`
	Sound              bool          `json:"sound"`
	Frequency          time.Duration `json:"frequency"`
	MaxAlertsDisplay   int           `json:"max_alerts_display"`
	AutoDismissInfo    bool          `json:"auto_dismiss_info"`
	AutoDismissTimeout time.Duration `json:"auto_dismiss_timeout"`
}

// Weights scale base priorities per category.
type Weights struct {
	Budget      float64 `json:"budget"`
	Scarcity    float64 `json:"scarcity"`
	Timing      float64 `json:"timing"`
	Competition float64 `json:"competition"`
	Strategy    float64 `json:"strategy"`
}

// For returns the weight of a category. Unknown categories weigh 1.
func (w Weights) For(c Category) float64 {
	switch c {
	case CategoryBudget:
		return w.Budget
	case CategoryScarcity:
		return w.Scarcity
	case CategoryTiming:
		return w.Timing
	case CategoryCompetition:
		return w.Competition
	case CategoryStrategy:
		return w.Strategy
	default:
		return 1
	}
}

// Config is one complete alert profile. Updates replace it whole.
type Config struct {
	PlayStyle  PlayStyle  `json:"play_style"`
	Thresholds Thresholds `json:"thresholds"`
	Behavior   Behavior   `json:"behavior"`
	Weights    Weights    `json:"priority_weights"`
}

type preset struct {
	thresholds Thresholds
	weights    Weights
}

var presets = map[PlayStyle]preset{
	Aggressive: {
		thresholds: Thresholds{
			Budget:    Range{Critical: 30, Warning: 80},
			Scarcity:  Range{Critical: 0.8, Warning: 0.6},
			Velocity:  Pace{Fast: 3, Slow: 0.5},
			Inflation: Band{High: 1.2, Low: 0.9},
		},
		weights: Weights{Budget: 0.6, Scarcity: 1.0, Timing: 0.9, Competition: 1.0, Strategy: 0.7},
	},
	Balanced: {
		thresholds: Thresholds{
			Budget:    Range{Critical: 50, Warning: 100},
			Scarcity:  Range{Critical: 0.85, Warning: 0.7},
			Velocity:  Pace{Fast: 2, Slow: 0.3},
			Inflation: Band{High: 1.3, Low: 0.85},
		},
		weights: Weights{Budget: 0.8, Scarcity: 0.8, Timing: 0.8, Competition: 0.8, Strategy: 0.8},
	},
	Conservative: {
		thresholds: Thresholds{
			Budget:    Range{Critical: 70, Warning: 150},
			Scarcity:  Range{Critical: 0.9, Warning: 0.75},
			Velocity:  Pace{Fast: 1.5, Slow: 0.2},
			Inflation: Band{High: 1.4, Low: 0.8},
		},
		weights: Weights{Budget: 1.0, Scarcity: 0.6, Timing: 0.6, Competition: 0.5, Strategy: 0.9},
	},
	ValueHunter: {
		thresholds: Thresholds{
			Budget:    Range{Critical: 40, Warning: 90},
			Scarcity:  Range{Critical: 0.95, Warning: 0.85},
			Velocity:  Pace{Fast: 2.5, Slow: 0.4},
			Inflation: Band{High: 1.1, Low: 0.95},
		},
		weights: Weights{Budget: 0.9, Scarcity: 0.5, Timing: 1.0, Competition: 0.4, Strategy: 1.0},
	},
}

// DefaultBehavior is shared by every preset.
func DefaultBehavior() Behavior {
	return Behavior{
		Predictive:         true,
		Sound:              true,
		Frequency:          5 * time.Second,
		MaxAlertsDisplay:   10,
		AutoDismissInfo:    true,
		AutoDismissTimeout: 30 * time.Second,
	}
}

// Default returns the balanced profile.
func Default() Config {
	cfg, _ := Preset(Balanced)
	return cfg
}

// Preset returns the full profile for a built-in style.
func Preset(style PlayStyle) (Config, error) {
	p, ok := presets[style]
	if !ok {
		return Config{}, fmt.Errorf("unknown play style %q", style)
	}
	return Config{
		PlayStyle:  style,
		Thresholds: p.thresholds,
		Behavior:   DefaultBehavior(),
		Weights:    p.weights,
	}, nil
}

// Validate checks internal consistency of the profile.
func (c Config) Validate() error {
	var errs []error
	if _, ok := presets[c.PlayStyle]; !ok {
		errs = append(errs, fmt.Errorf("play_style %q is not a known profile", c.PlayStyle))
	}
	t := c.Thresholds
	if t.Budget.Critical < 0 || t.Budget.Warning < t.Budget.Critical {
		errs = append(errs, errors.New("budget thresholds require 0 <= critical <= warning"))
	}
	if t.Scarcity.Warning < 0 || t.Scarcity.Critical > 1 || t.Scarcity.Critical < t.Scarcity.Warning {
		errs = append(errs, errors.New("scarcity thresholds require 0 <= warning <= critical <= 1"))
	}
	if t.Velocity.Slow < 0 || t.Velocity.Fast <= t.Velocity.Slow {
		errs = append(errs, errors.New("velocity thresholds require 0 <= slow < fast"))
	}
	if t.Inflation.Low <= 0 || t.Inflation.High <= t.Inflation.Low {
		errs = append(errs, errors.New("inflation thresholds require 0 < low < high"))
	}
	b := c.Behavior
	if b.Frequency <= 0 {
		errs = append(errs, errors.New("behavior frequency must be positive"))
	}
	if b.MaxAlertsDisplay <= 0 {
		errs = append(errs, errors.New("behavior max_alerts_display must be positive"))
	}
	if b.AutoDismissInfo && b.AutoDismissTimeout <= 0 {
		errs = append(errs, errors.New("behavior auto_dismiss_timeout must be positive when auto dismiss is on"))
	}
	w := c.Weights
	for name, v := range map[string]float64{
		"budget": w.Budget, "scarcity": w.Scarcity, "timing": w.Timing,
		"competition": w.Competition, "strategy": w.Strategy,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("priority weight %s must not be negative", name))
		}
	}
	return errors.Join(errs...)
}
