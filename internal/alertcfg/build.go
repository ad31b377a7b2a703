package alertcfg

import "time"

// Overrides carries hand-tuned fields. A nil field keeps the preset value.
type Overrides struct {
	BudgetCritical   *float64 `mapstructure:"budget_critical"`
	BudgetWarning    *float64 `mapstructure:"budget_warning"`
	ScarcityCritical *float64 `mapstructure:"scarcity_critical"`
	ScarcityWarning  *float64 `mapstructure:"scarcity_warning"`
	VelocityFast     *float64 `mapstructure:"velocity_fast"`
	VelocitySlow     *float64 `mapstructure:"velocity_slow"`
	InflationHigh    *float64 `mapstructure:"inflation_high"`
	InflationLow     *float64 `mapstructure:"inflation_low"`

	Predictive         *bool          `mapstructure:"predictive"`
	Sound              *bool          `mapstructure:"sound"`
	Frequency          *time.Duration `mapstructure:"frequency"`
	MaxAlertsDisplay   *int           `mapstructure:"max_alerts_display"`
	AutoDismissInfo    *bool          `mapstructure:"auto_dismiss_info"`
	AutoDismissTimeout *time.Duration `mapstructure:"auto_dismiss_timeout"`

	WeightBudget      *float64 `mapstructure:"weight_budget"`
	WeightScarcity    *float64 `mapstructure:"weight_scarcity"`
	WeightTiming      *float64 `mapstructure:"weight_timing"`
	WeightCompetition *float64 `mapstructure:"weight_competition"`
	WeightStrategy    *float64 `mapstructure:"weight_strategy"`
}

// Build starts from the preset for style, applies overrides and validates the
// result. Every field of the returned config is set.
func Build(style PlayStyle, o Overrides) (Config, error) {
	cfg, err := Preset(style)
	if err != nil {
		return Config{}, err
	}

	setFloat(&cfg.Thresholds.Budget.Critical, o.BudgetCritical)
	setFloat(&cfg.Thresholds.Budget.Warning, o.BudgetWarning)
	setFloat(&cfg.Thresholds.Scarcity.Critical, o.ScarcityCritical)
	setFloat(&cfg.Thresholds.Scarcity.Warning, o.ScarcityWarning)
	setFloat(&cfg.Thresholds.Velocity.Fast, o.VelocityFast)
	setFloat(&cfg.Thresholds.Velocity.Slow, o.VelocitySlow)
	setFloat(&cfg.Thresholds.Inflation.High, o.InflationHigh)
	setFloat(&cfg.Thresholds.Inflation.Low, o.InflationLow)

	if o.Predictive != nil {
		cfg.Behavior.Predictive = *o.Predictive
	}
	if o.Sound != nil {
		cfg.Behavior.Sound = *o.Sound
	}
	if o.Frequency != nil {
		cfg.Behavior.Frequency = *o.Frequency
	}
	if o.MaxAlertsDisplay != nil {
		cfg.Behavior.MaxAlertsDisplay = *o.MaxAlertsDisplay
	}
	if o.AutoDismissInfo != nil {
		cfg.Behavior.AutoDismissInfo = *o.AutoDismissInfo
	}
	if o.AutoDismissTimeout != nil {
		cfg.Behavior.AutoDismissTimeout = *o.AutoDismissTimeout
	}

	setFloat(&cfg.Weights.Budget, o.WeightBudget)
	setFloat(&cfg.Weights.Scarcity, o.WeightScarcity)
	setFloat(&cfg.Weights.Timing, o.WeightTiming)
	setFloat(&cfg.Weights.Competition, o.WeightCompetition)
	setFloat(&cfg.Weights.Strategy, o.WeightStrategy)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
