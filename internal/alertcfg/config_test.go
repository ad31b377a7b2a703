package alertcfg

import (
	"testing"
	"time"
)

func TestPresetsAreValid(t *testing.T) {
	for _, style := range PlayStyles {
		cfg, err := Preset(style)
		if err != nil {
			t.Fatalf("Preset(%s): %v", style, err)
		}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("preset %s invalid: %v", style, err)
		}
	}
}

func TestDefaultIsBalanced(t *testing.T) {
	cfg := Default()
	if cfg.PlayStyle != Balanced {
		t.Fatalf("default style %s, want balanced", cfg.PlayStyle)
	}
	if cfg.Thresholds.Budget.Warning != 100 || cfg.Thresholds.Scarcity.Critical != 0.85 {
		t.Fatalf("unexpected thresholds: %+v", cfg.Thresholds)
	}
	if cfg.Behavior.Frequency != 5*time.Second || cfg.Behavior.MaxAlertsDisplay != 10 {
		t.Fatalf("unexpected behavior: %+v", cfg.Behavior)
	}
}

func TestBuildAppliesOverrides(t *testing.T) {
	warning := 120.0
	sound := false
	timeout := 45 * time.Second
	cfg, err := Build(Conservative, Overrides{
		BudgetWarning:      &warning,
		Sound:              &sound,
		AutoDismissTimeout: &timeout,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if cfg.Thresholds.Budget.Warning != 120 || cfg.Thresholds.Budget.Critical != 70 {
		t.Fatalf("unexpected budget thresholds: %+v", cfg.Thresholds.Budget)
	}
	if cfg.Behavior.Sound || cfg.Behavior.AutoDismissTimeout != timeout || !cfg.Behavior.Predictive {
		t.Fatalf("unexpected behavior: %+v", cfg.Behavior)
	}
	if cfg.Weights.Competition != 0.5 {
		t.Fatalf("preset weight lost: %+v", cfg.Weights)
	}
}

func TestBuildRejectsInconsistentOverrides(t *testing.T) {
	critical := 200.0
	if _, err := Build(Balanced, Overrides{BudgetCritical: &critical}); err == nil {
		t.Fatal("expected error for critical above warning")
	}
	if _, err := Build("reckless", Overrides{}); err == nil {
		t.Fatal("expected error for unknown style")
	}
}

func TestParsePlayStyle(t *testing.T) {
	cases := map[string]PlayStyle{
		"aggressive":   Aggressive,
		" Balanced ":   Balanced,
		"value-hunter": ValueHunter,
		"VALUE_HUNTER": ValueHunter,
		"conservative": Conservative,
	}
	for raw, want := range cases {
		got, err := ParsePlayStyle(raw)
		if err != nil || got != want {
			t.Fatalf("ParsePlayStyle(%q) = %s, %v", raw, got, err)
		}
	}
	if _, err := ParsePlayStyle("chaotic"); err == nil {
		t.Fatal("expected error")
	}
}
