package alertcfg

import (
	"strings"
	"testing"
)

func TestAdjustPriority(t *testing.T) {
	aggressive, _ := Preset(Aggressive)
	conservative, _ := Preset(Conservative)

	cases := []struct {
		name string
		cfg  Config
		base int
		cat  Category
		want int
	}{
		{"aggressive scarcity keeps base", aggressive, 9, CategoryScarcity, 9},
		{"aggressive budget scaled down", aggressive, 8, CategoryBudget, 5},
		{"conservative competition halves", conservative, 7, CategoryCompetition, 4},
		{"clamped to minimum", conservative, 1, CategoryCompetition, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NewFactory(tc.cfg).AdjustPriority(tc.base, tc.cat)
			if got != tc.want {
				t.Fatalf("AdjustPriority(%d, %s) = %d, want %d", tc.base, tc.cat, got, tc.want)
			}
		})
	}
}

func TestAdjustPriorityZeroWeightCountsAsOne(t *testing.T) {
	cfg := Default()
	cfg.Weights.Timing = 0
	if got := NewFactory(cfg).AdjustPriority(6, CategoryTiming); got != 6 {
		t.Fatalf("priority %d, want 6", got)
	}
	cfg.Weights.Strategy = 3
	if got := NewFactory(cfg).AdjustPriority(5, CategoryStrategy); got != MaxPriority {
		t.Fatalf("priority %d, want %d", got, MaxPriority)
	}
}

func TestShouldGenerate(t *testing.T) {
	f := NewFactory(Default())
	cases := []struct {
		signal Signal
		value  float64
		level  Level
		ok     bool
	}{
		{SignalBudget, 40, LevelCritical, true},
		{SignalBudget, 100, LevelWarning, true},
		{SignalBudget, 101, "", false},
		{SignalScarcity, 0.9, LevelCritical, true},
		{SignalScarcity, 0.7, LevelWarning, true},
		{SignalScarcity, 0.5, "", false},
		{SignalVelocity, 2, LevelInfo, true},
		{SignalVelocity, 0.3, LevelInfo, true},
		{SignalVelocity, 1, "", false},
		{SignalInflation, 1.4, LevelWarning, true},
		{SignalInflation, 0.8, LevelOpportunity, true},
		{SignalInflation, 1.0, "", false},
	}
	for _, tc := range cases {
		level, ok := f.ShouldGenerate(tc.signal, tc.value)
		if level != tc.level || ok != tc.ok {
			t.Fatalf("ShouldGenerate(%s, %v) = %s, %v; want %s, %v", tc.signal, tc.value, level, ok, tc.level, tc.ok)
		}
	}
}

func TestPersonalizeMessage(t *testing.T) {
	hunter, _ := Preset(ValueHunter)
	f := NewFactory(hunter)
	msg := f.PersonalizeMessage("Budget is thin.", SituationLowBudget)
	if !strings.HasPrefix(msg, "Budget is thin. ") || len(msg) == len("Budget is thin. ") {
		t.Fatalf("unexpected message %q", msg)
	}
	if got := f.PersonalizeMessage("plain", Situation("unknown")); got != "plain" {
		t.Fatalf("unexpected message %q", got)
	}
}
