package market

import (
	"fmt"
	"math"
	"strings"

	"auction-advisor/internal/alertcfg"
	"auction-advisor/internal/catalog"
	"auction-advisor/internal/ledger"
)

// Keys of recurring alerts.
const (
	keyBudget      = "budget"
	keyVelocity    = "velocity"
	keyOpportunity = "opportunity-window"
	keyStrategy    = "strategy"
	keyInflation   = "inflation-trend"

	prefixScarcity    = "scarcity:"
	prefixCompetition = "competition:"
	prefixForecast    = "forecast:"
)

func predictiveKey(key string) bool {
	return key == keyInflation || strings.HasPrefix(key, prefixForecast)
}

func (e *Engine) purchaseAlerts(evt ledger.PurchaseEvent, mine bool) []SmartAlert {
	var out []SmartAlert
	cand := evt.Candidate

	if !mine && e.watcher != nil && e.watcher.Watching(cand) {
		out = append(out, SmartAlert{
			Level:      alertcfg.LevelWarning,
			Category:   alertcfg.CategoryCompetition,
			Title:      "Watch list alert",
			Message:    fmt.Sprintf("%s taken by %s for %s", cand.Name, evt.Owner, evt.Price.String()),
			Confidence: 100,
			Priority:   e.factory.AdjustPriority(7, alertcfg.CategoryCompetition),
			Metadata:   Metadata{CandidateID: cand.ID, Position: cand.Position, Team: evt.Owner},
		})
	}

	if !evt.Expected.IsPositive() {
		return out
	}
	ratio := evt.Price.InexactFloat64() / evt.Expected.InexactFloat64()
	switch {
	case ratio > e.params.OverpayRatio:
		out = append(out, SmartAlert{
			Level:      alertcfg.LevelInfo,
			Category:   alertcfg.CategoryBudget,
			Title:      "Overpay detected",
			Message:    fmt.Sprintf("%s paid %d%% above expected value", cand.Name, percent(ratio-1)),
			Confidence: 90,
			Priority:   e.factory.AdjustPriority(5, alertcfg.CategoryBudget),
			Metadata: Metadata{
				CandidateID: cand.ID,
				Position:    cand.Position,
				Team:        evt.Owner,
				Reasoning:   fmt.Sprintf("paid %s, expected %s", evt.Price.String(), evt.Expected.String()),
			},
		})
	case ratio < e.params.BargainRatio && cand.ConvenienceScore > e.params.BargainMinConvenience:
		msg := fmt.Sprintf("%s bought at a great price (%d%% below value)", cand.Name, percent(1-ratio))
		out = append(out, SmartAlert{
			Level:      alertcfg.LevelOpportunity,
			Category:   alertcfg.CategoryBudget,
			Title:      "Bargain closed",
			Message:    e.factory.PersonalizeMessage(msg, alertcfg.SituationOpportunity),
			Confidence: 90,
			Priority:   e.factory.AdjustPriority(6, alertcfg.CategoryBudget),
			Metadata: Metadata{
				CandidateID: cand.ID,
				Position:    cand.Position,
				Team:        evt.Owner,
				Reasoning:   fmt.Sprintf("paid %s, expected %s", evt.Price.String(), evt.Expected.String()),
			},
		})
	}
	return out
}

// AnalyzeCurrentState re-evaluates the conditional alerts against the
// current ledger state and returns the ones newly published.
func (e *Engine) AnalyzeCurrentState() []SmartAlert {
	e.mu.Lock()
	defer e.mu.Unlock()

	state := e.source.State()
	e.refresh(state)
	batch := e.stateAlerts(state)
	return e.publishPass(batch, func(key string) bool { return !predictiveKey(key) })
}

// GeneratePredictiveAlerts forecasts exhaustion of top candidates and price
// inflation. It is a no-op when predictive alerts are disabled.
func (e *Engine) GeneratePredictiveAlerts() []SmartAlert {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.cfg.Behavior.Predictive {
		return nil
	}
	e.refresh(e.source.State())
	batch := e.predictiveAlerts()
	return e.publishPass(batch, predictiveKey)
}

func (e *Engine) stateAlerts(state ledger.State) []SmartAlert {
	var out []SmartAlert
	th := e.cfg.Thresholds
	slots := state.SlotsInfo()
	remaining := state.RemainingBudget.InexactFloat64()

	if remaining < th.Budget.Warning && remaining > 0 {
		if open := state.TotalSlotsRemaining(); open > 0 {
			level, base := alertcfg.LevelWarning, 8
			if l, _ := e.factory.ShouldGenerate(alertcfg.SignalBudget, remaining); l == alertcfg.LevelCritical {
				level, base = l, 9
			}
			avg := remaining / float64(open)
			ceiling := int(math.Floor(avg * 1.2))
			msg := fmt.Sprintf("Only %.1f per remaining slot. Target bargains under %d", avg, ceiling)
			out = append(out, SmartAlert{
				Key:        keyBudget,
				Level:      level,
				Category:   alertcfg.CategoryBudget,
				Title:      "Budget running low",
				Message:    e.factory.PersonalizeMessage(msg, alertcfg.SituationLowBudget),
				Confidence: 95,
				Priority:   e.factory.AdjustPriority(base, alertcfg.CategoryBudget),
				Suggestion: fmt.Sprintf("Filter candidates priced under %d", ceiling),
			})
		}
	}

	for _, pos := range catalog.Positions {
		scarcity := e.metrics.Scarcity[pos]
		if scarcity <= th.Scarcity.Warning || slots[pos].Remaining <= 0 {
			continue
		}
		level, base := alertcfg.LevelWarning, 7
		if scarcity > th.Scarcity.Critical {
			level, base = alertcfg.LevelCritical, 9
		}
		msg := fmt.Sprintf("Only %d top %s candidates available. Act now or fall back to alternatives",
			e.metrics.TopRemaining[pos], pos)
		out = append(out, SmartAlert{
			Key:        prefixScarcity + string(pos),
			Level:      level,
			Category:   alertcfg.CategoryScarcity,
			Title:      fmt.Sprintf("Scarcity %s", pos),
			Message:    e.factory.PersonalizeMessage(msg, alertcfg.SituationHighScarcity),
			Confidence: 85,
			Priority:   e.factory.AdjustPriority(base, alertcfg.CategoryScarcity),
			Suggestion: fmt.Sprintf("Show best available %s", pos),
			Metadata: Metadata{
				Position:  pos,
				Reasoning: fmt.Sprintf("%.0f%% of %s taken", scarcity*100, pos),
			},
		})
	}

	v := e.metrics.Velocity
	if v.Trend == TrendAccelerating {
		out = append(out, SmartAlert{
			Key:        keyVelocity,
			Level:      alertcfg.LevelInfo,
			Category:   alertcfg.CategoryTiming,
			Title:      "Auction accelerating",
			Message:    fmt.Sprintf("Purchase pace is rising (%d in the last 5 minutes). Be ready to decide fast", v.Last5),
			Confidence: 80,
			Priority:   e.factory.AdjustPriority(6, alertcfg.CategoryTiming),
			TTL:        e.params.VelocityTTL,
		})
	}

	if sel := state.Selected; sel != nil {
		for _, prof := range e.metrics.Competitors {
			if prof.Pattern != PatternAggressive || !prof.BudgetRemaining.GreaterThan(e.params.AggressiveRivalBudget) {
				continue
			}
			if !prof.Prefers(sel.Position) {
				continue
			}
			msg := fmt.Sprintf("%s may compete for %s (budget left %s)", prof.Name, sel.Name, prof.BudgetRemaining.String())
			out = append(out, SmartAlert{
				Key:        fmt.Sprintf("%s%d", prefixCompetition, sel.ID),
				Level:      alertcfg.LevelWarning,
				Category:   alertcfg.CategoryCompetition,
				Title:      "Competitor alert",
				Message:    e.factory.PersonalizeMessage(msg, alertcfg.SituationCompetition),
				Confidence: 70,
				Priority:   e.factory.AdjustPriority(7, alertcfg.CategoryCompetition),
				Metadata:   Metadata{CandidateID: sel.ID, Position: sel.Position, Team: prof.Name},
			})
			break
		}
	}

	if v.Trend == TrendSlowing {
		var cheap []string
		for _, pos := range catalog.Positions {
			if e.metrics.Inflation[pos] < e.params.OpportunityInflation && slots[pos].Remaining > 0 {
				cheap = append(cheap, string(pos))
			}
		}
		if len(cheap) > 0 {
			msg := fmt.Sprintf("Good moment for %s: prices below average and low competition", strings.Join(cheap, ", "))
			out = append(out, SmartAlert{
				Key:        keyOpportunity,
				Level:      alertcfg.LevelOpportunity,
				Category:   alertcfg.CategoryTiming,
				Title:      "Opportunity window",
				Message:    e.factory.PersonalizeMessage(msg, alertcfg.SituationOpportunity),
				Confidence: 75,
				Priority:   e.factory.AdjustPriority(8, alertcfg.CategoryTiming),
				TTL:        e.params.OpportunityTTL,
				Suggestion: fmt.Sprintf("Focus on %s", cheap[0]),
			})
		}
	}

	if a, ok := e.strategyAlert(state); ok {
		out = append(out, a)
	}
	return out
}

func (e *Engine) strategyAlert(state ledger.State) (SmartAlert, bool) {
	total := state.Config.TotalBudget.InexactFloat64()
	rivals := e.metrics.Competitors
	if total <= 0 || len(rivals) == 0 {
		return SmartAlert{}, false
	}
	if limit := e.params.StrategyRosterLimit; limit > 0 && len(state.MyTeam) >= limit {
		return SmartAlert{}, false
	}

	mine := state.Spent().InexactFloat64() / total
	sum := 0.0
	for _, prof := range rivals {
		sum += 1 - prof.BudgetRemaining.InexactFloat64()/total
	}
	avg := sum / float64(len(rivals))
	if avg <= 0 || mine > avg*e.params.StrategicRatio {
		return SmartAlert{}, false
	}
	return SmartAlert{
		Key:        keyStrategy,
		Level:      alertcfg.LevelInfo,
		Category:   alertcfg.CategoryStrategy,
		Title:      "Conservative pace",
		Message:    "You are spending less than the table average. You can afford a few more top candidates",
		Confidence: 65,
		Priority:   e.factory.AdjustPriority(5, alertcfg.CategoryStrategy),
		Metadata: Metadata{
			Reasoning: fmt.Sprintf("you: %d%% spent, rivals: %d%%", percent(mine), percent(avg)),
		},
	}, true
}

func (e *Engine) predictiveAlerts() []SmartAlert {
	var out []SmartAlert
	perMinute := e.metrics.Velocity.PerMinute()
	horizon := e.params.ExhaustionHorizon.Minutes()

	for _, pos := range catalog.Positions {
		top := e.metrics.TopRemaining[pos]
		if top < 1 || top > 5 || perMinute <= 0 {
			continue
		}
		minutes := float64(top) / (perMinute * e.params.TopShare)
		if minutes >= horizon {
			continue
		}
		out = append(out, SmartAlert{
			Key:        prefixForecast + string(pos),
			Level:      alertcfg.LevelWarning,
			Category:   alertcfg.CategoryTiming,
			Title:      fmt.Sprintf("Forecast %s", pos),
			Message:    fmt.Sprintf("Top %s candidates run out in about %d minutes at the current pace", pos, int(math.Round(minutes))),
			Confidence: 60,
			Priority:   e.factory.AdjustPriority(7, alertcfg.CategoryTiming),
			Metadata:   Metadata{Position: pos},
		})
	}

	if rate, ok := inflationTrend(e.history, e.params.InflationWindow); ok && rate > e.params.InflationTrendRate {
		out = append(out, SmartAlert{
			Key:        keyInflation,
			Level:      alertcfg.LevelInfo,
			Category:   alertcfg.CategoryBudget,
			Title:      "Price inflation",
			Message:    fmt.Sprintf("Prices rose %d%% over the latest purchases. Consider buying earlier", percent(rate)),
			Confidence: 70,
			Priority:   e.factory.AdjustPriority(6, alertcfg.CategoryBudget),
		})
	}
	return out
}

// inflationTrend compares the average price of the last n purchases with
// the n before them.
func inflationTrend(history []ledger.PurchaseEvent, n int) (float64, bool) {
	if len(history) <= n {
		return 0, false
	}
	recent := history[len(history)-n:]
	start := len(history) - 2*n
	if start < 0 {
		start = 0
	}
	older := history[start : len(history)-n]

	recentAvg := averagePrice(recent)
	olderAvg := averagePrice(older)
	if olderAvg <= 0 {
		return 0, false
	}
	return (recentAvg - olderAvg) / olderAvg, true
}

func averagePrice(events []ledger.PurchaseEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	sum := 0.0
	for _, evt := range events {
		sum += evt.Price.InexactFloat64()
	}
	return sum / float64(len(events))
}

func percent(f float64) int {
	return int(math.Round(f * 100))
}
