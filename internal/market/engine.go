// Package market watches the purchase stream, keeps rolling market metrics
// and rival profiles, and publishes prioritised, time-bounded alerts.
package market

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"auction-advisor/internal/alertcfg"
	"auction-advisor/internal/catalog"
	"auction-advisor/internal/ledger"
)

const alertIDPrefix = "alert-"

// StateSource exposes the current ledger state.
type StateSource interface {
	State() ledger.State
}

// Watcher reports whether the operator is watching a candidate.
type Watcher interface {
	Watching(c catalog.Candidate) bool
}

// Listener receives every newly published alert. It is called with the
// engine lock held and must not call back into the engine.
type Listener func(SmartAlert)

// Options tune engine behaviour.
type Options struct {
	Clock    func() time.Time
	Params   *Params
	Watcher  Watcher
	Listener Listener
	Logger   zerolog.Logger
}

// Engine is the market intelligence engine. Methods are safe for concurrent
// use, although callers are expected to serialise purchases.
type Engine struct {
	mu sync.Mutex

	source   StateSource
	cfg      alertcfg.Config
	factory  alertcfg.Factory
	params   Params
	watcher  Watcher
	listener Listener
	logger   zerolog.Logger
	now      func() time.Time

	history  []ledger.PurchaseEvent
	profiles *profileBook
	metrics  Metrics
	alerts   []SmartAlert
	seq      uint64

	// suppressed holds keys of dismissed recurring alerts until their
	// condition clears.
	suppressed map[string]struct{}
}

// New constructs an engine reading ledger state from source.
func New(source StateSource, cfg alertcfg.Config, opts Options) *Engine {
	params := DefaultParams()
	if opts.Params != nil {
		params = opts.Params.withDefaults()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Engine{
		source:     source,
		cfg:        cfg,
		factory:    alertcfg.NewFactory(cfg),
		params:     params,
		watcher:    opts.Watcher,
		listener:   opts.Listener,
		logger:     opts.Logger.With().Str("component", "market").Logger(),
		now:        now,
		profiles:   newProfileBook(),
		metrics:    emptyMetrics(),
		suppressed: make(map[string]struct{}),
	}
}

// OnPurchase implements ledger.PurchaseObserver.
func (e *Engine) OnPurchase(evt ledger.PurchaseEvent) {
	e.RecordPurchase(evt)
}

// RecordPurchase appends evt to the history, refreshes metrics and the
// buyer's profile, and publishes purchase-triggered alerts. It returns the
// alerts it published.
func (e *Engine) RecordPurchase(evt ledger.PurchaseEvent) []SmartAlert {
	e.mu.Lock()
	defer e.mu.Unlock()

	state := e.source.State()
	e.history = append(e.history, evt)
	mine := state.Config.IsOperator(evt.Owner)
	if !mine {
		e.profiles.record(evt, e.history, state.Config.TotalBudget, e.params)
	}
	e.refresh(state)

	var out []SmartAlert
	for _, a := range e.purchaseAlerts(evt, mine) {
		if published, ok := e.publish(a); ok {
			out = append(out, published)
		}
	}
	return out
}

// Replay rebuilds history, metrics and profiles from a restored log without
// publishing alerts.
func (e *Engine) Replay(events []ledger.PurchaseEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state := e.source.State()
	e.history = nil
	e.profiles = newProfileBook()
	for _, evt := range events {
		e.history = append(e.history, evt)
		if !state.Config.IsOperator(evt.Owner) {
			e.profiles.record(evt, e.history, state.Config.TotalBudget, e.params)
		}
	}
	e.refresh(state)
	e.logger.Debug().Int("purchases", len(events)).Msg("market history replayed")
}

// Reset clears history, profiles and alerts. Alert IDs keep increasing.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.history = nil
	e.profiles = newProfileBook()
	e.metrics = emptyMetrics()
	e.alerts = nil
	e.suppressed = make(map[string]struct{})
}

// Metrics recomputes and returns the current market picture.
func (e *Engine) Metrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.refresh(e.source.State())
	return e.metrics
}

// Profile returns the competitor profile of a rival.
func (e *Engine) Profile(name string) (CompetitorProfile, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profiles.get(name)
}

// History returns a copy of the purchase history.
func (e *Engine) History() []ledger.PurchaseEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ledger.PurchaseEvent(nil), e.history...)
}

// Config returns the active alert configuration.
func (e *Engine) Config() alertcfg.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// SetConfig replaces the active configuration.
func (e *Engine) SetConfig(cfg alertcfg.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("alert config: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
	e.factory = alertcfg.NewFactory(cfg)
	e.logger.Info().Str("play_style", string(cfg.PlayStyle)).Msg("alert config replaced")
	return nil
}

// AdjustPriority scales a base priority with the active category weights.
func (e *Engine) AdjustPriority(base int, c alertcfg.Category) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.factory.AdjustPriority(base, c)
}

// ActiveAlerts drops expired alerts and returns the rest by descending
// priority, oldest first on ties.
func (e *Engine) ActiveAlerts() []SmartAlert {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.prune(e.now())
	out := append([]SmartAlert(nil), e.alerts...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// DisplayAlerts returns at most MaxAlertsDisplay active alerts.
func (e *Engine) DisplayAlerts() []SmartAlert {
	active := e.ActiveAlerts()
	limit := e.Config().Behavior.MaxAlertsDisplay
	if limit > 0 && len(active) > limit {
		active = active[:limit]
	}
	return active
}

// Dismiss removes an alert. Unknown IDs are ignored. A dismissed recurring
// alert is not raised again until its condition clears.
func (e *Engine) Dismiss(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, a := range e.alerts {
		if a.ID != id {
			continue
		}
		if a.Key != "" {
			e.suppressed[a.Key] = struct{}{}
		}
		e.alerts = append(e.alerts[:i], e.alerts[i+1:]...)
		return true
	}
	return false
}

// ClearAll dismisses every active alert.
func (e *Engine) ClearAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, a := range e.alerts {
		if a.Key != "" {
			e.suppressed[a.Key] = struct{}{}
		}
	}
	e.alerts = nil
}

// Sweep drops expired alerts and returns how many were removed.
func (e *Engine) Sweep() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prune(e.now())
}

func (e *Engine) prune(now time.Time) int {
	kept := e.alerts[:0]
	removed := 0
	for _, a := range e.alerts {
		if a.Expired(now) {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	e.alerts = kept
	return removed
}

func (e *Engine) refresh(state ledger.State) {
	e.metrics = computeMetrics(e.now(), state, e.history, e.profiles.list(), e.params)
}

// SeedSequence makes the next alert ID follow lastID, the newest ID issued
// for this session by an earlier process. Unparseable IDs are ignored.
func (e *Engine) SeedSequence(lastID string) {
	n, err := strconv.ParseUint(strings.TrimPrefix(lastID, alertIDPrefix), 10, 64)
	if err != nil || !strings.HasPrefix(lastID, alertIDPrefix) {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if n > e.seq {
		e.seq = n
	}
}

// publish stamps and stores a. A keyed alert replaces the active alert with
// the same key; identical content keeps the existing one.
func (e *Engine) publish(a SmartAlert) (SmartAlert, bool) {
	now := e.now()
	if a.Key != "" {
		if _, ok := e.suppressed[a.Key]; ok {
			return SmartAlert{}, false
		}
		for i, existing := range e.alerts {
			if existing.Key != a.Key {
				continue
			}
			if !existing.Expired(now) && existing.sameContent(a) {
				return SmartAlert{}, false
			}
			e.alerts = append(e.alerts[:i], e.alerts[i+1:]...)
			break
		}
	}

	if a.Level == alertcfg.LevelInfo && a.TTL == 0 && e.cfg.Behavior.AutoDismissInfo {
		a.TTL = e.cfg.Behavior.AutoDismissTimeout
	}
	e.seq++
	a.Seq = e.seq
	a.ID = alertIDPrefix + strconv.FormatUint(e.seq, 10)
	a.CreatedAt = now
	e.alerts = append(e.alerts, a)

	e.logger.Debug().
		Str("id", a.ID).
		Str("level", string(a.Level)).
		Str("category", string(a.Category)).
		Int("priority", a.Priority).
		Msg("alert published")
	if e.listener != nil {
		e.listener(a)
	}
	return a, true
}

// publishPass publishes a batch of condition alerts. Suppressed keys owned by
// the pass whose condition no longer holds are released.
func (e *Engine) publishPass(batch []SmartAlert, owns func(key string) bool) []SmartAlert {
	raised := make(map[string]struct{}, len(batch))
	for _, a := range batch {
		raised[a.Key] = struct{}{}
	}
	for key := range e.suppressed {
		if _, still := raised[key]; !still && owns(key) {
			delete(e.suppressed, key)
		}
	}

	var out []SmartAlert
	for _, a := range batch {
		if published, ok := e.publish(a); ok {
			out = append(out, published)
		}
	}
	return out
}
