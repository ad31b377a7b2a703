package alerting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"auction-advisor/internal/alertcfg"
	"auction-advisor/internal/market"
)

var levelRank = map[alertcfg.Level]int{
	alertcfg.LevelInfo:        0,
	alertcfg.LevelOpportunity: 1,
	alertcfg.LevelWarning:     2,
	alertcfg.LevelCritical:    3,
}

// Policy decides which alerts leave the process.
type Policy struct {
	// MinLevel is the lowest level forwarded.
	MinLevel alertcfg.Level
	// MinPriority also forwards alerts below MinLevel whose priority reaches
	// it. Zero disables the priority path.
	MinPriority int
	// Cooldown suppresses repeats of the same condition.
	Cooldown time.Duration
}

// Dispatcher filters alerts through a Policy and fans them out to every
// configured channel. Safe for concurrent use.
type Dispatcher struct {
	policy   Policy
	channels map[string]Notifier
	order    []string
	now      func() time.Time
	logger   zerolog.Logger

	mu   sync.Mutex
	sent map[string]time.Time
}

// NewDispatcher constructs a dispatcher. Channels are tried in the order
// they were added.
func NewDispatcher(policy Policy, logger zerolog.Logger) *Dispatcher {
	if policy.MinLevel == "" {
		policy.MinLevel = alertcfg.LevelCritical
	}
	return &Dispatcher{
		policy:   policy,
		channels: make(map[string]Notifier),
		now:      time.Now,
		logger:   logger.With().Str("component", "dispatcher").Logger(),
		sent:     make(map[string]time.Time),
	}
}

// Add registers a channel.
func (d *Dispatcher) Add(name string, n Notifier) {
	if _, ok := d.channels[name]; !ok {
		d.order = append(d.order, name)
	}
	d.channels[name] = n
}

// Channels returns the registered channel names.
func (d *Dispatcher) Channels() []string {
	return append([]string(nil), d.order...)
}

// Allow reports whether a passes the policy and its cooldown. A true answer
// starts the cooldown.
func (d *Dispatcher) Allow(a market.SmartAlert) bool {
	if levelRank[a.Level] < levelRank[d.policy.MinLevel] &&
		(d.policy.MinPriority <= 0 || a.Priority < d.policy.MinPriority) {
		return false
	}

	key := a.Key
	if key == "" {
		key = a.Title
	}
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.sent[key]; ok && d.policy.Cooldown > 0 && now.Sub(last) < d.policy.Cooldown {
		return false
	}
	d.sent[key] = now
	return true
}

// Dispatch forwards the alerts that pass the policy. It returns the
// channels that accepted each delivered alert, keyed by alert ID.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID string, silent bool, alerts []market.SmartAlert) (map[string][]string, error) {
	delivered := make(map[string][]string)
	if len(d.order) == 0 {
		return delivered, nil
	}

	var errs []error
	for _, a := range alerts {
		if !d.Allow(a) {
			continue
		}
		note := Notification{SessionID: sessionID, Alert: a, Silent: silent, Channels: d.Channels()}
		for _, name := range d.order {
			if err := d.channels[name].Notify(ctx, note); err != nil {
				d.logger.Error().Err(err).Str("channel", name).Str("alert_id", a.ID).Msg("failed to dispatch alert")
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				continue
			}
			delivered[a.ID] = append(delivered[a.ID], name)
		}
	}
	return delivered, errors.Join(errs...)
}
