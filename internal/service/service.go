// Package service wires the ledger, the price advisor, the market engine and
// the watch lists into one auction session. Every transaction, analysis tick
// and query goes through the session lock.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"auction-advisor/internal/advisor"
	"auction-advisor/internal/alertcfg"
	"auction-advisor/internal/catalog"
	"auction-advisor/internal/ledger"
	"auction-advisor/internal/market"
	"auction-advisor/internal/storage"
	"auction-advisor/internal/watchlist"
)

// ErrInsufficientBudget rejects an operator purchase above the remaining
// budget when strict budgeting is on.
var ErrInsufficientBudget = errors.New("insufficient budget")

// Dispatcher forwards alerts to outbound channels.
type Dispatcher interface {
	Dispatch(ctx context.Context, sessionID string, silent bool, alerts []market.SmartAlert) (map[string][]string, error)
}

// Options configure a session.
type Options struct {
	Name        string
	League      ledger.Config
	Candidates  []catalog.Candidate
	AlertConfig alertcfg.Config
	Params      *market.Params
	// StrictBudget rejects operator purchases above the remaining budget.
	StrictBudget bool
	Store        storage.Store
	Dispatcher   Dispatcher
	Clock        func() time.Time
}

// PurchaseResult reports a committed purchase.
type PurchaseResult struct {
	Event  ledger.PurchaseEvent
	Alerts []market.SmartAlert
	// OverCapacity is set when the operator now holds more players in the
	// position than the roster allows.
	OverCapacity bool
}

// Session is one live auction.
type Session struct {
	mu sync.Mutex

	id        string
	name      string
	createdAt time.Time
	strict    bool

	ledger *ledger.Ledger
	engine *market.Engine
	book   *watchlist.Book

	store      storage.Store
	dispatcher Dispatcher
	logger     zerolog.Logger

	// pending collects alerts published since the last drain.
	pending []market.SmartAlert
}

// New builds an in-memory session. Call Open to attach it to its store.
func New(opts Options, logger zerolog.Logger) *Session {
	alertCfg := opts.AlertConfig
	if alertCfg.Validate() != nil {
		alertCfg = alertcfg.Default()
	}

	s := &Session{
		name:       opts.Name,
		strict:     opts.StrictBudget,
		store:      opts.Store,
		dispatcher: opts.Dispatcher,
		book:       watchlist.NewBook(),
		logger:     logger.With().Str("component", "service").Logger(),
	}
	s.ledger = ledger.New(opts.League, opts.Candidates, ledger.Options{
		Clock:     opts.Clock,
		Appraiser: advisor.SuggestedPrice,
	})
	s.engine = market.New(s.ledger, alertCfg, market.Options{
		Clock:    opts.Clock,
		Params:   opts.Params,
		Watcher:  s.book,
		Listener: func(a market.SmartAlert) { s.pending = append(s.pending, a) },
		Logger:   logger,
	})
	s.ledger.Observe(s.engine)
	return s
}

// Open resumes session id from the store, or the most recent session when
// id is empty. Without a stored session it persists the fresh one. It is a
// no-op without a store.
func (s *Session) Open(ctx context.Context, id string, resume bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	if resume || id != "" {
		rec, err := s.store.LoadSession(ctx, id)
		switch {
		case err == nil:
			s.restore(rec)
			s.seedAlertSequence(ctx)
			return nil
		case errors.Is(err, storage.ErrNotFound):
			s.logger.Info().Str("session_id", id).Msg("no stored session, starting fresh")
		default:
			return fmt.Errorf("load session: %w", err)
		}
	}
	s.id = id
	return s.save(ctx)
}

// Restore replaces the session contents with a stored record.
func (s *Session) Restore(rec storage.SessionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restore(rec)
}

func (s *Session) restore(rec storage.SessionRecord) {
	s.id = rec.ID
	s.name = rec.Name
	s.createdAt = rec.CreatedAt

	dropped := s.ledger.Restore(rec.Snapshot)
	s.engine.Replay(s.ledger.Purchases())
	s.book.Restore(rec.WatchLists)
	s.book.Refresh(s.ledger.State().Candidates)
	if rec.AlertConfig.PlayStyle != "" {
		if err := s.engine.SetConfig(rec.AlertConfig); err != nil {
			s.logger.Warn().Err(err).Msg("stored alert config rejected, keeping current")
		}
	}
	s.logger.Info().
		Str("session_id", rec.ID).
		Int("purchases", len(rec.Snapshot.Purchases)).
		Int("dropped", dropped+rec.Dropped).
		Msg("session restored")
}

// seedAlertSequence continues alert IDs after the newest one recorded for
// the session, so the audit table never repeats an ID.
func (s *Session) seedAlertSequence(ctx context.Context) {
	recent, err := s.store.ListAlerts(ctx, s.id, 1)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to read alert history, alert ids restart")
		return
	}
	if len(recent) > 0 {
		s.engine.SeedSequence(recent[0].AlertID)
	}
}

// ID returns the stored session identifier, empty for in-memory sessions.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Purchase commits a sale and returns the alerts it triggered.
func (s *Session) Purchase(ctx context.Context, candidateID int, price decimal.Decimal, owner string) (PurchaseResult, error) {
	s.mu.Lock()
	res, err := s.purchase(ctx, candidateID, price, owner)
	silent := !s.engine.Config().Behavior.Sound
	s.mu.Unlock()

	if err != nil {
		return PurchaseResult{}, err
	}
	s.deliver(ctx, res.Alerts, silent)
	return res, nil
}

// PurchaseByName resolves the candidate by exact name and commits the sale.
func (s *Session) PurchaseByName(ctx context.Context, name string, price decimal.Decimal, owner string) (PurchaseResult, error) {
	s.mu.Lock()
	cand, ok := s.ledger.Catalog().FindByName(name)
	s.mu.Unlock()
	if !ok {
		return PurchaseResult{}, fmt.Errorf("%w: %q", ledger.ErrUnknownCandidate, name)
	}
	return s.Purchase(ctx, cand.ID, price, owner)
}

func (s *Session) purchase(ctx context.Context, candidateID int, price decimal.Decimal, owner string) (PurchaseResult, error) {
	cfg := s.ledger.Config()
	if s.strict && cfg.IsOperator(owner) && price.GreaterThan(s.ledger.RemainingBudget()) {
		return PurchaseResult{}, fmt.Errorf("%w: price %s, remaining %s", ErrInsufficientBudget, price, s.ledger.RemainingBudget())
	}

	s.pending = nil
	evt, err := s.ledger.Purchase(candidateID, price, owner)
	if err != nil {
		return PurchaseResult{}, err
	}
	res := PurchaseResult{Event: evt, Alerts: s.drain()}
	if cfg.IsOperator(evt.Owner) {
		res.OverCapacity = s.ledger.SlotsInfo()[evt.Candidate.Position].Remaining < 0
	}

	s.logger.Info().
		Int("seq", evt.Seq).
		Str("candidate", evt.Candidate.Name).
		Str("owner", evt.Owner).
		Str("price", evt.Price.String()).
		Str("expected", evt.Expected.String()).
		Int("alerts", len(res.Alerts)).
		Msg("purchase committed")

	if s.store != nil && s.id != "" {
		if err := s.store.AppendPurchase(ctx, storage.NewPurchaseRecord(s.id, evt)); err != nil {
			s.logger.Error().Err(err).Int("seq", evt.Seq).Msg("failed to append purchase")
		}
	}
	s.persist(ctx)
	return res, nil
}

// Select puts a candidate on the block.
func (s *Session) Select(candidateID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Select(candidateID)
}

// ClearSelection removes the candidate on the block.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger.ClearSelection()
}

// SetPhase switches the position filter.
func (s *Session) SetPhase(p ledger.Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger.SetPhase(p)
}

// Reset clears the auction, the alerts and the stored purchase log.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledger.Reset()
	s.engine.Reset()
	s.book.Refresh(s.ledger.State().Candidates)
	s.pending = nil
	if s.store != nil && s.id != "" {
		if err := s.store.ClearPurchases(ctx, s.id); err != nil {
			return fmt.Errorf("clear purchases: %w", err)
		}
	}
	s.logger.Info().Msg("auction reset")
	return s.save(ctx)
}

// State returns the current ledger state.
func (s *Session) State() ledger.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.State()
}

// Snapshot returns the persisted form of the ledger.
func (s *Session) Snapshot() ledger.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Snapshot()
}

// SlotsInfo reports the operator's slot usage per position.
func (s *Session) SlotsInfo() map[catalog.Position]ledger.Slots {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.SlotsInfo()
}

// Available lists the unsold candidates of a position, or of every position
// when pos is empty.
func (s *Session) Available(pos catalog.Position) []catalog.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Available(pos)
}

// Candidate looks up a candidate by ID.
func (s *Session) Candidate(id int) (catalog.Candidate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Catalog().Get(id)
}

// SuggestedPrice explains the maximum bid for a candidate.
func (s *Session) SuggestedPrice(candidateID int) (advisor.Calculation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cand, ok := s.ledger.Catalog().Get(candidateID)
	if !ok {
		return advisor.Calculation{}, fmt.Errorf("%w: %d", ledger.ErrUnknownCandidate, candidateID)
	}
	return advisor.Calculate(s.ledger.State(), cand), nil
}

// Metrics returns the current market picture.
func (s *Session) Metrics() market.Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Metrics()
}

// ActiveAlerts returns every live alert by descending priority.
func (s *Session) ActiveAlerts() []market.SmartAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.ActiveAlerts()
}

// DisplayAlerts returns the live alerts truncated to the display limit.
func (s *Session) DisplayAlerts() []market.SmartAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.DisplayAlerts()
}

// Dismiss removes one alert.
func (s *Session) Dismiss(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Dismiss(id)
}

// ClearAlerts dismisses every active alert.
func (s *Session) ClearAlerts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.ClearAll()
}

// AnalyzeNow runs one analysis pass: conditional alerts, predictive alerts
// when enabled, and an expiry sweep. It returns the newly published alerts.
func (s *Session) AnalyzeNow(ctx context.Context) []market.SmartAlert {
	s.mu.Lock()
	s.pending = nil
	s.engine.AnalyzeCurrentState()
	s.engine.GeneratePredictiveAlerts()
	swept := s.engine.Sweep()
	alerts := s.drain()
	silent := !s.engine.Config().Behavior.Sound
	s.mu.Unlock()

	if swept > 0 || len(alerts) > 0 {
		s.logger.Debug().Int("published", len(alerts)).Int("expired", swept).Msg("analysis pass")
	}
	s.deliver(ctx, alerts, silent)
	return alerts
}

// Tick adapts AnalyzeNow to the scheduler.
func (s *Session) Tick(ctx context.Context, _ time.Time) error {
	s.AnalyzeNow(ctx)
	return nil
}

// AlertConfig returns the active alert configuration.
func (s *Session) AlertConfig() alertcfg.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Config()
}

// AnalysisInterval is the poll frequency of the active alert configuration.
func (s *Session) AnalysisInterval() time.Duration {
	return s.AlertConfig().Behavior.Frequency
}

// SetAlertConfig replaces the alert configuration. The next purchase or
// analysis pass uses it, and a scheduler reading AnalysisInterval picks up
// the new frequency after its current tick.
func (s *Session) SetAlertConfig(ctx context.Context, cfg alertcfg.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.SetConfig(cfg); err != nil {
		return err
	}
	s.persist(ctx)
	return nil
}

// SetPlayStyle switches to the preset of style, keeping the operator's
// behaviour toggles.
func (s *Session) SetPlayStyle(ctx context.Context, style alertcfg.PlayStyle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := alertcfg.Preset(style)
	if err != nil {
		return err
	}
	cfg.Behavior = s.engine.Config().Behavior
	if err := s.engine.SetConfig(cfg); err != nil {
		return err
	}
	s.persist(ctx)
	return nil
}

// Save writes the session to its store.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx)
}

func (s *Session) save(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	rec, err := s.store.SaveSession(ctx, storage.SessionRecord{
		ID:          s.id,
		Name:        s.name,
		Snapshot:    s.ledger.Snapshot(),
		AlertConfig: s.engine.Config(),
		WatchLists:  s.book.Lists(),
		CreatedAt:   s.createdAt,
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.id = rec.ID
	s.createdAt = rec.CreatedAt
	return nil
}

// persist saves and logs failures; callers have already committed in memory.
func (s *Session) persist(ctx context.Context) {
	if err := s.save(ctx); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist session")
	}
}

func (s *Session) drain() []market.SmartAlert {
	out := s.pending
	s.pending = nil
	return out
}

// deliver runs without the session lock so slow channels never block the
// auction.
func (s *Session) deliver(ctx context.Context, alerts []market.SmartAlert, silent bool) {
	if s.dispatcher == nil || len(alerts) == 0 {
		return
	}
	id := s.ID()
	delivered, err := s.dispatcher.Dispatch(ctx, id, silent, alerts)
	if err != nil {
		s.logger.Warn().Err(err).Msg("alert delivery incomplete")
	}
	if s.store == nil || id == "" {
		return
	}
	for _, a := range alerts {
		channels, ok := delivered[a.ID]
		if !ok {
			continue
		}
		if _, err := s.store.RecordAlert(ctx, storage.AlertRecord{
			SessionID: id,
			AlertID:   a.ID,
			Level:     a.Level,
			Category:  a.Category,
			Title:     a.Title,
			Message:   a.Message,
			Priority:  a.Priority,
			Channels:  channels,
			CreatedAt: a.CreatedAt,
		}); err != nil {
			s.logger.Error().Err(err).Str("alert_id", a.ID).Msg("failed to persist alert record")
		}
	}
}
