package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"auction-advisor/internal/alertcfg"
	"auction-advisor/internal/alerting"
	"auction-advisor/internal/catalog"
	"auction-advisor/internal/config"
	"auction-advisor/internal/ledger"
	"auction-advisor/internal/loader"
	"auction-advisor/internal/service"
	"auction-advisor/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// SessionOptions select which stored session a command works on.
type SessionOptions struct {
	ID     string
	Resume bool
}

func (a *App) leagueConfig() ledger.Config {
	ac := a.Config.Auction
	return ledger.Config{
		TotalBudget: decimal.NewFromInt(int64(ac.Budget)),
		Slots: map[catalog.Position]int{
			catalog.Goalkeeper: ac.Slots.Goalkeepers,
			catalog.Defender:   ac.Slots.Defenders,
			catalog.Midfielder: ac.Slots.Midfielders,
			catalog.Forward:    ac.Slots.Forwards,
		},
		Teams:    ac.Teams,
		Operator: ac.Operator,
	}
}

// loadCandidates reads every configured source and merges them by name.
func (a *App) loadCandidates() ([]catalog.Candidate, error) {
	paths := a.Config.Auction.Candidates
	if len(paths) == 0 {
		return nil, nil
	}

	sources := make([][]catalog.Candidate, 0, len(paths))
	for _, path := range paths {
		res, err := loader.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load candidates %s: %w", path, err)
		}
		for _, rej := range res.Rejected {
			a.Logger.Warn().Str("file", path).Err(rej).Msg("candidate row rejected")
		}
		a.Logger.Info().
			Str("file", path).
			Int("candidates", len(res.Candidates)).
			Int("rejected", len(res.Rejected)).
			Int("position_fallbacks", res.Fallbacks).
			Msg("candidates loaded")
		sources = append(sources, res.Candidates)
	}
	if len(sources) == 1 {
		return sources[0], nil
	}
	merged := loader.Reconcile(a.Config.Auction.Similarity, sources...)
	a.Logger.Info().Int("merged", len(merged)).Msg("candidate sources reconciled")
	return merged, nil
}

// openStore returns a nil store when persistence is disabled.
func (a *App) openStore(ctx context.Context) (storage.Store, func(), error) {
	if a.Config.Storage.Driver == "" {
		return nil, nil, nil
	}

	store, err := storage.Open(ctx, a.Config.Storage)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("failed to close store")
		}
	}
	return store, closer, nil
}

func (a *App) requireStore(ctx context.Context) (storage.Store, func(), error) {
	store, closer, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, errors.New("storage.driver not configured; nothing to read")
	}
	return store, closer, nil
}

// newDispatcher returns nil when alerting is disabled.
func (a *App) newDispatcher() (*alerting.Dispatcher, error) {
	cfg := a.Config.Alerting
	if !cfg.Enabled {
		return nil, nil
	}

	d := alerting.NewDispatcher(alerting.Policy{
		MinLevel:    alertcfg.Level(cfg.MinLevel),
		MinPriority: cfg.MinPriority,
		Cooldown:    cfg.Cooldown,
	}, a.Logger)

	channels := cfg.Channels
	if len(channels) == 0 {
		channels = []string{"log"}
		if cfg.Telegram.Enabled {
			channels = append(channels, "telegram")
		}
	}
	for _, name := range channels {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "log":
			d.Add("log", alerting.NewLogNotifier(a.Logger))
		case "telegram":
			if !cfg.Telegram.Enabled {
				return nil, errors.New("alerting channel telegram requires alerting.telegram.enabled")
			}
			tg := cfg.Telegram
			d.Add("telegram", alerting.NewTelegramNotifier(alerting.TelegramOptions{
				BotToken:      tg.BotToken,
				ChatID:        tg.ChatID,
				APIBase:       tg.APIBase,
				Timeout:       tg.RequestTimeout,
				RatePerMinute: tg.RatePerMinute,
				MaxRetries:    tg.MaxRetries,
			}, a.Logger))
		default:
			return nil, fmt.Errorf("unknown alerting channel %q", name)
		}
	}
	return d, nil
}

func (a *App) alertProfile() (alertcfg.Config, error) {
	cfg, err := a.Config.Alerts.Profile()
	if err != nil {
		return alertcfg.Config{}, err
	}
	if !a.Config.Scheduler.Predictive {
		cfg.Behavior.Predictive = false
	}
	return cfg, nil
}

// openSession builds a session over the configured candidates and attaches
// it to store. A resumed session brings its own catalog.
func (a *App) openSession(ctx context.Context, store storage.Store, dispatcher *alerting.Dispatcher, opts SessionOptions) (*service.Session, error) {
	candidates, err := a.loadCandidates()
	if err != nil {
		return nil, err
	}
	profile, err := a.alertProfile()
	if err != nil {
		return nil, err
	}

	sessOpts := service.Options{
		Name:         a.Config.App.Name,
		League:       a.leagueConfig(),
		Candidates:   candidates,
		AlertConfig:  profile,
		StrictBudget: a.Config.Auction.StrictBudget,
		Store:        store,
	}
	// a typed nil would defeat the session's nil check
	if dispatcher != nil {
		sessOpts.Dispatcher = dispatcher
	}
	sess := service.New(sessOpts, a.Logger)

	id := opts.ID
	if id == "" {
		id = a.Config.Storage.SessionID
	}
	if err := sess.Open(ctx, id, opts.Resume); err != nil {
		return nil, err
	}
	if len(sess.State().Candidates) == 0 {
		return nil, errors.New("no candidates loaded; configure auction.candidates")
	}
	return sess, nil
}
