package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"auction-advisor/internal/scheduler"
	"auction-advisor/internal/service"
)

// RunOptions configure the live session.
type RunOptions struct {
	SessionOptions
	// Headless disables the stdin console; the session only runs analysis
	// passes.
	Headless bool
}

// Run drives a live auction: periodic analysis on the scheduler and operator
// commands on stdin.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("storage.driver not configured; session will not survive a restart")
	} else {
		defer closeStore()
	}

	dispatcher, err := a.newDispatcher()
	if err != nil {
		return err
	}

	sess, err := a.openSession(ctx, store, dispatcher, opts.SessionOptions)
	if err != nil {
		return err
	}

	sched := scheduler.New(a.schedulerOptions(sess), a.Logger)

	schedDone := make(chan error, 1)
	go func() {
		schedDone <- sched.Run(ctx, sess.Tick)
	}()

	a.Logger.Info().
		Str("session_id", sess.ID()).
		Int("candidates", len(sess.State().Candidates)).
		Str("play_style", string(sess.AlertConfig().PlayStyle)).
		Msg("auction session started")

	if !opts.Headless {
		// the console blocks on stdin, so it never holds up shutdown
		go func() {
			console := NewConsole(sess, os.Stdout)
			if err := console.Serve(ctx, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Error().Err(err).Msg("console stopped")
			}
			cancel()
		}()
	}

	err = <-schedDone
	// the signal context is gone, save on a fresh one
	if saveErr := sess.Save(context.WithoutCancel(ctx)); saveErr != nil {
		a.Logger.Error().Err(saveErr).Msg("failed to save session on shutdown")
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("session terminated with error")
		return err
	}

	a.Logger.Info().Msg("auction session stopped")
	return nil
}

// schedulerOptions follow the session's alert frequency unless
// scheduler.interval pins the cadence.
func (a *App) schedulerOptions(sess *service.Session) scheduler.Options {
	opts := scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}
	if opts.Interval <= 0 {
		opts.Interval = sess.AnalysisInterval()
		opts.IntervalFunc = sess.AnalysisInterval
	}
	return opts
}
