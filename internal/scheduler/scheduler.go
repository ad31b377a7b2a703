// Package scheduler runs the periodic market analysis loop.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked once per interval with the tick time.
type TickFunc func(ctx context.Context, at time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval time.Duration
	// IntervalFunc, when set, is consulted after every tick so a changed
	// interval applies from the next tick. Interval is the fallback when
	// it returns a non-positive duration.
	IntervalFunc func() time.Duration
	StartupDelay time.Duration
	// Immediate runs the first tick right after the startup delay instead
	// of one interval later.
	Immediate bool
}

// Scheduler drives periodic ticks on a single goroutine. A tick never
// starts before the previous one has returned.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 && opts.IntervalFunc == nil {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking tick every interval until ctx is cancelled. Tick
// errors are logged and do not stop the loop.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := sleep(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	next := time.Now().Add(s.interval())
	if s.opts.Immediate {
		next = time.Now()
	}
	for {
		if err := sleep(ctx, time.Until(next)); err != nil {
			return err
		}

		at := time.Now()
		s.logger.Debug().Time("at", at).Msg("executing scheduled tick")
		if err := tick(ctx, at); err != nil {
			s.logger.Error().Err(err).Time("at", at).Msg("tick execution failed")
		}

		// a slow tick skips the slots it overran instead of bursting
		interval := s.interval()
		next = next.Add(interval)
		if now := time.Now(); next.Before(now) {
			next = now.Add(interval)
		}
	}
}

func (s *Scheduler) interval() time.Duration {
	if s.opts.IntervalFunc != nil {
		if d := s.opts.IntervalFunc(); d > 0 {
			return d
		}
	}
	if s.opts.Interval <= 0 {
		return time.Second
	}
	return s.opts.Interval
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
