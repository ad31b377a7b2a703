package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunTicksUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ticks atomic.Int32
	s := New(Options{Interval: 5 * time.Millisecond, Immediate: true}, zerolog.Nop())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, at time.Time) error {
			if ticks.Add(1) == 3 {
				cancel()
			}
			return errors.New("tick errors are logged, not fatal")
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	if ticks.Load() != 3 {
		t.Fatalf("ticks %d, want 3", ticks.Load())
	}
}

func TestTicksNeverOverlap(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	var running, overlaps atomic.Int32
	s := New(Options{Interval: time.Millisecond, Immediate: true}, zerolog.Nop())
	_ = s.Run(ctx, func(ctx context.Context, at time.Time) error {
		if running.Add(1) > 1 {
			overlaps.Add(1)
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return nil
	})
	if overlaps.Load() != 0 {
		t.Fatalf("%d overlapping ticks", overlaps.Load())
	}
}

func TestStartupDelayHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New(Options{Interval: time.Second, StartupDelay: time.Hour}, zerolog.Nop())
	if err := s.Run(ctx, func(context.Context, time.Time) error {
		t.Fatal("tick must not run")
		return nil
	}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}
}

func TestIntervalFuncAppliesFromNextTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var interval atomic.Int64
	interval.Store(int64(time.Hour))
	s := New(Options{
		IntervalFunc: func() time.Duration { return time.Duration(interval.Load()) },
		Immediate:    true,
	}, zerolog.Nop())

	var ticks atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(context.Context, time.Time) error {
			switch ticks.Add(1) {
			case 1:
				// without the change the next tick is an hour away
				interval.Store(int64(time.Millisecond))
			case 3:
				cancel()
			}
			return nil
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("changed interval was not picked up")
	}
	if ticks.Load() != 3 {
		t.Fatalf("ticks %d, want 3", ticks.Load())
	}
}

func TestIntervalFuncFallsBackToInterval(t *testing.T) {
	s := New(Options{Interval: 3 * time.Second, IntervalFunc: func() time.Duration { return 0 }}, zerolog.Nop())
	if got := s.interval(); got != 3*time.Second {
		t.Fatalf("interval %s, want 3s", got)
	}
}
