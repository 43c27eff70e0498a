package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule reports the next activation after a given time.
type Schedule interface {
	Next(from time.Time) time.Time
}

type everySchedule struct {
	interval time.Duration
}

// Every creates a schedule that fires at fixed intervals.
// Intervals under a second are raised to one second.
func Every(d time.Duration) Schedule {
	if d < time.Second {
		d = time.Second
	}
	return &everySchedule{interval: d}
}

func (s *everySchedule) Next(from time.Time) time.Time {
	return from.Add(s.interval)
}

type dailySchedule struct {
	hour   int
	minute int
	loc    *time.Location
}

// Daily creates a schedule that fires at hour:minute UTC each day.
func Daily(hour, minute int) Schedule {
	return DailyIn(hour, minute, time.UTC)
}

// DailyIn is Daily in the given location.
func DailyIn(hour, minute int, loc *time.Location) Schedule {
	if loc == nil {
		loc = time.UTC
	}
	return &dailySchedule{hour: hour, minute: minute, loc: loc}
}

func (s *dailySchedule) Next(from time.Time) time.Time {
	from = from.In(s.loc)
	next := time.Date(from.Year(), from.Month(), from.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Cron parses a five-field cron expression or a descriptor ("@daily", "@every 1h").
func Cron(expr string) (Schedule, error) {
	s, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("schedule: invalid cron expression %q: %w", expr, err)
	}
	return s, nil
}

// MustCron is like Cron but panics on an invalid expression.
func MustCron(expr string) Schedule {
	s, err := Cron(expr)
	if err != nil {
		panic(err)
	}
	return s
}

// LoopOption configures Loop.
type LoopOption interface {
	applyLoop(*loopConfig)
}

type loopOptionFunc func(*loopConfig)

func (f loopOptionFunc) applyLoop(c *loopConfig) { f(c) }

type loopConfig struct {
	logger    *slog.Logger
	now       func() time.Time
	immediate bool
	maxRuns   int
}

// WithLogger sets the loop logger.
func WithLogger(l *slog.Logger) LoopOption {
	return loopOptionFunc(func(c *loopConfig) {
		if l != nil {
			c.logger = l
		}
	})
}

// Immediately runs fn once before waiting for the first activation.
func Immediately() LoopOption {
	return loopOptionFunc(func(c *loopConfig) {
		c.immediate = true
	})
}

// MaxRuns stops the loop after n runs. Zero means no limit.
func MaxRuns(n int) LoopOption {
	return loopOptionFunc(func(c *loopConfig) {
		c.maxRuns = n
	})
}

// WithClock sets the clock used to compute activations.
func WithClock(now func() time.Time) LoopOption {
	return loopOptionFunc(func(c *loopConfig) {
		if now != nil {
			c.now = now
		}
	})
}

// Loop calls fn each time s fires until ctx is done or MaxRuns is reached.
// A failing run is logged and the loop keeps going. Runs never overlap: an
// activation missed while fn was running is skipped. Loop returns nil when
// ctx is cancelled.
func Loop(ctx context.Context, s Schedule, fn func(ctx context.Context) error, opts ...LoopOption) error {
	config := loopConfig{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt.applyLoop(&config)
	}

	runs := 0
	run := func() {
		runs++
		if err := fn(ctx); err != nil {
			config.logger.Error("scheduled run failed", "run", runs, "error", err)
			return
		}
		config.logger.Info("scheduled run finished", "run", runs)
	}

	if config.immediate {
		run()
	}

	for config.maxRuns == 0 || runs < config.maxRuns {
		if ctx.Err() != nil {
			return nil
		}

		now := config.now()
		next := s.Next(now)
		config.logger.Debug("next scheduled run", "at", next)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		run()
	}
	return nil
}
