// Package worker provides the Worker scheduler for the mapper package.
package worker

import (
	"log/slog"
	"time"

	"github.com/jdziat/bulk-mapper/pkg/core"
	"github.com/jdziat/bulk-mapper/pkg/security"
)

// WorkerOption configures a Worker.
type WorkerOption interface {
	ApplyWorker(*WorkerConfig)
}

type workerOptionFunc func(*WorkerConfig)

func (f workerOptionFunc) ApplyWorker(c *WorkerConfig) { f(c) }

// WorkerConfig holds worker configuration.
type WorkerConfig struct {
	Concurrency int
	RunID       string
	Emit        func(core.Event)
	Logger      *slog.Logger
	Now         func() time.Time
}

// Concurrency sets the number of units in flight.
// Values are clamped to [1, MaxNumThreads].
func Concurrency(n int) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.Concurrency = security.ClampThreads(n)
	})
}

// WithRunID tags emitted events with the run ID.
func WithRunID(id string) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.RunID = id
	})
}

// WithEmitter sets the function receiving item events.
func WithEmitter(fn func(core.Event)) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.Emit = fn
	})
}

// WithLogger sets the worker logger.
func WithLogger(l *slog.Logger) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		if l != nil {
			c.Logger = l
		}
	})
}

// WithClock sets the clock used for sink timestamps.
func WithClock(now func() time.Time) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		if now != nil {
			c.Now = now
		}
	})
}
