package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jdziat/bulk-mapper/pkg/core"
	"github.com/jdziat/bulk-mapper/pkg/security"
)

// Executor resolves a unit, retries included, and returns one outcome per item.
type Executor interface {
	Execute(ctx context.Context, batch []core.WorkItem) []core.Outcome
}

// Appender persists final outcomes.
type Appender interface {
	Append(rec core.SinkRecord) error
}

// Report counts what a Run did.
type Report struct {
	Succeeded     int
	Failed        int
	NotDispatched int
	PeakInFlight  int
}

// Worker is a bounded pull-based pool: each goroutine takes the next unit as
// soon as it finishes its current one.
type Worker struct {
	exec   Executor
	sink   Appender
	config WorkerConfig
	logger *slog.Logger

	inFlight atomic.Int32
	peak     atomic.Int32
}

// NewWorker creates a worker that drives units through exec and appends every
// outcome to sink.
func NewWorker(exec Executor, sink Appender, opts ...WorkerOption) *Worker {
	config := WorkerConfig{
		Concurrency: security.DefaultNumThreads,
		Logger:      slog.Default(),
		Now:         time.Now,
	}

	for _, opt := range opts {
		opt.ApplyWorker(&config)
	}

	return &Worker{
		exec:   exec,
		sink:   sink,
		config: config,
		logger: config.Logger,
	}
}

// Config returns the worker configuration.
func (w *Worker) Config() WorkerConfig {
	return w.config
}

type runState struct {
	succeeded atomic.Int64
	failed    atomic.Int64
	started   atomic.Int64
	dropped   atomic.Int64

	authOnce sync.Once
	authErr  *core.QueryError
}

// Run processes units until all are done, ctx is cancelled, an Unauthorized
// failure is seen, or the sink fails. Every outcome is appended to the sink
// before it is sent on results, which may be nil. Callers must keep reading
// results until Run returns.
//
// After cancellation or an Unauthorized failure no new unit is started and no
// new retry begins, but attempts already in flight complete and are recorded.
// Unauthorized and interrupted outcomes are not final: they are neither
// persisted nor published, and their items count as not dispatched so the
// next run picks them up. The returned error is the sink failure, the
// Unauthorized failure, or the context error when work was left undispatched.
func (w *Worker) Run(ctx context.Context, units []core.Unit, results chan<- core.Outcome) (Report, error) {
	total := 0
	for _, u := range units {
		total += len(u.Items)
	}

	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	defer stopDispatch()

	g, gctx := errgroup.WithContext(dispatchCtx)
	state := &runState{}
	unitsCh := make(chan core.Unit)

	g.Go(func() error {
		defer close(unitsCh)
		for _, u := range units {
			select {
			case <-gctx.Done():
				return nil
			case unitsCh <- u:
			}
		}
		return nil
	})

	for i := 0; i < w.config.Concurrency; i++ {
		g.Go(func() error {
			for u := range unitsCh {
				// A unit received after the stop signal is left for the next run.
				if gctx.Err() != nil {
					continue
				}
				state.started.Add(int64(len(u.Items)))
				if err := w.process(gctx, u, state, stopDispatch, results); err != nil {
					return err
				}
			}
			return nil
		})
	}

	err := g.Wait()

	report := Report{
		Succeeded:     int(state.succeeded.Load()),
		Failed:        int(state.failed.Load()),
		NotDispatched: total - int(state.started.Load()) + int(state.dropped.Load()),
		PeakInFlight:  int(w.peak.Load()),
	}

	switch {
	case err != nil:
		w.logger.Error("run aborted", "run_id", w.config.RunID, "error", err)
		return report, err
	case state.authErr != nil:
		w.logger.Error("run aborted: unauthorized", "run_id", w.config.RunID, "not_dispatched", report.NotDispatched)
		return report, state.authErr
	case report.NotDispatched > 0 && ctx.Err() != nil:
		return report, ctx.Err()
	}
	return report, nil
}

func (w *Worker) process(ctx context.Context, u core.Unit, state *runState, stop context.CancelFunc, results chan<- core.Outcome) error {
	n := w.inFlight.Add(1)
	defer w.inFlight.Add(-1)
	for {
		peak := w.peak.Load()
		if n <= peak || w.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	start := w.config.Now()
	for _, item := range u.Items {
		w.emit(&core.ItemStarted{RunID: w.config.RunID, Item: item, Timestamp: start})
	}

	outcomes := w.exec.Execute(ctx, u.Items)
	if len(outcomes) != len(u.Items) {
		return fmt.Errorf("worker: unit %d: expected %d outcomes, got %d", u.Index, len(u.Items), len(outcomes))
	}

	for _, o := range outcomes {
		if w.unfinished(o, state, stop) {
			continue
		}

		now := w.config.Now()
		if err := w.sink.Append(core.SinkRecord{Outcome: o, Timestamp: now}); err != nil {
			return fmt.Errorf("worker: persist result for %q: %w", o.Item.Input, err)
		}

		if o.OK() {
			state.succeeded.Add(1)
			w.logger.Info("mapped", "input", o.Item.Input, "company", o.Record.CompanyName, "attempts", o.Attempts)
			w.emit(&core.ItemCompleted{RunID: w.config.RunID, Outcome: o, Duration: now.Sub(start), Timestamp: now})
		} else {
			state.failed.Add(1)
			w.logger.Warn("could not map", "input", o.Item.Input, "attempts", o.Attempts, "error", o.Err)
			w.emit(&core.ItemFailed{RunID: w.config.RunID, Outcome: o, Timestamp: now})
		}

		if results != nil {
			results <- o
		}
	}
	return nil
}

// unfinished reports whether o must be left for a later run. An Unauthorized
// outcome also stops dispatch.
func (w *Worker) unfinished(o core.Outcome, state *runState, stop context.CancelFunc) bool {
	switch {
	case errors.Is(o.Err, core.ErrUnauthorized):
		state.authOnce.Do(func() {
			state.authErr = o.Err
			stop()
		})
	case o.Interrupted:
	default:
		return false
	}
	state.dropped.Add(1)
	w.logger.Warn("left for next run", "input", o.Item.Input, "attempts", o.Attempts, "error", o.Err)
	return true
}

func (w *Worker) emit(e core.Event) {
	if w.config.Emit != nil {
		w.config.Emit(e)
	}
}
