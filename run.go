package mapper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jdziat/bulk-mapper/pkg/core"
	"github.com/jdziat/bulk-mapper/pkg/plan"
	"github.com/jdziat/bulk-mapper/pkg/sink"
	"github.com/jdziat/bulk-mapper/pkg/storage"
	"github.com/jdziat/bulk-mapper/pkg/worker"
)

// Journal records bulk runs. *storage.GormJournal implements it.
type Journal interface {
	StartRun(ctx context.Context, run *storage.RunRecord) error
	FinishRun(ctx context.Context, id string, summary core.Summary, runErr error) error
}

// Options control one bulk run.
type Options struct {
	// SinkPath is the result file. Existing rows are skipped unless Force is set.
	SinkPath string
	// Force processes every input even when the sink already has a row for it.
	Force bool
	// Hint is applied to items without their own hint.
	Hint string
	// RetryFailed re-processes inputs whose recorded rows are all failures.
	RetryFailed bool
	// RunTimeout bounds the whole run. Zero means no limit.
	RunTimeout time.Duration
}

// Run is a bulk run in progress.
type Run struct {
	// ID identifies the run in events and in the journal.
	ID string
	// Plan is the work decided at start, after resume.
	Plan core.RunPlan
	// SinkPath is the file results are appended to.
	SinkPath string

	results chan core.Outcome
	done    chan struct{}
	summary core.Summary
	err     error
}

// Results streams outcomes as they are persisted, in completion order.
// The channel is closed when the run ends. A run does not progress while
// nobody reads its results; use Wait to discard them.
func (r *Run) Results() <-chan Outcome {
	return r.results
}

// Wait discards unread results, blocks until the run ends and returns its
// summary. The error is the reason the run stopped early: an Unauthorized
// *QueryError, a sink failure or a context error.
func (r *Run) Wait() (Summary, error) {
	for range r.results {
	}
	<-r.done
	return r.summary, r.err
}

// BulkQuery starts a bulk run over items. Inputs already present in the sink
// are skipped unless opts.Force is set. Setup errors, such as an unreadable
// sink, are returned before any work starts.
func (m *Mapper) BulkQuery(ctx context.Context, items []WorkItem, opts Options) (*Run, error) {
	if opts.SinkPath == "" {
		return nil, core.ErrMissingSink
	}

	prepared := Prepare(items, opts.Hint, m.logger)

	existing, err := sink.LoadExisting(opts.SinkPath)
	if err != nil {
		return nil, fmt.Errorf("mapper: load existing results: %w", err)
	}
	rp := plan.Plan(prepared, existing.Processed(opts.RetryFailed), opts.Force)

	out, err := sink.Open(opts.SinkPath)
	if err != nil {
		return nil, err
	}

	run := &Run{
		ID:       uuid.New().String(),
		Plan:     rp,
		SinkPath: opts.SinkPath,
		results:  make(chan core.Outcome, m.config.NumThreads),
		done:     make(chan struct{}),
	}

	m.logger.Info("starting bulk run",
		"run_id", run.ID,
		"endpoint", m.config.Endpoint,
		"inputs", len(prepared),
		"already_processed", len(rp.Skipped),
		"to_process", len(rp.ToProcess),
		"threads", m.config.NumThreads,
		"sink", opts.SinkPath)

	m.startJournal(ctx, run)

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if opts.RunTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, opts.RunTimeout)
	}

	w := worker.NewWorker(m.policy(run.ID), out,
		worker.Concurrency(m.config.NumThreads),
		worker.WithRunID(run.ID),
		worker.WithEmitter(m.Emit),
		worker.WithLogger(m.logger),
		worker.WithClock(m.now),
	)
	units := plan.Batches(rp.ToProcess, m.config.BatchSize)
	started := m.now()

	go func() {
		defer close(run.done)
		defer cancel()

		report, runErr := w.Run(runCtx, units, run.results)
		close(run.results)

		if err := out.Close(); err != nil && runErr == nil {
			runErr = fmt.Errorf("mapper: close sink: %w", err)
		}
		if errors.Is(runErr, context.DeadlineExceeded) && ctx.Err() == nil {
			runErr = fmt.Errorf("mapper: run timeout %s exceeded: %w", opts.RunTimeout, runErr)
		}

		run.summary = core.Summary{
			RunID:         run.ID,
			Planned:       len(prepared),
			Skipped:       len(rp.Skipped),
			Succeeded:     report.Succeeded,
			Failed:        report.Failed,
			NotDispatched: report.NotDispatched,
			Elapsed:       m.now().Sub(started),
		}
		run.err = runErr

		m.finishJournal(run)
		m.logSummary(run.summary, runErr)
		m.Emit(&core.RunFinished{RunID: run.ID, Summary: run.summary, Error: runErr, Timestamp: m.now()})
	}()

	return run, nil
}

// Process runs BulkQuery and waits for it to finish.
func (m *Mapper) Process(ctx context.Context, items []WorkItem, opts Options) (Summary, error) {
	run, err := m.BulkQuery(ctx, items, opts)
	if err != nil {
		return Summary{}, err
	}
	return run.Wait()
}

func (m *Mapper) startJournal(ctx context.Context, run *Run) {
	if m.journal == nil {
		return
	}
	rec := &storage.RunRecord{
		ID:       run.ID,
		Endpoint: m.config.Endpoint.String(),
		SinkPath: run.SinkPath,
		Planned:  len(run.Plan.ToProcess) + len(run.Plan.Skipped),
		Skipped:  len(run.Plan.Skipped),
	}
	if err := m.journal.StartRun(context.WithoutCancel(ctx), rec); err != nil {
		m.logger.Warn("could not journal run start", "run_id", run.ID, "error", err)
	}
}

func (m *Mapper) finishJournal(run *Run) {
	if m.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.journal.FinishRun(ctx, run.ID, run.summary, run.err); err != nil {
		m.logger.Warn("could not journal run end", "run_id", run.ID, "error", err)
	}
}

func (m *Mapper) logSummary(s Summary, err error) {
	attrs := []any{
		"run_id", s.RunID,
		"succeeded", s.Succeeded,
		"failed", s.Failed,
		"skipped", s.Skipped,
		"not_dispatched", s.NotDispatched,
		"elapsed", s.Elapsed.Round(time.Millisecond),
	}
	if err != nil {
		m.logger.Error("bulk run stopped early", append(attrs, "error", err)...)
		return
	}
	m.logger.Info("bulk run finished", attrs...)
}
