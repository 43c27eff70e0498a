package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mapper "github.com/jdziat/bulk-mapper"
	"github.com/jdziat/bulk-mapper/pkg/config"
	"github.com/jdziat/bulk-mapper/pkg/schedule"
)

type runFlags struct {
	out           string
	force         bool
	retryFailed   bool
	hint          string
	numThreads    int
	numRetries    int
	timeout       time.Duration
	runTimeout    time.Duration
	batchSize     int
	noCleanup     bool
	companiesOnly bool
	encoding      string
	plain         bool
	cron          string
	every         time.Duration
}

func newRunCmd(a *app) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run <input-file>",
		Short: "Map every line of an input file, resuming from the output file",
		Long: `Map every line of an input file and append one CSV row per input to the
output file. Inputs that already have a row in the output file are skipped, so
an interrupted run continues where it stopped. Lines may be "input,hint".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, args[0], f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.out, "out", "o", "", "output CSV file (default <input>-<YYYY-MM-DD>.csv)")
	fl.BoolVarP(&f.force, "force", "F", false, "re-process inputs already in the output file (adds rows)")
	fl.BoolVar(&f.retryFailed, "retry-failed", false, "re-process inputs whose previous rows are all failures")
	fl.StringVar(&f.hint, "hint", "", `hint for inputs without one ("company", "brand", ...)`)
	fl.IntVarP(&f.numThreads, "num-threads", "n", 4, "requests in parallel (max 8)")
	fl.IntVarP(&f.numRetries, "num-retries", "r", 7, "retries per request (max 10)")
	fl.DurationVarP(&f.timeout, "timeout", "t", 30*time.Second, "request timeout (max 35s)")
	fl.DurationVar(&f.runTimeout, "run-timeout", 0, "stop dispatching after this long (0 = no limit)")
	fl.IntVar(&f.batchSize, "batch-size", 0, "inputs per request (0 = endpoint default)")
	fl.BoolVar(&f.noCleanup, "no-cleanup", false, "send inputs without server-side cleanup")
	fl.BoolVarP(&f.companiesOnly, "companies-only", "c", false, "inputs are clean company names (merchant only)")
	fl.StringVar(&f.encoding, "encoding", "", "input file encoding, e.g. windows-1252 (default UTF-8)")
	fl.BoolVar(&f.plain, "plain", false, "treat each line as one input, without a hint column")
	fl.StringVar(&f.cron, "cron", "", `re-run on a cron schedule, e.g. "0 * * * *"`)
	fl.DurationVar(&f.every, "every", 0, "re-run at a fixed interval")
	return cmd
}

func (a *app) run(cmd *cobra.Command, inputPath string, f runFlags) error {
	s, err := a.settings(cmd)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, &s, f)

	if !fileExists(inputPath) {
		return fmt.Errorf("input file %q does not exist", inputPath)
	}
	out := f.out
	if out == "" {
		out = defaultOutput(inputPath, time.Now())
	}

	journal, err := a.openJournal(cmd, s.Journal)
	if err != nil {
		return err
	}
	opts := []mapper.Option{mapper.WithLogger(a.logger)}
	if journal != nil {
		defer journal.Close()
		opts = append(opts, mapper.WithJournal(journal))
	}

	m, err := mapper.New(s.Mapper, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	once := func(ctx context.Context) error {
		items, err := readItemsFile(inputPath, f.encoding, f.plain)
		if err != nil {
			return err
		}
		a.logger.Info("reading inputs", "file", inputPath, "rows", len(items), "output", out)

		summary, err := m.Process(ctx, items, mapper.Options{
			SinkPath:    out,
			Force:       f.force,
			Hint:        s.Hint,
			RetryFailed: f.retryFailed,
			RunTimeout:  f.runTimeout,
		})
		fmt.Fprintf(a.stdout, "%d rows succeeded, %d rows failed, %d skipped, %d not dispatched (%s)\n",
			summary.Succeeded, summary.Failed, summary.Skipped, summary.NotDispatched, summary.Elapsed.Round(time.Millisecond))
		return err
	}

	sched, err := pickSchedule(s.Cron, f.every)
	if err != nil {
		return err
	}
	if sched == nil {
		return once(ctx)
	}
	return schedule.Loop(ctx, sched, once, schedule.WithLogger(a.logger), schedule.Immediately())
}

func applyRunFlags(cmd *cobra.Command, s *config.Settings, f runFlags) {
	flags := cmd.Flags()
	if flags.Changed("num-threads") {
		s.Mapper.NumThreads = f.numThreads
	}
	if flags.Changed("num-retries") {
		s.Mapper.NumRetries = f.numRetries
	}
	if flags.Changed("timeout") {
		s.Mapper.Timeout = f.timeout
	}
	if flags.Changed("batch-size") {
		s.Mapper.BatchSize = f.batchSize
	}
	if flags.Changed("no-cleanup") {
		s.Mapper.Cleanup = !f.noCleanup
	}
	if flags.Changed("companies-only") {
		s.Mapper.CompaniesOnly = f.companiesOnly
	}
	if flags.Changed("hint") {
		s.Hint = f.hint
	}
	if flags.Changed("cron") {
		s.Cron = f.cron
	}
}

func pickSchedule(cronExpr string, every time.Duration) (schedule.Schedule, error) {
	switch {
	case cronExpr != "" && every > 0:
		return nil, fmt.Errorf("--cron and --every are mutually exclusive")
	case cronExpr != "":
		return schedule.Cron(cronExpr)
	case every > 0:
		return schedule.Every(every), nil
	}
	return nil, nil
}
