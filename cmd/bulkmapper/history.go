package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jdziat/bulk-mapper/pkg/config"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit int
		stats bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.settings(cmd)
			if err != nil {
				return err
			}
			if s.Journal == "" {
				return fmt.Errorf("no journal configured: use --journal or set %s", config.EnvJournal)
			}
			journal, err := a.openJournal(cmd, s.Journal)
			if err != nil {
				return err
			}
			defer journal.Close()

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			defer tw.Flush()

			if stats {
				rows, err := journal.Stats(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "ENDPOINT\tRUNS\tABORTED\tSUCCEEDED\tFAILED")
				for _, r := range rows {
					fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", r.Endpoint, r.Runs, r.Aborted, r.Succeeded, r.Failed)
				}
				return nil
			}

			runs, err := journal.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(tw, "ID\tSTARTED\tENDPOINT\tSTATUS\tOK\tFAILED\tSKIPPED\tELAPSED\tOUTPUT")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
					shortID(r.ID), r.StartedAt.Local().Format(time.DateTime), r.Endpoint, r.Status,
					r.Succeeded, r.Failed, r.Skipped, r.Elapsed().Round(time.Second), r.SinkPath)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	cmd.Flags().BoolVar(&stats, "stats", false, "show totals per endpoint")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
