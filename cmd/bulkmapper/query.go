package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	mapper "github.com/jdziat/bulk-mapper"
)

func newQueryCmd(a *app) *cobra.Command {
	var hint string

	cmd := &cobra.Command{
		Use:   "query <input>",
		Short: "Map a single input and print the record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.settings(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("hint") {
				hint = s.Hint
			}

			m, err := mapper.New(s.Mapper, mapper.WithLogger(a.logger))
			if err != nil {
				return err
			}
			out, err := m.Query(cmd.Context(), args[0], hint)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(a.stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out.Record)
		},
	}
	cmd.Flags().StringVar(&hint, "hint", "", "hint about the input type")
	return cmd
}
