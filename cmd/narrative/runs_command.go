package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ambient-narrative-go/internal/aggregator"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recently processed cases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer ctx.closeStore()

			records, err := st.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, records)
			}
			w := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(w, "No runs recorded")
				return nil
			}
			fmt.Fprintln(w, renderTable(
				[]string{"Case", "Status", "Code", "Format", "Words", "Duration"},
				recordRows(records),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
			))
			ins := aggregator.Aggregate(records)
			fmt.Fprintf(w, "%d runs, %d succeeded\n", ins.TotalRuns, ins.Succeeded)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to show")
	return cmd
}
