package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"ambient-narrative-go/internal/actionable"
	"ambient-narrative-go/internal/aggregator"
	"ambient-narrative-go/internal/dataset"
	"ambient-narrative-go/internal/processor"
	"ambient-narrative-go/internal/types"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var outPath string
	var profileFlag string
	var workers int
	var noRecord bool

	cmd := &cobra.Command{
		Use:   "batch <manifest.xlsx>",
		Short: "Process every transcript listed in a spreadsheet manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := ctx.profile(profileFlag)
			if err != nil {
				return err
			}
			cases, err := dataset.Load(args[0])
			if err != nil {
				return fmt.Errorf("load manifest: %w", err)
			}
			client, err := ctx.transcripts()
			if err != nil {
				return err
			}

			opts := []processor.Option{processor.WithLogger(ctx.logger())}
			if !noRecord {
				st, err := ctx.openStore()
				if err != nil {
					return err
				}
				defer ctx.closeStore()
				opts = append(opts, processor.WithRecorder(st))
			}
			proc := processor.New(ctx.pipeline(), client, opts...)

			ctx.logger().WithField("cases", len(cases)).WithField("workers", workers).Info("batch started")
			results := proc.ProcessBatch(cmd.Context(), cases, profile, workers)
			records := make([]types.RunRecord, len(results))
			for i, r := range results {
				records[i] = r.Record
			}

			if outPath != "" {
				if _, err := dataset.WriteSummary(outPath, records); err != nil {
					return fmt.Errorf("write summary: %w", err)
				}
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, results)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, renderTable(
				[]string{"Case", "Status", "Code", "Format", "Words", "Duration"},
				recordRows(records),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
			))
			card := actionable.Generate(aggregator.Aggregate(records))
			fmt.Fprintf(w, "Insight: %s\nAction: %s\n", card.Insight, card.Action)
			if outPath != "" {
				fmt.Fprintf(w, "Summary written to %s\n", outPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write an xlsx run summary to this path")
	cmd.Flags().StringVarP(&profileFlag, "profile", "p", "", "Cleanup profile for rows without one")
	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "Cases processed concurrently")
	cmd.Flags().BoolVar(&noRecord, "no-record", false, "Do not persist run records")
	return cmd
}

func recordRows(records []types.RunRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		status := "ok"
		if !r.Success {
			status = "failed"
		}
		rows = append(rows, []string{
			r.CaseID,
			status,
			r.ErrorCode,
			string(r.Format),
			strconv.Itoa(r.WordCount),
			formatMillis(r.DurationMs),
		})
	}
	return rows
}
