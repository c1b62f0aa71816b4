package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"ambient-narrative-go/internal/pipeline"
	"ambient-narrative-go/internal/types"
)

type runOutput struct {
	Envelope pipeline.Envelope     `json:"envelope"`
	Trace    []pipeline.Checkpoint `json:"trace,omitempty"`
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var profileFlag string
	var swapRoles bool
	var showTrace bool

	cmd := &cobra.Command{
		Use:   "run <transcript.json|url>",
		Short: "Run the full pipeline on one transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := ctx.profile(profileFlag)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := ctx.transcripts()
			if err != nil {
				return err
			}
			raw, err := client.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			pipe := ctx.pipeline()
			if v := pipe.ValidateRaw(raw); !v.Valid {
				return fmt.Errorf("transcript rejected: %s", strings.Join(v.Errors, ", "))
			}
			env, trace := pipe.ExecuteTraced(raw, pipeline.Options{
				Profile:   profile,
				SwapRoles: swapRoles || cfg.Pipeline.SwapRoles,
			})

			if ctx.jsonOutput() {
				out := runOutput{Envelope: env}
				if showTrace {
					out.Trace = trace.Checkpoints
				}
				if err := writeJSON(cmd, out); err != nil {
					return err
				}
				if !env.Success {
					return fmt.Errorf("pipeline failed at %s", env.FailedStage)
				}
				return nil
			}

			w := cmd.OutOrStdout()
			if !env.Success {
				fmt.Fprintln(w, renderTable([]string{"Stage", "Duration"}, timingRows(env.ProcessingTime), []columnAlignment{alignLeft, alignRight}))
				return fmt.Errorf("pipeline failed at %s [%s]: %s", env.FailedStage, env.ErrorCode, env.Error)
			}
			n := env.Data.Narrative
			fmt.Fprintln(w, n.Content)
			fmt.Fprintln(w)
			fmt.Fprintf(w, "Format: %s  Speakers: %d  Words: %d\n", n.Format, n.Metadata.TotalSpeakers, n.Metadata.WordCount)
			if showTrace {
				fmt.Fprintf(w, "Role map: %s\n", formatRoleMap(env.Data.RoleMap))
			}
			fmt.Fprintln(w, renderTable([]string{"Stage", "Duration"}, timingRows(env.ProcessingTime), []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}

	cmd.Flags().StringVarP(&profileFlag, "profile", "p", "", "Cleanup profile (default or clinical_light)")
	cmd.Flags().BoolVar(&swapRoles, "swap-roles", false, "Invert the inferred clinician/patient assignment")
	cmd.Flags().BoolVar(&showTrace, "trace", false, "Include per-stage checkpoints")
	return cmd
}

func timingRows(pt types.ProcessingTime) [][]string {
	return [][]string{
		{string(pipeline.StageIngest), formatMillis(pt.S1Ingest)},
		{string(pipeline.StageMerge), formatMillis(pt.S2Merge)},
		{string(pipeline.StageRoleMap), formatMillis(pt.S3RoleMap)},
		{string(pipeline.StageCleanup), formatMillis(pt.S4Cleanup)},
		{string(pipeline.StageNarrative), formatMillis(pt.S5Narrative)},
		{"total", formatMillis(pt.Total)},
	}
}

func formatRoleMap(rm types.RoleMap) string {
	speakers := make([]string, 0, len(rm))
	for s := range rm {
		speakers = append(speakers, s)
	}
	sort.Strings(speakers)
	parts := make([]string, 0, len(speakers))
	for _, s := range speakers {
		parts = append(parts, s+"="+string(rm[s]))
	}
	return strings.Join(parts, " ")
}
