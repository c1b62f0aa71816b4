package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ambient-narrative-go/internal/pipeline"
	"ambient-narrative-go/internal/transcription"
	"ambient-narrative-go/internal/types"
)

func newStageCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stage <name> <input.json>",
		Short: "Run a single pipeline stage and print its output as JSON",
		Long: `Run one stage in isolation. The input file holds the stage's input:

  s1_ingest     raw ASR result
  s2_merge      dialog
  s3_role_map   dialog
  s4_cleanup    {"dialog": ..., "roleMap": ..., "profile": ...}
  s5_narrative  cleaned dialog`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := pipeline.ParseStage(args[0])
			if err != nil {
				return err
			}
			input, err := loadStageInput(name, args[1])
			if err != nil {
				return err
			}
			res := ctx.pipeline().ExecuteStage(name, input)
			if err := writeJSON(cmd, res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("stage %s failed: %s", name, res.Error)
			}
			return nil
		},
	}
}

func loadStageInput(name pipeline.StageName, path string) (any, error) {
	switch name {
	case pipeline.StageIngest:
		return transcription.LoadFile(path)
	case pipeline.StageMerge, pipeline.StageRoleMap:
		var d types.Dialog
		if err := decodeJSONFile(path, &d); err != nil {
			return nil, err
		}
		return d, nil
	case pipeline.StageCleanup:
		var in pipeline.CleanupInput
		if err := decodeJSONFile(path, &in); err != nil {
			return nil, err
		}
		return in, nil
	case pipeline.StageNarrative:
		var c types.CleanedDialog
		if err := decodeJSONFile(path, &c); err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown stage %q", name)
}
