package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <transcript.json|url>",
		Short: "Run the pre-flight checks on a transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.transcripts()
			if err != nil {
				return err
			}
			raw, err := client.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			v := ctx.pipeline().ValidateRaw(raw)
			if ctx.jsonOutput() {
				if err := writeJSON(cmd, v); err != nil {
					return err
				}
			} else if v.Valid {
				fmt.Fprintln(cmd.OutOrStdout(), "Transcript valid")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Transcript invalid: %s\n", strings.Join(v.Errors, ", "))
			}
			if !v.Valid {
				return fmt.Errorf("validation failed")
			}
			return nil
		},
	}
}
