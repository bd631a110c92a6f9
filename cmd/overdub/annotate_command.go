package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"overdub/internal/annotate"
	"overdub/internal/instrument"
	"overdub/internal/job"
	"overdub/internal/logging"
)

// newAnnotateCommand exposes the annotation pass on its own so script and
// step-spec problems can be debugged without a recording run.
func newAnnotateCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	var withInstrumentation bool

	cmd := &cobra.Command{
		Use:   "annotate <manifest>",
		Short: "Annotate a script with sync markers and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			manifest, err := job.Load(args[0])
			if err != nil {
				return err
			}
			script, err := os.ReadFile(manifest.ScriptPath)
			if err != nil {
				return fmt.Errorf("read script: %w", err)
			}

			resolved, orphans := manifest.ResolvedSteps()
			if len(orphans) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: duration table entries for unknown steps: %v\n", orphans)
			}

			annotated, stats, err := annotate.Annotate(string(script), resolved)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d markers bound to %d executable statements\n", stats.Markers, stats.Statements)
			if stats.UnusedSteps > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d steps had no statement to bind\n", stats.UnusedSteps)
			}

			output := annotated
			if withInstrumentation {
				instrumented, injectStats, err := instrument.Inject(annotated, instrument.Options{
					StabilizationDelayMs: cfg.Harness.StabilizationDelayMs,
				}, logging.NewNop())
				if err != nil {
					return err
				}
				if injectStats.Malformed > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d malformed markers left as comments\n", injectStats.Malformed)
				}
				output = instrumented
			}

			if outputPath != "" {
				if err := os.WriteFile(outputPath, []byte(output), 0o644); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", outputPath)
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the result to a file instead of stdout")
	cmd.Flags().BoolVar(&withInstrumentation, "instrument", false, "Also inject the synchronization preamble and calls")
	return cmd
}
