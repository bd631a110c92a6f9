package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"overdub/internal/driver"
	"overdub/internal/job"
	"overdub/internal/logging"
	"overdub/internal/runlog"
	"overdub/internal/services"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "run <manifest>",
		Short: "Record, narrate, and deliver one job",
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

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			opts := []driver.Option{}
			if cfg.RunLog.Enabled {
				store, err := runlog.Open(cfg.RunLog.Path)
				if err != nil {
					return fmt.Errorf("open run history: %w", err)
				}
				defer store.Close()
				opts = append(opts, driver.WithHistory(store))
			}

			d, err := driver.New(cfg, logger, opts...)
			if err != nil {
				return err
			}

			result, runErr := d.Run(cmd.Context(), manifest)

			out := cmd.OutOrStdout()
			if jsonOutput {
				if err := printJSON(out, result); err != nil {
					return err
				}
			} else {
				printRunSummary(out, result)
			}

			if runErr != nil {
				if services.IsInputError(runErr) {
					return errors.New("job rejected: " + result.ErrorMessage)
				}
				return errors.New("job failed: " + result.ErrorMessage)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the full result as JSON")
	return cmd
}

func printRunSummary(out io.Writer, result driver.Result) {
	status := "succeeded"
	if !result.Success {
		status = "failed"
	} else if result.Degraded {
		status = "succeeded (no narration)"
	}
	status = colorizeStatus(status, result.Success, result.Degraded, shouldColorize(out))
	fmt.Fprintf(out, "Run %s %s in %s\n", result.RunID, status, formatMs(result.DurationMs))
	if result.VideoLocation != "" {
		fmt.Fprintf(out, "Video: %s\n", result.VideoLocation)
	}
	if len(result.StepTimings) > 0 {
		fmt.Fprintln(out, renderTimingsTable(result.StepTimings))
	}
	if result.ErrorMessage != "" {
		fmt.Fprintf(out, "Error: %s\n", result.ErrorMessage)
	}
}
