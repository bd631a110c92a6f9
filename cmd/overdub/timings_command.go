package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"overdub/internal/runlog"
)

// newTimingsCommand lists recent runs from the run log, or the captured
// step offsets of one run when an id is given.
func newTimingsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "timings [run-id]",
		Short: "Show recent runs and their captured step offsets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.RunLog.Enabled {
				return errors.New("run log is disabled in configuration")
			}

			store, err := runlog.Open(cfg.RunLog.Path)
			if err != nil {
				return fmt.Errorf("open run history: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()

			if len(args) == 1 {
				run, err := store.GetByID(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Run %s (%s/%s): %s\n", run.ID, run.Tenant, run.Project, runStatusLabel(run))
				timings := run.Timings()
				if len(timings) == 0 {
					fmt.Fprintln(out, "No step timings were captured.")
					return nil
				}
				fmt.Fprintln(out, renderTimingsTable(timings))
				return nil
			}

			runs, err := store.ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet.")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.ID,
					run.Tenant + "/" + run.Project,
					runStatusLabel(run),
					formatMs(run.DurationMs()),
					strconv.Itoa(len(run.Timings())),
					run.StartedAt.Local().Format("2006-01-02 15:04:05"),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Job", "Status", "Duration", "Steps", "Started"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	return cmd
}

func runStatusLabel(run *runlog.Run) string {
	if run.Status == runlog.StatusSucceeded && run.Degraded {
		return string(run.Status) + " (no narration)"
	}
	return string(run.Status)
}
