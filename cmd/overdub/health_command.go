package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"overdub/internal/deps"
	"overdub/internal/driver"
	"overdub/internal/logging"
)

// newHealthCommand checks the external binaries and stage readiness before
// any job is attempted.
func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check external dependencies and pipeline readiness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			missingRequired := false
			rows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				state := "ok"
				if !status.Available {
					state = "missing"
					if status.Optional {
						state = "missing (optional)"
					} else {
						missingRequired = true
					}
				}
				detail := status.Detail
				if detail == "" {
					detail = status.Description
				}
				rows = append(rows, []string{status.Name, status.Command, state, detail})
			}
			fmt.Fprintln(out, "External binaries:")
			fmt.Fprintln(out, renderTable(
				[]string{"Dependency", "Command", "State", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))

			d, err := driver.New(cfg, logging.NewNop())
			if err != nil {
				return err
			}
			checks := d.HealthCheck(cmd.Context())
			stageRows := make([][]string, 0, len(checks))
			for _, check := range checks {
				state := "ready"
				if !check.Ready {
					state = "not ready"
				}
				stageRows = append(stageRows, []string{check.Name, state, check.Detail})
			}
			fmt.Fprintln(out, "Pipeline stages:")
			fmt.Fprintln(out, renderTable(
				[]string{"Stage", "State", "Detail"},
				stageRows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))

			if missingRequired {
				return errors.New("required dependencies are missing")
			}
			return nil
		},
	}
}
