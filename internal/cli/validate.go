package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/eduschedule-api/internal/scheduler"
)

func validateCmd(root *rootOptions) *cobra.Command {
	var (
		dataPath     string
		gridPath     string
		schedulePath string
		format       string
	)

	c := &cobra.Command{
		Use:   "validate",
		Short: "Check a schedule file against school data (no search)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := loadSchoolData(dataPath)
			if err != nil {
				return err
			}
			grid, err := loadGrid(gridPath)
			if err != nil {
				return err
			}
			schedule, err := loadSchedule(schedulePath)
			if err != nil {
				return err
			}

			engine := scheduler.NewEngine(nil, root.logger(), scheduler.Options{})
			report, err := engine.Validate(data, grid, schedule.Assignments)
			if err != nil {
				return err
			}
			if err := writeOutput(cmd.OutOrStdout(), report, format); err != nil {
				return err
			}
			if !report.Valid() {
				return fmt.Errorf("%w: %s with %d finding(s)", errNotValid, report.Status, len(report.Findings))
			}
			return nil
		},
	}

	c.Flags().StringVarP(&dataPath, "data", "d", "", "School data file, YAML or JSON (defaults to the built-in seed)")
	c.Flags().StringVarP(&gridPath, "grid", "g", "", "Grid file")
	c.Flags().StringVarP(&schedulePath, "schedule", "s", "", "Schedule file to check (required)")
	c.Flags().StringVar(&format, "format", formatJSON, "Output format: json|yaml")
	_ = c.MarkFlagRequired("schedule")
	return c
}

func repairCmd(root *rootOptions) *cobra.Command {
	var (
		dataPath     string
		gridPath     string
		schedulePath string
		format       string
		outPath      string
	)

	c := &cobra.Command{
		Use:   "repair",
		Short: "Drop conflicting assignments from a schedule and re-place them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := loadSchoolData(dataPath)
			if err != nil {
				return err
			}
			grid, err := loadGrid(gridPath)
			if err != nil {
				return err
			}
			candidate, err := loadSchedule(schedulePath)
			if err != nil {
				return err
			}

			engine := scheduler.NewEngine(nil, root.logger(), scheduler.Options{})
			result, err := engine.Repair(data, grid, candidate)
			if err != nil {
				return err
			}

			w, closeOut, err := openOutput(cmd.OutOrStdout(), outPath)
			if err != nil {
				return err
			}
			if err := writeOutput(w, result, format); err != nil {
				_ = closeOut()
				return err
			}
			if err := closeOut(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "findings: %d before, %d after\n", result.InitialFindings, len(result.Report.Findings))
			return nil
		},
	}

	c.Flags().StringVarP(&dataPath, "data", "d", "", "School data file, YAML or JSON (defaults to the built-in seed)")
	c.Flags().StringVarP(&gridPath, "grid", "g", "", "Grid file")
	c.Flags().StringVarP(&schedulePath, "schedule", "s", "", "Candidate schedule file (required)")
	c.Flags().StringVar(&format, "format", formatJSON, "Output format: json|yaml")
	c.Flags().StringVarP(&outPath, "out", "o", "", "Write the repaired result to a file instead of stdout")
	_ = c.MarkFlagRequired("schedule")
	return c
}
