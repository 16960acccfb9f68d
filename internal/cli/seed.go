package cli

import (
	"github.com/spf13/cobra"

	"github.com/noah-isme/eduschedule-api/internal/scheduler"
)

func seedCmd() *cobra.Command {
	var format string

	c := &cobra.Command{
		Use:   "seed",
		Short: "Print the built-in starter school data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeOutput(cmd.OutOrStdout(), scheduler.DefaultSchoolData(), format)
		},
	}
	c.Flags().StringVar(&format, "format", formatYAML, "Output format: json|yaml")
	return c
}

func gridCmd() *cobra.Command {
	var (
		gridPath string
		format   string
	)

	c := &cobra.Command{
		Use:   "grid",
		Short: "Print the weekly grid, checking a grid file when given",
		RunE: func(cmd *cobra.Command, _ []string) error {
			grid, err := loadGrid(gridPath)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), grid, format)
		},
	}
	c.Flags().StringVarP(&gridPath, "grid", "g", "", "Grid file to check")
	c.Flags().StringVar(&format, "format", formatYAML, "Output format: json|yaml")
	return c
}
