package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/eduschedule-api/internal/oracle"
	"github.com/noah-isme/eduschedule-api/internal/scheduler"
	"github.com/noah-isme/eduschedule-api/pkg/config"
)

// errNotValid makes the process exit non-zero while the result is still printed.
var errNotValid = errors.New("schedule is not fully valid")

const (
	oracleNone   = "none"
	oracleGreedy = "greedy"
	oracleGemini = "gemini"
)

func solveCmd(root *rootOptions) *cobra.Command {
	var (
		dataPath   string
		gridPath   string
		pinsPath   string
		mode       string
		oracleName string
		maxSteps   int
		timeout    time.Duration
		format     string
		outPath    string
	)

	c := &cobra.Command{
		Use:   "solve",
		Short: "Generate a schedule for a school data file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := root.logger()
			defer logger.Sync() //nolint:errcheck

			data, err := loadSchoolData(dataPath)
			if err != nil {
				return err
			}
			grid, err := loadGrid(gridPath)
			if err != nil {
				return err
			}
			parsedMode, err := scheduler.ParseMode(mode)
			if err != nil {
				return err
			}

			req := scheduler.Request{
				Data:   data,
				Grid:   grid,
				Mode:   parsedMode,
				Budget: scheduler.Budget{MaxSteps: maxSteps, Timeout: timeout},
			}
			if pinsPath != "" {
				pins, err := loadSchedule(pinsPath)
				if err != nil {
					return err
				}
				req.Pinned = pins.Assignments
			}

			proposer, closeOracle, err := buildOracle(cmd, oracleName, logger)
			if err != nil {
				return err
			}
			defer closeOracle()

			engine := scheduler.NewEngine(proposer, logger, scheduler.Options{Mode: parsedMode})
			result, err := engine.Run(cmd.Context(), req)
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

			if result.Unsatisfiable != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), result.Unsatisfiable.Error())
			}
			if !result.Report.Valid() {
				return fmt.Errorf("%w: %s with %d finding(s)", errNotValid, result.Report.Status, len(result.Report.Findings))
			}
			return nil
		},
	}

	c.Flags().StringVarP(&dataPath, "data", "d", "", "School data file, YAML or JSON (defaults to the built-in seed)")
	c.Flags().StringVarP(&gridPath, "grid", "g", "", "Grid file (defaults to the standard Monday to Friday grid)")
	c.Flags().StringVar(&pinsPath, "pins", "", "Schedule file whose assignments must be kept in place")
	c.Flags().StringVarP(&mode, "mode", "m", "direct", "Engine mode: direct|oracle|auto")
	c.Flags().StringVar(&oracleName, "oracle", oracleNone, "Candidate proposer: none|greedy|gemini")
	c.Flags().IntVar(&maxSteps, "max-steps", 0, "Search step budget (0 means unbounded)")
	c.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Search time budget")
	c.Flags().StringVar(&format, "format", formatJSON, "Output format: json|yaml")
	c.Flags().StringVarP(&outPath, "out", "o", "", "Write the result to a file instead of stdout")
	return c
}

func buildOracle(cmd *cobra.Command, name string, logger *zap.Logger) (scheduler.Oracle, func(), error) {
	switch name {
	case oracleNone, "":
		return nil, func() {}, nil
	case oracleGreedy:
		return oracle.NewGreedy(), func() {}, nil
	case oracleGemini:
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, err
		}
		gemini, err := oracle.NewGemini(cmd.Context(), oracle.GeminiConfig{
			APIKey:      cfg.Oracle.APIKey,
			Model:       cfg.Oracle.Model,
			Temperature: float32(cfg.Oracle.Temperature),
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return gemini, func() { _ = gemini.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown oracle %q (want none, greedy or gemini)", name)
	}
}
