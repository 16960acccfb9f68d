package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

// Mode selects how the engine obtains a candidate schedule.
type Mode string

const (
	// ModeDirect runs the local backtracking search only.
	ModeDirect Mode = "direct"
	// ModeOracle asks the oracle for a candidate and repairs it, falling back to direct search.
	ModeOracle Mode = "oracle"
	// ModeAuto uses the oracle when configured and finishes with a hinted direct search
	// when the repaired candidate is not fully valid.
	ModeAuto Mode = "auto"
)

// ParseMode validates a mode label; empty maps to ModeAuto.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeDirect:
		return ModeDirect, nil
	case ModeOracle:
		return ModeOracle, nil
	default:
		return "", fmt.Errorf("unknown scheduling mode %q", raw)
	}
}

// Result sources.
const (
	SourceDirect       = "direct"
	SourceOracle       = "oracle"
	SourceOracleDirect = "oracle+direct"
	SourceRepair       = "repair"
)

// OracleRequest is the read-only input handed to a generation oracle.
type OracleRequest struct {
	Data models.SchoolData
	Grid Grid
}

// Oracle proposes candidate schedules. Its output is never trusted without validation.
type Oracle interface {
	Propose(ctx context.Context, req OracleRequest) (*models.Schedule, error)
}

// Options configure an Engine.
type Options struct {
	Mode          Mode
	Budget        Budget
	OracleTimeout time.Duration
}

// Request describes one scheduling run.
type Request struct {
	Data   models.SchoolData
	Grid   Grid
	Pinned []models.Assignment
	// Mode overrides the engine default when set.
	Mode Mode
	// Budget overrides the engine default when non-zero.
	Budget Budget
}

// Result is the outcome of a scheduling run. Schedule is always set.
type Result struct {
	Schedule        models.Schedule     `json:"schedule"`
	Report          Report              `json:"report"`
	Source          string              `json:"source"`
	Truncated       bool                `json:"truncated"`
	Unsatisfiable   *UnsatisfiableError `json:"unsatisfiable,omitempty"`
	Steps           int                 `json:"steps"`
	InitialFindings int                 `json:"initial_findings"`
	OracleError     string              `json:"oracle_error,omitempty"`
	Duration        time.Duration       `json:"duration"`
}

// Engine orchestrates model building, candidate generation, repair and validation.
type Engine struct {
	oracle Oracle
	logger *zap.Logger
	opts   Options
}

// NewEngine constructs an engine. oracle may be nil.
func NewEngine(oracle Oracle, logger *zap.Logger, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Mode == "" {
		opts.Mode = ModeAuto
	}
	if opts.OracleTimeout <= 0 {
		opts.OracleTimeout = 60 * time.Second
	}
	return &Engine{oracle: oracle, logger: logger, opts: opts}
}

// HasOracle reports whether a generation oracle is configured.
func (e *Engine) HasOracle() bool {
	return e.oracle != nil
}

// Run produces a schedule. It fails only on ModelBuildError or context cancellation;
// every other outcome is reported inside the Result.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	model, err := BuildModel(req.Data, req.Grid, req.Pinned)
	if err != nil {
		return nil, err
	}
	mode := req.Mode
	if mode == "" {
		mode = e.opts.Mode
	}
	budget := req.Budget
	if budget == (Budget{}) {
		budget = e.opts.Budget
	}

	var result *Result
	switch mode {
	case ModeDirect:
		result, err = e.direct(ctx, model, budget, nil)
	case ModeOracle, ModeAuto:
		result, err = e.withOracle(ctx, model, budget, mode)
	default:
		return nil, fmt.Errorf("unknown scheduling mode %q", mode)
	}
	if err != nil {
		return nil, err
	}
	result.Duration = time.Since(started)
	return result, nil
}

func (e *Engine) direct(ctx context.Context, model *Model, budget Budget, hints map[string][]Slot) (*Result, error) {
	outcome, err := Solve(ctx, model, SolveOptions{Budget: budget, Hints: hints})
	if err != nil {
		return nil, err
	}
	if outcome.Truncated {
		e.logger.Warn("timetable search truncated", zap.Int("steps", outcome.Steps), zap.Int("occurrences", model.OccurrenceCount()))
	}
	if outcome.Unsatisfiable != nil {
		e.logger.Info("timetable unsatisfiable", zap.Strings("subjects", outcome.Unsatisfiable.Subjects), zap.String("reason", outcome.Unsatisfiable.Reason))
	}
	schedule := models.Schedule{Assignments: outcome.Assignments, Notes: outcome.Notes}
	return &Result{
		Schedule:      ensureNotes(schedule),
		Report:        Validate(model, outcome.Assignments),
		Source:        SourceDirect,
		Truncated:     outcome.Truncated,
		Unsatisfiable: outcome.Unsatisfiable,
		Steps:         outcome.Steps,
	}, nil
}

func (e *Engine) withOracle(ctx context.Context, model *Model, budget Budget, mode Mode) (*Result, error) {
	if e.oracle == nil {
		if mode == ModeAuto {
			return e.direct(ctx, model, budget, nil)
		}
		result, err := e.direct(ctx, model, budget, nil)
		if err != nil {
			return nil, err
		}
		result.OracleError = ErrOracleUnavailable.Error() + ": no oracle configured"
		return result, nil
	}

	candidate, err := e.propose(ctx, model)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.logger.Warn("oracle unavailable, falling back to direct search", zap.Error(err))
		result, derr := e.direct(ctx, model, budget, nil)
		if derr != nil {
			return nil, derr
		}
		result.OracleError = err.Error()
		return result, nil
	}

	repaired := Repair(model, *candidate)
	result := &Result{
		Schedule:        ensureNotes(repaired.Schedule),
		Report:          repaired.After,
		Source:          SourceOracle,
		InitialFindings: len(repaired.Before.Findings),
	}
	if result.Report.Valid() || mode == ModeOracle {
		return result, nil
	}

	hinted, err := e.direct(ctx, model, budget, hintsFrom(repaired.Schedule.Assignments))
	if err != nil {
		return nil, err
	}
	if len(hinted.Report.Findings) < len(result.Report.Findings) {
		hinted.Source = SourceOracleDirect
		hinted.InitialFindings = result.InitialFindings
		return hinted, nil
	}
	return result, nil
}

func (e *Engine) propose(ctx context.Context, model *Model) (*models.Schedule, error) {
	oracleCtx, cancel := context.WithTimeout(ctx, e.opts.OracleTimeout)
	defer cancel()
	candidate, err := e.oracle.Propose(oracleCtx, OracleRequest{Data: model.Data.Clone(), Grid: model.Grid})
	if err != nil {
		if errors.Is(err, ErrOracleUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}
	if candidate == nil {
		return nil, fmt.Errorf("%w: empty proposal", ErrOracleUnavailable)
	}
	return candidate, nil
}

// Validate builds the model for a snapshot and validates assignments against it.
func (e *Engine) Validate(data models.SchoolData, grid Grid, assignments []models.Assignment) (Report, error) {
	model, err := BuildModel(data, grid, nil)
	if err != nil {
		return Report{}, err
	}
	return Validate(model, assignments), nil
}

// Repair validates and repairs an externally supplied candidate.
func (e *Engine) Repair(data models.SchoolData, grid Grid, candidate models.Schedule) (*Result, error) {
	model, err := BuildModel(data, grid, nil)
	if err != nil {
		return nil, err
	}
	repaired := Repair(model, candidate)
	return &Result{
		Schedule:        ensureNotes(repaired.Schedule),
		Report:          repaired.After,
		Source:          SourceRepair,
		InitialFindings: len(repaired.Before.Findings),
	}, nil
}

func hintsFrom(assignments []models.Assignment) map[string][]Slot {
	hints := make(map[string][]Slot)
	for _, a := range assignments {
		hints[a.SubjectID] = append(hints[a.SubjectID], Slot{Day: a.Day, HourIndex: a.HourIndex})
	}
	return hints
}

func ensureNotes(s models.Schedule) models.Schedule {
	if s.Assignments == nil {
		s.Assignments = []models.Assignment{}
	}
	if s.Notes == nil {
		s.Notes = []string{}
	}
	return s
}
