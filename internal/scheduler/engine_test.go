package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

type oracleStub struct {
	mu       sync.Mutex
	schedule *models.Schedule
	err      error
	block    bool
	calls    int
}

func (o *oracleStub) Propose(ctx context.Context, req OracleRequest) (*models.Schedule, error) {
	o.mu.Lock()
	o.calls++
	o.mu.Unlock()
	if o.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if o.err != nil {
		return nil, o.err
	}
	if o.schedule == nil {
		return nil, nil
	}
	clone := o.schedule.Clone()
	return &clone, nil
}

func TestEngineDirectMode(t *testing.T) {
	oracle := &oracleStub{}
	engine := NewEngine(oracle, nil, Options{Mode: ModeDirect})

	result, err := engine.Run(testContext(t), Request{Data: seedData(), Grid: DefaultGrid()})
	require.NoError(t, err)
	assert.Equal(t, SourceDirect, result.Source)
	assert.Equal(t, StatusValid, result.Report.Status)
	assert.Len(t, result.Schedule.Assignments, 7)
	assert.NotNil(t, result.Schedule.Notes)
	assert.Zero(t, oracle.calls)
}

func TestEngineOracleCandidateIsRepaired(t *testing.T) {
	oracle := &oracleStub{schedule: &models.Schedule{Assignments: []models.Assignment{
		{Day: "Monday", HourIndex: 0, SubjectID: "a", TeacherID: "t1"},
		{Day: "Monday", HourIndex: 0, SubjectID: "b", TeacherID: "t1"},
	}}}
	engine := NewEngine(oracle, nil, Options{Mode: ModeOracle})

	result, err := engine.Run(testContext(t), Request{Data: scenarioA(), Grid: DefaultGrid()})
	require.NoError(t, err)
	assert.Equal(t, SourceOracle, result.Source)
	assert.Equal(t, 2, result.InitialFindings)
	assert.True(t, result.Report.Valid())
	assert.Equal(t, 1, oracle.calls)
}

func TestEngineFallsBackWhenOracleFails(t *testing.T) {
	oracle := &oracleStub{err: errors.New("quota exceeded")}
	engine := NewEngine(oracle, nil, Options{Mode: ModeOracle})

	result, err := engine.Run(testContext(t), Request{Data: seedData(), Grid: DefaultGrid()})
	require.NoError(t, err)
	assert.Equal(t, SourceDirect, result.Source)
	assert.Contains(t, result.OracleError, "quota exceeded")
	assert.Contains(t, result.OracleError, ErrOracleUnavailable.Error())
	assert.True(t, result.Report.Valid())
}

func TestEngineFallsBackWhenOracleTimesOut(t *testing.T) {
	oracle := &oracleStub{block: true}
	engine := NewEngine(oracle, nil, Options{Mode: ModeAuto, OracleTimeout: 20 * time.Millisecond})

	result, err := engine.Run(testContext(t), Request{Data: seedData(), Grid: DefaultGrid()})
	require.NoError(t, err)
	assert.Equal(t, SourceDirect, result.Source)
	assert.NotEmpty(t, result.OracleError)
}

func TestEngineCancelledWhileWaitingForOracle(t *testing.T) {
	oracle := &oracleStub{block: true}
	engine := NewEngine(oracle, nil, Options{Mode: ModeAuto, OracleTimeout: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := engine.Run(ctx, Request{Data: seedData(), Grid: DefaultGrid()})
	require.ErrorIs(t, err, context.Canceled)
}

func TestEngineAutoModeFinishesWithDirectSearch(t *testing.T) {
	grid := Grid{Days: []string{"Mon"}, Hours: []string{"h0", "h1"}, BreakIndex: NoBreak}
	data := models.SchoolData{
		Levels:   []models.Level{{ID: "l1"}},
		Courses:  []models.Course{{ID: "c1", LevelID: "l1"}, {ID: "c2", LevelID: "l1"}},
		Teachers: []models.Teacher{{ID: "t1"}, {ID: "t2"}},
		Subjects: []models.Subject{
			{ID: "w", TeacherID: "t2", CourseID: "c2", HoursPerWeek: 1},
			{ID: "x", TeacherID: "t1", CourseID: "c1", HoursPerWeek: 1},
			{ID: "y", TeacherID: "t2", CourseID: "c1", HoursPerWeek: 1},
			{ID: "z", TeacherID: "t1", CourseID: "c2", HoursPerWeek: 1},
		},
	}
	// Local repair keeps x and w in place, which leaves y and z without a slot.
	oracle := &oracleStub{schedule: &models.Schedule{Assignments: []models.Assignment{
		{ID: "x#1", Day: "Mon", HourIndex: 0, SubjectID: "x", TeacherID: "t1"},
		{ID: "y#1", Day: "Mon", HourIndex: 0, SubjectID: "y", TeacherID: "t2"},
		{ID: "w#1", Day: "Mon", HourIndex: 1, SubjectID: "w", TeacherID: "t2"},
		{ID: "z#1", Day: "Mon", HourIndex: 1, SubjectID: "z", TeacherID: "t1"},
	}}}
	engine := NewEngine(oracle, nil, Options{Mode: ModeAuto})

	result, err := engine.Run(testContext(t), Request{Data: data, Grid: grid})
	require.NoError(t, err)
	assert.Equal(t, SourceOracleDirect, result.Source)
	assert.True(t, result.Report.Valid())
	assert.Equal(t, 2, result.InitialFindings)

	repairOnly := NewEngine(oracle, nil, Options{Mode: ModeOracle})
	partial, err := repairOnly.Run(testContext(t), Request{Data: data, Grid: grid})
	require.NoError(t, err)
	assert.Equal(t, SourceOracle, partial.Source)
	assert.Equal(t, StatusUnderDetermined, partial.Report.Status)
}

func TestEngineWithoutOracle(t *testing.T) {
	engine := NewEngine(nil, nil, Options{})
	assert.False(t, engine.HasOracle())

	auto, err := engine.Run(testContext(t), Request{Data: seedData(), Grid: DefaultGrid()})
	require.NoError(t, err)
	assert.Equal(t, SourceDirect, auto.Source)
	assert.Empty(t, auto.OracleError)

	forced, err := engine.Run(testContext(t), Request{Data: seedData(), Grid: DefaultGrid(), Mode: ModeOracle})
	require.NoError(t, err)
	assert.NotEmpty(t, forced.OracleError)
}

func TestEngineRejectsInvalidInput(t *testing.T) {
	data := seedData()
	data.Subjects[0].HoursPerWeek = 0
	engine := NewEngine(&oracleStub{}, nil, Options{})

	_, err := engine.Run(testContext(t), Request{Data: data, Grid: DefaultGrid()})
	require.Error(t, err)
	assert.True(t, IsModelBuildError(err))
}

func TestEngineReportsUnsatisfiableInResult(t *testing.T) {
	data := seedData()
	data.Subjects[0].HoursPerWeek = 40
	engine := NewEngine(nil, nil, Options{Mode: ModeDirect})

	result, err := engine.Run(testContext(t), Request{Data: data, Grid: DefaultGrid()})
	require.NoError(t, err)
	require.NotNil(t, result.Unsatisfiable)
	assert.Equal(t, StatusUnderDetermined, result.Report.Status)
	assert.NotEmpty(t, result.Schedule.Notes)
}

func TestEngineBudgetOverride(t *testing.T) {
	engine := NewEngine(nil, nil, Options{Mode: ModeDirect, Budget: Budget{MaxSteps: 1000000}})

	result, err := engine.Run(testContext(t), Request{Data: saturatedData(), Grid: DefaultGrid(), Budget: Budget{MaxSteps: 3}})
	require.NoError(t, err)
	assert.True(t, result.Truncated)
}

func TestEngineRepairAndValidate(t *testing.T) {
	engine := NewEngine(nil, nil, Options{})
	candidate := models.Schedule{Assignments: []models.Assignment{
		{ID: "a#1", Day: "Monday", HourIndex: 0, SubjectID: "a", TeacherID: "t1"},
		{ID: "b#1", Day: "Monday", HourIndex: 0, SubjectID: "b", TeacherID: "t1"},
	}}

	report, err := engine.Validate(scenarioA(), DefaultGrid(), candidate.Assignments)
	require.NoError(t, err)
	assert.Len(t, report.Findings, 2)

	result, err := engine.Repair(scenarioA(), DefaultGrid(), candidate)
	require.NoError(t, err)
	assert.Equal(t, SourceRepair, result.Source)
	assert.True(t, result.Report.Valid())
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAuto, mode)

	mode, err = ParseMode(" Direct ")
	require.NoError(t, err)
	assert.Equal(t, ModeDirect, mode)

	_, err = ParseMode("quantum")
	assert.Error(t, err)
}
