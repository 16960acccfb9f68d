package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/eduschedule-api/internal/dto"
	"github.com/noah-isme/eduschedule-api/internal/models"
	"github.com/noah-isme/eduschedule-api/internal/scheduler"
	"github.com/noah-isme/eduschedule-api/internal/service"
)

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeYAML(t *testing.T, name string, v interface{}) string {
	t.Helper()
	raw, err := yaml.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

func TestHasYAMLExt(t *testing.T) {
	assert.True(t, hasYAMLExt("school.yaml"))
	assert.True(t, hasYAMLExt("SCHOOL.YML"))
	assert.False(t, hasYAMLExt("school.json"))
	assert.False(t, hasYAMLExt("school"))
}

func TestSolveSeedData(t *testing.T) {
	out, _, err := runCLI(t, "solve", "--mode", "direct")
	require.NoError(t, err)

	var result scheduler.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Len(t, result.Schedule.Assignments, 7)
	assert.Equal(t, scheduler.StatusValid, result.Report.Status)
	assert.Equal(t, scheduler.SourceDirect, result.Source)
}

func TestSolveWithGreedyOracleFromYAML(t *testing.T) {
	dataPath := writeYAML(t, "school.yaml", scheduler.DefaultSchoolData())

	out, _, err := runCLI(t, "solve", "--data", dataPath, "--mode", "auto", "--oracle", "greedy", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "assignments:")
}

func TestSolveRejectsUnknownOracle(t *testing.T) {
	_, _, err := runCLI(t, "solve", "--oracle", "crystal-ball")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown oracle")
}

func TestSolveReportsModelProblems(t *testing.T) {
	data := scheduler.DefaultSchoolData()
	data.Subjects[0].HoursPerWeek = 0
	dataPath := writeYAML(t, "school.yaml", data)

	_, _, err := runCLI(t, "solve", "--data", dataPath)
	require.Error(t, err)
	assert.True(t, scheduler.IsModelBuildError(err))
}

func TestSolveWritesOutputFile(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "result.json")

	stdout, _, err := runCLI(t, "solve", "--out", outPath)
	require.NoError(t, err)
	assert.Empty(t, stdout)

	raw, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"assignments"`)
}

func TestValidateFlagsClashes(t *testing.T) {
	day := scheduler.DefaultGrid().Days[0]
	schedulePath := writeYAML(t, "schedule.yaml", models.Schedule{Assignments: []models.Assignment{
		{ID: "a1", Day: day, HourIndex: 0, SubjectID: "s1", TeacherID: "t1"},
		{ID: "a2", Day: day, HourIndex: 0, SubjectID: "s2", TeacherID: "t2"},
	}})

	out, _, err := runCLI(t, "validate", "--schedule", schedulePath)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errNotValid))

	var report scheduler.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, scheduler.StatusViolated, report.Status)
	assert.Equal(t, 1, report.Count(scheduler.KindCourseClash))
}

func TestValidateRequiresSchedule(t *testing.T) {
	_, _, err := runCLI(t, "validate")
	require.Error(t, err)
}

func TestRepairCompletesSchedule(t *testing.T) {
	day := scheduler.DefaultGrid().Days[0]
	schedulePath := writeYAML(t, "schedule.yaml", models.Schedule{Assignments: []models.Assignment{
		{ID: "a1", Day: day, HourIndex: 0, SubjectID: "s1", TeacherID: "t1"},
		{ID: "a2", Day: day, HourIndex: 0, SubjectID: "s2", TeacherID: "t2"},
	}})

	out, stderr, err := runCLI(t, "repair", "--schedule", schedulePath)
	require.NoError(t, err)
	assert.Contains(t, stderr, "findings:")

	var result scheduler.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 0, result.Report.Count(scheduler.KindCourseClash))
	assert.Equal(t, scheduler.SourceRepair, result.Source)
}

func TestSeedAndGridPrintYAML(t *testing.T) {
	out, _, err := runCLI(t, "seed")
	require.NoError(t, err)

	var data models.SchoolData
	require.NoError(t, yaml.Unmarshal([]byte(out), &data))
	assert.Equal(t, scheduler.DefaultSchoolData().Subjects, data.Subjects)

	gridPath := writeYAML(t, "grid.yaml", map[string]interface{}{"days": []string{"Lunes", "Lunes"}, "hours": []string{"08:00"}})
	_, _, err = runCLI(t, "grid", "--grid", gridPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listed twice")
}

func TestTokenIsAcceptedByAuthService(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-test-secret")

	out, _, err := runCLI(t, "token", "--subject", "ops", "--role", "superadmin")
	require.NoError(t, err)

	var token dto.TokenResponse
	require.NoError(t, json.Unmarshal([]byte(out), &token))
	assert.Equal(t, models.RoleSuperAdmin, token.Role)

	auth := service.NewAuthService(nil, nil, service.AuthConfig{AccessTokenSecret: "cli-test-secret"})
	claims, err := auth.ValidateToken(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.UserID)
}
