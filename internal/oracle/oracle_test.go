package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eduschedule-api/internal/models"
	"github.com/noah-isme/eduschedule-api/internal/scheduler"
)

func sampleRequest() scheduler.OracleRequest {
	return scheduler.OracleRequest{
		Grid: scheduler.DefaultGrid(),
		Data: models.SchoolData{
			Levels:   []models.Level{{ID: "l1", Name: "Primary"}},
			Courses:  []models.Course{{ID: "c1", Name: "1st A", LevelID: "l1"}},
			Teachers: []models.Teacher{{ID: "t1", Name: "Ana"}, {ID: "t2", Name: "Carlos"}},
			Subjects: []models.Subject{
				{ID: "s1", Name: "Maths", TeacherID: "t1", CourseID: "c1", HoursPerWeek: 4},
				{ID: "s2", Name: "English", TeacherID: "t2", CourseID: "c1", HoursPerWeek: 3},
			},
		},
	}
}

type generatorStub struct {
	reply   string
	err     error
	prompts []string
	schema  *genai.Schema
}

func (g *generatorStub) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	for _, p := range parts {
		if txt, ok := p.(genai.Text); ok {
			g.prompts = append(g.prompts, string(txt))
		}
	}
	if g.err != nil {
		return nil, g.err
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: &genai.Content{Parts: []genai.Part{genai.Text(g.reply)}}},
	}}, nil
}

func newStubGemini(stub *generatorStub) *Gemini {
	return newGemini(func(schema *genai.Schema) contentGenerator {
		stub.schema = schema
		return stub
	}, nil, nil)
}

func TestParseProposalStripsFences(t *testing.T) {
	raw := "Here you go:\n```json\n{\"schedule\":[{\"day\":\"Monday\",\"hourIndex\":0,\"subjectId\":\"s1\",\"teacherId\":\"t1\"}],\"conflicts\":[\"English has too many hours\"]}\n```\nEnjoy"

	schedule, err := ParseProposal(raw)
	require.NoError(t, err)
	require.Len(t, schedule.Assignments, 1)
	assert.Equal(t, models.Assignment{ID: "s1#1", Day: "Monday", HourIndex: 0, SubjectID: "s1", TeacherID: "t1"}, schedule.Assignments[0])
	assert.Equal(t, []string{"oracle: English has too many hours"}, schedule.Notes)
}

func TestParseProposalNumbersOccurrencesPerSubject(t *testing.T) {
	raw := `{"schedule":[
		{"day":"Monday","hourIndex":0,"subjectId":"s1","teacherId":"t1"},
		{"day":"Monday","hourIndex":0,"subjectId":"s2","teacherId":"t1"},
		{"day":"Tuesday","hourIndex":1,"subjectId":"s1","teacherId":"t1"}
	],"conflicts":[]}`

	schedule, err := ParseProposal(raw)
	require.NoError(t, err)
	ids := make([]string, 0, len(schedule.Assignments))
	for _, a := range schedule.Assignments {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"s1#1", "s2#1", "s1#2"}, ids)
}

func TestParseProposalRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "no json here", "{\"schedule\": [", "```\n{broken}\n```"} {
		_, err := ParseProposal(raw)
		assert.ErrorIs(t, err, ErrMalformedProposal, raw)
	}
}

func TestGeminiProposeParsesReply(t *testing.T) {
	stub := &generatorStub{reply: `{"schedule":[{"day":"Tuesday","hourIndex":2,"subjectId":"s2","teacherId":"t2"}],"conflicts":[]}`}
	gemini := newStubGemini(stub)

	schedule, err := gemini.Propose(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Len(t, schedule.Assignments, 1)
	assert.Equal(t, "Tuesday", schedule.Assignments[0].Day)

	require.Len(t, stub.prompts, 1)
	assert.Contains(t, stub.prompts[0], "Block index 3 is the BREAK")
	assert.Contains(t, stub.prompts[0], `"hours_per_week":4`)
	require.NotNil(t, stub.schema)
	assert.Equal(t, []string{"schedule", "conflicts"}, stub.schema.Required)
	assert.Equal(t, scheduler.DefaultGrid().Days, stub.schema.Properties["schedule"].Items.Properties["day"].Enum)
	assert.NoError(t, gemini.Close())
}

func TestGeminiProposeSurfacesErrors(t *testing.T) {
	gemini := newStubGemini(&generatorStub{err: errors.New("429 quota")})
	_, err := gemini.Propose(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429 quota")

	empty := newStubGemini(&generatorStub{reply: ""})
	_, err = empty.Propose(context.Background(), sampleRequest())
	assert.Error(t, err)

	malformed := newStubGemini(&generatorStub{reply: "I cannot help with that"})
	_, err = malformed.Propose(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, ErrMalformedProposal)
}

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), GeminiConfig{}, nil)
	assert.Error(t, err)
}

func TestGreedyProposalIsValidForSeed(t *testing.T) {
	req := sampleRequest()
	schedule, err := NewGreedy().Propose(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, schedule.Notes)
	assert.Len(t, schedule.Assignments, 7)

	model, err := scheduler.BuildModel(req.Data, req.Grid, nil)
	require.NoError(t, err)
	assert.True(t, scheduler.Validate(model, schedule.Assignments).Valid())
}

func TestGreedyNotesWhatDoesNotFit(t *testing.T) {
	req := sampleRequest()
	req.Grid = scheduler.Grid{Days: []string{"Mon"}, Hours: []string{"h0", "h1", "h2", "h3"}, BreakIndex: scheduler.NoBreak}

	schedule, err := NewGreedy().Propose(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, schedule.Assignments, 4)
	assert.Len(t, schedule.Notes, 3)
}

func TestGreedyHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewGreedy().Propose(ctx, sampleRequest())
	assert.ErrorIs(t, err, context.Canceled)
}
