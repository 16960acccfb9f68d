package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"github.com/noah-isme/eduschedule-api/internal/scheduler"
)

// buildPrompt renders the planning instructions handed to a generative model.
func buildPrompt(req scheduler.OracleRequest) (string, error) {
	courses, err := json.Marshal(req.Data.Courses)
	if err != nil {
		return "", fmt.Errorf("encode courses: %w", err)
	}
	teachers, err := json.Marshal(req.Data.Teachers)
	if err != nil {
		return "", fmt.Errorf("encode teachers: %w", err)
	}
	subjects, err := json.Marshal(req.Data.Subjects)
	if err != nil {
		return "", fmt.Errorf("encode subjects: %w", err)
	}

	grid := req.Grid
	var b strings.Builder
	b.WriteString("Act as an expert school planner. Build a weekly school timetable without overlaps.\n\n")
	b.WriteString("Data:\n")
	fmt.Fprintf(&b, "- Courses (student groups): %s\n", courses)
	fmt.Fprintf(&b, "- Teachers: %s\n", teachers)
	fmt.Fprintf(&b, "- Subjects (classes to schedule): %s\n\n", subjects)
	b.WriteString("Time structure:\n")
	fmt.Fprintf(&b, "1. The week has %d days: %s.\n", len(grid.Days), strings.Join(grid.Days, ", "))
	fmt.Fprintf(&b, "2. Each day has %d blocks (indexes 0 to %d).\n", len(grid.Hours), len(grid.Hours)-1)
	if grid.BreakIndex != scheduler.NoBreak {
		fmt.Fprintf(&b, "3. Block index %d is the BREAK. Never assign a class at index %d.\n", grid.BreakIndex, grid.BreakIndex)
	}
	b.WriteString("\nHard rules:\n")
	b.WriteString("1. Assign exactly hours_per_week blocks to every subject.\n")
	b.WriteString("2. A teacher_id can never appear in two subjects at the same day and block.\n")
	b.WriteString("3. A course_id can never have two subjects at the same day and block.\n")
	b.WriteString("\nSoft goals:\n")
	b.WriteString("1. Spread classes evenly across the week.\n")
	b.WriteString("2. Avoid repeating a subject on the same day unless its weekly hours are high.\n")
	b.WriteString("\nOutput: a JSON object with the list of assignments (schedule) and notes about unresolvable conflicts (conflicts).\n")
	return b.String(), nil
}

// responseSchema constrains the JSON reply to the proposal shape.
func responseSchema(grid scheduler.Grid) *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"schedule": {
				Type:        genai.TypeArray,
				Description: "Class assignments to timetable blocks.",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"day":       {Type: genai.TypeString, Enum: append([]string(nil), grid.Days...)},
						"hourIndex": {Type: genai.TypeInteger, Description: fmt.Sprintf("Block index (0-%d)", len(grid.Hours)-1)},
						"subjectId": {Type: genai.TypeString, Description: "Assigned subject id"},
						"teacherId": {Type: genai.TypeString, Description: "Teacher id of the subject"},
					},
					Required: []string{"day", "hourIndex", "subjectId", "teacherId"},
				},
			},
			"conflicts": {
				Type:        genai.TypeArray,
				Description: "Messages explaining conflicts or adjustments.",
				Items:       &genai.Schema{Type: genai.TypeString},
			},
		},
		Required: []string{"schedule", "conflicts"},
	}
}
