package oracle

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/eduschedule-api/internal/models"
	"github.com/noah-isme/eduschedule-api/internal/scheduler"
)

// ErrMalformedProposal is returned when the oracle reply holds no usable JSON document.
var ErrMalformedProposal = errors.New("oracle reply is not a valid proposal")

// proposal is the wire shape requested from generative oracles.
type proposal struct {
	Schedule  []proposalSlot `json:"schedule"`
	Conflicts []string       `json:"conflicts"`
}

type proposalSlot struct {
	Day       string `json:"day"`
	HourIndex int    `json:"hourIndex"`
	SubjectID string `json:"subjectId"`
	TeacherID string `json:"teacherId"`
}

// extractJSON finds the first complete JSON object in a model reply, stripping
// markdown fences and surrounding chatter.
func extractJSON(raw string) string {
	if start := strings.Index(raw, "```json"); start != -1 {
		raw = raw[start+7:]
		if end := strings.Index(raw, "```"); end != -1 {
			raw = raw[:end]
		}
	} else if start := strings.Index(raw, "```"); start != -1 {
		raw = raw[start+3:]
		if end := strings.Index(raw, "```"); end != -1 {
			raw = raw[:end]
		}
	}

	start := strings.Index(raw, "{")
	if start == -1 {
		return ""
	}
	end := strings.LastIndex(raw, "}")
	if end == -1 || end < start {
		return ""
	}
	candidate := raw[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return ""
	}
	return candidate
}

// ParseProposal converts a raw oracle reply into a candidate schedule. Assignments get
// positional ids per subject. Conflict messages reported by the oracle become notes.
func ParseProposal(raw string) (*models.Schedule, error) {
	doc := extractJSON(raw)
	if doc == "" {
		return nil, ErrMalformedProposal
	}
	var p proposal
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedProposal, err)
	}
	schedule := &models.Schedule{
		Assignments: make([]models.Assignment, 0, len(p.Schedule)),
		Notes:       make([]string, 0, len(p.Conflicts)),
	}
	for _, slot := range p.Schedule {
		schedule.Assignments = append(schedule.Assignments, models.Assignment{
			Day:       strings.TrimSpace(slot.Day),
			HourIndex: slot.HourIndex,
			SubjectID: strings.TrimSpace(slot.SubjectID),
			TeacherID: strings.TrimSpace(slot.TeacherID),
		})
	}
	schedule.Assignments = scheduler.LabelAnonymous(schedule.Assignments)
	for _, note := range p.Conflicts {
		if note = strings.TrimSpace(note); note != "" {
			schedule.Notes = append(schedule.Notes, "oracle: "+note)
		}
	}
	return schedule, nil
}
