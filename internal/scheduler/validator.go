package scheduler

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

// FindingKind classifies a validation finding.
type FindingKind string

const (
	KindTeacherClash        FindingKind = "TeacherClash"
	KindCourseClash         FindingKind = "CourseClash"
	KindBreakViolation      FindingKind = "BreakViolation"
	KindTeacherMismatch     FindingKind = "TeacherMismatch"
	KindDanglingReference   FindingKind = "DanglingReference"
	KindDuplicateAssignment FindingKind = "DuplicateAssignment"
	KindOutOfGrid           FindingKind = "OutOfGrid"
	KindMissingOccurrences  FindingKind = "MissingOccurrences"
)

var kindRank = map[FindingKind]int{
	KindTeacherClash:        0,
	KindCourseClash:         1,
	KindBreakViolation:      2,
	KindTeacherMismatch:     3,
	KindDanglingReference:   4,
	KindDuplicateAssignment: 5,
	KindOutOfGrid:           6,
	KindMissingOccurrences:  7,
}

// Reference kinds carried by DanglingReference findings.
const (
	RefSubject = "subject"
	RefTeacher = "teacher"
	RefCourse  = "course"
)

// Status classifies a schedule against its model.
type Status string

const (
	StatusValid           Status = "valid"
	StatusUnderDetermined Status = "under_determined"
	StatusViolated        Status = "violated"
)

// Finding is one constraint violation. Only the fields relevant to Kind are set.
type Finding struct {
	Kind          FindingKind `json:"kind"`
	Day           string      `json:"day,omitempty"`
	HourIndex     *int        `json:"hour_index,omitempty"`
	SubjectID     string      `json:"subject_id,omitempty"`
	TeacherID     string      `json:"teacher_id,omitempty"`
	CourseID      string      `json:"course_id,omitempty"`
	AssignmentIDs []string    `json:"assignment_ids,omitempty"`
	RefKind       string      `json:"ref_kind,omitempty"`
	Expected      *int        `json:"expected,omitempty"`
	Actual        *int        `json:"actual,omitempty"`
	Message       string      `json:"message"`

	dayPos  int
	slotted bool
}

// Report is the validator output.
type Report struct {
	Status   Status    `json:"status"`
	Findings []Finding `json:"findings"`
}

// Valid reports whether the schedule has no findings.
func (r Report) Valid() bool {
	return len(r.Findings) == 0
}

// Count returns the number of findings of one kind.
func (r Report) Count(kind FindingKind) int {
	n := 0
	for _, f := range r.Findings {
		if f.Kind == kind {
			n++
		}
	}
	return n
}

// Messages flattens findings into human-readable lines.
func (r Report) Messages() []string {
	out := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		out = append(out, f.Message)
	}
	return out
}

func intPtr(v int) *int {
	return &v
}

// LabelAnonymous gives every assignment without an id the first free positional id
// <subject>#<n>, skipping ids already carried by the input or listed in reserved.
// The input is not modified; it is returned as is when every assignment has an id.
func LabelAnonymous(assignments []models.Assignment, reserved ...string) []models.Assignment {
	anonymous := false
	taken := make(map[string]struct{}, len(assignments)+len(reserved))
	for _, id := range reserved {
		taken[id] = struct{}{}
	}
	for _, a := range assignments {
		if a.ID == "" {
			anonymous = true
			continue
		}
		taken[a.ID] = struct{}{}
	}
	if !anonymous {
		return assignments
	}

	out := append([]models.Assignment(nil), assignments...)
	for i := range out {
		if out[i].ID != "" {
			continue
		}
		for n := 1; ; n++ {
			id := VariableID(out[i].SubjectID, n)
			if _, used := taken[id]; !used {
				taken[id] = struct{}{}
				out[i].ID = id
				break
			}
		}
	}
	return out
}

// Validate checks a candidate assignment set against the model. It is pure: the same
// inputs always yield the same findings in the same order. Assignments without an id
// are labelled positionally first, so they are never reported as duplicates.
func Validate(m *Model, assignments []models.Assignment) Report {
	assignments = LabelAnonymous(assignments)
	var findings []Finding
	grid := m.Grid

	teacherCells := make(map[int]map[string][]string)
	courseCells := make(map[int]map[string][]string)
	addOccupant := func(index map[int]map[string][]string, cell int, key, id string) {
		byKey, ok := index[cell]
		if !ok {
			byKey = make(map[string][]string)
			index[cell] = byKey
		}
		byKey[key] = append(byKey[key], id)
	}

	counts := make(map[string]int)
	seen := make(map[string]struct{}, len(assignments))
	for _, a := range assignments {
		if _, dup := seen[a.ID]; dup {
			findings = append(findings, slotFinding(grid, a, Finding{
				Kind:          KindDuplicateAssignment,
				AssignmentIDs: []string{a.ID},
				Message:       fmt.Sprintf("assignment %s appears more than once", a.ID),
			}))
			continue
		}
		seen[a.ID] = struct{}{}

		cell, inGrid := grid.cellOf(a.Day, a.HourIndex)
		if !inGrid {
			findings = append(findings, Finding{
				Kind:          KindOutOfGrid,
				Day:           a.Day,
				HourIndex:     intPtr(a.HourIndex),
				SubjectID:     a.SubjectID,
				AssignmentIDs: []string{a.ID},
				Message:       fmt.Sprintf("assignment %s is outside the grid (%s, %d)", a.ID, a.Day, a.HourIndex),
			})
		} else if grid.IsBreak(a.HourIndex) {
			findings = append(findings, slotFinding(grid, a, Finding{
				Kind:          KindBreakViolation,
				SubjectID:     a.SubjectID,
				AssignmentIDs: []string{a.ID},
				Message:       fmt.Sprintf("assignment %s is placed on the break (%s, %s)", a.ID, a.Day, grid.HourLabel(a.HourIndex)),
			}))
		}

		teacherID := a.TeacherID
		sub, subjectKnown := m.subjects[a.SubjectID]
		if !subjectKnown {
			findings = append(findings, slotFinding(grid, a, Finding{
				Kind:          KindDanglingReference,
				SubjectID:     a.SubjectID,
				AssignmentIDs: []string{a.ID},
				RefKind:       RefSubject,
				Message:       fmt.Sprintf("assignment %s references unknown subject %s", a.ID, a.SubjectID),
			}))
		} else {
			counts[sub.ID]++
			if _, ok := m.courses[sub.CourseID]; !ok {
				findings = append(findings, slotFinding(grid, a, Finding{
					Kind:          KindDanglingReference,
					SubjectID:     sub.ID,
					CourseID:      sub.CourseID,
					AssignmentIDs: []string{a.ID},
					RefKind:       RefCourse,
					Message:       fmt.Sprintf("assignment %s references unknown course %s", a.ID, sub.CourseID),
				}))
			} else if inGrid {
				addOccupant(courseCells, cell, sub.CourseID, a.ID)
			}
		}

		_, teacherKnown := m.teachers[a.TeacherID]
		switch {
		case !teacherKnown:
			findings = append(findings, slotFinding(grid, a, Finding{
				Kind:          KindDanglingReference,
				SubjectID:     a.SubjectID,
				TeacherID:     a.TeacherID,
				AssignmentIDs: []string{a.ID},
				RefKind:       RefTeacher,
				Message:       fmt.Sprintf("assignment %s references unknown teacher %s", a.ID, a.TeacherID),
			}))
		case subjectKnown && sub.TeacherID != a.TeacherID:
			findings = append(findings, slotFinding(grid, a, Finding{
				Kind:          KindTeacherMismatch,
				SubjectID:     sub.ID,
				TeacherID:     a.TeacherID,
				AssignmentIDs: []string{a.ID},
				Message:       fmt.Sprintf("assignment %s carries teacher %s but subject %s is taught by %s", a.ID, a.TeacherID, sub.ID, sub.TeacherID),
			}))
		}
		if subjectKnown {
			teacherID = sub.TeacherID
		}
		if inGrid && (subjectKnown || teacherKnown) {
			addOccupant(teacherCells, cell, teacherID, a.ID)
		}
	}

	findings = append(findings, clashFindings(grid, teacherCells, KindTeacherClash)...)
	findings = append(findings, clashFindings(grid, courseCells, KindCourseClash)...)

	for _, sub := range m.Data.Subjects {
		if sub.HoursPerWeek <= 0 {
			continue
		}
		if actual := counts[sub.ID]; actual != sub.HoursPerWeek {
			findings = append(findings, Finding{
				Kind:      KindMissingOccurrences,
				SubjectID: sub.ID,
				Expected:  intPtr(sub.HoursPerWeek),
				Actual:    intPtr(actual),
				Message:   fmt.Sprintf("subject %s needs %d occurrences but has %d", m.Describe(sub.ID), sub.HoursPerWeek, actual),
			})
		}
	}

	if findings == nil {
		findings = []Finding{}
	}
	sortFindings(findings)
	return Report{Status: classify(findings), Findings: findings}
}

func slotFinding(grid Grid, a models.Assignment, f Finding) Finding {
	if pos, ok := grid.DayPosition(a.Day); ok && a.HourIndex >= 0 && a.HourIndex < len(grid.Hours) {
		f.Day = a.Day
		f.HourIndex = intPtr(a.HourIndex)
		f.dayPos = pos
		f.slotted = true
	}
	return f
}

func clashFindings(grid Grid, index map[int]map[string][]string, kind FindingKind) []Finding {
	var out []Finding
	for cell, byKey := range index {
		for key, ids := range byKey {
			if len(ids) < 2 {
				continue
			}
			slot := grid.slotOf(cell)
			sorted := append([]string(nil), ids...)
			sort.Strings(sorted)
			f := Finding{
				Kind:          kind,
				Day:           slot.Day,
				HourIndex:     intPtr(slot.HourIndex),
				AssignmentIDs: sorted,
				dayPos:        grid.dayOf(cell),
				slotted:       true,
			}
			if kind == KindTeacherClash {
				f.TeacherID = key
				f.Message = fmt.Sprintf("teacher %s is booked %d times at (%s, %s): %s", key, len(ids), slot.Day, grid.HourLabel(slot.HourIndex), strings.Join(sorted, ", "))
			} else {
				f.CourseID = key
				f.Message = fmt.Sprintf("course %s is booked %d times at (%s, %s): %s", key, len(ids), slot.Day, grid.HourLabel(slot.HourIndex), strings.Join(sorted, ", "))
			}
			out = append(out, f)
		}
	}
	return out
}

func (f Finding) entityID() string {
	switch f.Kind {
	case KindTeacherClash:
		return f.TeacherID
	case KindCourseClash:
		return f.CourseID
	case KindMissingOccurrences:
		return f.SubjectID
	default:
		if len(f.AssignmentIDs) > 0 {
			return f.AssignmentIDs[0]
		}
		return f.SubjectID
	}
}

func sortFindings(findings []Finding) {
	key := func(f Finding) (int, int) {
		if !f.slotted {
			return math.MaxInt32, math.MaxInt32
		}
		return f.dayPos, *f.HourIndex
	}
	sort.SliceStable(findings, func(i, j int) bool {
		di, hi := key(findings[i])
		dj, hj := key(findings[j])
		if di != dj {
			return di < dj
		}
		if hi != hj {
			return hi < hj
		}
		if ri, rj := kindRank[findings[i].Kind], kindRank[findings[j].Kind]; ri != rj {
			return ri < rj
		}
		if ei, ej := findings[i].entityID(), findings[j].entityID(); ei != ej {
			return ei < ej
		}
		return findings[i].RefKind < findings[j].RefKind
	})
}

func classify(findings []Finding) Status {
	if len(findings) == 0 {
		return StatusValid
	}
	for _, f := range findings {
		if f.Kind != KindMissingOccurrences || *f.Actual > *f.Expected {
			return StatusViolated
		}
	}
	return StatusUnderDetermined
}
