package scheduler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

// Variable is one required teaching occurrence of a subject.
type Variable struct {
	ID         string `json:"id"`
	SubjectID  string `json:"subject_id"`
	TeacherID  string `json:"teacher_id"`
	CourseID   string `json:"course_id"`
	Occurrence int    `json:"occurrence"`
	// Domain holds the dense cell indexes the variable may take, ascending.
	Domain []int `json:"-"`
}

// Model is the CSP instance for one scheduling run.
type Model struct {
	Grid      Grid
	Data      models.SchoolData
	Variables []Variable
	// Neighbors[i] lists variables that must not share a slot with variable i.
	Neighbors [][]int
	Pinned    []models.Assignment

	subjects    map[string]models.Subject
	teachers    map[string]models.Teacher
	courses     map[string]models.Course
	pinnedCount map[string]int
	assignable  []int
}

// VariableID formats the identifier of the n-th occurrence of a subject.
func VariableID(subjectID string, occurrence int) string {
	return fmt.Sprintf("%s#%d", subjectID, occurrence)
}

// BuildModel expands a snapshot and grid into a CSP instance. Pinned assignments are
// fixed in place; their slots are withheld from every variable sharing their teacher or
// course and they count towards the subject's weekly hours.
func BuildModel(data models.SchoolData, grid Grid, pinned []models.Assignment) (*Model, error) {
	buildErr := &ModelBuildError{}
	if err := grid.Validate(); err != nil {
		buildErr.add("invalid grid: %v", err)
		return nil, buildErr
	}
	if grid.AssignableCount() == 0 {
		buildErr.add("grid has no assignable slots")
		return nil, buildErr
	}
	for _, problem := range duplicateIDs(data) {
		buildErr.add("%s", problem)
	}
	if !buildErr.empty() {
		return nil, buildErr
	}

	m := &Model{
		Grid:        grid,
		Data:        data.Clone(),
		subjects:    make(map[string]models.Subject, len(data.Subjects)),
		teachers:    make(map[string]models.Teacher, len(data.Teachers)),
		courses:     make(map[string]models.Course, len(data.Courses)),
		pinnedCount: make(map[string]int),
		assignable:  grid.assignableCells(),
	}
	levels := make(map[string]struct{}, len(data.Levels))
	for _, l := range data.Levels {
		levels[l.ID] = struct{}{}
	}
	for _, c := range data.Courses {
		if _, ok := levels[c.LevelID]; !ok {
			buildErr.add("course %s references unknown level %s", c.ID, c.LevelID)
		}
		m.courses[c.ID] = c
	}
	for _, t := range data.Teachers {
		m.teachers[t.ID] = t
	}
	for _, sub := range data.Subjects {
		if _, ok := m.teachers[sub.TeacherID]; !ok {
			buildErr.add("subject %s references unknown teacher %s", sub.ID, sub.TeacherID)
		}
		if _, ok := m.courses[sub.CourseID]; !ok {
			buildErr.add("subject %s references unknown course %s", sub.ID, sub.CourseID)
		}
		if sub.HoursPerWeek <= 0 {
			buildErr.add("subject %s has non-positive hours per week (%d)", sub.ID, sub.HoursPerWeek)
		}
		m.subjects[sub.ID] = sub
	}
	if !buildErr.empty() {
		return nil, buildErr
	}

	teacherBusy := make(map[string]map[int]string)
	courseBusy := make(map[string]map[int]string)
	seenPinned := make(map[string]struct{}, len(pinned))
	for _, p := range pinned {
		sub, ok := m.subjects[p.SubjectID]
		if !ok {
			buildErr.add("pinned assignment %s references unknown subject %s", p.ID, p.SubjectID)
			continue
		}
		cell, ok := grid.cellOf(p.Day, p.HourIndex)
		if !ok {
			buildErr.add("pinned assignment %s sits outside the grid (%s, %d)", p.ID, p.Day, p.HourIndex)
			continue
		}
		if grid.IsBreak(p.HourIndex) {
			buildErr.add("pinned assignment %s sits on the break", p.ID)
			continue
		}
		m.pinnedCount[sub.ID]++
		pinnedCopy := p
		pinnedCopy.TeacherID = sub.TeacherID
		pinnedCopy.Pinned = true
		if pinnedCopy.ID == "" {
			pinnedCopy.ID = VariableID(sub.ID, m.pinnedCount[sub.ID])
		}
		if _, dup := seenPinned[pinnedCopy.ID]; dup {
			buildErr.add("pinned assignment id %s is used twice", pinnedCopy.ID)
			continue
		}
		seenPinned[pinnedCopy.ID] = struct{}{}
		if other, clash := reserve(teacherBusy, sub.TeacherID, cell, pinnedCopy.ID); clash {
			buildErr.add("pinned assignments %s and %s share teacher %s at (%s, %d)", other, pinnedCopy.ID, sub.TeacherID, p.Day, p.HourIndex)
		}
		if other, clash := reserve(courseBusy, sub.CourseID, cell, pinnedCopy.ID); clash {
			buildErr.add("pinned assignments %s and %s share course %s at (%s, %d)", other, pinnedCopy.ID, sub.CourseID, p.Day, p.HourIndex)
		}
		m.Pinned = append(m.Pinned, pinnedCopy)
	}
	for _, sub := range data.Subjects {
		if m.pinnedCount[sub.ID] > sub.HoursPerWeek {
			buildErr.add("subject %s has %d pinned assignments but only %d hours per week", sub.ID, m.pinnedCount[sub.ID], sub.HoursPerWeek)
		}
	}
	if !buildErr.empty() {
		return nil, buildErr
	}

	for _, sub := range data.Subjects {
		domain := make([]int, 0, len(m.assignable))
		for _, cell := range m.assignable {
			if _, busy := teacherBusy[sub.TeacherID][cell]; busy {
				continue
			}
			if _, busy := courseBusy[sub.CourseID][cell]; busy {
				continue
			}
			domain = append(domain, cell)
		}
		need := sub.HoursPerWeek - m.pinnedCount[sub.ID]
		for n := 1; need > 0; n++ {
			if _, taken := seenPinned[VariableID(sub.ID, n)]; taken {
				continue
			}
			need--
			m.Variables = append(m.Variables, Variable{
				ID:         VariableID(sub.ID, n),
				SubjectID:  sub.ID,
				TeacherID:  sub.TeacherID,
				CourseID:   sub.CourseID,
				Occurrence: n,
				Domain:     append([]int(nil), domain...),
			})
		}
	}
	m.linkNeighbors()
	return m, nil
}

func reserve(busy map[string]map[int]string, key string, cell int, id string) (string, bool) {
	cells, ok := busy[key]
	if !ok {
		cells = make(map[int]string)
		busy[key] = cells
	}
	if other, taken := cells[cell]; taken {
		return other, true
	}
	cells[cell] = id
	return "", false
}

func (m *Model) linkNeighbors() {
	byTeacher := make(map[string][]int)
	byCourse := make(map[string][]int)
	for i, v := range m.Variables {
		byTeacher[v.TeacherID] = append(byTeacher[v.TeacherID], i)
		byCourse[v.CourseID] = append(byCourse[v.CourseID], i)
	}
	m.Neighbors = make([][]int, len(m.Variables))
	for i, v := range m.Variables {
		seen := map[int]struct{}{i: {}}
		var list []int
		for _, j := range byTeacher[v.TeacherID] {
			if _, ok := seen[j]; !ok {
				seen[j] = struct{}{}
				list = append(list, j)
			}
		}
		for _, j := range byCourse[v.CourseID] {
			if _, ok := seen[j]; !ok {
				seen[j] = struct{}{}
				list = append(list, j)
			}
		}
		sort.Ints(list)
		m.Neighbors[i] = list
	}
}

// subset returns a model restricted to the variables of the given subjects.
func (m *Model) subset(subjects map[string]struct{}) *Model {
	sub := &Model{
		Grid:        m.Grid,
		Data:        m.Data,
		Pinned:      m.Pinned,
		subjects:    m.subjects,
		teachers:    m.teachers,
		courses:     m.courses,
		pinnedCount: m.pinnedCount,
		assignable:  m.assignable,
	}
	for _, v := range m.Variables {
		if _, ok := subjects[v.SubjectID]; ok {
			sub.Variables = append(sub.Variables, v)
		}
	}
	sub.linkNeighbors()
	return sub
}

// Subject resolves a subject of the snapshot.
func (m *Model) Subject(id string) (models.Subject, bool) {
	sub, ok := m.subjects[id]
	return sub, ok
}

// Teacher resolves a teacher of the snapshot.
func (m *Model) Teacher(id string) (models.Teacher, bool) {
	t, ok := m.teachers[id]
	return t, ok
}

// Course resolves a course of the snapshot.
func (m *Model) Course(id string) (models.Course, bool) {
	c, ok := m.courses[id]
	return c, ok
}

// OccurrenceCount is the total number of occurrences required by the snapshot.
func (m *Model) OccurrenceCount() int {
	return len(m.Variables) + len(m.Pinned)
}

// Describe renders a short human label for a subject, used in notes.
func (m *Model) Describe(subjectID string) string {
	sub, ok := m.subjects[subjectID]
	if !ok {
		return subjectID
	}
	label := sub.ID
	if strings.TrimSpace(sub.Name) != "" {
		label = fmt.Sprintf("%s (%s)", sub.Name, sub.ID)
	}
	if course, ok := m.courses[sub.CourseID]; ok && course.Name != "" {
		label += " for " + course.Name
	}
	return label
}
