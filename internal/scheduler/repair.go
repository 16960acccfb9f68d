package scheduler

import (
	"fmt"
	"sort"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

// RepairOutcome is the repaired schedule with the reports before and after repair.
type RepairOutcome struct {
	Schedule models.Schedule
	Before   Report
	After    Report
}

type pendingPlacement struct {
	assignment models.Assignment
	original   models.Assignment
	hasOrigin  bool
}

type repairer struct {
	m          *Model
	grid       Grid
	teacherAt  map[string]map[int]string
	courseAt   map[string]map[int]string
	load       []int
	subjectDay map[string][]int
	usedIDs    map[string]struct{}
	accepted   []models.Assignment
	notes      []string
}

func newRepairer(m *Model) *repairer {
	return &repairer{
		m:          m,
		grid:       m.Grid,
		teacherAt:  make(map[string]map[int]string),
		courseAt:   make(map[string]map[int]string),
		load:       make([]int, m.Grid.SlotCount()),
		subjectDay: make(map[string][]int),
		usedIDs:    make(map[string]struct{}),
	}
}

func (r *repairer) notef(format string, args ...interface{}) {
	r.notes = append(r.notes, fmt.Sprintf(format, args...))
}

func (r *repairer) nextID(subjectID string) string {
	for n := 1; ; n++ {
		id := VariableID(subjectID, n)
		if _, taken := r.usedIDs[id]; !taken {
			r.usedIDs[id] = struct{}{}
			return id
		}
	}
}

// blocker returns the id of an assignment already holding the teacher or course at cell.
func (r *repairer) blocker(sub models.Subject, cell int) (string, bool) {
	if id, busy := r.teacherAt[sub.TeacherID][cell]; busy {
		return id, true
	}
	if id, busy := r.courseAt[sub.CourseID][cell]; busy {
		return id, true
	}
	return "", false
}

func (r *repairer) occupy(a models.Assignment, sub models.Subject, cell int) {
	slot := r.grid.slotOf(cell)
	a.Day, a.HourIndex = slot.Day, slot.HourIndex
	if r.teacherAt[sub.TeacherID] == nil {
		r.teacherAt[sub.TeacherID] = make(map[int]string)
	}
	if r.courseAt[sub.CourseID] == nil {
		r.courseAt[sub.CourseID] = make(map[int]string)
	}
	r.teacherAt[sub.TeacherID][cell] = a.ID
	r.courseAt[sub.CourseID][cell] = a.ID
	r.load[cell]++
	days, ok := r.subjectDay[sub.ID]
	if !ok {
		days = make([]int, len(r.grid.Days))
		r.subjectDay[sub.ID] = days
	}
	days[r.grid.dayOf(cell)]++
	r.accepted = append(r.accepted, a)
}

// leastLoaded picks the free slot with the fewest occupants school-wide, then the day
// with the fewest occurrences of the subject, then the earliest slot.
func (r *repairer) leastLoaded(sub models.Subject) (int, bool) {
	best := -1
	days := r.subjectDay[sub.ID]
	for _, cell := range r.m.assignable {
		if _, busy := r.blocker(sub, cell); busy {
			continue
		}
		if best < 0 {
			best = cell
			continue
		}
		if r.load[cell] != r.load[best] {
			if r.load[cell] < r.load[best] {
				best = cell
			}
			continue
		}
		if days != nil && days[r.grid.dayOf(cell)] < days[r.grid.dayOf(best)] {
			best = cell
		}
	}
	return best, best >= 0
}

func (r *repairer) slotLabel(cell int) string {
	slot := r.grid.slotOf(cell)
	return fmt.Sprintf("(%s, %s)", slot.Day, r.grid.HourLabel(slot.HourIndex))
}

// Repair locally fixes a candidate schedule. Clash losers and misplaced assignments
// move to the least-loaded free slot; surplus occurrences are trimmed and missing ones
// added. Whatever cannot be placed stays unassigned with a note. The repaired schedule
// never carries more findings than the candidate.
func Repair(m *Model, candidate models.Schedule) RepairOutcome {
	r := newRepairer(m)
	pinnedIDs := make(map[string]models.Assignment, len(m.Pinned))
	reserved := make([]string, 0, len(m.Pinned))
	for _, p := range m.Pinned {
		pinnedIDs[p.ID] = p
		reserved = append(reserved, p.ID)
		r.usedIDs[p.ID] = struct{}{}
	}
	labelled := LabelAnonymous(candidate.Assignments, reserved...)
	before := Validate(m, labelled)
	for _, a := range labelled {
		r.usedIDs[a.ID] = struct{}{}
	}
	for _, p := range m.Pinned {
		sub := m.subjects[p.SubjectID]
		cell, _ := m.Grid.cellOf(p.Day, p.HourIndex)
		r.occupy(p, sub, cell)
	}

	work := append([]models.Assignment(nil), labelled...)
	SortAssignments(m.Grid, work)

	var pending []pendingPlacement
	seen := make(map[string]struct{}, len(work))
	for _, a := range work {
		if pin, isPinned := pinnedIDs[a.ID]; isPinned {
			if a.Day != pin.Day || a.HourIndex != pin.HourIndex || a.SubjectID != pin.SubjectID {
				r.notef("dropped assignment %s of %s at (%s, %d): the id belongs to a pinned assignment at (%s, %d)",
					a.ID, a.SubjectID, a.Day, a.HourIndex, pin.Day, pin.HourIndex)
			}
			continue
		}
		if _, dup := seen[a.ID]; dup {
			r.notef("removed duplicate assignment %s", a.ID)
			continue
		}
		seen[a.ID] = struct{}{}
		sub, ok := m.subjects[a.SubjectID]
		if !ok {
			r.notef("removed assignment %s: subject %s does not exist", a.ID, a.SubjectID)
			continue
		}
		if a.TeacherID != sub.TeacherID {
			r.notef("assignment %s listed teacher %s; subject %s is taught by %s", a.ID, a.TeacherID, sub.ID, sub.TeacherID)
			a.TeacherID = sub.TeacherID
		}
		a.Pinned = false
		original := a
		cell, inGrid := m.Grid.cellOf(a.Day, a.HourIndex)
		switch {
		case !inGrid:
			r.notef("assignment %s of %s is outside the grid (%s, %d)", a.ID, m.Describe(sub.ID), a.Day, a.HourIndex)
			pending = append(pending, pendingPlacement{assignment: a, original: original, hasOrigin: true})
		case m.Grid.IsBreak(a.HourIndex):
			r.notef("assignment %s of %s sits on the break %s", a.ID, m.Describe(sub.ID), r.slotLabel(cell))
			pending = append(pending, pendingPlacement{assignment: a, original: original, hasOrigin: true})
		default:
			if other, busy := r.blocker(sub, cell); busy {
				r.notef("assignment %s of %s clashes with %s at %s", a.ID, m.Describe(sub.ID), other, r.slotLabel(cell))
				pending = append(pending, pendingPlacement{assignment: a, original: original, hasOrigin: true})
				continue
			}
			r.occupy(a, sub, cell)
		}
	}

	pending = r.trimSurplus(pending)

	var unresolved []pendingPlacement
	for _, p := range pending {
		sub := m.subjects[p.assignment.SubjectID]
		cell, ok := r.leastLoaded(sub)
		if !ok {
			r.notef("assignment %s of %s is unassigned: no free slot for teacher %s and course %s", p.assignment.ID, m.Describe(sub.ID), sub.TeacherID, sub.CourseID)
			unresolved = append(unresolved, p)
			continue
		}
		r.occupy(p.assignment, sub, cell)
		r.notef("moved assignment %s of %s to %s", p.assignment.ID, m.Describe(sub.ID), r.slotLabel(cell))
	}

	counts := make(map[string]int)
	for _, a := range r.accepted {
		counts[a.SubjectID]++
	}
	for _, p := range unresolved {
		counts[p.assignment.SubjectID]++
	}
	subjects := append([]models.Subject(nil), m.Data.Subjects...)
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].ID < subjects[j].ID })
	for _, sub := range subjects {
		for counts[sub.ID] < sub.HoursPerWeek {
			counts[sub.ID]++
			a := models.Assignment{ID: r.nextID(sub.ID), SubjectID: sub.ID, TeacherID: sub.TeacherID}
			cell, ok := r.leastLoaded(sub)
			if !ok {
				r.notef("occurrence %s of %s is unassigned: no free slot for teacher %s and course %s", a.ID, m.Describe(sub.ID), sub.TeacherID, sub.CourseID)
				continue
			}
			r.occupy(a, sub, cell)
			r.notef("added missing occurrence %s of %s at %s", a.ID, m.Describe(sub.ID), r.slotLabel(cell))
		}
	}

	repaired := append([]models.Assignment(nil), r.accepted...)
	SortAssignments(m.Grid, repaired)
	after := Validate(m, repaired)

	if len(after.Findings) > len(before.Findings) {
		for _, p := range unresolved {
			if p.hasOrigin {
				repaired = append(repaired, p.original)
			}
		}
		SortAssignments(m.Grid, repaired)
		after = Validate(m, repaired)
		r.notef("%d unresolved assignments were left where the candidate placed them", len(unresolved))
	}
	if len(after.Findings) > len(before.Findings) {
		r.notef("repair could not improve the candidate; it is returned unchanged")
		kept := append([]models.Assignment(nil), labelled...)
		SortAssignments(m.Grid, kept)
		return RepairOutcome{
			Schedule: models.Schedule{Assignments: kept, Notes: append(append([]string(nil), candidate.Notes...), r.notes...)},
			Before:   before,
			After:    before,
		}
	}

	return RepairOutcome{
		Schedule: models.Schedule{Assignments: repaired, Notes: append(append([]string(nil), candidate.Notes...), r.notes...)},
		Before:   before,
		After:    after,
	}
}

// trimSurplus drops occurrences beyond a subject's weekly hours, taking pending
// placements first and then the latest accepted ones. Pinned assignments are kept.
func (r *repairer) trimSurplus(pending []pendingPlacement) []pendingPlacement {
	counts := make(map[string]int)
	for _, a := range r.accepted {
		counts[a.SubjectID]++
	}
	for _, p := range pending {
		counts[p.assignment.SubjectID]++
	}
	for i := len(pending) - 1; i >= 0; i-- {
		sub := r.m.subjects[pending[i].assignment.SubjectID]
		if counts[sub.ID] > sub.HoursPerWeek {
			counts[sub.ID]--
			r.notef("removed surplus assignment %s of %s (expected %d occurrences)", pending[i].assignment.ID, r.m.Describe(sub.ID), sub.HoursPerWeek)
			pending = append(pending[:i:i], pending[i+1:]...)
		}
	}
	for i := len(r.accepted) - 1; i >= 0; i-- {
		a := r.accepted[i]
		sub := r.m.subjects[a.SubjectID]
		if a.Pinned || counts[sub.ID] <= sub.HoursPerWeek {
			continue
		}
		counts[sub.ID]--
		cell, _ := r.grid.cellOf(a.Day, a.HourIndex)
		delete(r.teacherAt[sub.TeacherID], cell)
		delete(r.courseAt[sub.CourseID], cell)
		r.load[cell]--
		r.subjectDay[sub.ID][r.grid.dayOf(cell)]--
		r.notef("removed surplus assignment %s of %s (expected %d occurrences)", a.ID, r.m.Describe(sub.ID), sub.HoursPerWeek)
		r.accepted = append(r.accepted[:i:i], r.accepted[i+1:]...)
	}
	return pending
}
