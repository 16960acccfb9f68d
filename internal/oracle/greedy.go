package oracle

import (
	"context"
	"fmt"
	"sort"

	"github.com/noah-isme/eduschedule-api/internal/models"
	"github.com/noah-isme/eduschedule-api/internal/scheduler"
)

// Greedy is an in-process heuristic proposer. It places occurrences one by one on
// the least busy day of their course and never backtracks, so its proposals may be
// incomplete; the engine repairs them.
type Greedy struct{}

// NewGreedy returns the heuristic proposer.
func NewGreedy() *Greedy {
	return &Greedy{}
}

// Propose builds a candidate schedule.
func (g *Greedy) Propose(ctx context.Context, req scheduler.OracleRequest) (*models.Schedule, error) {
	state := newPlacementState(req.Grid)
	subjects := append([]models.Subject(nil), req.Data.Subjects...)
	sort.SliceStable(subjects, func(i, j int) bool {
		if subjects[i].HoursPerWeek != subjects[j].HoursPerWeek {
			return subjects[i].HoursPerWeek > subjects[j].HoursPerWeek
		}
		return subjects[i].ID < subjects[j].ID
	})

	schedule := &models.Schedule{Notes: []string{}}
	for _, sub := range subjects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for n := 1; n <= sub.HoursPerWeek; n++ {
			if !state.assign(sub, n) {
				schedule.Notes = append(schedule.Notes, fmt.Sprintf("greedy: no slot left for occurrence %d of %s", n, sub.ID))
			}
		}
	}
	schedule.Assignments = state.export()
	return schedule, nil
}

type placementKey struct {
	day  int
	hour int
}

type placementState struct {
	grid     scheduler.Grid
	placed   []models.Assignment
	teachers map[string]*availability
	courses  map[string]*availability
	dayLoad  map[string]map[int]int
}

func newPlacementState(grid scheduler.Grid) *placementState {
	return &placementState{
		grid:     grid,
		teachers: make(map[string]*availability),
		courses:  make(map[string]*availability),
		dayLoad:  make(map[string]map[int]int),
	}
}

func (s *placementState) assign(sub models.Subject, occurrence int) bool {
	days := make([]int, len(s.grid.Days))
	for i := range days {
		days[i] = i
	}
	load := s.dayLoad[sub.CourseID]
	sort.SliceStable(days, func(i, j int) bool {
		return load[days[i]] < load[days[j]]
	})
	for _, day := range days {
		for hour := range s.grid.Hours {
			if s.grid.IsBreak(hour) {
				continue
			}
			if s.canPlace(sub, day, hour) {
				s.place(sub, occurrence, day, hour)
				return true
			}
		}
	}
	return false
}

func (s *placementState) canPlace(sub models.Subject, day, hour int) bool {
	key := placementKey{day: day, hour: hour}
	return s.lookup(s.teachers, sub.TeacherID).free(key) && s.lookup(s.courses, sub.CourseID).free(key)
}

func (s *placementState) place(sub models.Subject, occurrence, day, hour int) {
	key := placementKey{day: day, hour: hour}
	s.lookup(s.teachers, sub.TeacherID).reserve(key)
	s.lookup(s.courses, sub.CourseID).reserve(key)
	if s.dayLoad[sub.CourseID] == nil {
		s.dayLoad[sub.CourseID] = make(map[int]int)
	}
	s.dayLoad[sub.CourseID][day]++
	s.placed = append(s.placed, models.Assignment{
		ID:        scheduler.VariableID(sub.ID, occurrence),
		Day:       s.grid.Days[day],
		HourIndex: hour,
		SubjectID: sub.ID,
		TeacherID: sub.TeacherID,
	})
}

func (s *placementState) lookup(index map[string]*availability, id string) *availability {
	a, ok := index[id]
	if !ok {
		a = newAvailability()
		index[id] = a
	}
	return a
}

func (s *placementState) export() []models.Assignment {
	out := append([]models.Assignment(nil), s.placed...)
	scheduler.SortAssignments(s.grid, out)
	return out
}

type availability struct {
	reserved map[placementKey]bool
}

func newAvailability() *availability {
	return &availability{reserved: make(map[placementKey]bool)}
}

func (a *availability) free(key placementKey) bool {
	return !a.reserved[key]
}

func (a *availability) reserve(key placementKey) {
	a.reserved[key] = true
}
