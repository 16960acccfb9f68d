package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

// Budget bounds a search. Zero values mean unbounded.
type Budget struct {
	MaxSteps int           `json:"max_steps" yaml:"max_steps"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout"`
}

// SolveOptions tunes a direct search.
type SolveOptions struct {
	Budget Budget
	// Hints maps subject ids to preferred slots. Hinted slots are tried before other
	// slots that spread the subject equally well.
	Hints map[string][]Slot
}

// SearchOutcome is the result of a direct search.
type SearchOutcome struct {
	Assignments   []models.Assignment
	Notes         []string
	Complete      bool
	Truncated     bool
	Unsatisfiable *UnsatisfiableError
	Steps         int
}

type trailEntry struct {
	variable int
	cell     int
}

type solver struct {
	ctx  context.Context
	m    *Model
	grid Grid

	domains  [][]bool
	sizes    []int
	trail    []trailEntry
	assigned []int
	order    []int
	// later and earlier list same-subject variables with a higher or lower
	// occurrence number.
	later      [][]int
	earlier    [][]int
	hints      []map[int]struct{}
	subjectDay map[string][]int
	failures   []int

	steps    int
	maxSteps int
	deadline time.Time

	best      []int
	bestDepth int
}

type searchState int

const (
	stateSolved searchState = iota
	stateUnsatisfiable
	stateExhausted
	stateTruncated
)

var errBudgetExceeded = errors.New("budget exceeded")

func newSolver(ctx context.Context, m *Model, opts SolveOptions) *solver {
	n := len(m.Variables)
	slotCount := m.Grid.SlotCount()
	s := &solver{
		ctx:        ctx,
		m:          m,
		grid:       m.Grid,
		domains:    make([][]bool, n),
		sizes:      make([]int, n),
		assigned:   make([]int, n),
		later:      make([][]int, n),
		earlier:    make([][]int, n),
		hints:      make([]map[int]struct{}, n),
		subjectDay: make(map[string][]int),
		failures:   make([]int, n),
		maxSteps:   opts.Budget.MaxSteps,
		bestDepth:  -1,
	}
	if opts.Budget.Timeout > 0 {
		s.deadline = time.Now().Add(opts.Budget.Timeout)
	}
	bySubject := make(map[string][]int)
	for i, v := range m.Variables {
		s.assigned[i] = -1
		s.domains[i] = make([]bool, slotCount)
		for _, cell := range v.Domain {
			s.domains[i][cell] = true
		}
		s.sizes[i] = len(v.Domain)
		bySubject[v.SubjectID] = append(bySubject[v.SubjectID], i)
		if slots, ok := opts.Hints[v.SubjectID]; ok {
			s.hints[i] = make(map[int]struct{}, len(slots))
			for _, slot := range slots {
				if cell, ok := m.Grid.cellOf(slot.Day, slot.HourIndex); ok {
					s.hints[i][cell] = struct{}{}
				}
			}
		}
	}
	for _, vars := range bySubject {
		sort.Slice(vars, func(a, b int) bool {
			return m.Variables[vars[a]].Occurrence < m.Variables[vars[b]].Occurrence
		})
		for k, v := range vars {
			s.later[v] = append([]int(nil), vars[k+1:]...)
			s.earlier[v] = append([]int(nil), vars[:k]...)
		}
	}
	for _, p := range m.Pinned {
		s.bumpDay(p.SubjectID, p.Day, 1)
	}
	s.order = s.variableOrder()
	return s
}

func (s *solver) bumpDay(subjectID, day string, delta int) {
	pos, ok := s.grid.DayPosition(day)
	if !ok {
		return
	}
	days, ok := s.subjectDay[subjectID]
	if !ok {
		days = make([]int, len(s.grid.Days))
		s.subjectDay[subjectID] = days
	}
	days[pos] += delta
}

func (s *solver) recountDays() {
	s.subjectDay = make(map[string][]int)
	for _, p := range s.m.Pinned {
		s.bumpDay(p.SubjectID, p.Day, 1)
	}
	for v, cell := range s.assigned {
		if cell >= 0 {
			s.bumpDay(s.m.Variables[v].SubjectID, s.grid.slotOf(cell).Day, 1)
		}
	}
}

// variableOrder sorts most-constrained first: the combined load of the teacher and
// course, then the smaller domain, then subject id and occurrence.
func (s *solver) variableOrder() []int {
	teacherLoad := make(map[string]int)
	courseLoad := make(map[string]int)
	for _, v := range s.m.Variables {
		teacherLoad[v.TeacherID]++
		courseLoad[v.CourseID]++
	}
	for _, p := range s.m.Pinned {
		teacherLoad[p.TeacherID]++
		if sub, ok := s.m.subjects[p.SubjectID]; ok {
			courseLoad[sub.CourseID]++
		}
	}
	order := make([]int, len(s.m.Variables))
	for i := range order {
		order[i] = i
	}
	vars := s.m.Variables
	sort.SliceStable(order, func(a, b int) bool {
		va, vb := vars[order[a]], vars[order[b]]
		la := teacherLoad[va.TeacherID] + courseLoad[va.CourseID]
		lb := teacherLoad[vb.TeacherID] + courseLoad[vb.CourseID]
		if la != lb {
			return la > lb
		}
		if s.sizes[order[a]] != s.sizes[order[b]] {
			return s.sizes[order[a]] < s.sizes[order[b]]
		}
		if va.SubjectID != vb.SubjectID {
			return va.SubjectID < vb.SubjectID
		}
		return va.Occurrence < vb.Occurrence
	})
	return order
}

// Solve runs a direct search over the model.
func Solve(ctx context.Context, m *Model, opts SolveOptions) (*SearchOutcome, error) {
	s := newSolver(ctx, m, opts)
	state, conflict, err := s.run()
	if err != nil {
		return nil, err
	}
	outcome := &SearchOutcome{Steps: s.steps}
	switch state {
	case stateSolved:
		outcome.Complete = true
	case stateTruncated:
		outcome.Truncated = true
		if s.best != nil {
			copy(s.assigned, s.best)
		}
		s.recountDays()
		s.greedyFill()
		placed := 0
		for _, cell := range s.assigned {
			if cell >= 0 {
				placed++
			}
		}
		outcome.Notes = append(outcome.Notes, fmt.Sprintf("search truncated after %d steps: best candidate places %d of %d occurrences", s.steps, placed, len(s.assigned)))
	case stateExhausted:
		conflict = s.minimizeConflict(s.exhaustionCandidates())
		fallthrough
	case stateUnsatisfiable:
		outcome.Unsatisfiable = conflict
		outcome.Notes = append(outcome.Notes, conflict.Error())
		for i := range s.assigned {
			s.assigned[i] = -1
		}
		s.recountDays()
		s.greedyFill()
	}
	outcome.Assignments = s.export()
	outcome.Notes = append(outcome.Notes, s.unplacedNotes()...)
	if outcome.Complete && len(outcome.Assignments) != m.OccurrenceCount() {
		outcome.Complete = false
	}
	return outcome, nil
}

// run executes capacity checks, propagation, the alternating path construction and,
// when that gets stuck on restricted domains, complete backtracking. Budget
// exhaustion is reported as stateTruncated; context cancellation as an error.
func (s *solver) run() (searchState, *UnsatisfiableError, error) {
	if err := s.ctx.Err(); err != nil {
		return 0, nil, err
	}
	if conflict := s.capacityCheck(); conflict != nil {
		return stateUnsatisfiable, conflict, nil
	}
	if conflict := s.propagateSingletons(); conflict != nil {
		return stateUnsatisfiable, conflict, nil
	}
	ok, err := s.colourByChains()
	if err == nil && !ok {
		ok, err = s.search(0)
	}
	switch {
	case errors.Is(err, errBudgetExceeded):
		return stateTruncated, nil, nil
	case err != nil:
		return 0, nil, err
	case ok:
		return stateSolved, nil, nil
	default:
		return stateExhausted, nil, nil
	}
}

type capacityGroup struct {
	kind     string
	id       string
	vars     []int
	subjects []string
}

// capacityCheck applies the pigeonhole principle to every subject, teacher and course:
// a group with more occurrences than distinct free slots cannot be scheduled.
func (s *solver) capacityCheck() *UnsatisfiableError {
	groups := make(map[string]*capacityGroup)
	add := func(kind, id string, v int) {
		key := kind + "\x00" + id
		g, ok := groups[key]
		if !ok {
			g = &capacityGroup{kind: kind, id: id}
			groups[key] = g
		}
		g.vars = append(g.vars, v)
	}
	for i, v := range s.m.Variables {
		add(RefSubject, v.SubjectID, i)
		add(RefTeacher, v.TeacherID, i)
		add(RefCourse, v.CourseID, i)
	}
	kindOrder := map[string]int{RefSubject: 0, RefTeacher: 1, RefCourse: 2}
	var worst *capacityGroup
	var worstFree int
	for _, g := range groups {
		free := make(map[int]struct{})
		subjects := make(map[string]struct{})
		for _, v := range g.vars {
			subjects[s.m.Variables[v].SubjectID] = struct{}{}
			for cell, ok := range s.domains[v] {
				if ok {
					free[cell] = struct{}{}
				}
			}
		}
		if len(g.vars) <= len(free) {
			continue
		}
		g.subjects = sortedKeys(subjects)
		if worst == nil || len(g.subjects) < len(worst.subjects) ||
			(len(g.subjects) == len(worst.subjects) && (kindOrder[g.kind] < kindOrder[worst.kind] ||
				(g.kind == worst.kind && g.id < worst.id))) {
			worst = g
			worstFree = len(free)
		}
	}
	if worst == nil {
		return nil
	}
	return &UnsatisfiableError{
		Subjects: worst.subjects,
		Reason:   fmt.Sprintf("%s %s needs %d slots but only %d are free", worst.kind, worst.id, len(worst.vars), worstFree),
	}
}

// propagateSingletons removes the only candidate of a singleton variable from all of
// its neighbours, repeating until nothing changes.
func (s *solver) propagateSingletons() *UnsatisfiableError {
	blame := make([]map[string]struct{}, len(s.m.Variables))
	done := make([]bool, len(s.m.Variables))
	queue := make([]int, 0)
	for i, size := range s.sizes {
		if size == 1 {
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		if done[v] || s.sizes[v] != 1 {
			continue
		}
		done[v] = true
		cell := s.firstCell(v)
		for _, u := range s.m.Neighbors[v] {
			if !s.domains[u][cell] {
				continue
			}
			s.domains[u][cell] = false
			s.sizes[u]--
			if blame[u] == nil {
				blame[u] = make(map[string]struct{})
			}
			blame[u][s.m.Variables[v].SubjectID] = struct{}{}
			switch s.sizes[u] {
			case 0:
				blame[u][s.m.Variables[u].SubjectID] = struct{}{}
				return &UnsatisfiableError{
					Subjects: sortedKeys(blame[u]),
					Reason:   fmt.Sprintf("occurrence %s loses every slot to fixed neighbours", s.m.Variables[u].ID),
				}
			case 1:
				queue = append(queue, u)
			}
		}
	}
	return nil
}

func (s *solver) firstCell(v int) int {
	for cell, ok := range s.domains[v] {
		if ok {
			return cell
		}
	}
	return -1
}

func (s *solver) tick() error {
	s.steps++
	if s.maxSteps > 0 && s.steps > s.maxSteps {
		return errBudgetExceeded
	}
	if s.steps%32 == 0 {
		if err := s.ctx.Err(); err != nil {
			return err
		}
		if !s.deadline.IsZero() && time.Now().After(s.deadline) {
			return errBudgetExceeded
		}
	}
	return nil
}

// search is chronological backtracking that branches on the unassigned variable
// with the fewest live slots, ties going to the static order.
func (s *solver) search(depth int) (bool, error) {
	v := s.pick()
	if v < 0 {
		return true, nil
	}
	for _, cell := range s.candidates(v) {
		if err := s.tick(); err != nil {
			return false, err
		}
		mark := len(s.trail)
		if s.assign(v, cell) {
			if depth+1 > s.bestDepth {
				s.bestDepth = depth + 1
				s.best = append(s.best[:0], s.assigned...)
			}
			ok, err := s.search(depth + 1)
			if ok || err != nil {
				return ok, err
			}
		}
		s.undo(v, mark)
	}
	return false, nil
}

func (s *solver) pick() int {
	best := -1
	for _, v := range s.order {
		if s.assigned[v] >= 0 {
			continue
		}
		if best < 0 || s.sizes[v] < s.sizes[best] {
			best = v
		}
	}
	return best
}

// candidates orders the live domain: days where the subject has fewer occurrences
// first, then hinted slots, then the earliest slot.
func (s *solver) candidates(v int) []int {
	cells := make([]int, 0, s.sizes[v])
	for cell, ok := range s.domains[v] {
		if ok {
			cells = append(cells, cell)
		}
	}
	days := s.subjectDay[s.m.Variables[v].SubjectID]
	hints := s.hints[v]
	sort.SliceStable(cells, func(a, b int) bool {
		if days != nil {
			da, db := days[s.grid.dayOf(cells[a])], days[s.grid.dayOf(cells[b])]
			if da != db {
				return da < db
			}
		}
		_, ha := hints[cells[a]]
		_, hb := hints[cells[b]]
		if ha != hb {
			return ha
		}
		return cells[a] < cells[b]
	})
	return cells
}

// assign binds v to cell and forward-checks its neighbours. Occurrences of one subject
// are interchangeable, so later occurrences only keep slots of a higher rank and
// earlier ones only slots of a lower rank.
func (s *solver) assign(v, cell int) bool {
	s.assigned[v] = cell
	s.bumpDay(s.m.Variables[v].SubjectID, s.grid.slotOf(cell).Day, 1)
	for _, u := range s.m.Neighbors[v] {
		if s.assigned[u] >= 0 || !s.domains[u][cell] {
			continue
		}
		s.remove(u, cell)
		if s.sizes[u] == 0 {
			s.failures[u]++
			return false
		}
	}
	limit := s.grid.rank(cell)
	for _, w := range s.later[v] {
		if s.assigned[w] >= 0 {
			continue
		}
		for c, ok := range s.domains[w] {
			if ok && s.grid.rank(c) <= limit {
				s.remove(w, c)
			}
		}
		if s.sizes[w] == 0 {
			s.failures[w]++
			return false
		}
	}
	for _, w := range s.earlier[v] {
		if s.assigned[w] >= 0 {
			continue
		}
		for c, ok := range s.domains[w] {
			if ok && s.grid.rank(c) >= limit {
				s.remove(w, c)
			}
		}
		if s.sizes[w] == 0 {
			s.failures[w]++
			return false
		}
	}
	return true
}

func (s *solver) remove(v, cell int) {
	s.domains[v][cell] = false
	s.sizes[v]--
	s.trail = append(s.trail, trailEntry{variable: v, cell: cell})
}

func (s *solver) undo(v, mark int) {
	for len(s.trail) > mark {
		last := s.trail[len(s.trail)-1]
		s.trail = s.trail[:len(s.trail)-1]
		s.domains[last.variable][last.cell] = true
		s.sizes[last.variable]++
	}
	if cell := s.assigned[v]; cell >= 0 {
		s.bumpDay(s.m.Variables[v].SubjectID, s.grid.slotOf(cell).Day, -1)
	}
	s.assigned[v] = -1
}

// greedyFill places every unassigned variable in the first slot its model domain and
// the already placed neighbours allow.
func (s *solver) greedyFill() {
	for _, v := range s.order {
		if s.assigned[v] >= 0 {
			continue
		}
		taken := make(map[int]struct{})
		for _, u := range s.m.Neighbors[v] {
			if s.assigned[u] >= 0 {
				taken[s.assigned[u]] = struct{}{}
			}
		}
		days := s.subjectDay[s.m.Variables[v].SubjectID]
		best := -1
		for _, cell := range s.m.Variables[v].Domain {
			if _, busy := taken[cell]; busy {
				continue
			}
			if best < 0 || (days != nil && days[s.grid.dayOf(cell)] < days[s.grid.dayOf(best)]) {
				best = cell
			}
		}
		if best >= 0 {
			s.assigned[v] = best
			s.bumpDay(s.m.Variables[v].SubjectID, s.grid.slotOf(best).Day, 1)
		}
	}
}

func (s *solver) exhaustionCandidates() map[string]struct{} {
	worst := -1
	for v, n := range s.failures {
		if n > 0 && (worst < 0 || n > s.failures[worst]) {
			worst = v
		}
	}
	subjects := make(map[string]struct{})
	if worst < 0 {
		for _, v := range s.m.Variables {
			subjects[v.SubjectID] = struct{}{}
		}
		return subjects
	}
	subjects[s.m.Variables[worst].SubjectID] = struct{}{}
	for _, u := range s.m.Neighbors[worst] {
		subjects[s.m.Variables[u].SubjectID] = struct{}{}
	}
	return subjects
}

// minimizeConflict shrinks a failing subject set with a deletion filter: a subject is
// dropped when the rest still provably has no solution within the remaining budget.
func (s *solver) minimizeConflict(candidates map[string]struct{}) *UnsatisfiableError {
	remaining := func() int {
		if s.maxSteps <= 0 {
			return 0
		}
		left := s.maxSteps - s.steps
		if left < 1 {
			left = 1
		}
		return left
	}
	proves := func(set map[string]struct{}) bool {
		sub := newSolver(s.ctx, s.m.subset(set), SolveOptions{Budget: Budget{MaxSteps: remaining()}})
		sub.deadline = s.deadline
		state, _, err := sub.run()
		s.steps += sub.steps
		return err == nil && (state == stateUnsatisfiable || state == stateExhausted)
	}
	if !proves(candidates) {
		candidates = make(map[string]struct{})
		for _, v := range s.m.Variables {
			candidates[v.SubjectID] = struct{}{}
		}
	}
	for _, id := range sortedKeys(candidates) {
		if len(candidates) == 1 {
			break
		}
		delete(candidates, id)
		if !proves(candidates) {
			candidates[id] = struct{}{}
		}
	}
	return &UnsatisfiableError{
		Subjects: sortedKeys(candidates),
		Reason:   "exhaustive search found no conflict-free placement",
	}
}

func (s *solver) export() []models.Assignment {
	out := make([]models.Assignment, 0, len(s.m.Pinned)+len(s.assigned))
	out = append(out, s.m.Pinned...)
	for v, cell := range s.assigned {
		if cell < 0 {
			continue
		}
		variable := s.m.Variables[v]
		slot := s.grid.slotOf(cell)
		out = append(out, models.Assignment{
			ID:        variable.ID,
			Day:       slot.Day,
			HourIndex: slot.HourIndex,
			SubjectID: variable.SubjectID,
			TeacherID: variable.TeacherID,
		})
	}
	SortAssignments(s.grid, out)
	return out
}

func (s *solver) unplacedNotes() []string {
	var notes []string
	for _, v := range s.order {
		if s.assigned[v] >= 0 {
			continue
		}
		variable := s.m.Variables[v]
		notes = append(notes, fmt.Sprintf("occurrence %d of %s is unassigned: no free slot for teacher %s and course %s",
			variable.Occurrence, s.m.Describe(variable.SubjectID), variable.TeacherID, variable.CourseID))
	}
	sort.Strings(notes)
	return notes
}

// SortAssignments orders assignments by day, hour, subject id and assignment id.
// Assignments on unknown days sort last.
func SortAssignments(grid Grid, assignments []models.Assignment) {
	pos := func(day string) int {
		if p, ok := grid.DayPosition(day); ok {
			return p
		}
		return len(grid.Days)
	}
	sort.SliceStable(assignments, func(i, j int) bool {
		a, b := assignments[i], assignments[j]
		if pa, pb := pos(a.Day), pos(b.Day); pa != pb {
			return pa < pb
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.HourIndex != b.HourIndex {
			return a.HourIndex < b.HourIndex
		}
		if a.SubjectID != b.SubjectID {
			return a.SubjectID < b.SubjectID
		}
		return strings.Compare(a.ID, b.ID) < 0
	})
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
