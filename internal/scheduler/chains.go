package scheduler

import "sort"

// chainColouring places occurrences one by one as edges of the bipartite
// teacher/course multigraph, slots being colours. When no slot is free for both
// ends it frees one by swapping two slots along an alternating path (a Kempe
// chain). With unrestricted domains this always completes as long as no teacher
// or course needs more slots than the grid has (König's edge colouring theorem).
type chainColouring struct {
	s         *solver
	colour    []int
	teacher   []int
	course    []int
	atTeacher [][]int
	atCourse  [][]int
	placed    int
}

func newChainColouring(s *solver) *chainColouring {
	n := len(s.m.Variables)
	slotCount := s.grid.SlotCount()
	cc := &chainColouring{
		s:       s,
		colour:  make([]int, n),
		teacher: make([]int, n),
		course:  make([]int, n),
	}
	teacherIdx := make(map[string]int)
	courseIdx := make(map[string]int)
	index := func(ids map[string]int, id string, table *[][]int) int {
		i, ok := ids[id]
		if !ok {
			i = len(ids)
			ids[id] = i
			row := make([]int, slotCount)
			for c := range row {
				row[c] = -1
			}
			*table = append(*table, row)
		}
		return i
	}
	for v, variable := range s.m.Variables {
		cc.colour[v] = -1
		cc.teacher[v] = index(teacherIdx, variable.TeacherID, &cc.atTeacher)
		cc.course[v] = index(courseIdx, variable.CourseID, &cc.atCourse)
	}
	return cc
}

// colourByChains runs the alternating path construction. It reports false when some
// occurrence could not be placed within the live domains; the solver state is left
// untouched in that case. Budget exhaustion keeps the partial colouring as the best
// candidate.
func (s *solver) colourByChains() (bool, error) {
	cc := newChainColouring(s)
	order := append([]int(nil), s.order...)
	sort.SliceStable(order, func(a, b int) bool {
		return s.sizes[order[a]] < s.sizes[order[b]]
	})

	for _, v := range order {
		if err := s.tick(); err != nil {
			cc.keepBest()
			s.recountDays()
			return false, err
		}
		ok, err := cc.place(v)
		if err != nil {
			cc.keepBest()
			s.recountDays()
			return false, err
		}
		if !ok {
			cc.keepBest()
			s.recountDays()
			return false, nil
		}
	}
	copy(s.assigned, cc.colour)
	s.recountDays()
	return true, nil
}

func (cc *chainColouring) keepBest() {
	if cc.placed > cc.s.bestDepth {
		cc.s.bestDepth = cc.placed
		cc.s.best = append(cc.s.best[:0], cc.colour...)
	}
}

func (cc *chainColouring) place(v int) (bool, error) {
	s := cc.s
	t, c := cc.teacher[v], cc.course[v]
	cells := s.candidates(v)
	for _, cell := range cells {
		if cc.atTeacher[t][cell] < 0 && cc.atCourse[c][cell] < 0 {
			cc.set(v, cell)
			return true, nil
		}
	}

	// alpha is free for the teacher and in v's domain; beta is free for the course.
	// Swapping them on the path leaving the course frees alpha for the course too.
	for _, alpha := range cells {
		if cc.atTeacher[t][alpha] >= 0 {
			continue
		}
		for _, beta := range s.m.assignable {
			if beta == alpha || cc.atCourse[c][beta] >= 0 {
				continue
			}
			path, ok, err := cc.path(false, c, alpha, beta)
			if err != nil {
				return false, err
			}
			if ok {
				cc.flip(path, alpha, beta)
				cc.set(v, alpha)
				return true, nil
			}
		}
	}
	// The mirror case: free a course slot for the teacher.
	for _, beta := range cells {
		if cc.atCourse[c][beta] >= 0 {
			continue
		}
		for _, alpha := range s.m.assignable {
			if alpha == beta || cc.atTeacher[t][alpha] >= 0 {
				continue
			}
			path, ok, err := cc.path(true, t, beta, alpha)
			if err != nil {
				return false, err
			}
			if ok {
				cc.flip(path, beta, alpha)
				cc.set(v, beta)
				return true, nil
			}
		}
	}
	return false, nil
}

// path walks the chain starting at vertex with the edge coloured first, then
// alternating with second. It fails when an edge on the way cannot take the other
// colour.
func (cc *chainColouring) path(fromTeacher bool, vertex, first, second int) ([]int, bool, error) {
	var edges []int
	onTeacher, cur := fromTeacher, first
	for {
		var e int
		if onTeacher {
			e = cc.atTeacher[vertex][cur]
		} else {
			e = cc.atCourse[vertex][cur]
		}
		if e < 0 {
			return edges, true, nil
		}
		if err := cc.s.tick(); err != nil {
			return nil, false, err
		}
		next := first
		if cur == first {
			next = second
		}
		if !cc.s.domains[e][next] || len(edges) > len(cc.colour) {
			return nil, false, nil
		}
		edges = append(edges, e)
		if onTeacher {
			vertex = cc.course[e]
		} else {
			vertex = cc.teacher[e]
		}
		onTeacher = !onTeacher
		cur = next
	}
}

// flip recolours a chain whose edges alternate a, b, a, ... into b, a, b, ...
func (cc *chainColouring) flip(edges []int, a, b int) {
	for _, e := range edges {
		cc.unset(e)
	}
	for i, e := range edges {
		if i%2 == 0 {
			cc.set(e, b)
		} else {
			cc.set(e, a)
		}
	}
}

func (cc *chainColouring) set(v, cell int) {
	cc.colour[v] = cell
	cc.atTeacher[cc.teacher[v]][cell] = v
	cc.atCourse[cc.course[v]][cell] = v
	cc.s.bumpDay(cc.s.m.Variables[v].SubjectID, cc.s.grid.slotOf(cell).Day, 1)
	cc.placed++
}

func (cc *chainColouring) unset(v int) {
	cell := cc.colour[v]
	cc.colour[v] = -1
	cc.atTeacher[cc.teacher[v]][cell] = -1
	cc.atCourse[cc.course[v]][cell] = -1
	cc.s.bumpDay(cc.s.m.Variables[v].SubjectID, cc.s.grid.slotOf(cell).Day, -1)
	cc.placed--
}
