package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

var (
	// ErrEntityNotFound is returned when an identifier does not resolve in the store.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrDuplicateID is returned when an identifier is already taken in its collection.
	ErrDuplicateID = errors.New("duplicate identifier")
	// ErrBrokenReference is returned when a write would leave a reference unresolved.
	ErrBrokenReference = errors.New("reference does not resolve")
	// ErrInvalidEntity is returned for structurally invalid entities.
	ErrInvalidEntity = errors.New("invalid entity")
)

// Removal lists every identifier touched by a delete, cascades included.
type Removal struct {
	LevelIDs           []string `json:"level_ids,omitempty"`
	CourseIDs          []string `json:"course_ids,omitempty"`
	TeacherIDs         []string `json:"teacher_ids,omitempty"`
	SubjectIDs         []string `json:"subject_ids,omitempty"`
	OrphanedSubjectIDs []string `json:"orphaned_subject_ids,omitempty"`
}

// Store holds the academic structure and enforces referential integrity on writes.
// It is not safe for concurrent use; callers serialize access.
type Store struct {
	levels   []models.Level
	courses  []models.Course
	teachers []models.Teacher
	subjects []models.Subject
}

// NewStore loads a snapshot. Identifiers must be unique; orphaned subjects are kept.
func NewStore(data models.SchoolData) (*Store, error) {
	s := &Store{}
	snap := data.Clone()
	s.levels, s.courses, s.teachers, s.subjects = snap.Levels, snap.Courses, snap.Teachers, snap.Subjects
	if problems := duplicateIDs(snap); len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, strings.Join(problems, "; "))
	}
	return s, nil
}

// Snapshot returns a deep copy that later writes cannot affect.
func (s *Store) Snapshot() models.SchoolData {
	return models.SchoolData{
		Levels:   s.levels,
		Courses:  s.courses,
		Teachers: s.teachers,
		Subjects: s.subjects,
	}.Clone()
}

func (s *Store) levelIndex(id string) int {
	for i := range s.levels {
		if s.levels[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) courseIndex(id string) int {
	for i := range s.courses {
		if s.courses[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) teacherIndex(id string) int {
	for i := range s.teachers {
		if s.teachers[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) subjectIndex(id string) int {
	for i := range s.subjects {
		if s.subjects[i].ID == id {
			return i
		}
	}
	return -1
}

// AddLevel inserts a new level.
func (s *Store) AddLevel(level models.Level) error {
	if strings.TrimSpace(level.ID) == "" {
		return fmt.Errorf("%w: level id is required", ErrInvalidEntity)
	}
	if s.levelIndex(level.ID) >= 0 {
		return fmt.Errorf("%w: level %s", ErrDuplicateID, level.ID)
	}
	s.levels = append(s.levels, level)
	return nil
}

// UpdateLevel replaces the mutable fields of an existing level.
func (s *Store) UpdateLevel(level models.Level) error {
	idx := s.levelIndex(level.ID)
	if idx < 0 {
		return fmt.Errorf("%w: level %s", ErrEntityNotFound, level.ID)
	}
	s.levels[idx].Name = level.Name
	return nil
}

// RemoveLevel deletes a level with its courses and their subjects.
func (s *Store) RemoveLevel(id string) (Removal, error) {
	idx := s.levelIndex(id)
	if idx < 0 {
		return Removal{}, fmt.Errorf("%w: level %s", ErrEntityNotFound, id)
	}
	s.levels = append(s.levels[:idx:idx], s.levels[idx+1:]...)

	removal := Removal{LevelIDs: []string{id}}
	courseIDs := make(map[string]struct{})
	keptCourses := s.courses[:0:0]
	for _, course := range s.courses {
		if course.LevelID == id {
			courseIDs[course.ID] = struct{}{}
			removal.CourseIDs = append(removal.CourseIDs, course.ID)
			continue
		}
		keptCourses = append(keptCourses, course)
	}
	s.courses = keptCourses
	removal.SubjectIDs = s.dropSubjects(func(sub models.Subject) bool {
		_, ok := courseIDs[sub.CourseID]
		return ok
	})
	return removal, nil
}

// AddCourse inserts a course under an existing level.
func (s *Store) AddCourse(course models.Course) error {
	if strings.TrimSpace(course.ID) == "" {
		return fmt.Errorf("%w: course id is required", ErrInvalidEntity)
	}
	if s.courseIndex(course.ID) >= 0 {
		return fmt.Errorf("%w: course %s", ErrDuplicateID, course.ID)
	}
	if s.levelIndex(course.LevelID) < 0 {
		return fmt.Errorf("%w: course %s references level %s", ErrBrokenReference, course.ID, course.LevelID)
	}
	s.courses = append(s.courses, course)
	return nil
}

// UpdateCourse replaces the name and level of an existing course.
func (s *Store) UpdateCourse(course models.Course) error {
	idx := s.courseIndex(course.ID)
	if idx < 0 {
		return fmt.Errorf("%w: course %s", ErrEntityNotFound, course.ID)
	}
	if s.levelIndex(course.LevelID) < 0 {
		return fmt.Errorf("%w: course %s references level %s", ErrBrokenReference, course.ID, course.LevelID)
	}
	s.courses[idx].Name = course.Name
	s.courses[idx].LevelID = course.LevelID
	return nil
}

// RemoveCourse deletes a course and its subjects.
func (s *Store) RemoveCourse(id string) (Removal, error) {
	idx := s.courseIndex(id)
	if idx < 0 {
		return Removal{}, fmt.Errorf("%w: course %s", ErrEntityNotFound, id)
	}
	s.courses = append(s.courses[:idx:idx], s.courses[idx+1:]...)
	removal := Removal{CourseIDs: []string{id}}
	removal.SubjectIDs = s.dropSubjects(func(sub models.Subject) bool { return sub.CourseID == id })
	return removal, nil
}

// AddTeacher inserts a teacher.
func (s *Store) AddTeacher(teacher models.Teacher) error {
	if strings.TrimSpace(teacher.ID) == "" {
		return fmt.Errorf("%w: teacher id is required", ErrInvalidEntity)
	}
	if s.teacherIndex(teacher.ID) >= 0 {
		return fmt.Errorf("%w: teacher %s", ErrDuplicateID, teacher.ID)
	}
	s.teachers = append(s.teachers, teacher)
	return nil
}

// UpdateTeacher replaces the mutable fields of an existing teacher.
func (s *Store) UpdateTeacher(teacher models.Teacher) error {
	idx := s.teacherIndex(teacher.ID)
	if idx < 0 {
		return fmt.Errorf("%w: teacher %s", ErrEntityNotFound, teacher.ID)
	}
	s.teachers[idx].Name = teacher.Name
	s.teachers[idx].Specialty = teacher.Specialty
	return nil
}

// RemoveTeacher deletes a teacher without cascading. Subjects taught by the teacher
// stay in the store and are reported as orphaned.
func (s *Store) RemoveTeacher(id string) (Removal, error) {
	idx := s.teacherIndex(id)
	if idx < 0 {
		return Removal{}, fmt.Errorf("%w: teacher %s", ErrEntityNotFound, id)
	}
	s.teachers = append(s.teachers[:idx:idx], s.teachers[idx+1:]...)
	removal := Removal{TeacherIDs: []string{id}}
	for _, sub := range s.subjects {
		if sub.TeacherID == id {
			removal.OrphanedSubjectIDs = append(removal.OrphanedSubjectIDs, sub.ID)
		}
	}
	return removal, nil
}

// AddSubject inserts a subject whose teacher and course both resolve.
func (s *Store) AddSubject(subject models.Subject) error {
	if strings.TrimSpace(subject.ID) == "" {
		return fmt.Errorf("%w: subject id is required", ErrInvalidEntity)
	}
	if s.subjectIndex(subject.ID) >= 0 {
		return fmt.Errorf("%w: subject %s", ErrDuplicateID, subject.ID)
	}
	if err := s.checkSubject(subject); err != nil {
		return err
	}
	s.subjects = append(s.subjects, subject)
	return nil
}

// UpdateSubject replaces the mutable fields of an existing subject.
func (s *Store) UpdateSubject(subject models.Subject) error {
	idx := s.subjectIndex(subject.ID)
	if idx < 0 {
		return fmt.Errorf("%w: subject %s", ErrEntityNotFound, subject.ID)
	}
	if err := s.checkSubject(subject); err != nil {
		return err
	}
	s.subjects[idx] = subject
	return nil
}

// RemoveSubject deletes one subject.
func (s *Store) RemoveSubject(id string) (Removal, error) {
	idx := s.subjectIndex(id)
	if idx < 0 {
		return Removal{}, fmt.Errorf("%w: subject %s", ErrEntityNotFound, id)
	}
	s.subjects = append(s.subjects[:idx:idx], s.subjects[idx+1:]...)
	return Removal{SubjectIDs: []string{id}}, nil
}

func (s *Store) checkSubject(subject models.Subject) error {
	if subject.HoursPerWeek <= 0 {
		return fmt.Errorf("%w: subject %s needs a positive hours per week", ErrInvalidEntity, subject.ID)
	}
	if s.teacherIndex(subject.TeacherID) < 0 {
		return fmt.Errorf("%w: subject %s references teacher %s", ErrBrokenReference, subject.ID, subject.TeacherID)
	}
	if s.courseIndex(subject.CourseID) < 0 {
		return fmt.Errorf("%w: subject %s references course %s", ErrBrokenReference, subject.ID, subject.CourseID)
	}
	return nil
}

func (s *Store) dropSubjects(match func(models.Subject) bool) []string {
	var removed []string
	kept := s.subjects[:0:0]
	for _, sub := range s.subjects {
		if match(sub) {
			removed = append(removed, sub.ID)
			continue
		}
		kept = append(kept, sub)
	}
	s.subjects = kept
	return removed
}

// Orphans lists subjects whose teacher no longer resolves, ordered by id.
func (s *Store) Orphans() []models.Subject {
	return Orphans(s.Snapshot())
}

// Orphans lists subjects of a snapshot whose teacher does not resolve, ordered by id.
func Orphans(data models.SchoolData) []models.Subject {
	teachers := make(map[string]struct{}, len(data.Teachers))
	for _, t := range data.Teachers {
		teachers[t.ID] = struct{}{}
	}
	var orphans []models.Subject
	for _, sub := range data.Subjects {
		if _, ok := teachers[sub.TeacherID]; !ok {
			orphans = append(orphans, sub)
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].ID < orphans[j].ID })
	return orphans
}

// CheckIntegrity lists every unresolved reference and duplicate identifier in a snapshot.
func CheckIntegrity(data models.SchoolData) []string {
	problems := CheckStructure(data)
	for _, sub := range Orphans(data) {
		problems = append(problems, fmt.Sprintf("subject %s references unknown teacher %s", sub.ID, sub.TeacherID))
	}
	return problems
}

// CheckStructure is CheckIntegrity without the teacher references, so a snapshot
// holding orphaned subjects still passes.
func CheckStructure(data models.SchoolData) []string {
	problems := duplicateIDs(data)
	levels := make(map[string]struct{}, len(data.Levels))
	for _, l := range data.Levels {
		levels[l.ID] = struct{}{}
	}
	courses := make(map[string]struct{}, len(data.Courses))
	for _, c := range data.Courses {
		courses[c.ID] = struct{}{}
		if _, ok := levels[c.LevelID]; !ok {
			problems = append(problems, fmt.Sprintf("course %s references unknown level %s", c.ID, c.LevelID))
		}
	}
	for _, sub := range data.Subjects {
		if _, ok := courses[sub.CourseID]; !ok {
			problems = append(problems, fmt.Sprintf("subject %s references unknown course %s", sub.ID, sub.CourseID))
		}
		if sub.HoursPerWeek <= 0 {
			problems = append(problems, fmt.Sprintf("subject %s has non-positive hours_per_week %d", sub.ID, sub.HoursPerWeek))
		}
	}
	return problems
}

func duplicateIDs(data models.SchoolData) []string {
	var problems []string
	check := func(kind string, ids []string) {
		seen := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if strings.TrimSpace(id) == "" {
				problems = append(problems, fmt.Sprintf("%s with empty id", kind))
				continue
			}
			if _, dup := seen[id]; dup {
				problems = append(problems, fmt.Sprintf("duplicate %s id %s", kind, id))
				continue
			}
			seen[id] = struct{}{}
		}
	}
	levelIDs := make([]string, len(data.Levels))
	for i, l := range data.Levels {
		levelIDs[i] = l.ID
	}
	courseIDs := make([]string, len(data.Courses))
	for i, c := range data.Courses {
		courseIDs[i] = c.ID
	}
	teacherIDs := make([]string, len(data.Teachers))
	for i, t := range data.Teachers {
		teacherIDs[i] = t.ID
	}
	subjectIDs := make([]string, len(data.Subjects))
	for i, sub := range data.Subjects {
		subjectIDs[i] = sub.ID
	}
	check("level", levelIDs)
	check("course", courseIDs)
	check("teacher", teacherIDs)
	check("subject", subjectIDs)
	return problems
}

// PruneAssignments drops assignments that reference subjects removed by a cascade.
func PruneAssignments(assignments []models.Assignment, removal Removal) []models.Assignment {
	if len(removal.SubjectIDs) == 0 {
		return append([]models.Assignment(nil), assignments...)
	}
	removed := make(map[string]struct{}, len(removal.SubjectIDs))
	for _, id := range removal.SubjectIDs {
		removed[id] = struct{}{}
	}
	kept := make([]models.Assignment, 0, len(assignments))
	for _, a := range assignments {
		if _, gone := removed[a.SubjectID]; gone {
			continue
		}
		kept = append(kept, a)
	}
	return kept
}
