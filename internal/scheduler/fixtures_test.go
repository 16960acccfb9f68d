package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

func seedData() models.SchoolData {
	return models.SchoolData{
		Levels:  []models.Level{{ID: "l1", Name: "Primary"}},
		Courses: []models.Course{{ID: "c1", Name: "1st A", LevelID: "l1"}},
		Teachers: []models.Teacher{
			{ID: "t1", Name: "Ana Garcia", Specialty: "General"},
			{ID: "t2", Name: "Carlos Ruiz", Specialty: "English"},
		},
		Subjects: []models.Subject{
			{ID: "s1", Name: "Mathematics", TeacherID: "t1", CourseID: "c1", HoursPerWeek: 4, Color: "bg-blue-100"},
			{ID: "s2", Name: "English", TeacherID: "t2", CourseID: "c1", HoursPerWeek: 3, Color: "bg-red-100"},
		},
	}
}

// scenarioA has one teacher and one course with two single-hour subjects.
func scenarioA() models.SchoolData {
	return models.SchoolData{
		Levels:   []models.Level{{ID: "l1", Name: "Primary"}},
		Courses:  []models.Course{{ID: "c1", Name: "1st A", LevelID: "l1"}},
		Teachers: []models.Teacher{{ID: "t1", Name: "Ana Garcia"}},
		Subjects: []models.Subject{
			{ID: "a", Name: "Art", TeacherID: "t1", CourseID: "c1", HoursPerWeek: 1},
			{ID: "b", Name: "Biology", TeacherID: "t1", CourseID: "c1", HoursPerWeek: 1},
		},
	}
}

// saturatedData fills every assignable slot of two courses with three rotating teachers.
func saturatedData() models.SchoolData {
	return models.SchoolData{
		Levels: []models.Level{{ID: "l1", Name: "Secondary"}},
		Courses: []models.Course{
			{ID: "c1", Name: "2nd A", LevelID: "l1"},
			{ID: "c2", Name: "2nd B", LevelID: "l1"},
		},
		Teachers: []models.Teacher{{ID: "t1"}, {ID: "t2"}, {ID: "t3"}},
		Subjects: []models.Subject{
			{ID: "s1", TeacherID: "t1", CourseID: "c1", HoursPerWeek: 10},
			{ID: "s2", TeacherID: "t2", CourseID: "c1", HoursPerWeek: 10},
			{ID: "s3", TeacherID: "t3", CourseID: "c1", HoursPerWeek: 10},
			{ID: "s4", TeacherID: "t2", CourseID: "c2", HoursPerWeek: 10},
			{ID: "s5", TeacherID: "t3", CourseID: "c2", HoursPerWeek: 10},
			{ID: "s6", TeacherID: "t1", CourseID: "c2", HoursPerWeek: 10},
		},
	}
}

func mustModel(t *testing.T, data models.SchoolData, pinned ...models.Assignment) *Model {
	t.Helper()
	model, err := BuildModel(data, DefaultGrid(), pinned)
	require.NoError(t, err)
	return model
}

func countBySubject(assignments []models.Assignment) map[string]int {
	counts := make(map[string]int)
	for _, a := range assignments {
		counts[a.SubjectID]++
	}
	return counts
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
