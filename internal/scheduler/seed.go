package scheduler

import "github.com/noah-isme/eduschedule-api/internal/models"

// DefaultSchoolData is the structure installed when the store is empty.
func DefaultSchoolData() models.SchoolData {
	return models.SchoolData{
		Levels:  []models.Level{{ID: "l1", Name: "Primaria"}},
		Courses: []models.Course{{ID: "c1", Name: "1º A", LevelID: "l1"}},
		Teachers: []models.Teacher{
			{ID: "t1", Name: "Ana García", Specialty: "General"},
			{ID: "t2", Name: "Carlos Ruiz", Specialty: "Inglés"},
		},
		Subjects: []models.Subject{
			{ID: "s1", Name: "Matemáticas", TeacherID: "t1", CourseID: "c1", HoursPerWeek: 4, Color: "bg-blue-100 border-blue-200 text-blue-800"},
			{ID: "s2", Name: "Inglés", TeacherID: "t2", CourseID: "c1", HoursPerWeek: 3, Color: "bg-red-100 border-red-200 text-red-800"},
		},
	}
}
