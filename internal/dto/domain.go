package dto

import "github.com/noah-isme/eduschedule-api/internal/scheduler"

// LevelRequest creates or renames a level. A blank id is generated on create.
type LevelRequest struct {
	ID   string `json:"id" validate:"omitempty,max=64"`
	Name string `json:"name" validate:"required,max=120"`
}

// CourseRequest creates or updates a course.
type CourseRequest struct {
	ID      string `json:"id" validate:"omitempty,max=64"`
	Name    string `json:"name" validate:"required,max=120"`
	LevelID string `json:"level_id" validate:"required"`
}

// TeacherRequest creates or updates a teacher.
type TeacherRequest struct {
	ID        string `json:"id" validate:"omitempty,max=64"`
	Name      string `json:"name" validate:"required,max=120"`
	Specialty string `json:"specialty" validate:"omitempty,max=120"`
}

// SubjectRequest creates or updates a subject.
type SubjectRequest struct {
	ID           string `json:"id" validate:"omitempty,max=64"`
	Name         string `json:"name" validate:"required,max=120"`
	TeacherID    string `json:"teacher_id" validate:"required"`
	CourseID     string `json:"course_id" validate:"required"`
	HoursPerWeek int    `json:"hours_per_week" validate:"required,min=1,max=60"`
	Color        string `json:"color" validate:"omitempty,max=120"`
}

// RemovalResponse reports what a delete touched, cascades included.
type RemovalResponse struct {
	scheduler.Removal
	PrunedAssignments int64 `json:"pruned_assignments"`
}
