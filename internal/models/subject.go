package models

// Subject is a weekly teaching load for one course taught by one teacher.
// HoursPerWeek independent occurrences must each land in a distinct slot.
type Subject struct {
	ID           string `db:"id" json:"id" yaml:"id"`
	Name         string `db:"name" json:"name" yaml:"name"`
	TeacherID    string `db:"teacher_id" json:"teacher_id" yaml:"teacher_id"`
	CourseID     string `db:"course_id" json:"course_id" yaml:"course_id"`
	HoursPerWeek int    `db:"hours_per_week" json:"hours_per_week" yaml:"hours_per_week"`
	Color        string `db:"color" json:"color" yaml:"color"`
}
