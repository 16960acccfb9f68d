package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Assignment binds one subject occurrence to one (day, hour) slot.
type Assignment struct {
	ID        string `db:"id" json:"id" yaml:"id"`
	Day       string `db:"day" json:"day" yaml:"day"`
	HourIndex int    `db:"hour_index" json:"hour_index" yaml:"hour_index"`
	SubjectID string `db:"subject_id" json:"subject_id" yaml:"subject_id"`
	TeacherID string `db:"teacher_id" json:"teacher_id" yaml:"teacher_id"`
	Pinned    bool   `db:"pinned" json:"pinned,omitempty" yaml:"pinned,omitempty"`
}

// Schedule is the artifact emitted by the engine: ordered assignments plus notes.
type Schedule struct {
	Assignments []Assignment `json:"assignments" yaml:"assignments"`
	Notes       []string     `json:"notes" yaml:"notes"`
}

// Clone returns a deep copy of the schedule.
func (s Schedule) Clone() Schedule {
	return Schedule{
		Assignments: append([]Assignment(nil), s.Assignments...),
		Notes:       append([]string(nil), s.Notes...),
	}
}

// TimetableStatus represents lifecycle phases for stored timetables.
type TimetableStatus string

const (
	TimetableStatusDraft     TimetableStatus = "DRAFT"
	TimetableStatusPublished TimetableStatus = "PUBLISHED"
	TimetableStatusArchived  TimetableStatus = "ARCHIVED"
)

// Timetable captures a versioned, persisted schedule.
type Timetable struct {
	ID        string          `db:"id" json:"id"`
	Label     string          `db:"label" json:"label"`
	Version   int             `db:"version" json:"version"`
	Status    TimetableStatus `db:"status" json:"status"`
	Meta      types.JSONText  `db:"meta" json:"meta"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// TimetableAssignment is a stored assignment row of a timetable.
type TimetableAssignment struct {
	ID          string    `db:"id" json:"id"`
	TimetableID string    `db:"timetable_id" json:"timetable_id"`
	Day         string    `db:"day" json:"day"`
	HourIndex   int       `db:"hour_index" json:"hour_index"`
	SubjectID   string    `db:"subject_id" json:"subject_id"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	Pinned      bool      `db:"pinned" json:"pinned"`
	Position    int       `db:"position" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ToAssignment strips persistence fields.
func (a TimetableAssignment) ToAssignment() Assignment {
	return Assignment{
		ID:        a.ID,
		Day:       a.Day,
		HourIndex: a.HourIndex,
		SubjectID: a.SubjectID,
		TeacherID: a.TeacherID,
		Pinned:    a.Pinned,
	}
}

// TimetableDetail aggregates a stored timetable with its schedule.
type TimetableDetail struct {
	Timetable
	Schedule Schedule `json:"schedule"`
}
