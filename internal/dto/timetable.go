package dto

import (
	"time"

	"github.com/noah-isme/eduschedule-api/internal/models"
	"github.com/noah-isme/eduschedule-api/internal/scheduler"
)

// DefaultScope is used when a generation request names no scope.
const DefaultScope = "default"

// GenerateTimetableRequest asks the engine for a schedule. A snapshot, when
// present, is saved as the school data before the run.
type GenerateTimetableRequest struct {
	Scope     string              `json:"scope" validate:"omitempty,max=64"`
	Mode      string              `json:"mode" validate:"omitempty,oneof=direct oracle auto"`
	Pinned    []models.Assignment `json:"pinned" validate:"omitempty,dive"`
	Snapshot  *models.SchoolData  `json:"snapshot,omitempty"`
	MaxSteps  int                 `json:"max_steps" validate:"omitempty,min=1"`
	TimeoutMs int                 `json:"timeout_ms" validate:"omitempty,min=1,max=600000"`
}

// TimetableProposal is a generated schedule held for a limited time.
type TimetableProposal struct {
	ProposalID      string                        `json:"proposal_id"`
	Scope           string                        `json:"scope"`
	Schedule        models.Schedule               `json:"schedule"`
	Report          scheduler.Report              `json:"report"`
	Source          string                        `json:"source"`
	Truncated       bool                          `json:"truncated"`
	Unsatisfiable   *scheduler.UnsatisfiableError `json:"unsatisfiable,omitempty"`
	Steps           int                           `json:"steps"`
	InitialFindings int                           `json:"initial_findings"`
	OracleError     string                        `json:"oracle_error,omitempty"`
	DurationMs      int64                         `json:"duration_ms"`
	GeneratedAt     time.Time                     `json:"generated_at"`
	ExpiresAt       time.Time                     `json:"expires_at"`
}

// ValidateScheduleRequest checks assignments against a snapshot, the stored
// school data when Snapshot is nil.
type ValidateScheduleRequest struct {
	Assignments []models.Assignment `json:"assignments" validate:"required"`
	Snapshot    *models.SchoolData  `json:"snapshot,omitempty"`
}

// RepairScheduleRequest repairs an externally produced candidate.
type RepairScheduleRequest struct {
	Schedule models.Schedule    `json:"schedule"`
	Snapshot *models.SchoolData `json:"snapshot,omitempty"`
}

// RepairScheduleResponse returns the repaired candidate.
type RepairScheduleResponse struct {
	Schedule        models.Schedule  `json:"schedule"`
	Report          scheduler.Report `json:"report"`
	InitialFindings int              `json:"initial_findings"`
}

// SaveTimetableRequest persists a proposal as a draft timetable.
type SaveTimetableRequest struct {
	ProposalID string `json:"proposal_id" validate:"required"`
	Label      string `json:"label" validate:"omitempty,max=120"`
}

// TimetableQuery filters stored timetables.
type TimetableQuery struct {
	Status   string `form:"status" json:"status" validate:"omitempty,oneof=DRAFT PUBLISHED ARCHIVED"`
	Page     int    `form:"page" json:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"page_size" json:"page_size" validate:"omitempty,min=1,max=100"`
}

// RevalidationResponse is the result of checking a stored timetable against
// the current school data.
type RevalidationResponse struct {
	TimetableID string           `json:"timetable_id"`
	Report      scheduler.Report `json:"report"`
	CheckedAt   time.Time        `json:"checked_at"`
}

// ViewQuery narrows a timetable view to one course or one teacher.
type ViewQuery struct {
	CourseID  string `form:"course_id" json:"course_id"`
	TeacherID string `form:"teacher_id" json:"teacher_id"`
}

// TimetableView is a grid projection of a schedule.
type TimetableView struct {
	TimetableID string    `json:"timetable_id,omitempty"`
	Title       string    `json:"title"`
	CourseID    string    `json:"course_id,omitempty"`
	TeacherID   string    `json:"teacher_id,omitempty"`
	Days        []string  `json:"days"`
	Rows        []ViewRow `json:"rows"`
}

// ViewRow is one hour block across every day of the grid.
type ViewRow struct {
	HourIndex int        `json:"hour_index"`
	Label     string     `json:"label"`
	IsBreak   bool       `json:"is_break"`
	Cells     []ViewCell `json:"cells"`
}

// ViewCell lists what happens in one (day, hour) slot.
type ViewCell struct {
	Day     string      `json:"day"`
	Entries []ViewEntry `json:"entries"`
}

// ViewEntry is a resolved assignment. Names are empty when a reference no
// longer resolves.
type ViewEntry struct {
	AssignmentID string `json:"assignment_id"`
	SubjectID    string `json:"subject_id"`
	SubjectName  string `json:"subject_name"`
	TeacherID    string `json:"teacher_id"`
	TeacherName  string `json:"teacher_name"`
	CourseID     string `json:"course_id"`
	CourseName   string `json:"course_name"`
	Color        string `json:"color,omitempty"`
	Pinned       bool   `json:"pinned,omitempty"`
}

// ExportTimetableRequest renders a timetable view as a file.
type ExportTimetableRequest struct {
	Format    string `json:"format" validate:"required,oneof=csv pdf"`
	CourseID  string `json:"course_id"`
	TeacherID string `json:"teacher_id"`
}

// ExportResponse points at a rendered file.
type ExportResponse struct {
	Format    models.ExportFormat `json:"format"`
	URL       string              `json:"url"`
	Token     string              `json:"token"`
	ExpiresAt time.Time           `json:"expires_at"`
}
