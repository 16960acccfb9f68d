package models

import "time"

// ExportFormat enumerates supported timetable export formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// GenerationJobStatus captures background generation lifecycle states.
type GenerationJobStatus string

const (
	GenerationJobQueued     GenerationJobStatus = "QUEUED"
	GenerationJobRunning    GenerationJobStatus = "RUNNING"
	GenerationJobSucceeded  GenerationJobStatus = "SUCCEEDED"
	GenerationJobFailed     GenerationJobStatus = "FAILED"
	GenerationJobSuperseded GenerationJobStatus = "SUPERSEDED"
)

// Terminal reports whether the job will not change state again.
func (s GenerationJobStatus) Terminal() bool {
	switch s {
	case GenerationJobSucceeded, GenerationJobFailed, GenerationJobSuperseded:
		return true
	default:
		return false
	}
}

// GenerationJob tracks one asynchronous timetable generation.
type GenerationJob struct {
	ID           string              `json:"id"`
	Scope        string              `json:"scope"`
	Status       GenerationJobStatus `json:"status"`
	ProposalID   *string             `json:"proposal_id,omitempty"`
	ErrorMessage *string             `json:"error_message,omitempty"`
	CreatedBy    string              `json:"created_by,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	FinishedAt   *time.Time          `json:"finished_at,omitempty"`
}
