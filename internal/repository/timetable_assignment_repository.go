package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

// TimetableAssignmentRepository manages the assignment rows of stored timetables.
type TimetableAssignmentRepository struct {
	db *sqlx.DB
}

// NewTimetableAssignmentRepository builds repository.
func NewTimetableAssignmentRepository(db *sqlx.DB) *TimetableAssignmentRepository {
	return &TimetableAssignmentRepository{db: db}
}

func (r *TimetableAssignmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// InsertBatch stores the assignments of one timetable, keeping the slice order.
func (r *TimetableAssignmentRepository) InsertBatch(ctx context.Context, exec sqlx.ExtContext, timetableID string, assignments []models.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO timetable_assignments (id, timetable_id, day, hour_index, subject_id, teacher_id, pinned, position, created_at)
VALUES (:id, :timetable_id, :day, :hour_index, :subject_id, :teacher_id, :pinned, :position, :created_at)`

	for i, a := range assignments {
		row := models.TimetableAssignment{
			ID:          a.ID,
			TimetableID: timetableID,
			Day:         a.Day,
			HourIndex:   a.HourIndex,
			SubjectID:   a.SubjectID,
			TeacherID:   a.TeacherID,
			Pinned:      a.Pinned,
			Position:    i,
			CreatedAt:   now,
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, row); err != nil {
			return fmt.Errorf("insert timetable assignment %s: %w", a.ID, err)
		}
	}
	return nil
}

// ListByTimetable returns the assignments of a timetable in stored order.
func (r *TimetableAssignmentRepository) ListByTimetable(ctx context.Context, timetableID string) ([]models.TimetableAssignment, error) {
	query := r.db.Rebind(`SELECT id, timetable_id, day, hour_index, subject_id, teacher_id, pinned, position, created_at
FROM timetable_assignments WHERE timetable_id = ? ORDER BY position ASC`)
	rows := []models.TimetableAssignment{}
	if err := r.db.SelectContext(ctx, &rows, query, timetableID); err != nil {
		return nil, fmt.Errorf("list timetable assignments: %w", err)
	}
	return rows, nil
}

// DeleteByTimetable removes every assignment of a timetable.
func (r *TimetableAssignmentRepository) DeleteByTimetable(ctx context.Context, exec sqlx.ExtContext, timetableID string) error {
	target := r.exec(exec)
	if _, err := target.ExecContext(ctx, target.Rebind(`DELETE FROM timetable_assignments WHERE timetable_id = ?`), timetableID); err != nil {
		return fmt.Errorf("delete timetable assignments: %w", err)
	}
	return nil
}

// DeleteBySubjects drops stored assignments of removed subjects across all
// timetables and reports how many rows went away.
func (r *TimetableAssignmentRepository) DeleteBySubjects(ctx context.Context, exec sqlx.ExtContext, subjectIDs []string) (int64, error) {
	if len(subjectIDs) == 0 {
		return 0, nil
	}
	target := r.exec(exec)
	query, args, err := sqlx.In(`DELETE FROM timetable_assignments WHERE subject_id IN (?)`, subjectIDs)
	if err != nil {
		return 0, fmt.Errorf("build subject filter: %w", err)
	}
	result, err := target.ExecContext(ctx, target.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("delete assignments by subject: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("assignment rows affected: %w", err)
	}
	return affected, nil
}
