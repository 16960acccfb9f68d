package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

// SchoolDataGateway loads and stores the whole academic structure.
type SchoolDataGateway interface {
	Load(ctx context.Context) (*models.SchoolData, error)
	Save(ctx context.Context, data models.SchoolData) error
}

// SchoolDataRepository persists the academic structure in four tables. Rows
// carry their position so a snapshot reloads in the order it was saved.
type SchoolDataRepository struct {
	db *sqlx.DB
}

// NewSchoolDataRepository constructs the repository for either driver.
func NewSchoolDataRepository(db *sqlx.DB) *SchoolDataRepository {
	return &SchoolDataRepository{db: db}
}

// Load returns the stored snapshot, or nil when nothing has been saved yet.
func (r *SchoolDataRepository) Load(ctx context.Context) (*models.SchoolData, error) {
	var data models.SchoolData

	if err := r.db.SelectContext(ctx, &data.Levels, `SELECT id, name FROM levels ORDER BY position ASC, id ASC`); err != nil {
		return nil, fmt.Errorf("load levels: %w", err)
	}
	if err := r.db.SelectContext(ctx, &data.Courses, `SELECT id, name, level_id FROM courses ORDER BY position ASC, id ASC`); err != nil {
		return nil, fmt.Errorf("load courses: %w", err)
	}
	if err := r.db.SelectContext(ctx, &data.Teachers, `SELECT id, name, specialty FROM teachers ORDER BY position ASC, id ASC`); err != nil {
		return nil, fmt.Errorf("load teachers: %w", err)
	}
	const subjectsQuery = `SELECT id, name, teacher_id, course_id, hours_per_week, color FROM subjects ORDER BY position ASC, id ASC`
	if err := r.db.SelectContext(ctx, &data.Subjects, subjectsQuery); err != nil {
		return nil, fmt.Errorf("load subjects: %w", err)
	}

	if data.IsEmpty() {
		return nil, nil
	}
	return &data, nil
}

// Save replaces the stored snapshot atomically.
func (r *SchoolDataRepository) Save(ctx context.Context, data models.SchoolData) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin school data transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"subjects", "courses", "teachers", "levels"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	insertLevel := tx.Rebind(`INSERT INTO levels (id, name, position) VALUES (?, ?, ?)`)
	for i, level := range data.Levels {
		if _, err = tx.ExecContext(ctx, insertLevel, level.ID, level.Name, i); err != nil {
			return fmt.Errorf("insert level %s: %w", level.ID, err)
		}
	}

	insertCourse := tx.Rebind(`INSERT INTO courses (id, name, level_id, position) VALUES (?, ?, ?, ?)`)
	for i, course := range data.Courses {
		if _, err = tx.ExecContext(ctx, insertCourse, course.ID, course.Name, course.LevelID, i); err != nil {
			return fmt.Errorf("insert course %s: %w", course.ID, err)
		}
	}

	insertTeacher := tx.Rebind(`INSERT INTO teachers (id, name, specialty, position) VALUES (?, ?, ?, ?)`)
	for i, teacher := range data.Teachers {
		if _, err = tx.ExecContext(ctx, insertTeacher, teacher.ID, teacher.Name, teacher.Specialty, i); err != nil {
			return fmt.Errorf("insert teacher %s: %w", teacher.ID, err)
		}
	}

	insertSubject := tx.Rebind(`INSERT INTO subjects (id, name, teacher_id, course_id, hours_per_week, color, position)
VALUES (?, ?, ?, ?, ?, ?, ?)`)
	for i, subject := range data.Subjects {
		if _, err = tx.ExecContext(ctx, insertSubject, subject.ID, subject.Name, subject.TeacherID, subject.CourseID, subject.HoursPerWeek, subject.Color, i); err != nil {
			return fmt.Errorf("insert subject %s: %w", subject.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit school data: %w", err)
	}
	return nil
}
