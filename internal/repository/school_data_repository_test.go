package repository

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eduschedule-api/internal/models"
	"github.com/noah-isme/eduschedule-api/pkg/config"
	"github.com/noah-isme/eduschedule-api/pkg/database"
)

func newPostgresMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "postgres"), mock, func() { db.Close() }
}

func sampleSchoolData() models.SchoolData {
	return models.SchoolData{
		Levels:   []models.Level{{ID: "l2", Name: "Secundaria"}, {ID: "l1", Name: "Primaria"}},
		Courses:  []models.Course{{ID: "c1", Name: "1º A", LevelID: "l1"}},
		Teachers: []models.Teacher{{ID: "t1", Name: "Ana García", Specialty: "Matemáticas"}},
		Subjects: []models.Subject{{ID: "s1", Name: "Matemáticas", TeacherID: "t1", CourseID: "c1", HoursPerWeek: 4, Color: "bg-blue-100"}},
	}
}

func TestSchoolDataRepositorySaveUsesTransaction(t *testing.T) {
	db, mock, cleanup := newPostgresMock(t)
	defer cleanup()
	repo := NewSchoolDataRepository(db)

	mock.ExpectBegin()
	for _, table := range []string{"subjects", "courses", "teachers", "levels"} {
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM " + table)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO levels (id, name, position) VALUES ($1, $2, $3)")).
		WithArgs("l2", "Secundaria", 0).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO levels (id, name, position) VALUES ($1, $2, $3)")).
		WithArgs("l1", "Primaria", 1).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO courses")).
		WithArgs("c1", "1º A", "l1", 0).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO teachers")).
		WithArgs("t1", "Ana García", "Matemáticas", 0).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subjects")).
		WithArgs("s1", "Matemáticas", "t1", "c1", 4, "bg-blue-100", 0).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Save(context.Background(), sampleSchoolData()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolDataRepositorySaveRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newPostgresMock(t)
	defer cleanup()
	repo := NewSchoolDataRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM subjects")).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.Save(context.Background(), sampleSchoolData())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clear subjects")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolDataRepositoryLoadEmptyReturnsNil(t *testing.T) {
	db, mock, cleanup := newPostgresMock(t)
	defer cleanup()
	repo := NewSchoolDataRepository(db)

	mock.ExpectQuery("SELECT id, name FROM levels").WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
	mock.ExpectQuery("SELECT id, name, level_id FROM courses").WillReturnRows(sqlmock.NewRows([]string{"id", "name", "level_id"}))
	mock.ExpectQuery("SELECT id, name, specialty FROM teachers").WillReturnRows(sqlmock.NewRows([]string{"id", "name", "specialty"}))
	mock.ExpectQuery("SELECT id, name, teacher_id, course_id, hours_per_week, color FROM subjects").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "teacher_id", "course_id", "hours_per_week", "color"}))

	data, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolDataRepositoryLoadPropagatesErrors(t *testing.T) {
	db, mock, cleanup := newPostgresMock(t)
	defer cleanup()
	repo := NewSchoolDataRepository(db)

	mock.ExpectQuery("SELECT id, name FROM levels").WillReturnError(errors.New("connection refused"))

	_, err := repo.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load levels")
}

func TestSchoolDataRepositorySQLiteRoundTrip(t *testing.T) {
	db, err := database.Open(config.DatabaseConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "school.db"),
	})
	require.NoError(t, err)
	defer db.Close()

	repo := NewSchoolDataRepository(db)
	ctx := context.Background()

	empty, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty)

	data := sampleSchoolData()
	require.NoError(t, repo.Save(ctx, data))

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, data, *loaded)

	data.Subjects[0].HoursPerWeek = 5
	data.Teachers = append(data.Teachers, models.Teacher{ID: "t2", Name: "Carlos Ruiz", Specialty: "Inglés"})
	require.NoError(t, repo.Save(ctx, data))

	reloaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, data, *reloaded)
}
