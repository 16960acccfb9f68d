package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eduschedule-api/internal/dto"
	"github.com/noah-isme/eduschedule-api/internal/models"
	"github.com/noah-isme/eduschedule-api/internal/scheduler"
	appErrors "github.com/noah-isme/eduschedule-api/pkg/errors"
)

// schoolDomainMock embeds the interface so tests only implement what they hit.
type schoolDomainMock struct {
	schoolDomain
	replaced  *models.SchoolData
	subject   dto.SubjectRequest
	courseID  string
	teacherID string
	err       error
}

func (m *schoolDomainMock) Snapshot(ctx context.Context) (*models.SchoolData, error) {
	data := scheduler.DefaultSchoolData()
	return &data, nil
}

func (m *schoolDomainMock) Replace(ctx context.Context, data models.SchoolData) (*models.SchoolData, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.replaced = &data
	return &data, nil
}

func (m *schoolDomainMock) ListSubjects(ctx context.Context, courseID, teacherID string) ([]models.Subject, error) {
	m.courseID, m.teacherID = courseID, teacherID
	return []models.Subject{}, nil
}

func (m *schoolDomainMock) CreateSubject(ctx context.Context, req dto.SubjectRequest) (*models.Subject, error) {
	m.subject = req
	if m.err != nil {
		return nil, m.err
	}
	return &models.Subject{ID: "s9", Name: req.Name, TeacherID: req.TeacherID, CourseID: req.CourseID, HoursPerWeek: req.HoursPerWeek}, nil
}

func (m *schoolDomainMock) DeleteTeacher(ctx context.Context, id string) (*dto.RemovalResponse, error) {
	return &dto.RemovalResponse{Removal: scheduler.Removal{TeacherIDs: []string{id}, OrphanedSubjectIDs: []string{"s2"}}}, nil
}

func newDomainRouter(mock *schoolDomainMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewDomainHandler(mock)
	router := gin.New()
	router.GET("/school-data", h.Snapshot)
	router.PUT("/school-data", h.Replace)
	router.GET("/subjects", h.ListSubjects)
	router.POST("/subjects", h.CreateSubject)
	router.DELETE("/teachers/:id", h.DeleteTeacher)
	return router
}

func TestDomainHandlerSnapshot(t *testing.T) {
	router := newDomainRouter(&schoolDomainMock{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/school-data", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data models.SchoolData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data.Subjects, 2)
}

func TestDomainHandlerReplaceValidation(t *testing.T) {
	mock := &schoolDomainMock{err: appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "school data has integrity problems"), []string{"course c1 references unknown level l9"})}
	router := newDomainRouter(mock)

	req := httptest.NewRequest(http.MethodPut, "/school-data", bytes.NewReader([]byte(`{"levels":[],"courses":[{"id":"c1","name":"1A","level_id":"l9"}],"teachers":[],"subjects":[]}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown level l9")
}

func TestDomainHandlerCreateSubject(t *testing.T) {
	mock := &schoolDomainMock{}
	router := newDomainRouter(mock)

	req := httptest.NewRequest(http.MethodPost, "/subjects", bytes.NewReader([]byte(`{"name":"Ciencias","teacher_id":"t1","course_id":"c1","hours_per_week":2}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 2, mock.subject.HoursPerWeek)
	assert.Equal(t, "t1", mock.subject.TeacherID)
}

func TestDomainHandlerListSubjectsFilters(t *testing.T) {
	mock := &schoolDomainMock{}
	router := newDomainRouter(mock)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/subjects?course_id=c1&teacher_id=t2", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "c1", mock.courseID)
	assert.Equal(t, "t2", mock.teacherID)
}

func TestDomainHandlerDeleteTeacherReportsOrphans(t *testing.T) {
	router := newDomainRouter(&schoolDomainMock{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/teachers/t2", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"orphaned_subject_ids":["s2"]`)
}
