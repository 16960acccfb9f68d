package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eduschedule-api/internal/dto"
	internalmiddleware "github.com/noah-isme/eduschedule-api/internal/middleware"
	"github.com/noah-isme/eduschedule-api/internal/models"
	"github.com/noah-isme/eduschedule-api/internal/scheduler"
	appErrors "github.com/noah-isme/eduschedule-api/pkg/errors"
)

type timetableManagerMock struct {
	generated dto.GenerateTimetableRequest
	listQuery dto.TimetableQuery
	viewQuery dto.ViewQuery
	err       error
}

func (m *timetableManagerMock) Grid() scheduler.Grid { return scheduler.DefaultGrid() }

func (m *timetableManagerMock) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.TimetableProposal, error) {
	m.generated = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.TimetableProposal{ProposalID: "proposal-1", Scope: "default", Report: scheduler.Report{Status: scheduler.StatusValid}}, nil
}

func (m *timetableManagerMock) GetProposal(ctx context.Context, id string) (*dto.TimetableProposal, error) {
	if id != "proposal-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	return &dto.TimetableProposal{ProposalID: id}, nil
}

func (m *timetableManagerMock) PurgeProposals(ctx context.Context) (int, error) { return 2, nil }

func (m *timetableManagerMock) ProposalView(ctx context.Context, proposalID string, query dto.ViewQuery) (*dto.TimetableView, error) {
	m.viewQuery = query
	return &dto.TimetableView{Title: "All courses"}, nil
}

func (m *timetableManagerMock) Validate(ctx context.Context, req dto.ValidateScheduleRequest) (*scheduler.Report, error) {
	return &scheduler.Report{Status: scheduler.StatusUnderDetermined}, nil
}

func (m *timetableManagerMock) Repair(ctx context.Context, req dto.RepairScheduleRequest) (*dto.RepairScheduleResponse, error) {
	return &dto.RepairScheduleResponse{Schedule: req.Schedule}, nil
}

func (m *timetableManagerMock) Save(ctx context.Context, req dto.SaveTimetableRequest) (*models.TimetableDetail, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.TimetableDetail{Timetable: models.Timetable{ID: "tt-1", Label: req.Label, Version: 1, Status: models.TimetableStatusDraft}}, nil
}

func (m *timetableManagerMock) List(ctx context.Context, query dto.TimetableQuery) ([]models.Timetable, *models.Pagination, error) {
	m.listQuery = query
	return []models.Timetable{{ID: "tt-1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *timetableManagerMock) Get(ctx context.Context, id string) (*models.TimetableDetail, error) {
	return &models.TimetableDetail{Timetable: models.Timetable{ID: id}}, nil
}

func (m *timetableManagerMock) Publish(ctx context.Context, id string) (*models.Timetable, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Timetable{ID: id, Status: models.TimetableStatusPublished}, nil
}

func (m *timetableManagerMock) Delete(ctx context.Context, id string) error { return m.err }

func (m *timetableManagerMock) Revalidate(ctx context.Context, id string) (*dto.RevalidationResponse, error) {
	return &dto.RevalidationResponse{TimetableID: id, CheckedAt: time.Now()}, nil
}

func (m *timetableManagerMock) View(ctx context.Context, id string, query dto.ViewQuery) (*dto.TimetableView, error) {
	m.viewQuery = query
	return &dto.TimetableView{TimetableID: id}, nil
}

func (m *timetableManagerMock) Export(ctx context.Context, id string, req dto.ExportTimetableRequest) (*dto.ExportResponse, error) {
	return &dto.ExportResponse{Format: models.ExportFormat(req.Format), URL: "/api/v1/exports/abc", Token: "abc"}, nil
}

func newTimetableRouter(mock *timetableManagerMock, role models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &TimetableHandler{service: mock}
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if role != "" {
			c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: role})
		}
		c.Next()
	})
	read := router.Group("/timetables", internalmiddleware.Readers())
	read.GET("", h.List)
	read.GET("/:id", h.Get)
	read.GET("/:id/view", h.View)
	read.GET("/proposals/:id", h.Proposal)
	edit := router.Group("/timetables", internalmiddleware.Editors())
	edit.POST("/generate", h.Generate)
	edit.POST("", h.Save)
	edit.POST("/:id/publish", h.Publish)
	edit.DELETE("/:id", h.Delete)
	edit.POST("/:id/export", h.Export)
	return router
}

func TestTimetableHandlerGenerate(t *testing.T) {
	mock := &timetableManagerMock{}
	router := newTimetableRouter(mock, models.RoleAdmin)

	req := httptest.NewRequest(http.MethodPost, "/timetables/generate", bytes.NewReader([]byte(`{"scope":"week","mode":"direct","max_steps":500}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "week", mock.generated.Scope)
	assert.Equal(t, "direct", mock.generated.Mode)
	assert.Equal(t, 500, mock.generated.MaxSteps)

	var body struct {
		Data dto.TimetableProposal `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "proposal-1", body.Data.ProposalID)
}

func TestTimetableHandlerGenerateMapsErrors(t *testing.T) {
	mock := &timetableManagerMock{err: appErrors.WithDetails(appErrors.Clone(appErrors.ErrInvalidModel, ""), []string{"subject s1 has non-positive hours per week (0)"})}
	router := newTimetableRouter(mock, models.RoleSuperAdmin)

	req := httptest.NewRequest(http.MethodPost, "/timetables/generate", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_MODEL")
	assert.Contains(t, w.Body.String(), "non-positive hours")
}

func TestTimetableHandlerGenerateBadJSON(t *testing.T) {
	router := newTimetableRouter(&timetableManagerMock{}, models.RoleAdmin)

	req := httptest.NewRequest(http.MethodPost, "/timetables/generate", bytes.NewReader([]byte(`{"scope":`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerTeacherCannotGenerate(t *testing.T) {
	router := newTimetableRouter(&timetableManagerMock{}, models.RoleTeacher)

	req := httptest.NewRequest(http.MethodPost, "/timetables/generate", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/timetables/tt-1/view?teacher_id=t1", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestTimetableHandlerAnonymousRejected(t *testing.T) {
	router := newTimetableRouter(&timetableManagerMock{}, "")

	req := httptest.NewRequest(http.MethodGet, "/timetables", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTimetableHandlerListBindsQuery(t *testing.T) {
	mock := &timetableManagerMock{}
	router := newTimetableRouter(mock, models.RoleTeacher)

	req := httptest.NewRequest(http.MethodGet, "/timetables?status=PUBLISHED&page=2&page_size=5", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.TimetableQuery{Status: "PUBLISHED", Page: 2, PageSize: 5}, mock.listQuery)
	assert.Contains(t, w.Body.String(), `"pagination"`)
}

func TestTimetableHandlerViewFilters(t *testing.T) {
	mock := &timetableManagerMock{}
	router := newTimetableRouter(mock, models.RoleTeacher)

	req := httptest.NewRequest(http.MethodGet, "/timetables/tt-1/view?course_id=c1&teacher_id=t2", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ViewQuery{CourseID: "c1", TeacherID: "t2"}, mock.viewQuery)
}

func TestTimetableHandlerProposalNotFound(t *testing.T) {
	router := newTimetableRouter(&timetableManagerMock{}, models.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/timetables/proposals/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimetableHandlerSaveAndPublish(t *testing.T) {
	mock := &timetableManagerMock{}
	router := newTimetableRouter(mock, models.RoleAdmin)

	req := httptest.NewRequest(http.MethodPost, "/timetables", bytes.NewReader([]byte(`{"proposal_id":"proposal-1","label":"Term 1"}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"Term 1"`)

	mock.err = appErrors.Clone(appErrors.ErrConflict, "timetable is violated against the current school data")
	req = httptest.NewRequest(http.MethodPost, "/timetables/tt-1/publish", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestTimetableHandlerDeleteAndExport(t *testing.T) {
	router := newTimetableRouter(&timetableManagerMock{}, models.RoleAdmin)

	req := httptest.NewRequest(http.MethodDelete, "/timetables/tt-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/timetables/tt-1/export", bytes.NewReader([]byte(`{"format":"pdf"}`)))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "/api/v1/exports/abc")
}
