package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/eduschedule-api/internal/dto"
	"github.com/noah-isme/eduschedule-api/internal/middleware"
	"github.com/noah-isme/eduschedule-api/internal/models"
	"github.com/noah-isme/eduschedule-api/internal/scheduler"
	appErrors "github.com/noah-isme/eduschedule-api/pkg/errors"
	"github.com/noah-isme/eduschedule-api/pkg/response"
)

type timetableManager interface {
	Grid() scheduler.Grid
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.TimetableProposal, error)
	GetProposal(ctx context.Context, id string) (*dto.TimetableProposal, error)
	PurgeProposals(ctx context.Context) (int, error)
	ProposalView(ctx context.Context, proposalID string, query dto.ViewQuery) (*dto.TimetableView, error)
	Validate(ctx context.Context, req dto.ValidateScheduleRequest) (*scheduler.Report, error)
	Repair(ctx context.Context, req dto.RepairScheduleRequest) (*dto.RepairScheduleResponse, error)
	Save(ctx context.Context, req dto.SaveTimetableRequest) (*models.TimetableDetail, error)
	List(ctx context.Context, query dto.TimetableQuery) ([]models.Timetable, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.TimetableDetail, error)
	Publish(ctx context.Context, id string) (*models.Timetable, error)
	Delete(ctx context.Context, id string) error
	Revalidate(ctx context.Context, id string) (*dto.RevalidationResponse, error)
	View(ctx context.Context, id string, query dto.ViewQuery) (*dto.TimetableView, error)
	Export(ctx context.Context, id string, req dto.ExportTimetableRequest) (*dto.ExportResponse, error)
}

// TimetableHandler exposes generation, validation and the stored timetable lifecycle.
type TimetableHandler struct {
	service timetableManager
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc timetableManager) *TimetableHandler {
	return &TimetableHandler{service: svc}
}

// Grid godoc
// @Summary Describe the weekly grid
// @Tags Timetables
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetables/grid [get]
func (h *TimetableHandler) Grid(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Grid(), nil)
}

// Generate godoc
// @Summary Generate a timetable proposal
// @Description Runs the engine synchronously. A newer request for the same scope cancels this one with 409.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if !bindJSON(c, &req, "invalid generate payload") {
		return
	}
	proposal, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "engine_steps", proposal.Steps)
	response.JSON(c, http.StatusOK, proposal, nil, middleware.ExtractMeta(c))
}

// Proposal godoc
// @Summary Get a generated proposal
// @Tags Timetables
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/proposals/{id} [get]
func (h *TimetableHandler) Proposal(c *gin.Context) {
	proposal, err := h.service.GetProposal(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, proposal, nil)
}

// PurgeProposals godoc
// @Summary Drop every pending proposal
// @Tags Timetables
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetables/proposals [delete]
func (h *TimetableHandler) PurgeProposals(c *gin.Context) {
	dropped, err := h.service.PurgeProposals(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"dropped": dropped}, nil)
}

// ProposalView godoc
// @Summary Grid view of a proposal
// @Tags Timetables
// @Produce json
// @Param id path string true "Proposal ID"
// @Param course_id query string false "Course filter"
// @Param teacher_id query string false "Teacher filter"
// @Success 200 {object} response.Envelope
// @Router /timetables/proposals/{id}/view [get]
func (h *TimetableHandler) ProposalView(c *gin.Context) {
	var query dto.ViewQuery
	if !bindQuery(c, &query) {
		return
	}
	view, err := h.service.ProposalView(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Validate godoc
// @Summary Validate a list of assignments
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.ValidateScheduleRequest true "Assignments"
// @Success 200 {object} response.Envelope
// @Router /timetables/validate [post]
func (h *TimetableHandler) Validate(c *gin.Context) {
	var req dto.ValidateScheduleRequest
	if !bindJSON(c, &req, "invalid validation payload") {
		return
	}
	report, err := h.service.Validate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Repair godoc
// @Summary Repair an externally produced schedule
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.RepairScheduleRequest true "Candidate schedule"
// @Success 200 {object} response.Envelope
// @Router /timetables/repair [post]
func (h *TimetableHandler) Repair(c *gin.Context) {
	var req dto.RepairScheduleRequest
	if !bindJSON(c, &req, "invalid repair payload") {
		return
	}
	result, err := h.service.Repair(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Save godoc
// @Summary Save a proposal as a draft timetable
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.SaveTimetableRequest true "Save payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables [post]
func (h *TimetableHandler) Save(c *gin.Context) {
	var req dto.SaveTimetableRequest
	if !bindJSON(c, &req, "invalid save payload") {
		return
	}
	detail, err := h.service.Save(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// List godoc
// @Summary List stored timetables
// @Tags Timetables
// @Produce json
// @Param status query string false "DRAFT, PUBLISHED or ARCHIVED"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *TimetableHandler) List(c *gin.Context) {
	var query dto.TimetableQuery
	if !bindQuery(c, &query) {
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a stored timetable with its schedule
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Publish godoc
// @Summary Publish a timetable
// @Description The timetable must be fully valid against the current school data. The previously published one is archived.
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables/{id}/publish [post]
func (h *TimetableHandler) Publish(c *gin.Context) {
	timetable, err := h.service.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetable, nil)
}

// Delete godoc
// @Summary Delete a draft timetable
// @Tags Timetables
// @Param id path string true "Timetable ID"
// @Success 204
// @Router /timetables/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Revalidate godoc
// @Summary Check a stored timetable against the current school data
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/revalidate [post]
func (h *TimetableHandler) Revalidate(c *gin.Context) {
	result, err := h.service.Revalidate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// View godoc
// @Summary Grid view of a stored timetable
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Param course_id query string false "Course filter"
// @Param teacher_id query string false "Teacher filter"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/view [get]
func (h *TimetableHandler) View(c *gin.Context) {
	var query dto.ViewQuery
	if !bindQuery(c, &query) {
		return
	}
	view, err := h.service.View(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Export godoc
// @Summary Export a timetable view as CSV or PDF
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path string true "Timetable ID"
// @Param payload body dto.ExportTimetableRequest true "Export payload"
// @Success 201 {object} response.Envelope
// @Router /timetables/{id}/export [post]
func (h *TimetableHandler) Export(c *gin.Context) {
	var req dto.ExportTimetableRequest
	if !bindJSON(c, &req, "invalid export payload") {
		return
	}
	result, err := h.service.Export(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

func bindQuery(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindQuery(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return false
	}
	return true
}
