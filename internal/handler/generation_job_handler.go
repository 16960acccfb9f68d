package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/eduschedule-api/internal/dto"
	"github.com/noah-isme/eduschedule-api/internal/models"
	"github.com/noah-isme/eduschedule-api/pkg/response"
)

type generationJobs interface {
	Submit(ctx context.Context, req dto.GenerateTimetableRequest, actorID string) (*models.GenerationJob, error)
	Get(ctx context.Context, id string) (*models.GenerationJob, error)
	List(ctx context.Context, scope string) []models.GenerationJob
}

// GenerationJobHandler exposes background generation.
type GenerationJobHandler struct {
	service generationJobs
}

// NewGenerationJobHandler constructs the handler.
func NewGenerationJobHandler(svc generationJobs) *GenerationJobHandler {
	return &GenerationJobHandler{service: svc}
}

// Submit godoc
// @Summary Queue a generation job
// @Description Queued or running jobs of the same scope are superseded.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 202 {object} response.Envelope
// @Router /timetables/jobs [post]
func (h *GenerationJobHandler) Submit(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if !bindJSON(c, &req, "invalid generate payload") {
		return
	}
	job, err := h.service.Submit(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// Get godoc
// @Summary Get a generation job
// @Tags Timetables
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/jobs/{id} [get]
func (h *GenerationJobHandler) Get(c *gin.Context) {
	job, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// List godoc
// @Summary List recent generation jobs
// @Tags Timetables
// @Produce json
// @Param scope query string false "Scope filter"
// @Success 200 {object} response.Envelope
// @Router /timetables/jobs [get]
func (h *GenerationJobHandler) List(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.List(c.Request.Context(), c.Query("scope")), nil)
}
