package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/eduschedule-api/internal/service"
	appErrors "github.com/noah-isme/eduschedule-api/pkg/errors"
	"github.com/noah-isme/eduschedule-api/pkg/response"
)

type exportResolver interface {
	Resolve(token string) (*service.ExportDownload, error)
}

// ExportHandler serves rendered exports through signed tokens.
type ExportHandler struct {
	service exportResolver
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc exportResolver) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Download godoc
// @Summary Download a timetable export via signed token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrServiceUnavailable, "exports are not configured"))
		return
	}
	token := c.Param("token")
	if strings.TrimSpace(token) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.Resolve(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	response.Attachment(c, result.Filename, result.SizeBytes, result.MimeType, result.File)
}
