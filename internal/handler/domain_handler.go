package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/eduschedule-api/internal/dto"
	"github.com/noah-isme/eduschedule-api/internal/models"
	appErrors "github.com/noah-isme/eduschedule-api/pkg/errors"
	"github.com/noah-isme/eduschedule-api/pkg/response"
)

type schoolDomain interface {
	Snapshot(ctx context.Context) (*models.SchoolData, error)
	Replace(ctx context.Context, data models.SchoolData) (*models.SchoolData, error)
	Orphans(ctx context.Context) ([]models.Subject, error)

	ListLevels(ctx context.Context) ([]models.Level, error)
	CreateLevel(ctx context.Context, req dto.LevelRequest) (*models.Level, error)
	UpdateLevel(ctx context.Context, id string, req dto.LevelRequest) (*models.Level, error)
	DeleteLevel(ctx context.Context, id string) (*dto.RemovalResponse, error)

	ListCourses(ctx context.Context, levelID string) ([]models.Course, error)
	CreateCourse(ctx context.Context, req dto.CourseRequest) (*models.Course, error)
	UpdateCourse(ctx context.Context, id string, req dto.CourseRequest) (*models.Course, error)
	DeleteCourse(ctx context.Context, id string) (*dto.RemovalResponse, error)

	ListTeachers(ctx context.Context) ([]models.Teacher, error)
	CreateTeacher(ctx context.Context, req dto.TeacherRequest) (*models.Teacher, error)
	UpdateTeacher(ctx context.Context, id string, req dto.TeacherRequest) (*models.Teacher, error)
	DeleteTeacher(ctx context.Context, id string) (*dto.RemovalResponse, error)

	ListSubjects(ctx context.Context, courseID, teacherID string) ([]models.Subject, error)
	CreateSubject(ctx context.Context, req dto.SubjectRequest) (*models.Subject, error)
	UpdateSubject(ctx context.Context, id string, req dto.SubjectRequest) (*models.Subject, error)
	DeleteSubject(ctx context.Context, id string) (*dto.RemovalResponse, error)
}

// DomainHandler exposes the academic structure: levels, courses, teachers and subjects.
type DomainHandler struct {
	service schoolDomain
}

// NewDomainHandler constructs the handler.
func NewDomainHandler(svc schoolDomain) *DomainHandler {
	return &DomainHandler{service: svc}
}

// Snapshot godoc
// @Summary Get the full school data snapshot
// @Tags SchoolData
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /school-data [get]
func (h *DomainHandler) Snapshot(c *gin.Context) {
	data, err := h.service.Snapshot(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, data, nil)
}

// Replace godoc
// @Summary Replace the full school data snapshot
// @Description Orphaned subjects are accepted; duplicate ids and unknown courses or levels are rejected.
// @Tags SchoolData
// @Accept json
// @Produce json
// @Param payload body models.SchoolData true "School data"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /school-data [put]
func (h *DomainHandler) Replace(c *gin.Context) {
	var req models.SchoolData
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid school data payload"))
		return
	}
	data, err := h.service.Replace(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, data, nil)
}

// Orphans godoc
// @Summary List subjects whose teacher was removed
// @Tags SchoolData
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /school-data/orphans [get]
func (h *DomainHandler) Orphans(c *gin.Context) {
	orphans, err := h.service.Orphans(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, orphans, nil)
}

// ListLevels godoc
// @Summary List levels
// @Tags SchoolData
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /levels [get]
func (h *DomainHandler) ListLevels(c *gin.Context) {
	levels, err := h.service.ListLevels(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, levels, nil)
}

// CreateLevel godoc
// @Summary Create level
// @Tags SchoolData
// @Accept json
// @Produce json
// @Param payload body dto.LevelRequest true "Level payload"
// @Success 201 {object} response.Envelope
// @Router /levels [post]
func (h *DomainHandler) CreateLevel(c *gin.Context) {
	var req dto.LevelRequest
	if !bindJSON(c, &req, "invalid level payload") {
		return
	}
	level, err := h.service.CreateLevel(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, level)
}

// UpdateLevel godoc
// @Summary Rename level
// @Tags SchoolData
// @Accept json
// @Produce json
// @Param id path string true "Level ID"
// @Param payload body dto.LevelRequest true "Level payload"
// @Success 200 {object} response.Envelope
// @Router /levels/{id} [put]
func (h *DomainHandler) UpdateLevel(c *gin.Context) {
	var req dto.LevelRequest
	if !bindJSON(c, &req, "invalid level payload") {
		return
	}
	level, err := h.service.UpdateLevel(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, level, nil)
}

// DeleteLevel godoc
// @Summary Delete level with its courses and subjects
// @Tags SchoolData
// @Produce json
// @Param id path string true "Level ID"
// @Success 200 {object} response.Envelope
// @Router /levels/{id} [delete]
func (h *DomainHandler) DeleteLevel(c *gin.Context) {
	removal, err := h.service.DeleteLevel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, removal, nil)
}

// ListCourses godoc
// @Summary List courses
// @Tags SchoolData
// @Produce json
// @Param level_id query string false "Level filter"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *DomainHandler) ListCourses(c *gin.Context) {
	courses, err := h.service.ListCourses(c.Request.Context(), c.Query("level_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// CreateCourse godoc
// @Summary Create course
// @Tags SchoolData
// @Accept json
// @Produce json
// @Param payload body dto.CourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Router /courses [post]
func (h *DomainHandler) CreateCourse(c *gin.Context) {
	var req dto.CourseRequest
	if !bindJSON(c, &req, "invalid course payload") {
		return
	}
	course, err := h.service.CreateCourse(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// UpdateCourse godoc
// @Summary Update course
// @Tags SchoolData
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.CourseRequest true "Course payload"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [put]
func (h *DomainHandler) UpdateCourse(c *gin.Context) {
	var req dto.CourseRequest
	if !bindJSON(c, &req, "invalid course payload") {
		return
	}
	course, err := h.service.UpdateCourse(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// DeleteCourse godoc
// @Summary Delete course with its subjects
// @Tags SchoolData
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [delete]
func (h *DomainHandler) DeleteCourse(c *gin.Context) {
	removal, err := h.service.DeleteCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, removal, nil)
}

// ListTeachers godoc
// @Summary List teachers
// @Tags SchoolData
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /teachers [get]
func (h *DomainHandler) ListTeachers(c *gin.Context) {
	teachers, err := h.service.ListTeachers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, nil)
}

// CreateTeacher godoc
// @Summary Create teacher
// @Tags SchoolData
// @Accept json
// @Produce json
// @Param payload body dto.TeacherRequest true "Teacher payload"
// @Success 201 {object} response.Envelope
// @Router /teachers [post]
func (h *DomainHandler) CreateTeacher(c *gin.Context) {
	var req dto.TeacherRequest
	if !bindJSON(c, &req, "invalid teacher payload") {
		return
	}
	teacher, err := h.service.CreateTeacher(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, teacher)
}

// UpdateTeacher godoc
// @Summary Update teacher
// @Tags SchoolData
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body dto.TeacherRequest true "Teacher payload"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id} [put]
func (h *DomainHandler) UpdateTeacher(c *gin.Context) {
	var req dto.TeacherRequest
	if !bindJSON(c, &req, "invalid teacher payload") {
		return
	}
	teacher, err := h.service.UpdateTeacher(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teacher, nil)
}

// DeleteTeacher godoc
// @Summary Delete teacher
// @Description Subjects taught by the teacher are kept and reported as orphaned.
// @Tags SchoolData
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id} [delete]
func (h *DomainHandler) DeleteTeacher(c *gin.Context) {
	removal, err := h.service.DeleteTeacher(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, removal, nil)
}

// ListSubjects godoc
// @Summary List subjects
// @Tags SchoolData
// @Produce json
// @Param course_id query string false "Course filter"
// @Param teacher_id query string false "Teacher filter"
// @Success 200 {object} response.Envelope
// @Router /subjects [get]
func (h *DomainHandler) ListSubjects(c *gin.Context) {
	subjects, err := h.service.ListSubjects(c.Request.Context(), c.Query("course_id"), c.Query("teacher_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, nil)
}

// CreateSubject godoc
// @Summary Create subject
// @Tags SchoolData
// @Accept json
// @Produce json
// @Param payload body dto.SubjectRequest true "Subject payload"
// @Success 201 {object} response.Envelope
// @Router /subjects [post]
func (h *DomainHandler) CreateSubject(c *gin.Context) {
	var req dto.SubjectRequest
	if !bindJSON(c, &req, "invalid subject payload") {
		return
	}
	subject, err := h.service.CreateSubject(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, subject)
}

// UpdateSubject godoc
// @Summary Update subject
// @Tags SchoolData
// @Accept json
// @Produce json
// @Param id path string true "Subject ID"
// @Param payload body dto.SubjectRequest true "Subject payload"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id} [put]
func (h *DomainHandler) UpdateSubject(c *gin.Context) {
	var req dto.SubjectRequest
	if !bindJSON(c, &req, "invalid subject payload") {
		return
	}
	subject, err := h.service.UpdateSubject(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject, nil)
}

// DeleteSubject godoc
// @Summary Delete subject and its stored assignments
// @Tags SchoolData
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id} [delete]
func (h *DomainHandler) DeleteSubject(c *gin.Context) {
	removal, err := h.service.DeleteSubject(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, removal, nil)
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}
