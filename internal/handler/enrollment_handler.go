package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-portal-api/internal/models"
	"github.com/noah-isme/lms-portal-api/internal/service"
	"github.com/noah-isme/lms-portal-api/pkg/response"
)

// EnrollmentHandler exposes the apply/approve lifecycle and roster exports.
type EnrollmentHandler struct {
	service *service.EnrollmentService
	exports *service.ExportService
}

// NewEnrollmentHandler creates a new handler. exports may be nil when roster
// export is disabled.
func NewEnrollmentHandler(svc *service.EnrollmentService, exports *service.ExportService) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc, exports: exports}
}

// Apply godoc
// @Summary Apply for enrollment
// @Description Student applies to a course; starts in pending state
// @Tags Enrollments
// @Produce json
// @Param id path string true "Course id"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/enrollments [post]
func (h *EnrollmentHandler) Apply(c *gin.Context) {
	enrollment, err := h.service.Apply(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// ListForCourse godoc
// @Summary Course enrollments
// @Description Instructor view of enrollments, filterable by status
// @Tags Enrollments
// @Produce json
// @Param id path string true "Course id"
// @Param status query string false "pending|approved|rejected"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/enrollments [get]
func (h *EnrollmentHandler) ListForCourse(c *gin.Context) {
	status := models.EnrollmentStatus(c.Query("status"))
	enrollments, err := h.service.ListForCourse(c.Request.Context(), c.Param("id"), status, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// Mine godoc
// @Summary My enrollments
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/mine [get]
func (h *EnrollmentHandler) Mine(c *gin.Context) {
	enrollments, err := h.service.ListMine(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// Approve godoc
// @Summary Approve enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment id"
// @Success 204 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id}/approve [post]
func (h *EnrollmentHandler) Approve(c *gin.Context) {
	if err := h.service.Approve(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reject godoc
// @Summary Reject enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment id"
// @Success 204 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id}/reject [post]
func (h *EnrollmentHandler) Reject(c *gin.Context) {
	if err := h.service.Reject(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Revoke godoc
// @Summary Revoke an approved enrollment
// @Description Access to linked materials and sites ends immediately
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment id"
// @Success 204 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id}/revoke [post]
func (h *EnrollmentHandler) Revoke(c *gin.Context) {
	if err := h.service.Revoke(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Roster godoc
// @Summary Export course roster
// @Description Approved students as CSV or PDF
// @Tags Enrollments
// @Produce octet-stream
// @Param id path string true "Course id"
// @Param format query string false "csv|pdf" default(csv)
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/roster [get]
func (h *EnrollmentHandler) Roster(c *gin.Context) {
	format := service.RosterFormat(c.DefaultQuery("format", "csv"))
	file, err := h.exports.Roster(c.Request.Context(), c.Param("id"), format, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+file.Filename+`"`)
	c.Data(http.StatusOK, file.ContentType, file.Payload)
}
