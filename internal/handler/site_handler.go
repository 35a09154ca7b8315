package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-portal-api/internal/dto"
	"github.com/noah-isme/lms-portal-api/internal/service"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
	"github.com/noah-isme/lms-portal-api/pkg/response"
)

// SiteHandler exposes lecture site registration and access-checked resolve.
type SiteHandler struct {
	service *service.SiteService
}

// NewSiteHandler creates a new handler.
func NewSiteHandler(svc *service.SiteService) *SiteHandler {
	return &SiteHandler{service: svc}
}

// Create godoc
// @Summary Register lecture site
// @Tags Sites
// @Accept json
// @Produce json
// @Param payload body dto.CreateSiteRequest true "Site payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /sites [post]
func (h *SiteHandler) Create(c *gin.Context) {
	var req dto.CreateSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid site payload"))
		return
	}
	site, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, site)
}

// List godoc
// @Summary List own lecture sites
// @Tags Sites
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /sites [get]
func (h *SiteHandler) List(c *gin.Context) {
	sites, err := h.service.List(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sites, nil)
}

// Resolve godoc
// @Summary Resolve a site slug
// @Description Returns the embed target after the access check
// @Tags Sites
// @Produce json
// @Param slug path string true "Site slug"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /sites/{slug}/resolve [get]
func (h *SiteHandler) Resolve(c *gin.Context) {
	resolved, err := h.service.Resolve(c.Request.Context(), claimsFromContext(c), c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resolved, nil)
}
