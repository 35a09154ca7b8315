package handler

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/lms-portal-api/internal/dto"
	"github.com/noah-isme/lms-portal-api/internal/service"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
	"github.com/noah-isme/lms-portal-api/pkg/response"
)

// MaterialHandler serves the slide deck lifecycle: upload, library listing,
// page delivery, sharing and deletion.
type MaterialHandler struct {
	service *service.MaterialService
	tempDir string
	maxSize int64
}

// NewMaterialHandler creates a new handler. tempDir is where multipart
// uploads are spooled before conversion picks them up.
func NewMaterialHandler(svc *service.MaterialService, tempDir string, maxSize int64) *MaterialHandler {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &MaterialHandler{service: svc, tempDir: tempDir, maxSize: maxSize}
}

// Upload godoc
// @Summary Upload a PDF deck
// @Description Accepts a PDF, responds 202 and converts pages asynchronously
// @Tags Materials
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "PDF file"
// @Param title formData string false "Display title"
// @Param socket_id formData string false "Realtime connection id for progress events"
// @Success 202 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Security BearerAuth
// @Router /materials [post]
func (h *MaterialHandler) Upload(c *gin.Context) {
	var meta dto.UploadMaterialRequest
	if err := c.ShouldBind(&meta); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid upload form"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file field is required"))
		return
	}
	if h.maxSize > 0 && fileHeader.Size > h.maxSize {
		response.Error(c, appErrors.ErrPayloadTooLarge)
		return
	}

	tempPath := filepath.Join(h.tempDir, fmt.Sprintf("upload-%s.pdf", uuid.NewString()))
	if err := c.SaveUploadedFile(fileHeader, tempPath); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to store upload"))
		return
	}

	upload := service.MaterialUpload{
		Filename: fileHeader.Filename,
		TempPath: tempPath,
		Size:     fileHeader.Size,
		MimeType: fileHeader.Header.Get("Content-Type"),
	}

	accepted, err := h.service.Upload(c.Request.Context(), meta, upload, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusAccepted, accepted, nil)
}

// List godoc
// @Summary List library materials
// @Description Own decks plus decks shared by other instructors
// @Tags Materials
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /materials [get]
func (h *MaterialHandler) List(c *gin.Context) {
	materials, err := h.service.ListLibrary(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, materials, nil)
}

// Get godoc
// @Summary Material metadata
// @Description Viewer metadata incl. page count, access checked
// @Tags Materials
// @Produce json
// @Param id path string true "Material id"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /materials/{id} [get]
func (h *MaterialHandler) Get(c *gin.Context) {
	material, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, material, nil)
}

// Page godoc
// @Summary Serve a rendered page
// @Description Streams one page PNG after the per-request access check
// @Tags Materials
// @Produce png
// @Param id path string true "Material id"
// @Param page path string true "1-based page number"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /materials/{id}/pages/{page} [get]
func (h *MaterialHandler) Page(c *gin.Context) {
	file, err := h.service.ServePage(c.Request.Context(), claimsFromContext(c), c.Param("id"), c.Param("page"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to stat page"))
		return
	}

	// Page images must never land in shared caches; access can be revoked
	// between requests.
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, private")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.DataFromReader(http.StatusOK, info.Size(), "image/png", file, nil)
}

// Update godoc
// @Summary Toggle sharing
// @Description Share or unshare a deck in the instructor library
// @Tags Materials
// @Accept json
// @Produce json
// @Param id path string true "Material id"
// @Param payload body dto.UpdateMaterialRequest true "Sharing payload"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /materials/{id} [patch]
func (h *MaterialHandler) Update(c *gin.Context) {
	var req dto.UpdateMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sharing payload"))
		return
	}
	if err := h.service.SetShared(c.Request.Context(), c.Param("id"), req, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete a material
// @Description Remove the deck and all rendered pages
// @Tags Materials
// @Produce json
// @Param id path string true "Material id"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /materials/{id} [delete]
func (h *MaterialHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
