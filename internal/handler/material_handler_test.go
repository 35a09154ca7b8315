package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-portal-api/internal/middleware"
	"github.com/noah-isme/lms-portal-api/internal/models"
	"github.com/noah-isme/lms-portal-api/internal/service"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
	"github.com/noah-isme/lms-portal-api/pkg/storage"
)

type fakeMaterialRepo struct {
	materials map[string]*models.Material
}

func (f *fakeMaterialRepo) Create(ctx context.Context, material *models.Material) error {
	f.materials[material.ID] = material
	return nil
}

func (f *fakeMaterialRepo) SetPageCount(ctx context.Context, id string, pageCount int) error {
	return nil
}

func (f *fakeMaterialRepo) FindByID(ctx context.Context, id string) (*models.Material, error) {
	if m, ok := f.materials[id]; ok {
		return m, nil
	}
	return nil, appErrors.ErrNotFound
}

func (f *fakeMaterialRepo) ListLibrary(ctx context.Context, filter models.MaterialFilter) ([]models.MaterialDetail, error) {
	return nil, nil
}

func (f *fakeMaterialRepo) SetShared(ctx context.Context, id string, shared bool) error { return nil }
func (f *fakeMaterialRepo) Delete(ctx context.Context, id string) error                 { return nil }

type fakeAccessGuard struct {
	allow bool
}

func (f *fakeAccessGuard) CanViewMaterial(ctx context.Context, claims *models.JWTClaims, materialID string) (*models.Material, error) {
	if !f.allow {
		return nil, appErrors.ErrForbidden
	}
	return &models.Material{ID: materialID}, nil
}

func newPageRouter(t *testing.T, allow bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewPageStore(t.TempDir())
	require.NoError(t, err)
	docDir := store.DocumentDir("mat-1")
	require.NoError(t, os.MkdirAll(docDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(docDir, "page-002.png"), []byte("png-bytes"), 0o644))

	svc := service.NewMaterialService(
		&fakeMaterialRepo{materials: map[string]*models.Material{}},
		&fakeAccessGuard{allow: allow},
		nil, store, nil, nil,
		service.MaterialServiceConfig{}, nil, nil)

	h := NewMaterialHandler(svc, t.TempDir(), 1024)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	})
	r.GET("/materials/:id/pages/:page", h.Page)
	r.POST("/materials", h.Upload)
	return r
}

func TestMaterialHandlerPageServesPNGWithNoStore(t *testing.T) {
	r := newPageRouter(t, true)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/materials/mat-1/pages/2", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store, no-cache, must-revalidate, private", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "png-bytes", rec.Body.String())
}

func TestMaterialHandlerPageDeniedIsForbidden(t *testing.T) {
	r := newPageRouter(t, false)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/materials/mat-1/pages/2", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestMaterialHandlerPageUnknownIsNotFound(t *testing.T) {
	r := newPageRouter(t, true)

	for _, path := range []string{
		"/materials/mat-1/pages/99",
		"/materials/mat-1/pages/abc",
		"/materials/mat-1/pages/0",
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestMaterialHandlerUploadRequiresFile(t *testing.T) {
	r := newPageRouter(t, true)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/materials", nil)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
