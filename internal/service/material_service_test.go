package service

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-portal-api/internal/dto"
	"github.com/noah-isme/lms-portal-api/internal/models"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
	"github.com/noah-isme/lms-portal-api/pkg/pdf"
	"github.com/noah-isme/lms-portal-api/pkg/storage"
)

type mockMaterialRepo struct {
	mu           sync.Mutex
	materials    map[string]*models.Material
	deleted      []string
	createErr    error
	pageCountErr error
}

func (m *mockMaterialRepo) Create(ctx context.Context, material *models.Material) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if m.materials == nil {
		m.materials = map[string]*models.Material{}
	}
	clone := *material
	m.materials[material.ID] = &clone
	return nil
}

func (m *mockMaterialRepo) SetPageCount(ctx context.Context, id string, pageCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pageCountErr != nil {
		return m.pageCountErr
	}
	mat, ok := m.materials[id]
	if !ok {
		return sql.ErrNoRows
	}
	mat.PageCount = &pageCount
	return nil
}

func (m *mockMaterialRepo) FindByID(ctx context.Context, id string) (*models.Material, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mat, ok := m.materials[id]; ok {
		clone := *mat
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockMaterialRepo) ListLibrary(ctx context.Context, filter models.MaterialFilter) ([]models.MaterialDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.MaterialDetail, 0, len(m.materials))
	for _, mat := range m.materials {
		out = append(out, models.MaterialDetail{Material: *mat})
	}
	return out, nil
}

func (m *mockMaterialRepo) SetShared(ctx context.Context, id string, shared bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mat, ok := m.materials[id]
	if !ok {
		return sql.ErrNoRows
	}
	mat.Shared = shared
	return nil
}

func (m *mockMaterialRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.materials, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockMaterialRepo) deletedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

func (m *mockMaterialRepo) pageCount(id string) *int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mat, ok := m.materials[id]; ok {
		return mat.PageCount
	}
	return nil
}

type mockRasterizer struct {
	mu       sync.Mutex
	pages    int
	err      error
	rendered []string
}

func (m *mockRasterizer) Convert(ctx context.Context, srcPath, materialID string, onProgress pdf.ProgressFunc) (int, error) {
	m.mu.Lock()
	m.rendered = append(m.rendered, materialID)
	m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	if onProgress != nil {
		for i := 0; i < m.pages; i++ {
			onProgress(i, m.pages)
		}
		onProgress(m.pages, m.pages)
	}
	return m.pages, nil
}

func (m *mockRasterizer) renderedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.rendered...)
}

type mockPageArtifacts struct {
	mu      sync.Mutex
	files   map[string]*os.File
	deleted []string
}

func pageKey(materialID string, pageNumber int) string {
	return fmt.Sprintf("%s/%d", materialID, pageNumber)
}

func (m *mockPageArtifacts) Open(materialID string, pageNumber int) (*os.File, error) {
	if f, ok := m.files[pageKey(materialID, pageNumber)]; ok {
		return f, nil
	}
	return nil, storage.ErrPageNotFound
}

func (m *mockPageArtifacts) DeleteDocument(materialID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, materialID)
	return nil
}

func (m *mockPageArtifacts) deletedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

type mockAccessGuard struct {
	materials map[string]*models.Material
	allow     bool
}

func (m *mockAccessGuard) CanViewMaterial(ctx context.Context, claims *models.JWTClaims, materialID string) (*models.Material, error) {
	mat, ok := m.materials[materialID]
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	if !m.allow {
		return nil, appErrors.ErrForbidden
	}
	return mat, nil
}

type recordedProgress struct {
	conn                    string
	current, total, percent int
}

type mockEmitter struct {
	mu     sync.Mutex
	events []recordedProgress
}

func (m *mockEmitter) EmitProgress(connectionID string, current, total, percent int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, recordedProgress{connectionID, current, total, percent})
}

func (m *mockEmitter) recorded() []recordedProgress {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]recordedProgress(nil), m.events...)
}

type materialFixture struct {
	svc        *MaterialService
	repo       *mockMaterialRepo
	rasterizer *mockRasterizer
	pages      *mockPageArtifacts
	access     *mockAccessGuard
	emitter    *mockEmitter
}

func newMaterialFixture(t *testing.T) *materialFixture {
	t.Helper()
	f := &materialFixture{
		repo:       &mockMaterialRepo{materials: map[string]*models.Material{}},
		rasterizer: &mockRasterizer{pages: 3},
		pages:      &mockPageArtifacts{files: map[string]*os.File{}},
		access:     &mockAccessGuard{materials: map[string]*models.Material{}, allow: true},
		emitter:    &mockEmitter{},
	}
	f.svc = NewMaterialService(f.repo, f.access, f.rasterizer, f.pages, f.emitter, nil,
		MaterialServiceConfig{MaxFileSizeBytes: 1024, WorkerConcurrency: 1}, nil, nil)
	return f
}

func tempUpload(t *testing.T, size int64, mime string) MaterialUpload {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deck.pdf")
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o600))
	return MaterialUpload{Filename: "deck.pdf", TempPath: path, Size: size, MimeType: mime}
}

func instructorClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "inst-1", LoginID: "teach01", Role: models.RoleInstructor}
}

func TestMaterialServiceUploadRejectsNonPDF(t *testing.T) {
	f := newMaterialFixture(t)

	_, err := f.svc.Upload(context.Background(), dto.UploadMaterialRequest{}, tempUpload(t, 10, "image/png"), instructorClaims())

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUnsupportedMedia.Code, appErr.Code)
	assert.Empty(t, f.repo.materials)
}

func TestMaterialServiceUploadRejectsOversizeFile(t *testing.T) {
	f := newMaterialFixture(t)

	_, err := f.svc.Upload(context.Background(), dto.UploadMaterialRequest{}, tempUpload(t, 2048, pdfMimeType), instructorClaims())

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrPayloadTooLarge.Code, appErr.Code)
}

func TestMaterialServiceUploadRejectionRemovesTempFile(t *testing.T) {
	cases := []struct {
		name   string
		upload func(t *testing.T) MaterialUpload
		claims *models.JWTClaims
	}{
		{"wrong mime type", func(t *testing.T) MaterialUpload { return tempUpload(t, 10, "text/plain") }, instructorClaims()},
		{"oversize file", func(t *testing.T) MaterialUpload { return tempUpload(t, 2048, pdfMimeType) }, instructorClaims()},
		{"missing claims", func(t *testing.T) MaterialUpload { return tempUpload(t, 10, pdfMimeType) }, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newMaterialFixture(t)
			upload := tc.upload(t)

			_, err := f.svc.Upload(context.Background(), dto.UploadMaterialRequest{}, upload, tc.claims)
			require.Error(t, err)

			_, statErr := os.Stat(upload.TempPath)
			assert.True(t, os.IsNotExist(statErr), "rejected upload should not leave its temp file behind")
		})
	}
}

func TestMaterialServiceUploadConvertsAndRecordsPages(t *testing.T) {
	f := newMaterialFixture(t)
	f.svc.Start(context.Background())
	defer f.svc.Stop()

	upload := tempUpload(t, 10, pdfMimeType)
	accepted, err := f.svc.Upload(context.Background(), dto.UploadMaterialRequest{Title: "Week 1", SocketID: "sock-9"}, upload, instructorClaims())
	require.NoError(t, err)
	assert.Equal(t, "converting", accepted.Status)
	assert.NotEmpty(t, accepted.MaterialID)

	require.Eventually(t, func() bool {
		return f.repo.pageCount(accepted.MaterialID) != nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, *f.repo.pageCount(accepted.MaterialID))
	assert.Equal(t, []string{accepted.MaterialID}, f.rasterizer.renderedIDs())

	events := f.emitter.recorded()
	require.Len(t, events, 4)
	assert.Equal(t, recordedProgress{"sock-9", 0, 3, 0}, events[0])
	assert.Equal(t, recordedProgress{"sock-9", 3, 3, 100}, events[3])

	_, statErr := os.Stat(upload.TempPath)
	assert.True(t, os.IsNotExist(statErr), "temp upload should be removed after conversion")
}

func TestMaterialServiceUploadMintsDistinctIDs(t *testing.T) {
	f := newMaterialFixture(t)
	f.svc.Start(context.Background())
	defer f.svc.Stop()

	first, err := f.svc.Upload(context.Background(), dto.UploadMaterialRequest{Title: "Same"}, tempUpload(t, 10, pdfMimeType), instructorClaims())
	require.NoError(t, err)
	second, err := f.svc.Upload(context.Background(), dto.UploadMaterialRequest{Title: "Same"}, tempUpload(t, 10, pdfMimeType), instructorClaims())
	require.NoError(t, err)

	assert.NotEqual(t, first.MaterialID, second.MaterialID)
}

func TestMaterialServiceConversionFailureRemovesIntake(t *testing.T) {
	f := newMaterialFixture(t)
	f.rasterizer.err = pdf.ErrConversion
	f.svc.Start(context.Background())
	defer f.svc.Stop()

	accepted, err := f.svc.Upload(context.Background(), dto.UploadMaterialRequest{}, tempUpload(t, 10, pdfMimeType), instructorClaims())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		deleted := f.repo.deletedIDs()
		return len(deleted) > 0 && deleted[len(deleted)-1] == accepted.MaterialID
	}, 2*time.Second, 10*time.Millisecond)
	_, findErr := f.repo.FindByID(context.Background(), accepted.MaterialID)
	assert.ErrorIs(t, findErr, sql.ErrNoRows)
}

func TestMaterialServicePageCountWriteFailureCleansUpArtifacts(t *testing.T) {
	f := newMaterialFixture(t)
	f.repo.pageCountErr = sql.ErrConnDone
	f.svc.Start(context.Background())
	defer f.svc.Stop()

	accepted, err := f.svc.Upload(context.Background(), dto.UploadMaterialRequest{}, tempUpload(t, 10, pdfMimeType), instructorClaims())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		deleted := f.repo.deletedIDs()
		return len(deleted) > 0 && deleted[len(deleted)-1] == accepted.MaterialID
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{accepted.MaterialID}, f.pages.deletedIDs(),
		"rendered pages should not survive a lost page count")

	// rendered once, never retried against the removed source file
	assert.Equal(t, []string{accepted.MaterialID}, f.rasterizer.renderedIDs())
}

func TestMaterialServiceServePage(t *testing.T) {
	f := newMaterialFixture(t)
	f.access.materials["mat-1"] = &models.Material{ID: "mat-1", CreatorID: "inst-1"}
	page, err := os.CreateTemp(t.TempDir(), "page-*.png")
	require.NoError(t, err)
	defer page.Close()
	f.pages.files[pageKey("mat-1", 2)] = page

	got, err := f.svc.ServePage(context.Background(), instructorClaims(), "mat-1", "2")
	require.NoError(t, err)
	assert.Equal(t, page, got)
}

func TestMaterialServiceServePageChecksAccessFirst(t *testing.T) {
	f := newMaterialFixture(t)
	f.access.materials["mat-1"] = &models.Material{ID: "mat-1"}
	f.access.allow = false

	_, err := f.svc.ServePage(context.Background(), &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent}, "mat-1", "1")

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestMaterialServiceServePageInvalidNumbers(t *testing.T) {
	f := newMaterialFixture(t)
	f.access.materials["mat-1"] = &models.Material{ID: "mat-1"}

	for _, raw := range []string{"abc", "0", "-1", "99"} {
		_, err := f.svc.ServePage(context.Background(), instructorClaims(), "mat-1", raw)
		var appErr *appErrors.Error
		require.ErrorAs(t, err, &appErr, "page %q", raw)
		assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code, "page %q", raw)
	}
}

func TestMaterialServiceDeleteRequiresOwnership(t *testing.T) {
	f := newMaterialFixture(t)
	f.repo.materials["mat-1"] = &models.Material{ID: "mat-1", CreatorID: "inst-1"}

	err := f.svc.Delete(context.Background(), "mat-1", &models.JWTClaims{UserID: "inst-2", Role: models.RoleInstructor})

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Empty(t, f.pages.deleted)
}

func TestMaterialServiceDeleteCascadesToArtifacts(t *testing.T) {
	f := newMaterialFixture(t)
	f.repo.materials["mat-1"] = &models.Material{ID: "mat-1", CreatorID: "inst-1"}

	require.NoError(t, f.svc.Delete(context.Background(), "mat-1", instructorClaims()))

	assert.Equal(t, []string{"mat-1"}, f.pages.deleted)
	assert.Equal(t, []string{"mat-1"}, f.repo.deletedIDs())
}

func TestMaterialServiceDeleteAllowsSuperAdmin(t *testing.T) {
	f := newMaterialFixture(t)
	f.repo.materials["mat-1"] = &models.Material{ID: "mat-1", CreatorID: "inst-1"}

	admin := &models.JWTClaims{UserID: "admin-1", Role: models.RoleSuperAdmin}
	require.NoError(t, f.svc.Delete(context.Background(), "mat-1", admin))
}

func TestMaterialServiceSetShared(t *testing.T) {
	f := newMaterialFixture(t)
	f.repo.materials["mat-1"] = &models.Material{ID: "mat-1", CreatorID: "inst-1"}

	shared := true
	require.NoError(t, f.svc.SetShared(context.Background(), "mat-1", dto.UpdateMaterialRequest{Shared: &shared}, instructorClaims()))
	assert.True(t, f.repo.materials["mat-1"].Shared)

	err := f.svc.SetShared(context.Background(), "mat-1", dto.UpdateMaterialRequest{}, instructorClaims())
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
