package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-portal-api/internal/dto"
	"github.com/noah-isme/lms-portal-api/internal/models"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
	"github.com/noah-isme/lms-portal-api/pkg/jobs"
	"github.com/noah-isme/lms-portal-api/pkg/pdf"
	"github.com/noah-isme/lms-portal-api/pkg/storage"
)

const pdfMimeType = "application/pdf"

type materialRepository interface {
	Create(ctx context.Context, material *models.Material) error
	SetPageCount(ctx context.Context, id string, pageCount int) error
	FindByID(ctx context.Context, id string) (*models.Material, error)
	ListLibrary(ctx context.Context, filter models.MaterialFilter) ([]models.MaterialDetail, error)
	SetShared(ctx context.Context, id string, shared bool) error
	Delete(ctx context.Context, id string) error
}

type materialAccess interface {
	CanViewMaterial(ctx context.Context, claims *models.JWTClaims, materialID string) (*models.Material, error)
}

type pageRasterizer interface {
	Convert(ctx context.Context, srcPath, materialID string, onProgress pdf.ProgressFunc) (int, error)
}

type pageArtifacts interface {
	Open(materialID string, pageNumber int) (*os.File, error)
	DeleteDocument(materialID string) error
}

// progressEmitter routes conversion progress to the uploading connection.
// Implemented by the realtime hub; injected so the service stays testable
// without a live socket.
type progressEmitter interface {
	EmitProgress(connectionID string, current, total, percent int)
}

// MaterialUpload carries an intake file already spooled to the temp dir.
type MaterialUpload struct {
	Filename string
	TempPath string
	Size     int64
	MimeType string
}

type conversionJob struct {
	MaterialID string
	SrcPath    string
	SocketID   string
}

// MaterialService orchestrates slide deck uploads, conversion, page serving
// and deletion.
type MaterialService struct {
	repo       materialRepository
	access     materialAccess
	rasterizer pageRasterizer
	pages      pageArtifacts
	emitter    progressEmitter
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger

	queue       *jobs.Queue
	maxFileSize int64
}

// MaterialServiceConfig tunes the conversion pipeline.
type MaterialServiceConfig struct {
	MaxFileSizeBytes  int64
	WorkerConcurrency int
}

// NewMaterialService constructs the service and its conversion queue. Call
// Start before accepting uploads and Stop on shutdown.
func NewMaterialService(repo materialRepository, access materialAccess, rasterizer pageRasterizer, pages pageArtifacts, emitter progressEmitter, metrics *MetricsService, cfg MaterialServiceConfig, validate *validator.Validate, logger *zap.Logger) *MaterialService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = 50 * 1024 * 1024
	}
	s := &MaterialService{
		repo:        repo,
		access:      access,
		rasterizer:  rasterizer,
		pages:       pages,
		emitter:     emitter,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		maxFileSize: cfg.MaxFileSizeBytes,
	}
	s.queue = jobs.NewQueue("pdf-conversion", s.handleConversion, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: 1, // a deck that failed to render will fail again
		Logger:     logger,
	})
	return s
}

// Start launches the conversion workers.
func (s *MaterialService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the conversion workers.
func (s *MaterialService) Stop() {
	s.queue.Stop()
}

// Upload validates the intake file, registers the material and enqueues its
// conversion. It returns before rasterization begins; progress streams to
// the uploader's realtime connection.
func (s *MaterialService) Upload(ctx context.Context, meta dto.UploadMaterialRequest, upload MaterialUpload, actor *models.JWTClaims) (*dto.MaterialUploadAccepted, error) {
	// The spooled file must not outlive a rejected intake.
	if actor == nil {
		s.removeTempFile(upload.TempPath)
		return nil, appErrors.ErrUnauthorized
	}
	if upload.MimeType != pdfMimeType {
		s.removeTempFile(upload.TempPath)
		return nil, appErrors.Clone(appErrors.ErrUnsupportedMedia, "only PDF uploads are accepted")
	}
	if upload.Size > s.maxFileSize {
		s.removeTempFile(upload.TempPath)
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge,
			fmt.Sprintf("file exceeds the %d MB upload limit", s.maxFileSize/(1024*1024)))
	}

	title := strings.TrimSpace(meta.Title)
	if title == "" {
		title = strings.TrimSuffix(upload.Filename, ".pdf")
	}

	material := &models.Material{
		ID:           uuid.NewString(),
		CreatorID:    actor.UserID,
		Title:        title,
		OriginalName: upload.Filename,
	}
	if err := s.repo.Create(ctx, material); err != nil {
		s.removeTempFile(upload.TempPath)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register material")
	}

	job := jobs.Job{
		ID:   material.ID,
		Type: "convert",
		Payload: conversionJob{
			MaterialID: material.ID,
			SrcPath:    upload.TempPath,
			SocketID:   meta.SocketID,
		},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.removeTempFile(upload.TempPath)
		if delErr := s.repo.Delete(ctx, material.ID); delErr != nil {
			s.logger.Warn("failed to roll back material intake", zap.String("material_id", material.ID), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to schedule conversion")
	}

	return &dto.MaterialUploadAccepted{MaterialID: material.ID, Title: title, Status: "converting"}, nil
}

// handleConversion runs on the queue workers, off the request path.
func (s *MaterialService) handleConversion(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(conversionJob)
	if !ok {
		return fmt.Errorf("unexpected conversion payload %T", job.Payload)
	}
	defer s.removeTempFile(payload.SrcPath)

	started := time.Now()
	onProgress := func(done, total int) {
		if s.emitter == nil || payload.SocketID == "" || total == 0 {
			return
		}
		s.emitter.EmitProgress(payload.SocketID, done, total, done*100/total)
	}

	pageCount, err := s.rasterizer.Convert(ctx, payload.SrcPath, payload.MaterialID, onProgress)
	if err != nil {
		// The rasterizer already discarded partial artifacts; drop the
		// intake row so the library never lists an unconvertible deck.
		if delErr := s.repo.Delete(context.WithoutCancel(ctx), payload.MaterialID); delErr != nil {
			s.logger.Warn("failed to remove material after conversion failure",
				zap.String("material_id", payload.MaterialID), zap.Error(delErr))
		}
		if s.metrics != nil {
			s.metrics.ObserveConversion(0, time.Since(started), false)
		}
		s.logger.Error("pdf conversion failed",
			zap.String("material_id", payload.MaterialID), zap.Error(err))
		// Row and artifacts are gone, so a retry has nothing to convert.
		return nil
	}

	// Page files are durably written before the count becomes visible. A
	// retry cannot help here: the source file is removed when this handler
	// returns, so treat a failed write as a failed conversion and take all
	// of its state with it.
	if err := s.repo.SetPageCount(context.WithoutCancel(ctx), payload.MaterialID, pageCount); err != nil {
		if delErr := s.pages.DeleteDocument(payload.MaterialID); delErr != nil {
			s.logger.Warn("failed to remove artifacts after page count write failure",
				zap.String("material_id", payload.MaterialID), zap.Error(delErr))
		}
		if delErr := s.repo.Delete(context.WithoutCancel(ctx), payload.MaterialID); delErr != nil {
			s.logger.Warn("failed to remove material after page count write failure",
				zap.String("material_id", payload.MaterialID), zap.Error(delErr))
		}
		if s.metrics != nil {
			s.metrics.ObserveConversion(0, time.Since(started), false)
		}
		s.logger.Error("failed to record page count",
			zap.String("material_id", payload.MaterialID), zap.Error(err))
		return nil
	}
	if s.metrics != nil {
		s.metrics.ObserveConversion(pageCount, time.Since(started), true)
	}
	s.logger.Info("pdf conversion finished",
		zap.String("material_id", payload.MaterialID), zap.Int("pages", pageCount))
	return nil
}

// ServePage resolves a rendered page for an authorized principal. The access
// guard runs on every call.
func (s *MaterialService) ServePage(ctx context.Context, claims *models.JWTClaims, materialID, pageRaw string) (*os.File, error) {
	if _, err := s.access.CanViewMaterial(ctx, claims, materialID); err != nil {
		return nil, err
	}
	pageNumber, err := strconv.Atoi(pageRaw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "page not found")
	}
	file, err := s.pages.Open(materialID, pageNumber)
	if err != nil {
		if errors.Is(err, storage.ErrPageNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "page not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open page")
	}
	return file, nil
}

// Get returns viewer metadata after an access check.
func (s *MaterialService) Get(ctx context.Context, claims *models.JWTClaims, materialID string) (*models.Material, error) {
	return s.access.CanViewMaterial(ctx, claims, materialID)
}

// ListLibrary returns the instructor's own decks plus shared ones.
func (s *MaterialService) ListLibrary(ctx context.Context, actor *models.JWTClaims) ([]models.MaterialDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	materials, err := s.repo.ListLibrary(ctx, models.MaterialFilter{CreatorID: actor.UserID, IncludeShared: true})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list materials")
	}
	return materials, nil
}

// SetShared toggles library sharing; only the owner may share a deck.
func (s *MaterialService) SetShared(ctx context.Context, materialID string, req dto.UpdateMaterialRequest, actor *models.JWTClaims) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sharing payload")
	}
	material, err := s.ownedMaterial(ctx, materialID, actor)
	if err != nil {
		return err
	}
	if err := s.repo.SetShared(ctx, material.ID, *req.Shared); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update sharing")
	}
	return nil
}

// Delete removes the material row and cascades to its rendered artifacts.
func (s *MaterialService) Delete(ctx context.Context, materialID string, actor *models.JWTClaims) error {
	material, err := s.ownedMaterial(ctx, materialID, actor)
	if err != nil {
		return err
	}
	if err := s.pages.DeleteDocument(material.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete page artifacts")
	}
	if err := s.repo.Delete(ctx, material.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete material")
	}
	return nil
}

func (s *MaterialService) ownedMaterial(ctx context.Context, materialID string, actor *models.JWTClaims) (*models.Material, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	material, err := s.repo.FindByID(ctx, materialID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "material not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load material")
	}
	if material.CreatorID != actor.UserID && actor.Role != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not the owner of this material")
	}
	return material, nil
}

func (s *MaterialService) removeTempFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove temp upload", zap.String("path", path), zap.Error(err))
	}
}
