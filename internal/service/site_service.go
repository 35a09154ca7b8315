package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-portal-api/internal/dto"
	"github.com/noah-isme/lms-portal-api/internal/models"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
)

type siteRepository interface {
	Create(ctx context.Context, site *models.LectureSite) error
	FindBySlug(ctx context.Context, slug string) (*models.LectureSite, error)
	List(ctx context.Context, creatorID string) ([]models.LectureSite, error)
}

type siteAccess interface {
	CanViewSite(ctx context.Context, claims *models.JWTClaims, slug string) (*models.LectureSite, error)
}

// SiteService manages external lecture site registrations and access-checked
// resolution for the embedding frontend.
type SiteService struct {
	repo      siteRepository
	access    siteAccess
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSiteService constructs a SiteService.
func NewSiteService(repo siteRepository, access siteAccess, validate *validator.Validate, logger *zap.Logger) *SiteService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SiteService{repo: repo, access: access, validator: validate, logger: logger}
}

// Create registers a lecture site under a unique slug.
func (s *SiteService) Create(ctx context.Context, req dto.CreateSiteRequest, actor *models.JWTClaims) (*models.LectureSite, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid site payload")
	}

	slug := strings.ToLower(strings.TrimSpace(req.Slug))
	if _, err := s.repo.FindBySlug(ctx, slug); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "slug is already taken")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slug")
	}

	site := &models.LectureSite{
		ID:          uuid.NewString(),
		CreatorID:   actor.UserID,
		Slug:        slug,
		Name:        req.Name,
		URL:         req.URL,
		Description: req.Description,
		Shared:      req.Shared,
	}
	if err := s.repo.Create(ctx, site); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create site")
	}
	return site, nil
}

// List returns the acting instructor's sites.
func (s *SiteService) List(ctx context.Context, actor *models.JWTClaims) ([]models.LectureSite, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	sites, err := s.repo.List(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sites")
	}
	return sites, nil
}

// Resolve returns the embed target for a slug after the access check. The
// URL is never exposed to principals the policy denies.
func (s *SiteService) Resolve(ctx context.Context, claims *models.JWTClaims, slug string) (*dto.SiteResolveResponse, error) {
	site, err := s.access.CanViewSite(ctx, claims, slug)
	if err != nil {
		return nil, err
	}
	return &dto.SiteResolveResponse{Slug: site.Slug, Name: site.Name, URL: site.URL}, nil
}
