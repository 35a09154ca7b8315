package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-portal-api/internal/dto"
	"github.com/noah-isme/lms-portal-api/internal/models"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
)

const (
	catalogCacheKey     = "courses:catalog"
	catalogCachePattern = "courses:*"
)

type courseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ListByInstructor(ctx context.Context, instructorID string) ([]models.CourseDetail, error)
	ListCatalog(ctx context.Context) ([]models.CourseDetail, error)
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
	LinkMaterial(ctx context.Context, courseID, materialID string) error
	UnlinkMaterial(ctx context.Context, courseID, materialID string) error
	LinkSite(ctx context.Context, courseID, siteID string) error
	ListSites(ctx context.Context, courseID string) ([]models.CourseLink, error)
}

type courseMaterialLister interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.CourseLink, error)
}

// CourseView is a course with its linked materials and sites.
type CourseView struct {
	models.Course
	Materials []models.CourseLink `json:"materials"`
	Sites     []models.CourseLink `json:"sites"`
}

// CourseService manages courses and their links to materials and lecture
// sites.
type CourseService struct {
	repo      courseRepository
	materials courseMaterialLister
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs a CourseService. cache may be nil when the
// catalog cache is disabled.
func NewCourseService(repo courseRepository, materials courseMaterialLister, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, materials: materials, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// Create registers a course owned by the acting instructor, optionally
// linking existing materials and sites in the same call.
func (s *CourseService) Create(ctx context.Context, req dto.CreateCourseRequest, actor *models.JWTClaims) (*models.Course, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course := &models.Course{
		ID:           uuid.NewString(),
		InstructorID: actor.UserID,
		Title:        req.Title,
		Description:  req.Description,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	for _, materialID := range req.MaterialIDs {
		if err := s.repo.LinkMaterial(ctx, course.ID, materialID); err != nil {
			s.logger.Warn("failed to link material during course creation",
				zap.String("course_id", course.ID), zap.String("material_id", materialID), zap.Error(err))
		}
	}
	for _, siteID := range req.SiteIDs {
		if err := s.repo.LinkSite(ctx, course.ID, siteID); err != nil {
			s.logger.Warn("failed to link site during course creation",
				zap.String("course_id", course.ID), zap.String("site_id", siteID), zap.Error(err))
		}
	}

	s.invalidateCatalog(ctx)
	return course, nil
}

// Get returns a course with its linked materials and sites.
func (s *CourseService) Get(ctx context.Context, courseID string) (*CourseView, error) {
	course, err := s.findCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	view := &CourseView{Course: *course, Materials: []models.CourseLink{}, Sites: []models.CourseLink{}}
	if s.materials != nil {
		if links, err := s.materials.ListByCourse(ctx, courseID); err == nil {
			view.Materials = links
		} else {
			s.logger.Warn("failed to list course materials", zap.String("course_id", courseID), zap.Error(err))
		}
	}
	if links, err := s.repo.ListSites(ctx, courseID); err == nil {
		view.Sites = links
	} else {
		s.logger.Warn("failed to list course sites", zap.String("course_id", courseID), zap.Error(err))
	}
	return view, nil
}

// ListMine lists courses owned by the acting instructor.
func (s *CourseService) ListMine(ctx context.Context, actor *models.JWTClaims) ([]models.CourseDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	courses, err := s.repo.ListByInstructor(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}

// ListCatalog lists every course for the student-facing catalog. The result
// is cached; mutations invalidate it.
func (s *CourseService) ListCatalog(ctx context.Context) ([]models.CourseDetail, error) {
	var cached []models.CourseDetail
	if hit, err := s.cache.Get(ctx, catalogCacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	courses, err := s.repo.ListCatalog(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list catalog")
	}

	if err := s.cache.Set(ctx, catalogCacheKey, courses, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache course catalog", zap.Error(err))
	}
	return courses, nil
}

// Update changes course metadata; only the owner or a super admin may.
func (s *CourseService) Update(ctx context.Context, courseID string, req dto.UpdateCourseRequest, actor *models.JWTClaims) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course, err := s.ownedCourse(ctx, courseID, actor)
	if err != nil {
		return nil, err
	}

	course.Title = req.Title
	course.Description = req.Description
	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	s.invalidateCatalog(ctx)
	return course, nil
}

// Delete removes a course. Enrollments and links cascade in the database;
// materials and sites survive in the owner's library.
func (s *CourseService) Delete(ctx context.Context, courseID string, actor *models.JWTClaims) error {
	course, err := s.ownedCourse(ctx, courseID, actor)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, course.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	s.invalidateCatalog(ctx)
	return nil
}

// LinkMaterial attaches a library material to a course.
func (s *CourseService) LinkMaterial(ctx context.Context, courseID string, req dto.LinkMaterialRequest, actor *models.JWTClaims) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid link payload")
	}
	course, err := s.ownedCourse(ctx, courseID, actor)
	if err != nil {
		return err
	}
	if err := s.repo.LinkMaterial(ctx, course.ID, req.MaterialID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link material")
	}
	return nil
}

// UnlinkMaterial detaches a material from a course. Students enrolled in
// other courses still linking the material keep their access.
func (s *CourseService) UnlinkMaterial(ctx context.Context, courseID, materialID string, actor *models.JWTClaims) error {
	course, err := s.ownedCourse(ctx, courseID, actor)
	if err != nil {
		return err
	}
	if err := s.repo.UnlinkMaterial(ctx, course.ID, materialID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unlink material")
	}
	return nil
}

// LinkSite attaches a lecture site to a course.
func (s *CourseService) LinkSite(ctx context.Context, courseID string, req dto.LinkSiteRequest, actor *models.JWTClaims) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid link payload")
	}
	course, err := s.ownedCourse(ctx, courseID, actor)
	if err != nil {
		return err
	}
	if err := s.repo.LinkSite(ctx, course.ID, req.SiteID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link site")
	}
	return nil
}

func (s *CourseService) findCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

func (s *CourseService) ownedCourse(ctx context.Context, courseID string, actor *models.JWTClaims) (*models.Course, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	course, err := s.findCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.InstructorID != actor.UserID && actor.Role != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not the owner of this course")
	}
	return course, nil
}

func (s *CourseService) invalidateCatalog(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, catalogCachePattern); err != nil {
		s.logger.Warn("failed to invalidate catalog cache", zap.Error(err))
	}
}
