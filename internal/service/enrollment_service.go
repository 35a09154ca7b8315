package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-portal-api/internal/dto"
	"github.com/noah-isme/lms-portal-api/internal/models"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
)

type enrollmentRepository interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	List(ctx context.Context, filter dto.EnrollmentFilter) ([]models.EnrollmentDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	Exists(ctx context.Context, courseID, studentID string) (bool, error)
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, decidedAt time.Time) error
}

type enrollmentCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// EnrollmentService handles the apply/approve lifecycle. Material and site
// access follows the stored status live, so every decision here takes effect
// on the next page request.
type EnrollmentService struct {
	repo    enrollmentRepository
	courses enrollmentCourseReader
	logger  *zap.Logger
}

// NewEnrollmentService constructs an EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, courses enrollmentCourseReader, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, courses: courses, logger: logger}
}

// Apply creates a pending enrollment for the acting student. Re-applying
// while a pending or approved enrollment exists is a conflict; a rejected
// student may apply again.
func (s *EnrollmentService) Apply(ctx context.Context, courseID string, actor *models.JWTClaims) (*models.Enrollment, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can apply for enrollment")
	}

	if _, err := s.courses.FindByID(ctx, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	exists, err := s.repo.Exists(ctx, courseID, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "already applied to this course")
	}

	enrollment := &models.Enrollment{
		ID:        uuid.NewString(),
		CourseID:  courseID,
		StudentID: actor.UserID,
		Status:    models.EnrollmentStatusPending,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	s.logger.Info("enrollment applied",
		zap.String("course_id", courseID), zap.String("student_id", actor.UserID))
	return enrollment, nil
}

// ListForCourse lists enrollments of a course for its instructor.
func (s *EnrollmentService) ListForCourse(ctx context.Context, courseID string, status models.EnrollmentStatus, actor *models.JWTClaims) ([]models.EnrollmentDetail, error) {
	if _, err := s.ownedCourse(ctx, courseID, actor); err != nil {
		return nil, err
	}
	enrollments, err := s.repo.List(ctx, dto.EnrollmentFilter{CourseID: courseID, Status: status})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

// ListMine lists the acting student's enrollments across courses.
func (s *EnrollmentService) ListMine(ctx context.Context, actor *models.JWTClaims) ([]models.EnrollmentDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	enrollments, err := s.repo.ListByStudent(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, nil
}

// Approve grants a pending enrollment.
func (s *EnrollmentService) Approve(ctx context.Context, enrollmentID string, actor *models.JWTClaims) error {
	return s.decide(ctx, enrollmentID, models.EnrollmentStatusApproved, actor)
}

// Reject declines a pending enrollment.
func (s *EnrollmentService) Reject(ctx context.Context, enrollmentID string, actor *models.JWTClaims) error {
	return s.decide(ctx, enrollmentID, models.EnrollmentStatusRejected, actor)
}

// Revoke withdraws an approved enrollment. The student's access to linked
// materials and sites ends immediately.
func (s *EnrollmentService) Revoke(ctx context.Context, enrollmentID string, actor *models.JWTClaims) error {
	enrollment, err := s.findEnrollment(ctx, enrollmentID)
	if err != nil {
		return err
	}
	if _, err := s.ownedCourse(ctx, enrollment.CourseID, actor); err != nil {
		return err
	}
	if enrollment.Status != models.EnrollmentStatusApproved {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment is not approved")
	}
	if err := s.repo.UpdateStatus(ctx, enrollment.ID, models.EnrollmentStatusRejected, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke enrollment")
	}
	s.logger.Info("enrollment revoked",
		zap.String("enrollment_id", enrollment.ID), zap.String("course_id", enrollment.CourseID))
	return nil
}

func (s *EnrollmentService) decide(ctx context.Context, enrollmentID string, status models.EnrollmentStatus, actor *models.JWTClaims) error {
	enrollment, err := s.findEnrollment(ctx, enrollmentID)
	if err != nil {
		return err
	}
	if _, err := s.ownedCourse(ctx, enrollment.CourseID, actor); err != nil {
		return err
	}
	if enrollment.Status != models.EnrollmentStatusPending {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment has already been decided")
	}
	if err := s.repo.UpdateStatus(ctx, enrollment.ID, status, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
	}
	s.logger.Info("enrollment decided",
		zap.String("enrollment_id", enrollment.ID), zap.String("status", string(status)))
	return nil
}

func (s *EnrollmentService) findEnrollment(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

func (s *EnrollmentService) ownedCourse(ctx context.Context, courseID string, actor *models.JWTClaims) (*models.Course, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.InstructorID != actor.UserID && actor.Role != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not the instructor of this course")
	}
	return course, nil
}
