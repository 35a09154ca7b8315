package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-portal-api/internal/dto"
	"github.com/noah-isme/lms-portal-api/internal/models"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments map[string]*models.Enrollment
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.enrollments == nil {
		m.enrollments = map[string]*models.Enrollment{}
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusPending
	}
	clone := *enrollment
	m.enrollments[enrollment.ID] = &clone
	return nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		clone := *e
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter dto.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	var out []models.EnrollmentDetail
	for _, e := range m.enrollments {
		if filter.CourseID != "" && e.CourseID != filter.CourseID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, models.EnrollmentDetail{Enrollment: *e})
	}
	return out, nil
}

func (m *mockEnrollmentRepo) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	var out []models.EnrollmentDetail
	for _, e := range m.enrollments {
		if e.StudentID == studentID {
			out = append(out, models.EnrollmentDetail{Enrollment: *e})
		}
	}
	return out, nil
}

func (m *mockEnrollmentRepo) Exists(ctx context.Context, courseID, studentID string) (bool, error) {
	for _, e := range m.enrollments {
		if e.CourseID == courseID && e.StudentID == studentID && e.Status != models.EnrollmentStatusRejected {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockEnrollmentRepo) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, decidedAt time.Time) error {
	e, ok := m.enrollments[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.Status = status
	e.DecidedAt = &decidedAt
	return nil
}

type mockCourseReader struct {
	courses map[string]*models.Course
}

func (m *mockCourseReader) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func newEnrollmentFixture() (*EnrollmentService, *mockEnrollmentRepo, *mockCourseReader) {
	repo := &mockEnrollmentRepo{enrollments: map[string]*models.Enrollment{}}
	courses := &mockCourseReader{courses: map[string]*models.Course{
		"course-1": {ID: "course-1", InstructorID: "inst-1", Title: "Operating Systems"},
	}}
	return NewEnrollmentService(repo, courses, nil), repo, courses
}

func studentClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleStudent}
}

func TestEnrollmentServiceApplyCreatesPending(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture()

	enrollment, err := svc.Apply(context.Background(), "course-1", studentClaims("stu-1"))
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusPending, enrollment.Status)
	assert.Equal(t, "stu-1", enrollment.StudentID)
	assert.Len(t, repo.enrollments, 1)
}

func TestEnrollmentServiceApplyRejectsDuplicates(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Apply(context.Background(), "course-1", studentClaims("stu-1"))
	require.NoError(t, err)

	_, err = svc.Apply(context.Background(), "course-1", studentClaims("stu-1"))
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestEnrollmentServiceApplyAllowsReapplyAfterRejection(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	first, err := svc.Apply(context.Background(), "course-1", studentClaims("stu-1"))
	require.NoError(t, err)
	instructor := &models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor}
	require.NoError(t, svc.Reject(context.Background(), first.ID, instructor))

	_, err = svc.Apply(context.Background(), "course-1", studentClaims("stu-1"))
	require.NoError(t, err)
}

func TestEnrollmentServiceApplyRejectsNonStudents(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Apply(context.Background(), "course-1", &models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor})

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestEnrollmentServiceApplyUnknownCourse(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Apply(context.Background(), "ghost", studentClaims("stu-1"))

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestEnrollmentServiceApproveFlow(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture()
	instructor := &models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor}

	enrollment, err := svc.Apply(context.Background(), "course-1", studentClaims("stu-1"))
	require.NoError(t, err)

	require.NoError(t, svc.Approve(context.Background(), enrollment.ID, instructor))
	stored := repo.enrollments[enrollment.ID]
	assert.Equal(t, models.EnrollmentStatusApproved, stored.Status)
	assert.NotNil(t, stored.DecidedAt)

	// a second decision on the same enrollment must fail
	err = svc.Approve(context.Background(), enrollment.ID, instructor)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
}

func TestEnrollmentServiceDecisionRequiresCourseOwnership(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	enrollment, err := svc.Apply(context.Background(), "course-1", studentClaims("stu-1"))
	require.NoError(t, err)

	other := &models.JWTClaims{UserID: "inst-2", Role: models.RoleInstructor}
	err = svc.Approve(context.Background(), enrollment.ID, other)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestEnrollmentServiceSuperAdminMayDecide(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture()

	enrollment, err := svc.Apply(context.Background(), "course-1", studentClaims("stu-1"))
	require.NoError(t, err)

	admin := &models.JWTClaims{UserID: "admin-1", Role: models.RoleSuperAdmin}
	require.NoError(t, svc.Approve(context.Background(), enrollment.ID, admin))
	assert.Equal(t, models.EnrollmentStatusApproved, repo.enrollments[enrollment.ID].Status)
}

func TestEnrollmentServiceRevokeApproved(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture()
	instructor := &models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor}

	enrollment, err := svc.Apply(context.Background(), "course-1", studentClaims("stu-1"))
	require.NoError(t, err)
	require.NoError(t, svc.Approve(context.Background(), enrollment.ID, instructor))

	require.NoError(t, svc.Revoke(context.Background(), enrollment.ID, instructor))
	assert.Equal(t, models.EnrollmentStatusRejected, repo.enrollments[enrollment.ID].Status)
}

func TestEnrollmentServiceRevokeRequiresApprovedState(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()
	instructor := &models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor}

	enrollment, err := svc.Apply(context.Background(), "course-1", studentClaims("stu-1"))
	require.NoError(t, err)

	err = svc.Revoke(context.Background(), enrollment.ID, instructor)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
}

func TestEnrollmentServiceListForCourseFiltersByStatus(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()
	instructor := &models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor}

	first, err := svc.Apply(context.Background(), "course-1", studentClaims("stu-1"))
	require.NoError(t, err)
	_, err = svc.Apply(context.Background(), "course-1", studentClaims("stu-2"))
	require.NoError(t, err)
	require.NoError(t, svc.Approve(context.Background(), first.ID, instructor))

	pending, err := svc.ListForCourse(context.Background(), "course-1", models.EnrollmentStatusPending, instructor)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "stu-2", pending[0].StudentID)

	approved, err := svc.ListForCourse(context.Background(), "course-1", models.EnrollmentStatusApproved, instructor)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, "stu-1", approved[0].StudentID)
}

func TestEnrollmentServiceListMine(t *testing.T) {
	svc, _, _ := newEnrollmentFixture()

	_, err := svc.Apply(context.Background(), "course-1", studentClaims("stu-1"))
	require.NoError(t, err)

	mine, err := svc.ListMine(context.Background(), studentClaims("stu-1"))
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	other, err := svc.ListMine(context.Background(), studentClaims("stu-2"))
	require.NoError(t, err)
	assert.Empty(t, other)
}
