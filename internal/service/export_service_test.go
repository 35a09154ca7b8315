package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-portal-api/internal/dto"
	"github.com/noah-isme/lms-portal-api/internal/models"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
)

type mockRosterLister struct {
	details []models.EnrollmentDetail
	gotFilt dto.EnrollmentFilter
}

func (m *mockRosterLister) List(ctx context.Context, filter dto.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	m.gotFilt = filter
	return m.details, nil
}

func newExportFixture() (*ExportService, *mockRosterLister) {
	decided := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	lister := &mockRosterLister{details: []models.EnrollmentDetail{
		{
			Enrollment: models.Enrollment{
				ID: "enr-1", CourseID: "course-1", StudentID: "stu-1",
				Status:    models.EnrollmentStatusApproved,
				AppliedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
				DecidedAt: &decided,
			},
			StudentName:  "Kim",
			StudentLogin: "stud01",
			StudentEmail: "kim@example.com",
			CourseTitle:  "Operating Systems",
		},
	}}
	courses := &mockCourseReader{courses: map[string]*models.Course{
		"course-1": {ID: "course-1", InstructorID: "inst-1", Title: "Operating Systems"},
	}}
	return NewExportService(lister, courses, nil, nil, nil), lister
}

func TestExportServiceRosterCSV(t *testing.T) {
	svc, lister := newExportFixture()
	instructor := &models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor}

	file, err := svc.Roster(context.Background(), "course-1", RosterFormatCSV, instructor)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.True(t, strings.HasSuffix(file.Filename, ".csv"))
	assert.Equal(t, models.EnrollmentStatusApproved, lister.gotFilt.Status)

	body := string(file.Payload)
	assert.Contains(t, body, "Login ID,Name,Email,Applied,Approved")
	assert.Contains(t, body, "stud01,Kim,kim@example.com,2026-03-01,2026-03-02")
}

func TestExportServiceRosterPDF(t *testing.T) {
	svc, _ := newExportFixture()
	instructor := &models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor}

	file, err := svc.Roster(context.Background(), "course-1", RosterFormatPDF, instructor)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasPrefix(string(file.Payload), "%PDF"))
}

func TestExportServiceRosterRequiresOwnership(t *testing.T) {
	svc, _ := newExportFixture()
	other := &models.JWTClaims{UserID: "inst-2", Role: models.RoleInstructor}

	_, err := svc.Roster(context.Background(), "course-1", RosterFormatCSV, other)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestExportServiceRosterUnsupportedFormat(t *testing.T) {
	svc, _ := newExportFixture()
	instructor := &models.JWTClaims{UserID: "inst-1", Role: models.RoleInstructor}

	_, err := svc.Roster(context.Background(), "course-1", RosterFormat("xlsx"), instructor)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
