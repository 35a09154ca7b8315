package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-portal-api/internal/dto"
	"github.com/noah-isme/lms-portal-api/internal/models"
	appErrors "github.com/noah-isme/lms-portal-api/pkg/errors"
	"github.com/noah-isme/lms-portal-api/pkg/export"
)

// RosterFormat selects the rendered roster file type.
type RosterFormat string

const (
	RosterFormatCSV RosterFormat = "csv"
	RosterFormatPDF RosterFormat = "pdf"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type exportEnrollmentLister interface {
	List(ctx context.Context, filter dto.EnrollmentFilter) ([]models.EnrollmentDetail, error)
}

type exportCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// RosterFile is a rendered roster ready to stream to the client.
type RosterFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders approved course rosters for instructors.
type ExportService struct {
	enrollments exportEnrollmentLister
	courses     exportCourseReader
	csv         csvRenderer
	pdf         pdfRenderer
	logger      *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(enrollments exportEnrollmentLister, courses exportCourseReader, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{enrollments: enrollments, courses: courses, csv: csv, pdf: pdf, logger: logger}
}

// Roster renders the approved roster of a course. Only the course owner or a
// super admin may export it.
func (s *ExportService) Roster(ctx context.Context, courseID string, format RosterFormat, actor *models.JWTClaims) (*RosterFile, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	if course.InstructorID != actor.UserID && actor.Role != models.RoleSuperAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not the instructor of this course")
	}

	enrollments, err := s.enrollments.List(ctx, dto.EnrollmentFilter{
		CourseID: courseID,
		Status:   models.EnrollmentStatusApproved,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	dataset := export.Dataset{
		Headers: []string{"Login ID", "Name", "Email", "Applied", "Approved"},
		Rows:    make([]map[string]string, 0, len(enrollments)),
	}
	for _, e := range enrollments {
		decided := ""
		if e.DecidedAt != nil {
			decided = e.DecidedAt.Format("2006-01-02")
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Login ID": e.StudentLogin,
			"Name":     e.StudentName,
			"Email":    e.StudentEmail,
			"Applied":  e.AppliedAt.Format("2006-01-02"),
			"Approved": decided,
		})
	}

	var payload []byte
	var contentType string
	switch format {
	case RosterFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case RosterFormatPDF:
		payload, err = s.pdf.Render(dataset, fmt.Sprintf("%s - Roster", course.Title))
		contentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported roster format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}

	filename := fmt.Sprintf("roster-%s-%s.%s", slugify(course.Title), time.Now().UTC().Format("20060102"), format)
	return &RosterFile{Filename: filename, ContentType: contentType, Payload: payload}, nil
}

func slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, slug)
	return strings.Trim(slug, "-")
}
