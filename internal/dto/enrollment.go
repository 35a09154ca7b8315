package dto

import "github.com/noah-isme/lms-portal-api/internal/models"

// EnrollmentDecisionRequest optionally carries a note with an instructor's
// approve/reject decision.
type EnrollmentDecisionRequest struct {
	Note string `json:"note"`
}

// EnrollmentFilter narrows instructor enrollment listings.
type EnrollmentFilter struct {
	CourseID string
	Status   models.EnrollmentStatus
}
