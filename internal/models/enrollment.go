package models

import "time"

// EnrollmentStatus is the approval state of a course enrollment.
type EnrollmentStatus string

const (
	EnrollmentStatusPending  EnrollmentStatus = "pending"
	EnrollmentStatusApproved EnrollmentStatus = "approved"
	EnrollmentStatusRejected EnrollmentStatus = "rejected"
)

// Enrollment ties a student to a course with an approval state. Access to
// course materials and sites follows the approved state live: revoking an
// enrollment cuts access on the very next request.
type Enrollment struct {
	ID        string           `db:"id" json:"id"`
	CourseID  string           `db:"course_id" json:"course_id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Status    EnrollmentStatus `db:"status" json:"status"`
	AppliedAt time.Time        `db:"applied_at" json:"applied_at"`
	DecidedAt *time.Time       `db:"decided_at" json:"decided_at,omitempty"`
}

// EnrollmentDetail adds student and course info for instructor views.
type EnrollmentDetail struct {
	Enrollment
	StudentName  string `db:"student_name" json:"student_name"`
	StudentLogin string `db:"student_login" json:"student_login"`
	StudentEmail string `db:"student_email" json:"student_email,omitempty"`
	CourseTitle  string `db:"course_title" json:"course_title"`
}
