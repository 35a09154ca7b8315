package models

import "time"

// Course represents a course offered by an instructor.
type Course struct {
	ID           string    `db:"id" json:"id"`
	InstructorID string    `db:"instructor_id" json:"instructor_id"`
	Title        string    `db:"title" json:"title"`
	Description  string    `db:"description" json:"description,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// CourseDetail adds instructor info and enrollment counters.
type CourseDetail struct {
	Course
	InstructorName string `db:"instructor_name" json:"instructor_name"`
	PendingCount   int    `db:"pending_count" json:"pending_count"`
	ApprovedCount  int    `db:"approved_count" json:"approved_count"`
}

// CourseLink is a linked material or site summary shown on dashboards.
type CourseLink struct {
	ID    string `db:"id" json:"id"`
	Title string `db:"title" json:"title"`
}
