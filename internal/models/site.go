package models

import "time"

// LectureSite is an external lecture site served to enrolled students
// through the embedding frontend.
type LectureSite struct {
	ID          string    `db:"id" json:"id"`
	CreatorID   string    `db:"creator_id" json:"creator_id"`
	Slug        string    `db:"slug" json:"slug"`
	Name        string    `db:"name" json:"name"`
	URL         string    `db:"url" json:"url"`
	Description string    `db:"description" json:"description,omitempty"`
	Shared      bool      `db:"shared" json:"shared"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
