package models

import "time"

// Material is an uploaded PDF deck and its derived page images. PageCount
// stays null until conversion finishes; a reader never observes a count
// without the page files already on disk.
type Material struct {
	ID           string    `db:"id" json:"id"`
	CreatorID    string    `db:"creator_id" json:"creator_id"`
	Title        string    `db:"title" json:"title"`
	OriginalName string    `db:"original_name" json:"original_name"`
	PageCount    *int      `db:"page_count" json:"page_count,omitempty"`
	Shared       bool      `db:"shared" json:"shared"`
	UploadedAt   time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// MaterialDetail adds creator info for library listings.
type MaterialDetail struct {
	Material
	CreatorName  string `db:"creator_name" json:"creator_name"`
	CreatorLogin string `db:"creator_login" json:"creator_login"`
}

// MaterialFilter captures filtering criteria for library listings.
type MaterialFilter struct {
	CreatorID     string
	IncludeShared bool
}
