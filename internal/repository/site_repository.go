package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-portal-api/internal/models"
)

// SiteRepository handles persistence of external lecture sites.
type SiteRepository struct {
	db *sqlx.DB
}

// NewSiteRepository constructs the repository.
func NewSiteRepository(db *sqlx.DB) *SiteRepository {
	return &SiteRepository{db: db}
}

// Create registers a lecture site.
func (r *SiteRepository) Create(ctx context.Context, site *models.LectureSite) error {
	if site.ID == "" {
		site.ID = uuid.NewString()
	}
	if site.CreatedAt.IsZero() {
		site.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO lecture_sites (id, creator_id, slug, name, url, description, shared, created_at)
        VALUES (:id, :creator_id, :slug, :name, :url, :description, :shared, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, site); err != nil {
		return fmt.Errorf("create lecture site: %w", err)
	}
	return nil
}

// FindBySlug returns a lecture site by slug.
func (r *SiteRepository) FindBySlug(ctx context.Context, slug string) (*models.LectureSite, error) {
	const query = `SELECT id, creator_id, slug, name, url, description, shared, created_at
        FROM lecture_sites WHERE slug = $1`
	var site models.LectureSite
	if err := r.db.GetContext(ctx, &site, query, slug); err != nil {
		return nil, err
	}
	return &site, nil
}

// List returns the sites visible to an instructor: their own plus shared
// ones.
func (r *SiteRepository) List(ctx context.Context, creatorID string) ([]models.LectureSite, error) {
	const query = `SELECT id, creator_id, slug, name, url, description, shared, created_at
        FROM lecture_sites WHERE creator_id = $1 OR shared = TRUE ORDER BY name`
	var sites []models.LectureSite
	if err := r.db.SelectContext(ctx, &sites, query, creatorID); err != nil {
		return nil, fmt.Errorf("list lecture sites: %w", err)
	}
	return sites, nil
}

// HasApprovedEnrollment reports whether the student holds an approved
// enrollment in any course linked to this site.
func (r *SiteRepository) HasApprovedEnrollment(ctx context.Context, siteID, studentID string) (bool, error) {
	const query = `SELECT 1 FROM course_sites cs
        JOIN enrollments e ON e.course_id = cs.course_id
        WHERE cs.site_id = $1 AND e.student_id = $2 AND e.status = $3
        LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, siteID, studentID, models.EnrollmentStatusApproved); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check site access: %w", err)
	}
	return true, nil
}
