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

// MaterialRepository handles persistence of uploaded slide decks.
type MaterialRepository struct {
	db *sqlx.DB
}

// NewMaterialRepository constructs the repository.
func NewMaterialRepository(db *sqlx.DB) *MaterialRepository {
	return &MaterialRepository{db: db}
}

// Create registers an upload intake row. The page count stays NULL until
// conversion finishes; every upload mints a fresh id so re-uploads never
// overwrite existing artifacts.
func (r *MaterialRepository) Create(ctx context.Context, material *models.Material) error {
	if material.ID == "" {
		material.ID = uuid.NewString()
	}
	if material.UploadedAt.IsZero() {
		material.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO course_materials (id, creator_id, title, original_name, page_count, shared, uploaded_at)
        VALUES (:id, :creator_id, :title, :original_name, :page_count, :shared, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, material); err != nil {
		return fmt.Errorf("create material: %w", err)
	}
	return nil
}

// SetPageCount records the page count once all page files are durably
// written.
func (r *MaterialRepository) SetPageCount(ctx context.Context, id string, pageCount int) error {
	const query = `UPDATE course_materials SET page_count = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, pageCount, id); err != nil {
		return fmt.Errorf("set material page count: %w", err)
	}
	return nil
}

// FindByID returns a material by its ID.
func (r *MaterialRepository) FindByID(ctx context.Context, id string) (*models.Material, error) {
	const query = `SELECT id, creator_id, title, original_name, page_count, shared, uploaded_at
        FROM course_materials WHERE id = $1`
	var material models.Material
	if err := r.db.GetContext(ctx, &material, query, id); err != nil {
		return nil, err
	}
	return &material, nil
}

// ListLibrary returns an instructor's own materials plus, optionally, decks
// shared by other instructors.
func (r *MaterialRepository) ListLibrary(ctx context.Context, filter models.MaterialFilter) ([]models.MaterialDetail, error) {
	query := `SELECT m.id, m.creator_id, m.title, m.original_name, m.page_count, m.shared, m.uploaded_at,
        u.name AS creator_name, u.login_id AS creator_login
        FROM course_materials m
        JOIN users u ON u.id = m.creator_id
        WHERE m.creator_id = $1`
	if filter.IncludeShared {
		query += ` OR m.shared = TRUE`
	}
	query += ` ORDER BY m.uploaded_at DESC`

	var materials []models.MaterialDetail
	if err := r.db.SelectContext(ctx, &materials, query, filter.CreatorID); err != nil {
		return nil, fmt.Errorf("list material library: %w", err)
	}
	return materials, nil
}

// ListByCourse returns materials linked to a course.
func (r *MaterialRepository) ListByCourse(ctx context.Context, courseID string) ([]models.CourseLink, error) {
	const query = `SELECT m.id, m.title FROM course_material_links l
        JOIN course_materials m ON m.id = l.material_id
        WHERE l.course_id = $1 ORDER BY m.title`
	var links []models.CourseLink
	if err := r.db.SelectContext(ctx, &links, query, courseID); err != nil {
		return nil, fmt.Errorf("list course materials: %w", err)
	}
	return links, nil
}

// SetShared toggles library sharing.
func (r *MaterialRepository) SetShared(ctx context.Context, id string, shared bool) error {
	const query = `UPDATE course_materials SET shared = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, shared, id); err != nil {
		return fmt.Errorf("set material sharing: %w", err)
	}
	return nil
}

// Delete removes a material row; course links cascade in the schema.
func (r *MaterialRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM course_materials WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete material: %w", err)
	}
	return nil
}

// HasApprovedEnrollment reports whether at least one course links this
// material and holds an approved enrollment for the student. The check runs
// on every page request so enrollment revocation takes effect immediately.
func (r *MaterialRepository) HasApprovedEnrollment(ctx context.Context, materialID, studentID string) (bool, error) {
	const query = `SELECT 1 FROM course_material_links l
        JOIN enrollments e ON e.course_id = l.course_id
        WHERE l.material_id = $1 AND e.student_id = $2 AND e.status = $3
        LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, materialID, studentID, models.EnrollmentStatusApproved); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check material access: %w", err)
	}
	return true, nil
}
