package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-portal-api/internal/models"
)

// CourseRepository handles persistence of courses and their links to
// materials and lecture sites.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// Create persists a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	if course.CreatedAt.IsZero() {
		course.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO courses (id, instructor_id, title, description, created_at)
        VALUES (:id, :instructor_id, :title, :description, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, instructor_id, title, description, created_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

const courseDetailColumns = `c.id, c.instructor_id, c.title, c.description, c.created_at,
        u.name AS instructor_name,
        (SELECT COUNT(*) FROM enrollments WHERE course_id = c.id AND status = 'pending') AS pending_count,
        (SELECT COUNT(*) FROM enrollments WHERE course_id = c.id AND status = 'approved') AS approved_count`

// ListByInstructor returns an instructor's courses with enrollment counters.
func (r *CourseRepository) ListByInstructor(ctx context.Context, instructorID string) ([]models.CourseDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses c JOIN users u ON u.id = c.instructor_id
        WHERE c.instructor_id = $1 ORDER BY c.created_at DESC`, courseDetailColumns)
	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, instructorID); err != nil {
		return nil, fmt.Errorf("list instructor courses: %w", err)
	}
	return courses, nil
}

// ListCatalog returns every course with enrollment counters for the student
// catalog.
func (r *CourseRepository) ListCatalog(ctx context.Context) ([]models.CourseDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses c JOIN users u ON u.id = c.instructor_id
        ORDER BY c.created_at DESC`, courseDetailColumns)
	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list course catalog: %w", err)
	}
	return courses, nil
}

// Update modifies course metadata.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	const query = `UPDATE courses SET title = :title, description = :description WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// Delete removes a course; links and enrollments cascade in the schema.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM courses WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return nil
}

// LinkMaterial attaches a library material to a course.
func (r *CourseRepository) LinkMaterial(ctx context.Context, courseID, materialID string) error {
	const query = `INSERT INTO course_material_links (id, course_id, material_id) VALUES ($1, $2, $3)
        ON CONFLICT (course_id, material_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), courseID, materialID); err != nil {
		return fmt.Errorf("link course material: %w", err)
	}
	return nil
}

// UnlinkMaterial detaches a material from a course.
func (r *CourseRepository) UnlinkMaterial(ctx context.Context, courseID, materialID string) error {
	const query = `DELETE FROM course_material_links WHERE course_id = $1 AND material_id = $2`
	if _, err := r.db.ExecContext(ctx, query, courseID, materialID); err != nil {
		return fmt.Errorf("unlink course material: %w", err)
	}
	return nil
}

// LinkSite attaches a lecture site to a course.
func (r *CourseRepository) LinkSite(ctx context.Context, courseID, siteID string) error {
	const query = `INSERT INTO course_sites (id, course_id, site_id) VALUES ($1, $2, $3)
        ON CONFLICT (course_id, site_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), courseID, siteID); err != nil {
		return fmt.Errorf("link course site: %w", err)
	}
	return nil
}

// ListSites returns lecture sites linked to a course.
func (r *CourseRepository) ListSites(ctx context.Context, courseID string) ([]models.CourseLink, error) {
	const query = `SELECT s.id, s.name AS title FROM course_sites cs
        JOIN lecture_sites s ON s.id = cs.site_id
        WHERE cs.course_id = $1 ORDER BY s.name`
	var links []models.CourseLink
	if err := r.db.SelectContext(ctx, &links, query, courseID); err != nil {
		return nil, fmt.Errorf("list course sites: %w", err)
	}
	return links, nil
}
