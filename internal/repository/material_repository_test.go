package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-portal-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestMaterialRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMaterialRepository(db)

	pageCount := 10
	rows := sqlmock.NewRows([]string{"id", "creator_id", "title", "original_name", "page_count", "shared", "uploaded_at"}).
		AddRow("mat-1", "inst-1", "Linux Basics", "linux.pdf", pageCount, false, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, creator_id, title, original_name, page_count, shared, uploaded_at")).
		WithArgs("mat-1").
		WillReturnRows(rows)

	material, err := repo.FindByID(context.Background(), "mat-1")
	require.NoError(t, err)
	require.NotNil(t, material.PageCount)
	require.Equal(t, 10, *material.PageCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMaterialRepositorySetPageCount(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMaterialRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE course_materials SET page_count = $1 WHERE id = $2")).
		WithArgs(7, "mat-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetPageCount(context.Background(), "mat-1", 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMaterialRepositoryHasApprovedEnrollment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMaterialRepository(db)

	mock.ExpectQuery("SELECT 1 FROM course_material_links").
		WithArgs("mat-1", "stu-1", models.EnrollmentStatusApproved).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	granted, err := repo.HasApprovedEnrollment(context.Background(), "mat-1", "stu-1")
	require.NoError(t, err)
	require.True(t, granted)

	mock.ExpectQuery("SELECT 1 FROM course_material_links").
		WithArgs("mat-1", "stu-2", models.EnrollmentStatusApproved).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	granted, err = repo.HasApprovedEnrollment(context.Background(), "mat-1", "stu-2")
	require.NoError(t, err)
	require.False(t, granted)
	require.NoError(t, mock.ExpectationsWereMet())
}
