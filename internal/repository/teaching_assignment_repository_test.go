package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeachingAssignmentRepositoryExists(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTeachingAssignmentRepository(db)

	query := regexp.QuoteMeta("SELECT 1 FROM teaching_assignments WHERE teacher_id = $1 AND course_id = $2 LIMIT 1")
	mock.ExpectQuery(query).WithArgs("t1", "c1").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))
	mock.ExpectQuery(query).WithArgs("t1", "c2").WillReturnError(sql.ErrNoRows)

	ok, err := repo.Exists(context.Background(), "t1", "c1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(context.Background(), "t1", "c2")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeachingAssignmentRepositoryListCourseIDs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTeachingAssignmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT course_id FROM teaching_assignments WHERE teacher_id = $1")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"course_id"}).AddRow("c1").AddRow("c2"))

	ids, err := repo.ListCourseIDsByTeacher(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
