package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-api/internal/models"
)

// TeachingAssignmentRepository persists teacher-course assignments.
type TeachingAssignmentRepository struct {
	db *sqlx.DB
}

// NewTeachingAssignmentRepository constructs the repository.
func NewTeachingAssignmentRepository(db *sqlx.DB) *TeachingAssignmentRepository {
	return &TeachingAssignmentRepository{db: db}
}

func (r *TeachingAssignmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Exists reports whether the teacher holds an assignment for the course.
func (r *TeachingAssignmentRepository) Exists(ctx context.Context, teacherID, courseID string) (bool, error) {
	const query = `SELECT 1 FROM teaching_assignments WHERE teacher_id = $1 AND course_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, teacherID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check teaching assignment: %w", err)
	}
	return true, nil
}

// FindByCourse returns the assignment of a course with teacher identity.
func (r *TeachingAssignmentRepository) FindByCourse(ctx context.Context, courseID string) (*models.TeachingAssignmentDetail, error) {
	const query = `
SELECT ta.id, ta.teacher_id, ta.course_id, ta.lecture_minutes, ta.lectures_per_day, ta.created_at, ta.updated_at,
       u.name AS teacher_name, u.email AS teacher_email
FROM teaching_assignments ta
JOIN users u ON u.id = ta.teacher_id
WHERE ta.course_id = $1
LIMIT 1`
	var assignment models.TeachingAssignmentDetail
	if err := r.db.GetContext(ctx, &assignment, query, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find teaching assignment: %w", err)
	}
	return &assignment, nil
}

// ListCourseIDsByTeacher returns the courses a teacher is assigned to.
func (r *TeachingAssignmentRepository) ListCourseIDsByTeacher(ctx context.Context, teacherID string) ([]string, error) {
	const query = `SELECT course_id FROM teaching_assignments WHERE teacher_id = $1 ORDER BY created_at ASC`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher courses: %w", err)
	}
	return ids, nil
}

// Upsert stores the single assignment of a course, replacing any previous teacher.
func (r *TeachingAssignmentRepository) Upsert(ctx context.Context, exec sqlx.ExtContext, assignment *models.TeachingAssignment) error {
	if assignment == nil {
		return fmt.Errorf("teaching assignment payload is nil")
	}
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now

	const query = `
INSERT INTO teaching_assignments (id, teacher_id, course_id, lecture_minutes, lectures_per_day, created_at, updated_at)
VALUES (:id, :teacher_id, :course_id, :lecture_minutes, :lectures_per_day, :created_at, :updated_at)
ON CONFLICT (course_id) DO UPDATE SET
    teacher_id = EXCLUDED.teacher_id,
    lecture_minutes = EXCLUDED.lecture_minutes,
    lectures_per_day = EXCLUDED.lectures_per_day,
    updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, assignment); err != nil {
		return fmt.Errorf("upsert teaching assignment: %w", err)
	}
	return nil
}
