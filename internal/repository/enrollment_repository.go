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

const enrollmentDetailSelect = `
SELECT e.id, e.user_id, e.course_id, e.status, e.enroll_date,
       c.title AS course_title, c.category AS course_category, u.name AS student_name, u.email AS student_email
FROM enrollments e
JOIN courses c ON c.id = e.course_id
JOIN users u ON u.id = e.user_id`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByUserCourse returns the enrollment of a student in a course.
func (r *EnrollmentRepository) FindByUserCourse(ctx context.Context, userID, courseID string) (*models.Enrollment, error) {
	const query = `SELECT id, user_id, course_id, status, enroll_date FROM enrollments WHERE user_id = $1 AND course_id = $2 LIMIT 1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, userID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &enrollment, nil
}

// HasActive reports whether the student holds an active enrollment in the course.
func (r *EnrollmentRepository) HasActive(ctx context.Context, userID, courseID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, userID, courseID, models.EnrollmentStatusActive); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return true, nil
}

// CreateForFee inserts the enrollment and links the approved fee to it atomically.
func (r *EnrollmentRepository) CreateForFee(ctx context.Context, enrollment *models.Enrollment, feeID string) (err error) {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrollDate.IsZero() {
		enrollment.EnrollDate = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertQuery = `INSERT INTO enrollments (id, user_id, course_id, status, enroll_date) VALUES (:id, :user_id, :course_id, :status, :enroll_date)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, enrollment); err != nil {
		return fmt.Errorf("insert enrollment: %w", err)
	}
	const linkQuery = `UPDATE security_fees SET enrollment_id = $2, updated_at = $3 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, linkQuery, feeID, enrollment.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("link security fee: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment: %w", err)
	}
	return nil
}

// ListByUser returns a student's enrollments with course summaries.
func (r *EnrollmentRepository) ListByUser(ctx context.Context, userID string) ([]models.EnrollmentDetail, error) {
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, enrollmentDetailSelect+" WHERE e.user_id = $1 ORDER BY e.enroll_date DESC", userID); err != nil {
		return nil, fmt.Errorf("list user enrollments: %w", err)
	}
	return enrollments, nil
}

// ListAll returns every enrollment.
func (r *EnrollmentRepository) ListAll(ctx context.Context) ([]models.EnrollmentDetail, error) {
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, enrollmentDetailSelect+" ORDER BY e.enroll_date DESC"); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}

// ListByTeacher returns enrollments of the courses a teacher is assigned to.
func (r *EnrollmentRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + `
JOIN teaching_assignments ta ON ta.course_id = e.course_id
WHERE ta.teacher_id = $1
ORDER BY e.enroll_date DESC`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher enrollments: %w", err)
	}
	return enrollments, nil
}
