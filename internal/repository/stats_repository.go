package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-api/internal/models"
)

// StatsRepository exposes read-only aggregations for dashboards.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository instantiates the repository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// Totals returns platform wide entity counts.
func (r *StatsRepository) Totals(ctx context.Context) (*models.AdminStats, error) {
	const query = `
SELECT
    (SELECT COUNT(*) FROM users) AS total_users,
    (SELECT COUNT(*) FROM courses) AS total_courses,
    (SELECT COUNT(*) FROM enrollments) AS total_enrollments,
    (SELECT COUNT(*) FROM quizzes) AS total_quizzes`
	var row struct {
		TotalUsers       int `db:"total_users"`
		TotalCourses     int `db:"total_courses"`
		TotalEnrollments int `db:"total_enrollments"`
		TotalQuizzes     int `db:"total_quizzes"`
	}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return nil, fmt.Errorf("query platform totals: %w", err)
	}
	return &models.AdminStats{
		TotalUsers:       row.TotalUsers,
		TotalCourses:     row.TotalCourses,
		TotalEnrollments: row.TotalEnrollments,
		TotalQuizzes:     row.TotalQuizzes,
	}, nil
}

// PaymentTotals groups the fee ledger by status.
func (r *StatsRepository) PaymentTotals(ctx context.Context) ([]models.PaymentStatusTotal, error) {
	const query = `
SELECT payment_status AS status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total_amount
FROM security_fees
GROUP BY payment_status
ORDER BY payment_status ASC`
	var totals []models.PaymentStatusTotal
	if err := r.db.SelectContext(ctx, &totals, query); err != nil {
		return nil, fmt.Errorf("query payment totals: %w", err)
	}
	return totals, nil
}

// TeacherTotals returns counts scoped to the teacher's assigned courses. Enrolled
// students are summed per course, so a student in two of the courses counts twice.
func (r *StatsRepository) TeacherTotals(ctx context.Context, teacherID string) (*models.TeacherStats, error) {
	const query = `
SELECT
    (SELECT COUNT(*) FROM teaching_assignments WHERE teacher_id = $1) AS assigned_courses,
    (SELECT COUNT(e.id)
       FROM enrollments e
       JOIN teaching_assignments ta ON ta.course_id = e.course_id
      WHERE ta.teacher_id = $1) AS total_students_enrolled,
    (SELECT COUNT(*)
       FROM quizzes q
       JOIN teaching_assignments ta ON ta.course_id = q.course_id
      WHERE ta.teacher_id = $1) AS quizzes_created`
	var row struct {
		AssignedCourses       int `db:"assigned_courses"`
		TotalStudentsEnrolled int `db:"total_students_enrolled"`
		QuizzesCreated        int `db:"quizzes_created"`
	}
	if err := r.db.GetContext(ctx, &row, query, teacherID); err != nil {
		return nil, fmt.Errorf("query teacher totals: %w", err)
	}
	return &models.TeacherStats{
		AssignedCourses:       row.AssignedCourses,
		TotalStudentsEnrolled: row.TotalStudentsEnrolled,
		QuizzesCreated:        row.QuizzesCreated,
	}, nil
}
