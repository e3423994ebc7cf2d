package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-api/internal/models"
)

const courseDetailSelect = `
SELECT c.id, c.title, c.category, c.description, c.daily_minutes, c.created_at, c.updated_at,
       ta.lecture_minutes, ta.lectures_per_day,
       u.id AS teacher_id, u.name AS teacher_name, u.email AS teacher_email
FROM courses c
LEFT JOIN teaching_assignments ta ON ta.course_id = c.id
LEFT JOIN users u ON u.id = ta.teacher_id`

type courseDetailRow struct {
	models.Course
	LectureMinutes sql.NullInt64  `db:"lecture_minutes"`
	LecturesPerDay sql.NullInt64  `db:"lectures_per_day"`
	TeacherID      sql.NullString `db:"teacher_id"`
	TeacherName    sql.NullString `db:"teacher_name"`
	TeacherEmail   sql.NullString `db:"teacher_email"`
}

func (row courseDetailRow) toDetail() models.CourseDetail {
	detail := models.CourseDetail{Course: row.Course}
	if row.TeacherID.Valid {
		detail.Teacher = &models.CourseTeacher{ID: row.TeacherID.String, Name: row.TeacherName.String, Email: row.TeacherEmail.String}
	}
	if row.LectureMinutes.Valid {
		detail.LectureDetails = &models.LectureDetails{
			LectureMinutes: int(row.LectureMinutes.Int64),
			LecturesPerDay: int(row.LecturesPerDay.Int64),
		}
	}
	return detail
}

// CourseRepository persists the course catalog.
type CourseRepository struct {
	db          *sqlx.DB
	assignments *TeachingAssignmentRepository
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db, assignments: NewTeachingAssignmentRepository(db)}
}

// List returns courses matching the filter together with their assignment.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, error) {
	var conditions []string
	var args []interface{}
	if search := strings.TrimSpace(filter.Search); search != "" {
		conditions = append(conditions, fmt.Sprintf("c.title ILIKE $%d", len(args)+1))
		args = append(args, "%"+search+"%")
	}
	if category := strings.TrimSpace(filter.Category); category != "" {
		conditions = append(conditions, fmt.Sprintf("c.category = $%d", len(args)+1))
		args = append(args, category)
	}

	query := courseDetailSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY c.created_at DESC"

	var rows []courseDetailRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	courses := make([]models.CourseDetail, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.toDetail())
	}
	return courses, nil
}

// FindDetail returns a single course with its assignment.
func (r *CourseRepository) FindDetail(ctx context.Context, id string) (*models.CourseDetail, error) {
	var row courseDetailRow
	if err := r.db.GetContext(ctx, &row, courseDetailSelect+" WHERE c.id = $1 LIMIT 1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course detail: %w", err)
	}
	detail := row.toDetail()
	return &detail, nil
}

// FindByID returns the bare course record.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, title, category, description, daily_minutes, created_at, updated_at FROM courses WHERE id = $1 LIMIT 1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// Create inserts a course and, when given, its teaching assignment atomically.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course, assignment *models.TeachingAssignment) (err error) {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin course transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO courses (id, title, category, description, daily_minutes, created_at, updated_at)
VALUES (:id, :title, :category, :description, :daily_minutes, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("insert course: %w", err)
	}
	if assignment != nil {
		assignment.CourseID = course.ID
		if err = r.assignments.Upsert(ctx, tx, assignment); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit course: %w", err)
	}
	return nil
}

// Update persists course fields and upserts the assignment when given.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course, assignment *models.TeachingAssignment) (err error) {
	course.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin course transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `UPDATE courses SET title = :title, category = :category, description = :description, daily_minutes = :daily_minutes, updated_at = :updated_at WHERE id = :id`
	result, err := tx.NamedExecContext(ctx, query, course)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check updated course rows: %w", err)
	}
	if affected == 0 {
		err = sql.ErrNoRows
		return err
	}
	if assignment != nil {
		assignment.CourseID = course.ID
		if err = r.assignments.Upsert(ctx, tx, assignment); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit course: %w", err)
	}
	return nil
}

// Delete removes a course. Assignments, quizzes, fees and enrollments cascade.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM courses WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted course rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
