package models

import "time"

// Lecture lengths accepted for a teaching assignment, in minutes.
var AllowedLectureMinutes = []int{30, 45, 60}

const (
	DefaultLectureMinutes = 60
	DefaultLecturesPerDay = 1
)

// Course represents a catalog entry.
type Course struct {
	ID           string    `db:"id" json:"id"`
	Title        string    `db:"title" json:"title"`
	Category     string    `db:"category" json:"category"`
	Description  string    `db:"description" json:"description"`
	DailyMinutes int       `db:"daily_minutes" json:"daily_minutes"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CourseTeacher is the public summary of the teacher assigned to a course.
type CourseTeacher struct {
	ID    string `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}

// LectureDetails describes the schedule parameters of a course assignment.
type LectureDetails struct {
	LectureMinutes int `json:"lecture_minutes"`
	LecturesPerDay int `json:"lectures_per_day"`
}

// CourseDetail is a course enriched with its teaching assignment.
type CourseDetail struct {
	Course
	Teacher        *CourseTeacher  `json:"teacher"`
	LectureDetails *LectureDetails `json:"lecture_details"`
}

// CourseFilter captures catalog search criteria.
type CourseFilter struct {
	Search   string
	Category string
}

// CourseSummary is the compact course projection attached to other records.
type CourseSummary struct {
	ID       string `db:"id" json:"id"`
	Title    string `db:"title" json:"title"`
	Category string `db:"category" json:"category"`
}

// CreateCourseRequest is the admin payload for adding a course.
type CreateCourseRequest struct {
	Title          string  `json:"title" validate:"required,max=200"`
	Category       string  `json:"category" validate:"required,max=100"`
	Description    string  `json:"description" validate:"required"`
	DailyMinutes   int     `json:"daily_minutes" validate:"required,gt=0"`
	TeacherID      *string `json:"teacher_id" validate:"omitempty,uuid"`
	LectureMinutes *int    `json:"lecture_minutes" validate:"omitempty,oneof=30 45 60"`
	LecturesPerDay *int    `json:"lectures_per_day" validate:"omitempty,gte=1"`
}

// UpdateCourseRequest carries a partial course update. Absent fields are left untouched.
type UpdateCourseRequest struct {
	Title          *string `json:"title" validate:"omitempty,min=1,max=200"`
	Category       *string `json:"category" validate:"omitempty,min=1,max=100"`
	Description    *string `json:"description" validate:"omitempty,min=1"`
	DailyMinutes   *int    `json:"daily_minutes" validate:"omitempty,gt=0"`
	TeacherID      *string `json:"teacher_id" validate:"omitempty,uuid"`
	LectureMinutes *int    `json:"lecture_minutes" validate:"omitempty,oneof=30 45 60"`
	LecturesPerDay *int    `json:"lectures_per_day" validate:"omitempty,gte=1"`
}
