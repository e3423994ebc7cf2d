package models

import "time"

// EnrollmentStatus enumerates enrollment states.
type EnrollmentStatus string

const (
	EnrollmentStatusPending  EnrollmentStatus = "pending"
	EnrollmentStatusActive   EnrollmentStatus = "active"
	EnrollmentStatusRejected EnrollmentStatus = "rejected"
)

// Enrollment grants a student access to a course.
type Enrollment struct {
	ID         string           `db:"id" json:"id"`
	UserID     string           `db:"user_id" json:"user_id"`
	CourseID   string           `db:"course_id" json:"course_id"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	EnrollDate time.Time        `db:"enroll_date" json:"enroll_date"`
}

// EnrollmentDetail enriches an enrollment with course and student data.
type EnrollmentDetail struct {
	Enrollment
	CourseTitle    string `db:"course_title" json:"course_title"`
	CourseCategory string `db:"course_category" json:"course_category"`
	StudentName    string `db:"student_name" json:"student_name"`
	StudentEmail   string `db:"student_email" json:"student_email"`
}

// EnrollRequest asks to enroll the caller in a course.
type EnrollRequest struct {
	CourseID string `json:"course_id" validate:"required,uuid"`
}
