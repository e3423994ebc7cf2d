package models

import "time"

// TeachingAssignment links a teacher to a course with its lecture schedule.
type TeachingAssignment struct {
	ID             string    `db:"id" json:"id"`
	TeacherID      string    `db:"teacher_id" json:"teacher_id"`
	CourseID       string    `db:"course_id" json:"course_id"`
	LectureMinutes int       `db:"lecture_minutes" json:"lecture_minutes"`
	LecturesPerDay int       `db:"lectures_per_day" json:"lectures_per_day"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// TeachingAssignmentDetail joins the assignment with teacher identity.
type TeachingAssignmentDetail struct {
	TeachingAssignment
	TeacherName  string `db:"teacher_name" json:"teacher_name"`
	TeacherEmail string `db:"teacher_email" json:"teacher_email"`
}
