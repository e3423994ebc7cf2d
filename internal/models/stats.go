package models

// AdminStats aggregates platform wide counts for the admin dashboard.
type AdminStats struct {
	TotalUsers       int                  `json:"totalUsers"`
	TotalCourses     int                  `json:"totalCourses"`
	TotalEnrollments int                  `json:"totalEnrollments"`
	TotalQuizzes     int                  `json:"totalQuizzes"`
	Payments         []PaymentStatusTotal `json:"payments"`
}

// TeacherStats aggregates counts scoped to a teacher's assigned courses.
type TeacherStats struct {
	AssignedCourses       int `json:"assignedCourses"`
	TotalStudentsEnrolled int `json:"totalStudentsEnrolled"`
	QuizzesCreated        int `json:"quizzesCreated"`
}
