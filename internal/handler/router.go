package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/middleware"
	"github.com/noah-isme/lms-api/internal/models"
)

// Routes groups the handlers and middleware dependencies mounted under the API prefix.
type Routes struct {
	Auth        *AuthHandler
	Users       *UserHandler
	Courses     *CourseHandler
	Payments    *PaymentHandler
	Enrollments *EnrollmentHandler
	Quizzes     *QuizHandler
	Stats       *StatsHandler
	Metrics     *MetricsHandler

	Authenticator middleware.Authenticator
	AuditRecorder middleware.AuditRecorder
	Logger        *zap.Logger
}

// Register mounts every API route on the group.
func (r Routes) Register(api *gin.RouterGroup) {
	auth := middleware.JWT(r.Authenticator)
	admin := middleware.RequireRoles(models.RoleAdmin)
	teacher := middleware.RequireRoles(models.RoleTeacher)
	student := middleware.RequireRoles(models.RoleStudent)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", r.Auth.Register)
	authGroup.POST("/login", r.Auth.Login)
	authGroup.POST("/refresh", r.Auth.Refresh)
	authGroup.POST("/logout", auth, r.Auth.Logout)
	authGroup.GET("/me", auth, r.Auth.Me)

	courses := api.Group("/courses")
	courses.GET("", r.Courses.List)
	courses.GET("/:id", r.Courses.Get)
	courses.POST("", auth, admin, r.Courses.Create)
	courses.PUT("/:id", auth, admin, r.Courses.Update)
	courses.DELETE("/:id", auth, admin, r.Courses.Delete)

	payments := api.Group("/payments", auth)
	payments.POST("/create", student, r.Payments.Initiate)
	payments.POST("/upload/:feeId", student, middleware.Audit(r.AuditRecorder, r.Logger, models.AuditActionReceiptUpload, "security_fee"), r.Payments.UploadReceipt)
	payments.GET("/my", student, r.Payments.ListMine)
	payments.GET("/pending", admin, r.Payments.ListPending)
	payments.PUT("/:id", admin, r.Payments.Decide)

	enrollments := api.Group("/enrollments", auth)
	enrollments.POST("", student, middleware.Audit(r.AuditRecorder, r.Logger, models.AuditActionEnroll, "enrollment"), r.Enrollments.Enroll)
	enrollments.GET("/my", student, r.Enrollments.ListMine)
	enrollments.GET("", staff, r.Enrollments.List)

	quizzes := api.Group("/quizzes", auth)
	quizzes.POST("", staff, r.Quizzes.Create)
	quizzes.GET("/course/:courseId", r.Quizzes.ListByCourse)
	quizzes.GET("/results/:id", r.Quizzes.Results)
	quizzes.POST("/submit/:id", student, middleware.Audit(r.AuditRecorder, r.Logger, models.AuditActionQuizSubmit, "quiz"), r.Quizzes.Submit)
	quizzes.GET("/:id", r.Quizzes.Get)

	adminGroup := api.Group("/admin", auth, middleware.WithResponseMeta())
	adminGroup.GET("/users", admin, r.Users.List)
	adminGroup.PUT("/users/:id/role", admin, r.Users.UpdateRole)
	adminGroup.GET("/stats", admin, r.Stats.Admin)
	adminGroup.GET("/payments/export", admin, r.Payments.Export)
	adminGroup.GET("/metrics", admin, r.Metrics.Summary)
	adminGroup.GET("/teacher-stats", teacher, r.Stats.Teacher)
}
