package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/pkg/database"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	applog "github.com/noah-isme/lms-api/pkg/logger"
)

type enrollmentRepository interface {
	FindByUserCourse(ctx context.Context, userID, courseID string) (*models.Enrollment, error)
	CreateForFee(ctx context.Context, enrollment *models.Enrollment, feeID string) error
	ListByUser(ctx context.Context, userID string) ([]models.EnrollmentDetail, error)
	ListAll(ctx context.Context) ([]models.EnrollmentDetail, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.EnrollmentDetail, error)
}

type feeLookup interface {
	FindByUserCourse(ctx context.Context, userID, courseID string) (*models.SecurityFee, error)
}

// EnrollmentService activates course access once the security fee is approved.
type EnrollmentService struct {
	repo      enrollmentRepository
	courses   courseReader
	fees      feeLookup
	stats     statsInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, courses courseReader, fees feeLookup, stats statsInvalidator, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EnrollmentService{repo: repo, courses: courses, fees: fees, stats: stats, validator: validate, logger: logger}
}

// Enroll creates an active enrollment for the student when an approved fee exists.
func (s *EnrollmentService) Enroll(ctx context.Context, userID string, req models.EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	if _, err := s.repo.FindByUserCourse(ctx, userID, req.CourseID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "already enrolled in this course")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}

	fee, err := s.fees.FindByUserCourse(ctx, userID, req.CourseID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load security fee")
	}
	if fee == nil || fee.PaymentStatus != models.PaymentStatusApproved {
		return nil, appErrors.WithDetails(appErrors.ErrPaymentRequired, map[string]interface{}{
			"requires_payment": true,
			"course_id":        req.CourseID,
		})
	}

	enrollment := &models.Enrollment{
		UserID:   userID,
		CourseID: req.CourseID,
		Status:   models.EnrollmentStatusActive,
	}
	if err := s.repo.CreateForFee(ctx, enrollment, fee.ID); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "already enrolled in this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	applog.For(ctx, s.logger).Info("student enrolled", zap.String("user_id", userID), zap.String("course_id", req.CourseID))
	invalidateStats(ctx, s.stats, EventEnrollmentCreated)
	return enrollment, nil
}

// ListMine returns the caller's enrollments.
func (s *EnrollmentService) ListMine(ctx context.Context, userID string) ([]models.EnrollmentDetail, error) {
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return nonNilEnrollments(items), nil
}

// ListForRole returns every enrollment for admins and the assigned courses' enrollments for teachers.
func (s *EnrollmentService) ListForRole(ctx context.Context, claims *models.JWTClaims) ([]models.EnrollmentDetail, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	var (
		items []models.EnrollmentDetail
		err   error
	)
	switch claims.Role {
	case models.RoleAdmin:
		items, err = s.repo.ListAll(ctx)
	case models.RoleTeacher:
		items, err = s.repo.ListByTeacher(ctx, claims.UserID)
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "insufficient permissions")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return nonNilEnrollments(items), nil
}

func nonNilEnrollments(items []models.EnrollmentDetail) []models.EnrollmentDetail {
	if items == nil {
		return []models.EnrollmentDetail{}
	}
	return items
}
