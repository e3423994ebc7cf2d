package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	applog "github.com/noah-isme/lms-api/pkg/logger"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, error)
	FindDetail(ctx context.Context, id string) (*models.CourseDetail, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course, assignment *models.TeachingAssignment) error
	Update(ctx context.Context, course *models.Course, assignment *models.TeachingAssignment) error
	Delete(ctx context.Context, id string) error
}

type teacherLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CourseService manages the course catalog and its teaching assignments.
type CourseService struct {
	repo      courseRepository
	users     teacherLookup
	audit     auditWriter
	stats     statsInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs a CourseService.
func NewCourseService(repo courseRepository, users teacherLookup, audit auditWriter, stats statsInvalidator, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CourseService{repo: repo, users: users, audit: audit, stats: stats, validator: validate, logger: logger}
}

// List returns courses matching the search and category filters.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, error) {
	courses, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	if courses == nil {
		courses = []models.CourseDetail{}
	}
	return courses, nil
}

// Get returns a course with its teacher and lecture details.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseDetail, error) {
	course, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// Create adds a course and optionally assigns a teacher to it.
func (s *CourseService) Create(ctx context.Context, actorID string, req models.CreateCourseRequest) (*models.CourseDetail, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Category = strings.TrimSpace(req.Category)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course := &models.Course{
		Title:        req.Title,
		Category:     req.Category,
		Description:  req.Description,
		DailyMinutes: req.DailyMinutes,
	}
	assignment, err := s.buildAssignment(ctx, req.TeacherID, req.LectureMinutes, req.LecturesPerDay, nil)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, course, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	s.recordAudit(ctx, actorID, models.AuditActionCourseCreate, course.ID, nil, course)
	invalidateStats(ctx, s.stats, EventCourseCreated)
	return s.Get(ctx, course.ID)
}

// Update applies a partial update. When teacher_id is given the assignment is upserted.
func (s *CourseService) Update(ctx context.Context, actorID, id string, req models.UpdateCourseRequest) (*models.CourseDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	current, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	before := current.Course
	course := current.Course
	if req.Title != nil {
		course.Title = strings.TrimSpace(*req.Title)
	}
	if req.Category != nil {
		course.Category = strings.TrimSpace(*req.Category)
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.DailyMinutes != nil {
		course.DailyMinutes = *req.DailyMinutes
	}
	if course.Title == "" || course.Category == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title and category cannot be blank")
	}

	assignment, err := s.buildAssignment(ctx, req.TeacherID, req.LectureMinutes, req.LecturesPerDay, current.LectureDetails)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, &course, assignment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	s.recordAudit(ctx, actorID, models.AuditActionCourseUpdate, id, before, course)
	if assignment != nil {
		invalidateStats(ctx, s.stats, EventCourseAssigned)
	}
	return s.Get(ctx, id)
}

// Delete removes a course together with everything that belongs to it.
func (s *CourseService) Delete(ctx context.Context, actorID, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	s.recordAudit(ctx, actorID, models.AuditActionCourseDelete, id, nil, nil)
	invalidateStats(ctx, s.stats, EventCourseDeleted)
	return nil
}

func (s *CourseService) buildAssignment(ctx context.Context, teacherID *string, lectureMinutes, lecturesPerDay *int, current *models.LectureDetails) (*models.TeachingAssignment, error) {
	if teacherID == nil || *teacherID == "" {
		return nil, nil
	}
	teacher, err := s.users.FindByID(ctx, *teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if teacher.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assigned user is not a teacher")
	}

	assignment := &models.TeachingAssignment{
		TeacherID:      teacher.ID,
		LectureMinutes: models.DefaultLectureMinutes,
		LecturesPerDay: models.DefaultLecturesPerDay,
	}
	if current != nil {
		assignment.LectureMinutes = current.LectureMinutes
		assignment.LecturesPerDay = current.LecturesPerDay
	}
	if lectureMinutes != nil {
		assignment.LectureMinutes = *lectureMinutes
	}
	if lecturesPerDay != nil {
		assignment.LecturesPerDay = *lecturesPerDay
	}
	return assignment, nil
}

func (s *CourseService) recordAudit(ctx context.Context, actorID, action, courseID string, before, after interface{}) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "course",
		ResourceID: &courseID,
	}
	if before != nil {
		entry.OldValues, _ = json.Marshal(before)
	}
	if after != nil {
		entry.NewValues, _ = json.Marshal(after)
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		applog.For(ctx, s.logger).Warn("failed to record course audit log", zap.String("action", action), zap.Error(err))
	}
}
