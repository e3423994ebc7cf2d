package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/pkg/jobs"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

const (
	statsCachePattern     = "stats:*"
	adminStatsKey         = "stats:admin"
	teacherStatsKeyPrefix = "stats:teacher:"

	// JobInvalidateStats drops cached dashboard aggregates.
	JobInvalidateStats = "stats.invalidate"
)

// Write events that change dashboard counts.
const (
	EventUserRegistered    = "user_registered"
	EventCourseCreated     = "course_created"
	EventCourseAssigned    = "course_assigned"
	EventCourseDeleted     = "course_deleted"
	EventFeeCreated        = "security_fee_created"
	EventFeeDecided        = "security_fee_decided"
	EventReceiptUploaded   = "receipt_uploaded"
	EventEnrollmentCreated = "enrollment_created"
	EventQuizCreated       = "quiz_created"
)

type statsRepository interface {
	Totals(ctx context.Context) (*models.AdminStats, error)
	PaymentTotals(ctx context.Context) ([]models.PaymentStatusTotal, error)
	TeacherTotals(ctx context.Context, teacherID string) (*models.TeacherStats, error)
}

type jobQueue interface {
	Register(jobType string, handler jobs.Handler)
	Enqueue(job jobs.Job) error
}

// statsInvalidator is implemented by StatsService and consumed by write paths that change counts.
type statsInvalidator interface {
	Invalidate(ctx context.Context, event string)
}

// StatsServiceConfig tunes stats caching.
type StatsServiceConfig struct {
	CacheTTL time.Duration
	Metrics  *MetricsService
}

// StatsService composes admin and teacher dashboard aggregates.
type StatsService struct {
	repo   statsRepository
	cache  *CacheService
	queue  jobQueue
	logger *zap.Logger
	cfg    StatsServiceConfig
}

// NewStatsService constructs the service and registers its cache invalidation job.
func NewStatsService(repo statsRepository, cache *CacheService, queue jobQueue, logger *zap.Logger, cfg StatsServiceConfig) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 2 * time.Minute
	}
	s := &StatsService{repo: repo, cache: cache, queue: queue, logger: logger, cfg: cfg}
	if queue != nil {
		queue.Register(JobInvalidateStats, s.handleInvalidate)
	}
	return s
}

// Admin returns platform wide counts and indicates whether the cache served them.
func (s *StatsService) Admin(ctx context.Context) (*models.AdminStats, bool, error) {
	return loadThrough(ctx, s.cache, adminStatsKey, s.cfg.CacheTTL, s.loadAdmin)
}

// Teacher returns counts scoped to the teacher's assigned courses.
func (s *StatsService) Teacher(ctx context.Context, teacherID string) (*models.TeacherStats, bool, error) {
	if teacherID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "teacher id is required")
	}
	return loadThrough(ctx, s.cache, teacherStatsKeyPrefix+teacherID, s.cfg.CacheTTL, func(ctx context.Context) (*models.TeacherStats, error) {
		start := time.Now()
		stats, err := s.repo.TeacherTotals(ctx, teacherID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher totals")
		}
		s.cfg.Metrics.ObserveDBQuery("stats_teacher", time.Since(start))
		return stats, nil
	})
}

func (s *StatsService) loadAdmin(ctx context.Context) (*models.AdminStats, error) {
	start := time.Now()
	stats, err := s.repo.Totals(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load platform totals")
	}
	payments, err := s.repo.PaymentTotals(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment totals")
	}
	s.cfg.Metrics.ObserveDBQuery("stats_admin", time.Since(start))
	if payments == nil {
		payments = []models.PaymentStatusTotal{}
	}
	stats.Payments = payments
	return stats, nil
}

// Invalidate counts the write event and schedules removal of cached aggregates.
// Without a working queue the cache is cleared inline.
func (s *StatsService) Invalidate(ctx context.Context, event string) {
	if s == nil {
		return
	}
	s.cfg.Metrics.RecordEvent(event)
	if !s.cache.Enabled() {
		return
	}
	if s.queue != nil {
		err := s.queue.Enqueue(jobs.Job{Type: JobInvalidateStats, Key: JobInvalidateStats, Payload: event})
		if err == nil {
			return
		}
		s.logger.Warn("failed to enqueue stats invalidation, invalidating inline", zap.String("event", event), zap.Error(err))
	}
	_ = s.cache.Invalidate(ctx, statsCachePattern)
}

func (s *StatsService) handleInvalidate(ctx context.Context, job jobs.Job) error {
	s.logger.Debug("invalidating stats cache", zap.String("job_id", job.ID), zap.Any("event", job.Payload))
	return s.cache.Invalidate(ctx, statsCachePattern)
}

func invalidateStats(ctx context.Context, stats statsInvalidator, event string) {
	if stats == nil {
		return
	}
	stats.Invalidate(ctx, event)
}
