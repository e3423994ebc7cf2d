package service

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/pkg/jobs"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type memoryCacheRepo struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{items: make(map[string][]byte)}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.items[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.items {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.items, key)
		}
	}
	return nil
}

type fakeQueue struct {
	handlers map[string]jobs.Handler
	enqueued []jobs.Job
	err      error
}

func (q *fakeQueue) Register(jobType string, handler jobs.Handler) {
	if q.handlers == nil {
		q.handlers = make(map[string]jobs.Handler)
	}
	q.handlers[jobType] = handler
}

func (q *fakeQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, job)
	return nil
}

func (q *fakeQueue) drain(t *testing.T) {
	for _, job := range q.enqueued {
		require.NoError(t, q.handlers[job.Type](context.Background(), job))
	}
	q.enqueued = nil
}

type fakeStatsRepo struct {
	totals      models.AdminStats
	payments    []models.PaymentStatusTotal
	teacher     map[string]models.TeacherStats
	totalsCalls int
	err         error
}

func (f *fakeStatsRepo) Totals(ctx context.Context) (*models.AdminStats, error) {
	f.totalsCalls++
	if f.err != nil {
		return nil, f.err
	}
	copy := f.totals
	return &copy, nil
}

func (f *fakeStatsRepo) PaymentTotals(ctx context.Context) ([]models.PaymentStatusTotal, error) {
	return f.payments, nil
}

func (f *fakeStatsRepo) TeacherTotals(ctx context.Context, teacherID string) (*models.TeacherStats, error) {
	stats := f.teacher[teacherID]
	return &stats, nil
}

func TestStatsServiceAdminCachesAndInvalidates(t *testing.T) {
	repo := &fakeStatsRepo{
		totals:   models.AdminStats{TotalUsers: 3, TotalCourses: 1},
		payments: []models.PaymentStatusTotal{{Status: models.PaymentStatusPending, Count: 1, TotalAmount: 3000}},
	}
	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, zap.NewNop(), true)
	queue := &fakeQueue{}
	svc := NewStatsService(repo, cache, queue, zap.NewNop(), StatsServiceConfig{})

	stats, hit, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 3, stats.TotalUsers)
	require.Len(t, stats.Payments, 1)
	assert.Equal(t, int64(3000), stats.Payments[0].TotalAmount)

	_, hit, err = svc.Admin(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, repo.totalsCalls)

	svc.Invalidate(context.Background(), EventFeeDecided)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, JobInvalidateStats, queue.enqueued[0].Type)
	queue.drain(t)

	_, hit, err = svc.Admin(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, repo.totalsCalls)
}

func TestStatsServiceInvalidateInlineWhenQueueFails(t *testing.T) {
	repo := &fakeStatsRepo{}
	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, zap.NewNop(), true)
	svc := NewStatsService(repo, cache, &fakeQueue{err: errors.New("stopped")}, zap.NewNop(), StatsServiceConfig{})

	_, _, err := svc.Admin(context.Background())
	require.NoError(t, err)
	svc.Invalidate(context.Background(), EventCourseCreated)

	_, hit, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestStatsServiceWithoutCache(t *testing.T) {
	repo := &fakeStatsRepo{}
	svc := NewStatsService(repo, nil, nil, nil, StatsServiceConfig{})

	stats, hit, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NotNil(t, stats.Payments)
	svc.Invalidate(context.Background(), "noop")
}

func TestStatsServiceTeacher(t *testing.T) {
	repo := &fakeStatsRepo{teacher: map[string]models.TeacherStats{
		"t1": {AssignedCourses: 2, TotalStudentsEnrolled: 8, QuizzesCreated: 1},
	}}
	svc := NewStatsService(repo, nil, nil, nil, StatsServiceConfig{})

	stats, _, err := svc.Teacher(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.AssignedCourses)
	assert.Equal(t, 8, stats.TotalStudentsEnrolled)

	_, _, err = svc.Teacher(context.Background(), "")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestStatsServiceAdminError(t *testing.T) {
	svc := NewStatsService(&fakeStatsRepo{err: errors.New("db down")}, nil, nil, nil, StatsServiceConfig{})

	_, _, err := svc.Admin(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}
