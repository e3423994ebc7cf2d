package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/lms-api/internal/middleware"
	"github.com/noah-isme/lms-api/internal/models"
)

type responseEnvelope struct {
	Data  map[string]interface{} `json:"data"`
	Meta  map[string]interface{} `json:"meta"`
	Error map[string]interface{} `json:"error"`
}

type fakeStatsSrv struct {
	admin       *models.AdminStats
	adminHit    bool
	teacher     *models.TeacherStats
	err         error
	lastTeacher string
}

func (f *fakeStatsSrv) Admin(context.Context) (*models.AdminStats, bool, error) {
	return f.admin, f.adminHit, f.err
}

func (f *fakeStatsSrv) Teacher(_ context.Context, teacherID string) (*models.TeacherStats, bool, error) {
	f.lastTeacher = teacherID
	return f.teacher, false, f.err
}

func TestStatsHandlerAdminSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewStatsHandler(&fakeStatsSrv{
		admin:    &models.AdminStats{TotalUsers: 3, Payments: []models.PaymentStatusTotal{{Status: models.PaymentStatusApproved, Count: 1, TotalAmount: 3000}}},
		adminHit: true,
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/admin/stats", nil)

	handler.Admin(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Equal(t, float64(3), envelope.Data["totalUsers"])
	payments := envelope.Data["payments"].([]interface{})
	assert.Equal(t, float64(3000), payments[0].(map[string]interface{})["totalAmount"])
}

func TestStatsHandlerTeacherUsesCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeStatsSrv{teacher: &models.TeacherStats{AssignedCourses: 2, TotalStudentsEnrolled: 8}}
	handler := NewStatsHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/admin/teacher-stats", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})

	handler.Teacher(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "teacher-1", srv.lastTeacher)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, float64(8), envelope.Data["totalStudentsEnrolled"])
	assert.Equal(t, false, envelope.Meta["cache_hit"])
}

func TestStatsHandlerTeacherRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewStatsHandler(&fakeStatsSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/admin/teacher-stats", nil)

	handler.Teacher(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStatsHandlerPropagatesErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewStatsHandler(&fakeStatsSrv{err: errors.New("boom")})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/admin/stats", nil)

	handler.Admin(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var envelope responseEnvelope
	_ = json.Unmarshal(rec.Body.Bytes(), &envelope)
	assert.Equal(t, "INTERNAL_ERROR", envelope.Error["code"])
}
