package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/service"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

const (
	courseID = "5d0f7a52-3c1e-4d7b-9a51-0f6a2b8c9d10"
	feeID    = "9b2e4c61-7a3d-4f0e-8c15-2d6b7e9f0a21"
	quizID   = "c3a81f07-6e2b-4d9c-b4a0-71e5d2f8a632"
)

// userIDFor derives a stable uuid for the test caller holding token.
func userIDFor(token string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(token)).String()
}

type roleAuthenticator struct{}

func (roleAuthenticator) Authenticate(_ context.Context, token string) (*models.JWTClaims, error) {
	role := models.UserRole(token)
	if !role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return &models.JWTClaims{UserID: userIDFor(token), Role: role}, nil
}

type nopAuditRecorder struct{ count int }

func (n *nopAuditRecorder) CreateAuditLog(context.Context, *models.AuditLog) error {
	n.count++
	return nil
}

type fakeAuthSrv struct{}

func (fakeAuthSrv) Register(_ context.Context, req models.RegisterRequest) (*models.LoginResponse, error) {
	return &models.LoginResponse{AccessToken: "token", User: models.UserInfo{Email: req.Email, Role: models.RoleStudent}}, nil
}

func (fakeAuthSrv) Login(context.Context, models.LoginRequest) (*models.LoginResponse, error) {
	return nil, appErrors.ErrInvalidCredentials
}

func (fakeAuthSrv) RefreshToken(context.Context, models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{}, nil
}

func (fakeAuthSrv) Logout(context.Context, string, string, models.LoginRequest) error { return nil }

func (fakeAuthSrv) Me(_ context.Context, userID string) (*models.User, error) {
	return &models.User{ID: userID, Name: "Sam", Email: "sam@example.com", Role: models.RoleStudent}, nil
}

type fakeUserSrv struct{}

func (fakeUserSrv) List(context.Context, models.UserFilter) ([]models.User, *models.Pagination, error) {
	return []models.User{}, &models.Pagination{Page: 1, PageSize: 20}, nil
}

func (fakeUserSrv) UpdateRole(_ context.Context, actorID, userID string, req models.UpdateRoleRequest) (*models.User, error) {
	if actorID == userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot change own role")
	}
	return &models.User{ID: userID, Role: req.Role}, nil
}

type fakeCourseSrv struct{ created []models.CreateCourseRequest }

func (f *fakeCourseSrv) List(context.Context, models.CourseFilter) ([]models.CourseDetail, error) {
	return []models.CourseDetail{{Course: models.Course{ID: courseID, Title: "Go"}}}, nil
}

func (f *fakeCourseSrv) Get(_ context.Context, id string) (*models.CourseDetail, error) {
	if id != courseID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return &models.CourseDetail{Course: models.Course{ID: id}}, nil
}

func (f *fakeCourseSrv) Create(_ context.Context, _ string, req models.CreateCourseRequest) (*models.CourseDetail, error) {
	f.created = append(f.created, req)
	return &models.CourseDetail{Course: models.Course{ID: "c2", Title: req.Title}}, nil
}

func (f *fakeCourseSrv) Update(_ context.Context, _, id string, _ models.UpdateCourseRequest) (*models.CourseDetail, error) {
	return &models.CourseDetail{Course: models.Course{ID: id}}, nil
}

func (f *fakeCourseSrv) Delete(context.Context, string, string) error { return nil }

type fakePaymentSrv struct {
	upload  *service.ReceiptUpload
	content []byte
}

func (f *fakePaymentSrv) Initiate(_ context.Context, userID string, req models.InitiatePaymentRequest) (*models.SecurityFee, error) {
	return &models.SecurityFee{ID: "fee-1", UserID: userID, CourseID: req.CourseID, Amount: 3000, PaymentStatus: models.PaymentStatusPending}, nil
}

func (f *fakePaymentSrv) UploadReceipt(_ context.Context, _, feeID string, upload *service.ReceiptUpload) (*models.SecurityFee, error) {
	f.upload = upload
	f.content, _ = io.ReadAll(upload.Content)
	url := "/uploads/" + upload.Filename
	return &models.SecurityFee{ID: feeID, ReceiptURL: &url, PaymentStatus: models.PaymentStatusPending}, nil
}

func (f *fakePaymentSrv) Decide(_ context.Context, _, feeID string, req models.DecidePaymentRequest) (*models.SecurityFee, error) {
	return &models.SecurityFee{ID: feeID, PaymentStatus: req.Status}, nil
}

func (f *fakePaymentSrv) ListMine(context.Context, string) ([]models.SecurityFeeDetail, error) {
	return []models.SecurityFeeDetail{}, nil
}

func (f *fakePaymentSrv) ListPending(context.Context) ([]models.SecurityFeeDetail, error) {
	return []models.SecurityFeeDetail{}, nil
}

type fakeExporter struct{}

func (fakeExporter) FeeLedger(_ context.Context, req service.FeeLedgerExportRequest) (*service.ExportResult, error) {
	return &service.ExportResult{Filename: "ledger." + req.Format, ContentType: "text/csv", Data: []byte("Fee ID\n")}, nil
}

type fakeEnrollmentSrv struct{}

func (fakeEnrollmentSrv) Enroll(_ context.Context, _ string, req models.EnrollRequest) (*models.Enrollment, error) {
	return nil, appErrors.WithDetails(appErrors.ErrPaymentRequired, map[string]interface{}{"requires_payment": true, "course_id": req.CourseID})
}

func (fakeEnrollmentSrv) ListMine(context.Context, string) ([]models.EnrollmentDetail, error) {
	return []models.EnrollmentDetail{}, nil
}

func (fakeEnrollmentSrv) ListForRole(context.Context, *models.JWTClaims) ([]models.EnrollmentDetail, error) {
	return []models.EnrollmentDetail{}, nil
}

type fakeQuizSrv struct{ lastRole models.UserRole }

func (f *fakeQuizSrv) Create(_ context.Context, claims *models.JWTClaims, req models.CreateQuizRequest) (*models.QuizDetail, error) {
	return &models.QuizDetail{Quiz: models.Quiz{ID: "q1", TeacherID: claims.UserID, Title: req.Title}}, nil
}

func (f *fakeQuizSrv) ListByCourse(context.Context, string) ([]models.QuizSummary, error) {
	return []models.QuizSummary{}, nil
}

func (f *fakeQuizSrv) Get(_ context.Context, claims *models.JWTClaims, id string) (*models.QuizDetail, error) {
	f.lastRole = claims.Role
	return &models.QuizDetail{Quiz: models.Quiz{ID: id}}, nil
}

func (f *fakeQuizSrv) Submit(_ context.Context, _, quizID string, _ models.SubmitQuizRequest) (*models.QuizSubmissionResult, error) {
	return &models.QuizSubmissionResult{TotalMarks: 5, MarksObtained: 5, Results: []models.QuestionResult{{QuestionID: "qq", IsCorrect: true, MarksObtained: 5}}}, nil
}

func (f *fakeQuizSrv) Results(context.Context, string, string) ([]models.StudentAnswer, error) {
	return []models.StudentAnswer{}, nil
}

type testRouter struct {
	engine   *gin.Engine
	courses  *fakeCourseSrv
	payments *fakePaymentSrv
	quizzes  *fakeQuizSrv
	audit    *nopAuditRecorder
}

func newTestRouter() *testRouter {
	gin.SetMode(gin.TestMode)
	tr := &testRouter{
		engine:   gin.New(),
		courses:  &fakeCourseSrv{},
		payments: &fakePaymentSrv{},
		quizzes:  &fakeQuizSrv{},
		audit:    &nopAuditRecorder{},
	}
	Routes{
		Auth:          NewAuthHandler(fakeAuthSrv{}),
		Users:         NewUserHandler(fakeUserSrv{}),
		Courses:       NewCourseHandler(tr.courses),
		Payments:      NewPaymentHandler(tr.payments, fakeExporter{}),
		Enrollments:   NewEnrollmentHandler(fakeEnrollmentSrv{}),
		Quizzes:       NewQuizHandler(tr.quizzes),
		Stats:         NewStatsHandler(&fakeStatsSrv{admin: &models.AdminStats{}, teacher: &models.TeacherStats{}}),
		Metrics:       NewMetricsHandler(service.NewMetricsService(), nil),
		Authenticator: roleAuthenticator{},
		AuditRecorder: tr.audit,
	}.Register(tr.engine.Group("/api/v1"))
	return tr
}

func (tr *testRouter) do(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/v1"+path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	tr.engine.ServeHTTP(rec, req)
	return rec
}

func (tr *testRouter) doJSON(method, path, token, body string) *httptest.ResponseRecorder {
	return tr.do(method, path, token, strings.NewReader(body), "application/json")
}

func TestRouterAccessControl(t *testing.T) {
	tr := newTestRouter()
	coursePayload := `{"title":"Go","category":"dev","description":"d","daily_minutes":60}`

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		status int
	}{
		{"public course list", http.MethodGet, "/courses", "", "", http.StatusOK},
		{"public course detail", http.MethodGet, "/courses/" + courseID, "", "", http.StatusOK},
		{"missing course", http.MethodGet, "/courses/" + uuid.NewString(), "", "", http.StatusNotFound},
		{"create course anonymous", http.MethodPost, "/courses", "", coursePayload, http.StatusUnauthorized},
		{"create course as student", http.MethodPost, "/courses", "student", coursePayload, http.StatusForbidden},
		{"create course as admin", http.MethodPost, "/courses", "admin", coursePayload, http.StatusCreated},
		{"pending fees as student", http.MethodGet, "/payments/pending", "student", "", http.StatusForbidden},
		{"pending fees as admin", http.MethodGet, "/payments/pending", "admin", "", http.StatusOK},
		{"initiate fee as teacher", http.MethodPost, "/payments/create", "teacher", `{"course_id":"c1"}`, http.StatusForbidden},
		{"initiate fee as student", http.MethodPost, "/payments/create", "student", `{"course_id":"c1"}`, http.StatusCreated},
		{"decide fee", http.MethodPut, "/payments/" + feeID, "admin", `{"status":"approved"}`, http.StatusOK},
		{"enrollments as teacher", http.MethodGet, "/enrollments", "teacher", "", http.StatusOK},
		{"enrollments as student", http.MethodGet, "/enrollments", "student", "", http.StatusForbidden},
		{"quiz create as student", http.MethodPost, "/quizzes", "student", `{"title":"x"}`, http.StatusForbidden},
		{"quiz submit as teacher", http.MethodPost, "/quizzes/submit/" + quizID, "teacher", `{"answers":[]}`, http.StatusForbidden},
		{"quiz submit as student", http.MethodPost, "/quizzes/submit/" + quizID, "student", `{"answers":[]}`, http.StatusOK},
		{"quizzes of course", http.MethodGet, "/quizzes/course/" + courseID, "student", "", http.StatusOK},
		{"quiz results", http.MethodGet, "/quizzes/results/" + quizID, "student", "", http.StatusOK},
		{"admin stats as teacher", http.MethodGet, "/admin/stats", "teacher", "", http.StatusForbidden},
		{"admin stats", http.MethodGet, "/admin/stats", "admin", "", http.StatusOK},
		{"teacher stats as admin", http.MethodGet, "/admin/teacher-stats", "admin", "", http.StatusForbidden},
		{"teacher stats", http.MethodGet, "/admin/teacher-stats", "teacher", "", http.StatusOK},
		{"admin users", http.MethodGet, "/admin/users", "admin", "", http.StatusOK},
		{"admin users bad page", http.MethodGet, "/admin/users?page=abc", "admin", "", http.StatusBadRequest},
		{"change own role", http.MethodPut, "/admin/users/" + userIDFor("admin") + "/role", "admin", `{"role":"teacher"}`, http.StatusForbidden},
		{"admin metrics", http.MethodGet, "/admin/metrics", "admin", "", http.StatusOK},
		{"me", http.MethodGet, "/auth/me", "student", "", http.StatusOK},
		{"bad token", http.MethodGet, "/auth/me", "nobody", "", http.StatusUnauthorized},
		{"register", http.MethodPost, "/auth/register", "", `{"name":"Sam","email":"sam@example.com","password":"secret1"}`, http.StatusCreated},
		{"login failure", http.MethodPost, "/auth/login", "", `{"email":"sam@example.com","password":"nope"}`, http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var rec *httptest.ResponseRecorder
			if tc.body != "" {
				rec = tr.doJSON(tc.method, tc.path, tc.token, tc.body)
			} else {
				rec = tr.do(tc.method, tc.path, tc.token, nil, "")
			}
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}

func TestRouterEnrollPaymentRequired(t *testing.T) {
	tr := newTestRouter()

	rec := tr.doJSON(http.MethodPost, "/enrollments", "student", `{"course_id":"c1"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "PAYMENT_REQUIRED", envelope.Error["code"])
	details := envelope.Error["details"].(map[string]interface{})
	assert.Equal(t, true, details["requires_payment"])
	assert.Equal(t, "c1", details["course_id"])
	assert.Equal(t, 0, tr.audit.count)
}

func TestRouterUploadReceipt(t *testing.T) {
	tr := newTestRouter()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("receipt", "proof.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("png-bytes"))
	require.NoError(t, writer.Close())

	rec := tr.do(http.MethodPost, "/payments/upload/" + feeID, "student", body, writer.FormDataContentType())

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, tr.payments.upload)
	assert.Equal(t, "proof.png", tr.payments.upload.Filename)
	assert.Equal(t, int64(9), tr.payments.upload.Size)
	assert.Equal(t, []byte("png-bytes"), tr.payments.content)
	assert.Equal(t, 1, tr.audit.count)
}

func TestRouterUploadReceiptRequiresFile(t *testing.T) {
	tr := newTestRouter()

	rec := tr.doJSON(http.MethodPost, "/payments/upload/" + feeID, "student", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, tr.payments.upload)
}

func TestRouterExportLedger(t *testing.T) {
	tr := newTestRouter()

	rec := tr.do(http.MethodGet, "/admin/payments/export?format=csv", "admin", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="ledger.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Fee ID\n", rec.Body.String())
}

func TestRouterQuizGetPassesCaller(t *testing.T) {
	tr := newTestRouter()

	rec := tr.do(http.MethodGet, "/quizzes/" + quizID, "student", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.RoleStudent, tr.quizzes.lastRole)
}

func TestRouterMalformedPathIDs(t *testing.T) {
	tr := newTestRouter()

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
	}{
		{"course detail", http.MethodGet, "/courses/abc", "", ""},
		{"course update", http.MethodPut, "/courses/abc", "admin", `{"title":"Go"}`},
		{"course delete", http.MethodDelete, "/courses/abc", "admin", ""},
		{"decide fee", http.MethodPut, "/payments/fee-1", "admin", `{"status":"approved"}`},
		{"upload receipt", http.MethodPost, "/payments/upload/fee-9", "student", `{}`},
		{"quiz detail", http.MethodGet, "/quizzes/abc", "student", ""},
		{"quiz submit", http.MethodPost, "/quizzes/submit/abc", "student", `{"answers":[]}`},
		{"quiz results", http.MethodGet, "/quizzes/results/abc", "student", ""},
		{"quizzes of course", http.MethodGet, "/quizzes/course/abc", "student", ""},
		{"change role", http.MethodPut, "/admin/users/abc/role", "admin", `{"role":"teacher"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var rec *httptest.ResponseRecorder
			if tc.body != "" {
				rec = tr.doJSON(tc.method, tc.path, tc.token, tc.body)
			} else {
				rec = tr.do(tc.method, tc.path, tc.token, nil, "")
			}
			assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
			var envelope responseEnvelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
			assert.Equal(t, "NOT_FOUND", envelope.Error["code"])
		})
	}
	assert.Nil(t, tr.payments.upload)
	assert.Equal(t, 0, tr.audit.count)
}
