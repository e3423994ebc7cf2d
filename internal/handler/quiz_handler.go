package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/pkg/response"
)

type quizService interface {
	Create(ctx context.Context, claims *models.JWTClaims, req models.CreateQuizRequest) (*models.QuizDetail, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.QuizSummary, error)
	Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.QuizDetail, error)
	Submit(ctx context.Context, userID, quizID string, req models.SubmitQuizRequest) (*models.QuizSubmissionResult, error)
	Results(ctx context.Context, userID, quizID string) ([]models.StudentAnswer, error)
}

// QuizHandler exposes quiz authoring and attempts.
type QuizHandler struct {
	service quizService
}

// NewQuizHandler constructs QuizHandler.
func NewQuizHandler(svc quizService) *QuizHandler {
	return &QuizHandler{service: svc}
}

// Create godoc
// @Summary Create quiz
// @Tags Quizzes
// @Accept json
// @Produce json
// @Param payload body models.CreateQuizRequest true "Quiz with questions"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /quizzes [post]
func (h *QuizHandler) Create(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req models.CreateQuizRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	quiz, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, quiz)
}

// ListByCourse godoc
// @Summary List quizzes of a course
// @Tags Quizzes
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /quizzes/course/{courseId} [get]
func (h *QuizHandler) ListByCourse(c *gin.Context) {
	courseId, ok := pathID(c, "courseId", "course")
	if !ok {
		return
	}
	quizzes, err := h.service.ListByCourse(c.Request.Context(), courseId)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quizzes, nil)
}

// Get godoc
// @Summary Get quiz
// @Description Students receive options without the answer key
// @Tags Quizzes
// @Produce json
// @Param id path string true "Quiz ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /quizzes/{id} [get]
func (h *QuizHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id", "quiz")
	if !ok {
		return
	}
	quiz, err := h.service.Get(c.Request.Context(), claimsFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quiz, nil)
}

// Submit godoc
// @Summary Submit quiz answers
// @Tags Quizzes
// @Accept json
// @Produce json
// @Param id path string true "Quiz ID"
// @Param payload body models.SubmitQuizRequest true "Answers"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /quizzes/submit/{id} [post]
func (h *QuizHandler) Submit(c *gin.Context) {
	id, ok := pathID(c, "id", "quiz")
	if !ok {
		return
	}
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req models.SubmitQuizRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	result, err := h.service.Submit(c.Request.Context(), claims.UserID, id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Results godoc
// @Summary Get my graded answers
// @Tags Quizzes
// @Produce json
// @Param id path string true "Quiz ID"
// @Success 200 {object} response.Envelope
// @Router /quizzes/results/{id} [get]
func (h *QuizHandler) Results(c *gin.Context) {
	id, ok := pathID(c, "id", "quiz")
	if !ok {
		return
	}
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	answers, err := h.service.Results(c.Request.Context(), claims.UserID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, answers, nil)
}
