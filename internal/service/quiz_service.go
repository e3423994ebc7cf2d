package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/pkg/database"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	applog "github.com/noah-isme/lms-api/pkg/logger"
)

type quizRepository interface {
	Create(ctx context.Context, quiz *models.QuizDetail) error
	FindByID(ctx context.Context, id string) (*models.Quiz, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.QuizSummary, error)
	ListQuestions(ctx context.Context, quizID string) ([]models.Question, error)
	CreateAttempt(ctx context.Context, attempt *models.QuizAttempt, answers []models.StudentAnswer) error
	ListAnswers(ctx context.Context, userID, quizID string) ([]models.StudentAnswer, error)
}

type assignmentChecker interface {
	Exists(ctx context.Context, teacherID, courseID string) (bool, error)
}

type activeEnrollmentChecker interface {
	HasActive(ctx context.Context, userID, courseID string) (bool, error)
}

// QuizService handles quiz authoring, delivery and grading.
type QuizService struct {
	repo        quizRepository
	courses     courseReader
	assignments assignmentChecker
	enrollments activeEnrollmentChecker
	stats       statsInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewQuizService constructs QuizService.
func NewQuizService(repo quizRepository, courses courseReader, assignments assignmentChecker, enrollments activeEnrollmentChecker, stats statsInvalidator, validate *validator.Validate, logger *zap.Logger) *QuizService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &QuizService{
		repo:        repo,
		courses:     courses,
		assignments: assignments,
		enrollments: enrollments,
		stats:       stats,
		validator:   validate,
		logger:      logger,
	}
}

// Create authors a quiz with its questions. Only admins and teachers assigned to the course may author.
func (s *QuizService) Create(ctx context.Context, claims *models.JWTClaims, req models.CreateQuizRequest) (*models.QuizDetail, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quiz payload")
	}
	for i, q := range req.Questions {
		if strings.TrimSpace(q.Text) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %d requires text", i+1))
		}
		if q.CorrectAnswerIndex < 0 || q.CorrectAnswerIndex >= len(q.Options) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %d has correct_answer_index out of range", i+1))
		}
	}

	if _, err := s.courses.FindByID(ctx, req.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if claims.Role != models.RoleAdmin {
		assigned, err := s.assignments.Exists(ctx, claims.UserID, req.CourseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teaching assignment")
		}
		if !assigned {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "not assigned to this course")
		}
	}

	quiz := &models.QuizDetail{
		Quiz: models.Quiz{
			CourseID:   req.CourseID,
			TeacherID:  claims.UserID,
			Title:      req.Title,
			Duration:   req.Duration,
			TotalMarks: req.TotalMarks,
		},
		Questions: make([]models.Question, 0, len(req.Questions)),
	}
	for i, q := range req.Questions {
		marks := q.Marks
		if marks <= 0 {
			marks = 1
		}
		question := models.Question{
			Text:     strings.TrimSpace(q.Text),
			Marks:    marks,
			Position: i,
			Options:  make([]models.Option, 0, len(q.Options)),
		}
		for j, text := range q.Options {
			correct := j == q.CorrectAnswerIndex
			question.Options = append(question.Options, models.Option{
				Text:      text,
				IsCorrect: &correct,
				Position:  j,
			})
		}
		quiz.Questions = append(quiz.Questions, question)
	}

	if err := s.repo.Create(ctx, quiz); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create quiz")
	}
	invalidateStats(ctx, s.stats, EventQuizCreated)
	return quiz, nil
}

// ListByCourse lists quizzes of a course with their question counts.
func (s *QuizService) ListByCourse(ctx context.Context, courseID string) ([]models.QuizSummary, error) {
	quizzes, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list quizzes")
	}
	if quizzes == nil {
		quizzes = []models.QuizSummary{}
	}
	return quizzes, nil
}

// Get returns the quiz with questions and options. Answer keys are hidden from students.
func (s *QuizService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.QuizDetail, error) {
	quiz, questions, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if claims == nil || claims.Role == models.RoleStudent {
		for i := range questions {
			for j := range questions[i].Options {
				questions[i].Options[j].IsCorrect = nil
			}
		}
	}
	return &models.QuizDetail{Quiz: *quiz, Questions: questions}, nil
}

// Submit grades a student's answers and stores the attempt. A quiz can be submitted once.
func (s *QuizService) Submit(ctx context.Context, userID, quizID string, req models.SubmitQuizRequest) (*models.QuizSubmissionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	quiz, questions, err := s.load(ctx, quizID)
	if err != nil {
		return nil, err
	}

	active, err := s.enrollments.HasActive(ctx, userID, quiz.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !active {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course enrollment must be active to attempt quiz")
	}

	selected := make(map[string]string, len(req.Answers))
	for _, answer := range req.Answers {
		if _, seen := selected[answer.QuestionID]; !seen {
			selected[answer.QuestionID] = answer.SelectedOptionID
		}
	}

	result := &models.QuizSubmissionResult{TotalMarks: quiz.TotalMarks, Results: []models.QuestionResult{}}
	answers := make([]models.StudentAnswer, 0, len(questions))
	for _, question := range questions {
		result.MaxMarks += question.Marks
		optionID, answered := selected[question.ID]
		if !answered {
			continue
		}
		option := findOption(question, optionID)
		correct := option != nil && option.IsCorrect != nil && *option.IsCorrect
		marks := 0
		if correct {
			marks = question.Marks
		}
		result.MarksObtained += marks
		result.Results = append(result.Results, models.QuestionResult{
			QuestionID:    question.ID,
			IsCorrect:     correct,
			MarksObtained: marks,
		})

		answer := models.StudentAnswer{
			UserID:        userID,
			QuizID:        quiz.ID,
			QuestionID:    question.ID,
			IsCorrect:     correct,
			MarksObtained: marks,
		}
		if option != nil {
			id := option.ID
			answer.SelectedOptionID = &id
		}
		answers = append(answers, answer)
	}

	attempt := &models.QuizAttempt{
		UserID:        userID,
		QuizID:        quiz.ID,
		TotalMarks:    quiz.TotalMarks,
		MarksObtained: result.MarksObtained,
	}
	if err := s.repo.CreateAttempt(ctx, attempt, answers); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "quiz already submitted")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record quiz attempt")
	}
	result.AttemptID = attempt.ID

	applog.For(ctx, s.logger).Info("quiz submitted",
		zap.String("quiz_id", quiz.ID),
		zap.String("user_id", userID),
		zap.Int("marks_obtained", result.MarksObtained),
	)
	return result, nil
}

// Results returns the caller's graded answers for a quiz.
func (s *QuizService) Results(ctx context.Context, userID, quizID string) ([]models.StudentAnswer, error) {
	answers, err := s.repo.ListAnswers(ctx, userID, quizID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz results")
	}
	if answers == nil {
		answers = []models.StudentAnswer{}
	}
	return answers, nil
}

func (s *QuizService) load(ctx context.Context, id string) (*models.Quiz, []models.Question, error) {
	quiz, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || database.IsInvalidTextRepresentation(err) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz")
	}
	questions, err := s.repo.ListQuestions(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load questions")
	}
	if questions == nil {
		questions = []models.Question{}
	}
	return quiz, questions, nil
}

// findOption resolves optionID among the question's own options. Ids of other
// questions or unknown ids yield nil.
func findOption(question models.Question, optionID string) *models.Option {
	if optionID == "" {
		return nil
	}
	for i := range question.Options {
		if question.Options[i].ID == optionID {
			return &question.Options[i]
		}
	}
	return nil
}
