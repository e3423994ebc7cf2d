package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-api/internal/models"
)

// QuizRepository persists quizzes, their questions and options, and graded attempts.
type QuizRepository struct {
	db *sqlx.DB
}

// NewQuizRepository constructs the repository.
func NewQuizRepository(db *sqlx.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

// Create writes the quiz with all questions and options in one transaction.
func (r *QuizRepository) Create(ctx context.Context, quiz *models.QuizDetail) (err error) {
	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin quiz transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const quizQuery = `INSERT INTO quizzes (id, course_id, teacher_id, title, duration, total_marks, created_at)
VALUES (:id, :course_id, :teacher_id, :title, :duration, :total_marks, :created_at)`
	if _, err = tx.NamedExecContext(ctx, quizQuery, quiz.Quiz); err != nil {
		return fmt.Errorf("insert quiz: %w", err)
	}

	const questionQuery = `INSERT INTO questions (id, quiz_id, text, marks, position) VALUES ($1, $2, $3, $4, $5)`
	const optionQuery = `INSERT INTO options (id, question_id, text, is_correct, position) VALUES ($1, $2, $3, $4, $5)`
	for i := range quiz.Questions {
		question := &quiz.Questions[i]
		if question.ID == "" {
			question.ID = uuid.NewString()
		}
		question.QuizID = quiz.ID
		question.Position = i
		if _, err = tx.ExecContext(ctx, questionQuery, question.ID, question.QuizID, question.Text, question.Marks, question.Position); err != nil {
			return fmt.Errorf("insert question: %w", err)
		}
		for j := range question.Options {
			option := &question.Options[j]
			if option.ID == "" {
				option.ID = uuid.NewString()
			}
			option.QuestionID = question.ID
			option.Position = j
			correct := option.IsCorrect != nil && *option.IsCorrect
			if _, err = tx.ExecContext(ctx, optionQuery, option.ID, option.QuestionID, option.Text, correct, option.Position); err != nil {
				return fmt.Errorf("insert option: %w", err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit quiz: %w", err)
	}
	return nil
}

// FindByID returns the quiz header.
func (r *QuizRepository) FindByID(ctx context.Context, id string) (*models.Quiz, error) {
	const query = `SELECT id, course_id, teacher_id, title, duration, total_marks, created_at FROM quizzes WHERE id = $1 LIMIT 1`
	var quiz models.Quiz
	if err := r.db.GetContext(ctx, &quiz, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find quiz: %w", err)
	}
	return &quiz, nil
}

// ListByCourse returns the quizzes of a course with their question counts.
func (r *QuizRepository) ListByCourse(ctx context.Context, courseID string) ([]models.QuizSummary, error) {
	const query = `
SELECT q.id, q.course_id, q.teacher_id, q.title, q.duration, q.total_marks, q.created_at,
       COUNT(qs.id) AS question_count
FROM quizzes q
LEFT JOIN questions qs ON qs.quiz_id = q.id
WHERE q.course_id = $1
GROUP BY q.id
ORDER BY q.created_at DESC`
	var quizzes []models.QuizSummary
	if err := r.db.SelectContext(ctx, &quizzes, query, courseID); err != nil {
		return nil, fmt.Errorf("list course quizzes: %w", err)
	}
	return quizzes, nil
}

// ListQuestions returns the questions of a quiz in authoring order with their options attached.
func (r *QuizRepository) ListQuestions(ctx context.Context, quizID string) ([]models.Question, error) {
	const questionQuery = `SELECT id, quiz_id, text, marks, position FROM questions WHERE quiz_id = $1 ORDER BY position ASC`
	var questions []models.Question
	if err := r.db.SelectContext(ctx, &questions, questionQuery, quizID); err != nil {
		return nil, fmt.Errorf("list quiz questions: %w", err)
	}
	if len(questions) == 0 {
		return questions, nil
	}

	const optionQuery = `
SELECT o.id, o.question_id, o.text, o.is_correct, o.position
FROM options o
JOIN questions q ON q.id = o.question_id
WHERE q.quiz_id = $1
ORDER BY q.position ASC, o.position ASC`
	var options []models.Option
	if err := r.db.SelectContext(ctx, &options, optionQuery, quizID); err != nil {
		return nil, fmt.Errorf("list quiz options: %w", err)
	}

	index := make(map[string]int, len(questions))
	for i := range questions {
		questions[i].Options = []models.Option{}
		index[questions[i].ID] = i
	}
	for _, option := range options {
		if i, ok := index[option.QuestionID]; ok {
			questions[i].Options = append(questions[i].Options, option)
		}
	}
	return questions, nil
}

// CreateAttempt stores a graded attempt and its answers in one transaction.
func (r *QuizRepository) CreateAttempt(ctx context.Context, attempt *models.QuizAttempt, answers []models.StudentAnswer) (err error) {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.SubmittedAt.IsZero() {
		attempt.SubmittedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attempt transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const attemptQuery = `INSERT INTO quiz_attempts (id, user_id, quiz_id, total_marks, marks_obtained, submitted_at)
VALUES (:id, :user_id, :quiz_id, :total_marks, :marks_obtained, :submitted_at)`
	if _, err = tx.NamedExecContext(ctx, attemptQuery, attempt); err != nil {
		return fmt.Errorf("insert quiz attempt: %w", err)
	}

	const answerQuery = `INSERT INTO student_answers (id, attempt_id, user_id, quiz_id, question_id, selected_option_id, is_correct, marks_obtained, created_at)
VALUES (:id, :attempt_id, :user_id, :quiz_id, :question_id, :selected_option_id, :is_correct, :marks_obtained, :created_at)`
	for i := range answers {
		answer := &answers[i]
		if answer.ID == "" {
			answer.ID = uuid.NewString()
		}
		answer.AttemptID = attempt.ID
		answer.CreatedAt = attempt.SubmittedAt
		if _, err = tx.NamedExecContext(ctx, answerQuery, answer); err != nil {
			return fmt.Errorf("insert student answer: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit quiz attempt: %w", err)
	}
	return nil
}

// ListAnswers returns a student's graded answers for a quiz.
func (r *QuizRepository) ListAnswers(ctx context.Context, userID, quizID string) ([]models.StudentAnswer, error) {
	const query = `
SELECT id, attempt_id, user_id, quiz_id, question_id, selected_option_id, is_correct, marks_obtained, created_at
FROM student_answers
WHERE user_id = $1 AND quiz_id = $2
ORDER BY created_at ASC`
	var answers []models.StudentAnswer
	if err := r.db.SelectContext(ctx, &answers, query, userID, quizID); err != nil {
		return nil, fmt.Errorf("list student answers: %w", err)
	}
	return answers, nil
}
