package models

import "time"

// Quiz is an assessment authored for a course. Quizzes are immutable once created.
type Quiz struct {
	ID         string    `db:"id" json:"id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	TeacherID  string    `db:"teacher_id" json:"teacher_id"`
	Title      string    `db:"title" json:"title"`
	Duration   int       `db:"duration" json:"duration"`
	TotalMarks int       `db:"total_marks" json:"total_marks"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// QuizSummary is a quiz with its question count for course listings.
type QuizSummary struct {
	Quiz
	QuestionCount int `db:"question_count" json:"question_count"`
}

// Question belongs to exactly one quiz.
type Question struct {
	ID       string   `db:"id" json:"id"`
	QuizID   string   `db:"quiz_id" json:"quiz_id"`
	Text     string   `db:"text" json:"text"`
	Marks    int      `db:"marks" json:"marks"`
	Position int      `db:"position" json:"-"`
	Options  []Option `db:"-" json:"options"`
}

// Option is an answer choice. IsCorrect is nil when hidden from the caller.
type Option struct {
	ID         string `db:"id" json:"id"`
	QuestionID string `db:"question_id" json:"question_id"`
	Text       string `db:"text" json:"text"`
	IsCorrect  *bool  `db:"is_correct" json:"is_correct,omitempty"`
	Position   int    `db:"position" json:"-"`
}

// QuizDetail is a quiz with its questions and options.
type QuizDetail struct {
	Quiz
	Questions []Question `json:"questions"`
}

// QuizAttempt records one graded submission per student and quiz.
type QuizAttempt struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"user_id"`
	QuizID        string    `db:"quiz_id" json:"quiz_id"`
	TotalMarks    int       `db:"total_marks" json:"total_marks"`
	MarksObtained int       `db:"marks_obtained" json:"marks_obtained"`
	SubmittedAt   time.Time `db:"submitted_at" json:"submitted_at"`
}

// StudentAnswer is the graded response to a single question.
type StudentAnswer struct {
	ID               string    `db:"id" json:"id"`
	AttemptID        string    `db:"attempt_id" json:"attempt_id"`
	UserID           string    `db:"user_id" json:"user_id"`
	QuizID           string    `db:"quiz_id" json:"quiz_id"`
	QuestionID       string    `db:"question_id" json:"question_id"`
	SelectedOptionID *string   `db:"selected_option_id" json:"selected_option_id"`
	IsCorrect        bool      `db:"is_correct" json:"is_correct"`
	MarksObtained    int       `db:"marks_obtained" json:"marks_obtained"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// CreateQuestionRequest describes one question of a new quiz.
type CreateQuestionRequest struct {
	Text               string   `json:"text" validate:"required"`
	Options            []string `json:"options" validate:"min=2,dive,required"`
	CorrectAnswerIndex int      `json:"correct_answer_index" validate:"gte=0"`
	Marks              int      `json:"marks" validate:"gte=0"`
}

// CreateQuizRequest is the authoring payload.
type CreateQuizRequest struct {
	CourseID   string                  `json:"course_id" validate:"required,uuid"`
	Title      string                  `json:"title" validate:"required,max=200"`
	Duration   int                     `json:"duration" validate:"required,gt=0"`
	TotalMarks int                     `json:"total_marks" validate:"required,gt=0"`
	Questions  []CreateQuestionRequest `json:"questions" validate:"required,min=1,dive"`
}

// SubmittedAnswer is one entry of a quiz submission.
type SubmittedAnswer struct {
	QuestionID       string `json:"question_id" validate:"required"`
	SelectedOptionID string `json:"selected_option_id"`
}

// SubmitQuizRequest carries a student's answers.
type SubmitQuizRequest struct {
	Answers []SubmittedAnswer `json:"answers" validate:"dive"`
}

// QuestionResult is the grading outcome for one question.
type QuestionResult struct {
	QuestionID    string `json:"question_id"`
	IsCorrect     bool   `json:"isCorrect"`
	MarksObtained int    `json:"marks_obtained"`
}

// QuizSubmissionResult is returned after grading a submission.
type QuizSubmissionResult struct {
	AttemptID     string           `json:"attempt_id"`
	TotalMarks    int              `json:"total_marks"`
	MaxMarks      int              `json:"max_marks"`
	MarksObtained int              `json:"marks_obtained"`
	Results       []QuestionResult `json:"results"`
}
