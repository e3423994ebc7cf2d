package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/models"
)

func boolPtr(v bool) *bool { return &v }

func TestQuizRepositoryCreateWritesEverythingInOneTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewQuizRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO quizzes")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO questions")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "2+2?", 5, 0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO options")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "3", false, 0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO options")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "4", true, 1).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	quiz := &models.QuizDetail{
		Quiz: models.Quiz{CourseID: "c1", TeacherID: "t1", Title: "Math", Duration: 10, TotalMarks: 5},
		Questions: []models.Question{{
			Text:  "2+2?",
			Marks: 5,
			Options: []models.Option{
				{Text: "3", IsCorrect: boolPtr(false)},
				{Text: "4", IsCorrect: boolPtr(true)},
			},
		}},
	}
	require.NoError(t, repo.Create(context.Background(), quiz))
	assert.NotEmpty(t, quiz.ID)
	assert.Equal(t, quiz.ID, quiz.Questions[0].QuizID)
	assert.Equal(t, quiz.Questions[0].ID, quiz.Questions[0].Options[1].QuestionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuizRepositoryCreateRollsBackOnPartialFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewQuizRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO quizzes")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO questions")).WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	quiz := &models.QuizDetail{
		Quiz:      models.Quiz{CourseID: "c1", TeacherID: "t1", Title: "Math", Duration: 10, TotalMarks: 5},
		Questions: []models.Question{{Text: "q", Marks: 1}},
	}
	require.Error(t, repo.Create(context.Background(), quiz))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuizRepositoryListQuestionsAttachesOptions(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewQuizRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, quiz_id, text, marks, position FROM questions WHERE quiz_id = $1")).
		WithArgs("qz1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "quiz_id", "text", "marks", "position"}).
			AddRow("q1", "qz1", "first", 1, 0).
			AddRow("q2", "qz1", "second", 2, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM options o")).
		WithArgs("qz1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "question_id", "text", "is_correct", "position"}).
			AddRow("o1", "q1", "a", true, 0).
			AddRow("o2", "q1", "b", false, 1).
			AddRow("o3", "q2", "c", true, 0))

	questions, err := repo.ListQuestions(context.Background(), "qz1")
	require.NoError(t, err)
	require.Len(t, questions, 2)
	require.Len(t, questions[0].Options, 2)
	require.Len(t, questions[1].Options, 1)
	require.NotNil(t, questions[0].Options[0].IsCorrect)
	assert.True(t, *questions[0].Options[0].IsCorrect)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuizRepositoryListByCourse(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewQuizRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("COUNT(qs.id) AS question_count")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "teacher_id", "title", "duration", "total_marks", "created_at", "question_count"}).
			AddRow("qz1", "c1", "t1", "Math", 10, 5, now, 3))

	quizzes, err := repo.ListByCourse(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, quizzes, 1)
	assert.Equal(t, 3, quizzes[0].QuestionCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuizRepositoryCreateAttempt(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewQuizRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO quiz_attempts")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student_answers")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	option := "o1"
	attempt := &models.QuizAttempt{UserID: "s1", QuizID: "qz1", TotalMarks: 5, MarksObtained: 5}
	answers := []models.StudentAnswer{{UserID: "s1", QuizID: "qz1", QuestionID: "q1", SelectedOptionID: &option, IsCorrect: true, MarksObtained: 5}}
	require.NoError(t, repo.CreateAttempt(context.Background(), attempt, answers))
	assert.Equal(t, attempt.ID, answers[0].AttemptID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuizRepositoryCreateAttemptDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewQuizRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO quiz_attempts")).WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err := repo.CreateAttempt(context.Background(), &models.QuizAttempt{UserID: "s1", QuizID: "qz1"}, nil)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
