package service

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-api/internal/models"
)

// memStore is an in-memory stand-in for the Postgres schema shared by the service fakes below.
type memStore struct {
	mu          sync.Mutex
	users       map[string]models.User
	courses     map[string]models.Course
	assignments map[string]models.TeachingAssignment
	fees        map[string]models.SecurityFee
	enrollments map[string]models.Enrollment
	quizzes     map[string]models.QuizDetail
	attempts    map[string]models.QuizAttempt
	answers     []models.StudentAnswer
	audits      []models.AuditLog
	files       map[string][]byte

	attachErr error
}

func newMemStore() *memStore {
	return &memStore{
		users:       make(map[string]models.User),
		courses:     make(map[string]models.Course),
		assignments: make(map[string]models.TeachingAssignment),
		fees:        make(map[string]models.SecurityFee),
		enrollments: make(map[string]models.Enrollment),
		quizzes:     make(map[string]models.QuizDetail),
		attempts:    make(map[string]models.QuizAttempt),
		files:       make(map[string][]byte),
	}
}

func (m *memStore) addUser(name string, role models.UserRole) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := models.User{ID: uuid.NewString(), Name: name, Email: name + "@example.com", Role: role}
	m.users[user.ID] = user
	return user
}

func (m *memStore) addCourse(title string) models.Course {
	m.mu.Lock()
	defer m.mu.Unlock()
	course := models.Course{ID: uuid.NewString(), Title: title, Category: "general", Description: title, DailyMinutes: 60}
	m.courses[course.ID] = course
	return course
}

func (m *memStore) assign(teacherID, courseID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[courseID] = models.TeachingAssignment{ID: uuid.NewString(), TeacherID: teacherID, CourseID: courseID, LectureMinutes: 60, LecturesPerDay: 1}
}

func uniqueViolation() error {
	return &pq.Error{Code: "23505"}
}

// checkUUID mirrors Postgres rejecting a malformed value for a uuid column.
func checkUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return &pq.Error{Code: "22P02", Message: "invalid input syntax for type uuid"}
	}
	return nil
}

type memUsers struct{ *memStore }

func (r memUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &user, nil
}

type memAudit struct{ *memStore }

func (r memAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audits = append(r.audits, *log)
	return nil
}

type memCourses struct{ *memStore }

func (r memCourses) detail(course models.Course) models.CourseDetail {
	detail := models.CourseDetail{Course: course}
	if a, ok := r.assignments[course.ID]; ok {
		teacher := r.users[a.TeacherID]
		detail.Teacher = &models.CourseTeacher{ID: teacher.ID, Name: teacher.Name, Email: teacher.Email}
		detail.LectureDetails = &models.LectureDetails{LectureMinutes: a.LectureMinutes, LecturesPerDay: a.LecturesPerDay}
	}
	return detail
}

func (r memCourses) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.CourseDetail
	for _, course := range r.courses {
		if filter.Category != "" && course.Category != filter.Category {
			continue
		}
		result = append(result, r.detail(course))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Title < result[j].Title })
	return result, nil
}

func (r memCourses) FindDetail(ctx context.Context, id string) (*models.CourseDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	course, ok := r.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	detail := r.detail(course)
	return &detail, nil
}

func (r memCourses) FindByID(ctx context.Context, id string) (*models.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	course, ok := r.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &course, nil
}

func (r memCourses) Create(ctx context.Context, course *models.Course, assignment *models.TeachingAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	course.ID = uuid.NewString()
	r.courses[course.ID] = *course
	if assignment != nil {
		assignment.ID = uuid.NewString()
		assignment.CourseID = course.ID
		r.assignments[course.ID] = *assignment
	}
	return nil
}

func (r memCourses) Update(ctx context.Context, course *models.Course, assignment *models.TeachingAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.courses[course.ID]; !ok {
		return sql.ErrNoRows
	}
	r.courses[course.ID] = *course
	if assignment != nil {
		assignment.CourseID = course.ID
		r.assignments[course.ID] = *assignment
	}
	return nil
}

func (r memCourses) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.courses[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.courses, id)
	delete(r.assignments, id)
	return nil
}

type memAssignments struct{ *memStore }

func (r memAssignments) Exists(ctx context.Context, teacherID, courseID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[courseID]
	return ok && a.TeacherID == teacherID, nil
}

type memFees struct{ *memStore }

func (r memFees) FindByID(ctx context.Context, id string) (*models.SecurityFee, error) {
	if err := checkUUID(id); err != nil {
		return nil, fmt.Errorf("find security fee: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fee, ok := r.fees[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &fee, nil
}

func (r memFees) FindByIDForUser(ctx context.Context, id, userID string) (*models.SecurityFee, error) {
	fee, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if fee.UserID != userID {
		return nil, sql.ErrNoRows
	}
	return fee, nil
}

func (r memFees) FindByUserCourse(ctx context.Context, userID, courseID string) (*models.SecurityFee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, fee := range r.fees {
		if fee.UserID == userID && fee.CourseID == courseID {
			return &fee, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r memFees) Create(ctx context.Context, fee *models.SecurityFee, replaceID *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if replaceID != nil {
		delete(r.fees, *replaceID)
	}
	for _, existing := range r.fees {
		if existing.UserID == fee.UserID && existing.CourseID == fee.CourseID {
			return uniqueViolation()
		}
	}
	fee.ID = uuid.NewString()
	fee.CreatedAt = time.Now().UTC()
	fee.UpdatedAt = fee.CreatedAt
	r.fees[fee.ID] = *fee
	return nil
}

func (r memFees) AttachReceipt(ctx context.Context, id, receiptURL string) (*models.SecurityFee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.attachErr != nil {
		return nil, r.attachErr
	}
	fee, ok := r.fees[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	fee.ReceiptURL = &receiptURL
	fee.PaymentStatus = models.PaymentStatusPending
	r.fees[id] = fee
	return &fee, nil
}

func (r memFees) UpdateStatus(ctx context.Context, id string, status models.PaymentStatus, approverID string, decidedAt time.Time) (*models.SecurityFee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fee, ok := r.fees[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	fee.PaymentStatus = status
	fee.ApprovedBy = &approverID
	fee.ApprovedAt = &decidedAt
	r.fees[id] = fee
	return &fee, nil
}

func (r memFees) List(ctx context.Context, filter models.SecurityFeeFilter) ([]models.SecurityFeeDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.SecurityFeeDetail
	for _, fee := range r.fees {
		if filter.UserID != "" && fee.UserID != filter.UserID {
			continue
		}
		if filter.Status != nil && fee.PaymentStatus != *filter.Status {
			continue
		}
		course := r.courses[fee.CourseID]
		student := r.users[fee.UserID]
		result = append(result, models.SecurityFeeDetail{
			SecurityFee:    fee,
			CourseTitle:    course.Title,
			CourseCategory: course.Category,
			StudentName:    student.Name,
			StudentEmail:   student.Email,
		})
	}
	return result, nil
}

type memEnrollments struct{ *memStore }

func (r memEnrollments) FindByUserCourse(ctx context.Context, userID, courseID string) (*models.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.enrollments {
		if e.UserID == userID && e.CourseID == courseID {
			return &e, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r memEnrollments) HasActive(ctx context.Context, userID, courseID string) (bool, error) {
	e, err := r.FindByUserCourse(ctx, userID, courseID)
	if err != nil {
		return false, nil
	}
	return e.Status == models.EnrollmentStatusActive, nil
}

func (r memEnrollments) CreateForFee(ctx context.Context, enrollment *models.Enrollment, feeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.enrollments {
		if e.UserID == enrollment.UserID && e.CourseID == enrollment.CourseID {
			return uniqueViolation()
		}
	}
	enrollment.ID = uuid.NewString()
	enrollment.EnrollDate = time.Now().UTC()
	r.enrollments[enrollment.ID] = *enrollment
	fee := r.fees[feeID]
	fee.EnrollmentID = &enrollment.ID
	r.fees[feeID] = fee
	return nil
}

func (r memEnrollments) list(keep func(models.Enrollment) bool) []models.EnrollmentDetail {
	var result []models.EnrollmentDetail
	for _, e := range r.enrollments {
		if !keep(e) {
			continue
		}
		course := r.courses[e.CourseID]
		student := r.users[e.UserID]
		result = append(result, models.EnrollmentDetail{
			Enrollment:     e,
			CourseTitle:    course.Title,
			CourseCategory: course.Category,
			StudentName:    student.Name,
			StudentEmail:   student.Email,
		})
	}
	return result
}

func (r memEnrollments) ListByUser(ctx context.Context, userID string) ([]models.EnrollmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(e models.Enrollment) bool { return e.UserID == userID }), nil
}

func (r memEnrollments) ListAll(ctx context.Context) ([]models.EnrollmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(models.Enrollment) bool { return true }), nil
}

func (r memEnrollments) ListByTeacher(ctx context.Context, teacherID string) ([]models.EnrollmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list(func(e models.Enrollment) bool {
		a, ok := r.assignments[e.CourseID]
		return ok && a.TeacherID == teacherID
	}), nil
}

type memQuizzes struct{ *memStore }

func (r memQuizzes) Create(ctx context.Context, quiz *models.QuizDetail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	quiz.ID = uuid.NewString()
	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		q.ID = uuid.NewString()
		q.QuizID = quiz.ID
		for j := range q.Options {
			q.Options[j].ID = uuid.NewString()
			q.Options[j].QuestionID = q.ID
		}
	}
	r.quizzes[quiz.ID] = cloneQuiz(*quiz)
	return nil
}

func (r memQuizzes) FindByID(ctx context.Context, id string) (*models.Quiz, error) {
	if err := checkUUID(id); err != nil {
		return nil, fmt.Errorf("find quiz: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	quiz, ok := r.quizzes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &quiz.Quiz, nil
}

func (r memQuizzes) ListByCourse(ctx context.Context, courseID string) ([]models.QuizSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.QuizSummary
	for _, quiz := range r.quizzes {
		if quiz.CourseID == courseID {
			result = append(result, models.QuizSummary{Quiz: quiz.Quiz, QuestionCount: len(quiz.Questions)})
		}
	}
	return result, nil
}

func (r memQuizzes) ListQuestions(ctx context.Context, quizID string) ([]models.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneQuiz(r.quizzes[quizID]).Questions, nil
}

func (r memQuizzes) CreateAttempt(ctx context.Context, attempt *models.QuizAttempt, answers []models.StudentAnswer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := attempt.UserID + "|" + attempt.QuizID
	if _, ok := r.attempts[key]; ok {
		return uniqueViolation()
	}
	attempt.ID = uuid.NewString()
	attempt.SubmittedAt = time.Now().UTC()
	r.attempts[key] = *attempt
	for _, answer := range answers {
		answer.ID = uuid.NewString()
		answer.AttemptID = attempt.ID
		r.answers = append(r.answers, answer)
	}
	return nil
}

func (r memQuizzes) ListAnswers(ctx context.Context, userID, quizID string) ([]models.StudentAnswer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.StudentAnswer
	for _, answer := range r.answers {
		if answer.UserID == userID && answer.QuizID == quizID {
			result = append(result, answer)
		}
	}
	return result, nil
}

func cloneQuiz(quiz models.QuizDetail) models.QuizDetail {
	questions := make([]models.Question, len(quiz.Questions))
	for i, q := range quiz.Questions {
		options := make([]models.Option, len(q.Options))
		for j, o := range q.Options {
			if o.IsCorrect != nil {
				correct := *o.IsCorrect
				o.IsCorrect = &correct
			}
			options[j] = o
		}
		q.Options = options
		questions[i] = q
	}
	quiz.Questions = questions
	return quiz
}

type memStorage struct{ *memStore }

func (s memStorage) SaveStream(filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[filename] = data
	return filename, nil
}

func (s memStorage) Delete(filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, filename)
	return nil
}

// recordingInvalidator counts cache invalidations requested by write paths.
type recordingInvalidator struct {
	mu      sync.Mutex
	reasons []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
}

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52}

func pngUpload() *ReceiptUpload {
	data := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0x01}, 64)...)
	return &ReceiptUpload{Filename: "receipt.png", Size: int64(len(data)), Content: bytes.NewReader(data)}
}
