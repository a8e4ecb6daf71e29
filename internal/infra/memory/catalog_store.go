package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"classquiz-service/internal/app"
	"classquiz-service/internal/domain"
)

type quizRow struct {
	quiz        domain.Quiz
	questionIDs []string
}

// CatalogStore keeps the whole catalog in maps. It backs demo mode (no
// Postgres configured) and the handler tests, and doubles as the QuizLoader
// for the attempt flow.
type CatalogStore struct {
	mu          sync.RWMutex
	now         func() time.Time
	users       map[string]domain.User
	byEmail     map[string]string
	classes     map[string]domain.Class
	enrollments []domain.Enrollment
	questions   map[string]domain.Question
	quizzes     map[string]quizRow
	papers      map[string]domain.Paper
	results     []domain.QuizResult
}

func NewCatalogStore() *CatalogStore {
	return &CatalogStore{
		now:       time.Now,
		users:     make(map[string]domain.User),
		byEmail:   make(map[string]string),
		classes:   make(map[string]domain.Class),
		questions: make(map[string]domain.Question),
		quizzes:   make(map[string]quizRow),
		papers:    make(map[string]domain.Paper),
	}
}

var _ app.CatalogStore = (*CatalogStore)(nil)

func (s *CatalogStore) CreateUser(_ context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(user.Email)
	if _, ok := s.byEmail[key]; ok {
		return domain.User{}, domain.ErrEmailTaken
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = s.now()
	s.users[user.ID] = user
	s.byEmail[key] = user.ID
	return user, nil
}

func (s *CatalogStore) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return s.users[id], nil
}

func (s *CatalogStore) GetUser(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

func (s *CatalogStore) UpdateUser(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[user.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if user.Name != "" {
		existing.Name = user.Name
	}
	if user.ProfilePicture != "" {
		existing.ProfilePicture = user.ProfilePicture
	}
	if user.Password != "" {
		existing.Password = user.Password
	}
	s.users[user.ID] = existing
	return nil
}

func (s *CatalogStore) CreateClass(_ context.Context, class domain.Class) (domain.Class, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	class.CreatedAt = s.now()
	class.UpdatedAt = class.CreatedAt
	s.classes[class.ID] = class
	return class, nil
}

func (s *CatalogStore) ListClasses(_ context.Context, teacherID, cursor string, limit int) (app.ClassPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 10
	}
	ids := make([]string, 0, len(s.classes))
	for id, c := range s.classes {
		if teacherID != "" && c.TeacherID != teacherID {
			continue
		}
		if cursor != "" && id <= cursor {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	page := app.ClassPage{}
	for _, id := range ids {
		if len(page.Classes) == limit {
			break
		}
		page.Classes = append(page.Classes, s.classes[id])
	}
	page.HasNext = len(page.Classes) == limit && len(ids) > limit
	return page, nil
}

func (s *CatalogStore) DeleteClass(_ context.Context, id, teacherID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	class, ok := s.classes[id]
	if !ok {
		return domain.ErrNotFound
	}
	if teacherID != "" && class.TeacherID != teacherID {
		return domain.ErrForbidden
	}
	delete(s.classes, id)
	return nil
}

func (s *CatalogStore) EnrollStudent(_ context.Context, classID, studentID string) (domain.Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.classes[classID]; !ok {
		return domain.Enrollment{}, domain.ErrNotFound
	}
	for _, e := range s.enrollments {
		if e.ClassID == classID && e.StudentID == studentID {
			return e, nil
		}
	}
	enr := domain.Enrollment{
		ID:         uuid.NewString(),
		ClassID:    classID,
		StudentID:  studentID,
		EnrolledAt: s.now(),
	}
	s.enrollments = append(s.enrollments, enr)
	return enr, nil
}

func (s *CatalogStore) ListEnrollments(_ context.Context, classID string) ([]domain.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Enrollment, 0)
	for _, e := range s.enrollments {
		if e.ClassID == classID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *CatalogStore) CreateQuestion(_ context.Context, q domain.Question) (domain.Question, error) {
	if err := q.Validate(); err != nil {
		return domain.Question{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	s.questions[q.ID] = q
	return q, nil
}

func (s *CatalogStore) ListQuestions(_ context.Context, teacherID string, page, pageSize int) (app.QuestionPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	ids := make([]string, 0, len(s.questions))
	for id, q := range s.questions {
		if teacherID != "" && q.TeacherID != teacherID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := app.QuestionPage{Total: len(ids)}
	start := (page - 1) * pageSize
	for i := start; i < len(ids) && i < start+pageSize; i++ {
		result.Questions = append(result.Questions, s.questions[ids[i]])
	}
	return result, nil
}

func (s *CatalogStore) UpdateQuestion(_ context.Context, q domain.Question) (domain.Question, error) {
	if err := q.Validate(); err != nil {
		return domain.Question{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.questions[q.ID]
	if !ok {
		return domain.Question{}, domain.ErrNotFound
	}
	if q.TeacherID != "" && existing.TeacherID != q.TeacherID {
		return domain.Question{}, domain.ErrForbidden
	}
	// Ownership never moves on update.
	q.TeacherID = existing.TeacherID
	s.questions[q.ID] = q
	return q, nil
}

func (s *CatalogStore) DeleteQuestion(_ context.Context, id, teacherID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok {
		return domain.ErrNotFound
	}
	if teacherID != "" && q.TeacherID != teacherID {
		return domain.ErrForbidden
	}
	delete(s.questions, id)
	return nil
}

func (s *CatalogStore) CreateQuiz(_ context.Context, quiz domain.Quiz, questionIDs []string) (domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(questionIDs) == 0 {
		return domain.Quiz{}, domain.ErrEmptyQuiz
	}
	for _, id := range questionIDs {
		if _, ok := s.questions[id]; !ok {
			return domain.Quiz{}, domain.ErrNotFound
		}
	}
	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}
	quiz.UpdatedAt = s.now()
	quiz.Questions = nil
	s.quizzes[quiz.ID] = quizRow{quiz: quiz, questionIDs: append([]string(nil), questionIDs...)}
	return quiz, nil
}

func (s *CatalogStore) ListQuizzes(_ context.Context, filter app.QuizFilter, page, pageSize int) (app.QuizPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	ids := make([]string, 0, len(s.quizzes))
	for id, row := range s.quizzes {
		if filter.ClassID != "" && row.quiz.ClassID != filter.ClassID {
			continue
		}
		if filter.TeacherID != "" && row.quiz.TeacherID != filter.TeacherID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := app.QuizPage{Total: len(ids)}
	start := (page - 1) * pageSize
	for i := start; i < len(ids) && i < start+pageSize; i++ {
		result.Quizzes = append(result.Quizzes, s.quizzes[ids[i]].quiz)
	}
	return result, nil
}

func (s *CatalogStore) DeleteQuiz(_ context.Context, id, teacherID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.quizzes[id]
	if !ok {
		return domain.ErrNotFound
	}
	if teacherID != "" && row.quiz.TeacherID != teacherID {
		return domain.ErrForbidden
	}
	delete(s.quizzes, id)
	return nil
}

// LoadQuiz assembles the quiz with its questions in stored order, making the
// catalog usable as the attempt flow's QuizLoader.
func (s *CatalogStore) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	quiz := row.quiz
	quiz.Questions = make([]domain.Question, 0, len(row.questionIDs))
	for _, id := range row.questionIDs {
		if q, ok := s.questions[id]; ok {
			quiz.Questions = append(quiz.Questions, q)
		}
	}
	return quiz, nil
}

func (s *CatalogStore) CreatePaper(_ context.Context, paper domain.Paper) (domain.Paper, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if paper.ID == "" {
		paper.ID = uuid.NewString()
	}
	paper.CreatedAt = s.now()
	for i := range paper.Questions {
		paper.Questions[i].Position = i
	}
	s.papers[paper.ID] = paper
	return paper, nil
}

func (s *CatalogStore) ListPapers(_ context.Context, filter app.PaperFilter) (app.PaperPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	ids := make([]string, 0, len(s.papers))
	for id, p := range s.papers {
		if filter.ClassID != "" && p.ClassID != filter.ClassID {
			continue
		}
		if filter.TeacherID != "" && p.TeacherID != filter.TeacherID {
			continue
		}
		if filter.Cursor != "" && id <= filter.Cursor {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	page := app.PaperPage{}
	for _, id := range ids {
		if len(page.Papers) == limit {
			break
		}
		page.Papers = append(page.Papers, s.papers[id])
	}
	page.HasMore = len(page.Papers) == limit && len(ids) > limit
	return page, nil
}

func (s *CatalogStore) GetPaper(_ context.Context, id string) (domain.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paper, ok := s.papers[id]
	if !ok {
		return domain.Paper{}, domain.ErrNotFound
	}
	return paper, nil
}

func (s *CatalogStore) DeletePaper(_ context.Context, id, teacherID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	paper, ok := s.papers[id]
	if !ok {
		return domain.ErrNotFound
	}
	if teacherID != "" && paper.TeacherID != teacherID {
		return domain.ErrForbidden
	}
	delete(s.papers, id)
	return nil
}

func (s *CatalogStore) SaveResult(_ context.Context, result domain.QuizResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	result.CreatedAt = s.now()
	s.results = append(s.results, result)
	return nil
}

func (s *CatalogStore) ListResults(_ context.Context, quizID, studentID string) ([]domain.QuizResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.QuizResult, 0)
	for _, r := range s.results {
		if quizID != "" && r.QuizID != quizID {
			continue
		}
		if studentID != "" && r.StudentID != studentID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
