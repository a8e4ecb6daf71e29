package app

import (
	"context"

	"classquiz-service/internal/domain"
)

// QuestionPage is an offset-paginated slice of the question bank with the
// exact total, for numbered pagination.
type QuestionPage struct {
	Questions []domain.Question `json:"questions"`
	Total     int               `json:"total"`
}

// QuizPage is an offset-paginated quiz listing with the exact total.
type QuizPage struct {
	Quizzes []domain.Quiz `json:"quizzes"`
	Total   int           `json:"total"`
}

// ClassPage is a cursor-paginated class listing for infinite scroll; HasNext
// is inferred from a full page.
type ClassPage struct {
	Classes []domain.Class `json:"classes"`
	HasNext bool           `json:"hasNext"`
}

// PaperPage is a cursor-paginated paper listing.
type PaperPage struct {
	Papers  []domain.Paper `json:"papers"`
	HasMore bool           `json:"hasMore"`
}

// QuizFilter narrows quiz listings by class and/or owning teacher.
type QuizFilter struct {
	ClassID   string
	TeacherID string
}

// PaperFilter narrows paper listings; Cursor is the last seen paper ID.
type PaperFilter struct {
	ClassID   string
	TeacherID string
	Cursor    string
	Limit     int
}

// CatalogStore is the row-level data access the service needs around the
// attempt core: accounts, classes, the question bank, quizzes, papers and
// persisted results. Backed by Postgres in production, by memory in tests
// and demo mode.
type CatalogStore interface {
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	GetUser(ctx context.Context, id string) (domain.User, error)
	UpdateUser(ctx context.Context, user domain.User) error

	CreateClass(ctx context.Context, class domain.Class) (domain.Class, error)
	ListClasses(ctx context.Context, teacherID, cursor string, limit int) (ClassPage, error)
	DeleteClass(ctx context.Context, id, teacherID string) error
	EnrollStudent(ctx context.Context, classID, studentID string) (domain.Enrollment, error)
	ListEnrollments(ctx context.Context, classID string) ([]domain.Enrollment, error)

	CreateQuestion(ctx context.Context, q domain.Question) (domain.Question, error)
	ListQuestions(ctx context.Context, teacherID string, page, pageSize int) (QuestionPage, error)
	UpdateQuestion(ctx context.Context, q domain.Question) (domain.Question, error)
	DeleteQuestion(ctx context.Context, id, teacherID string) error

	CreateQuiz(ctx context.Context, quiz domain.Quiz, questionIDs []string) (domain.Quiz, error)
	ListQuizzes(ctx context.Context, filter QuizFilter, page, pageSize int) (QuizPage, error)
	DeleteQuiz(ctx context.Context, id, teacherID string) error

	CreatePaper(ctx context.Context, paper domain.Paper) (domain.Paper, error)
	ListPapers(ctx context.Context, filter PaperFilter) (PaperPage, error)
	GetPaper(ctx context.Context, id string) (domain.Paper, error)
	DeletePaper(ctx context.Context, id, teacherID string) error

	SaveResult(ctx context.Context, result domain.QuizResult) error
	ListResults(ctx context.Context, quizID, studentID string) ([]domain.QuizResult, error)
}
