package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"classquiz-service/internal/app"
	"classquiz-service/internal/domain"
)

const pgUniqueViolation = "23505"

// CatalogStore is the pgx-backed implementation of app.CatalogStore: plain
// filtered SQL over the hosted relational service, no ORM modeling.
type CatalogStore struct {
	pool *pgxpool.Pool
}

func NewCatalogStore(pool *pgxpool.Pool) *CatalogStore {
	return &CatalogStore{pool: pool}
}

var _ app.CatalogStore = (*CatalogStore)(nil)

func (s *CatalogStore) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, name, email, password, role, profile_picture)
		VALUES ($1, $2, lower($3), $4, $5, $6)
		RETURNING created_at`,
		user.ID, user.Name, user.Email, user.Password, string(user.Role), user.ProfilePicture).
		Scan(&user.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return domain.User{}, domain.ErrEmailTaken
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	user.Email = strings.ToLower(user.Email)
	return user, nil
}

func (s *CatalogStore) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `
		SELECT id, name, email, password, role, COALESCE(profile_picture, ''), created_at
		FROM users WHERE email = lower($1)`, email))
}

func (s *CatalogStore) GetUser(ctx context.Context, id string) (domain.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `
		SELECT id, name, email, password, role, COALESCE(profile_picture, ''), created_at
		FROM users WHERE id = $1`, id))
}

func (s *CatalogStore) scanUser(row pgx.Row) (domain.User, error) {
	var (
		user domain.User
		role string
	)
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Password, &role, &user.ProfilePicture, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	user.Role = domain.Role(role)
	return user, nil
}

func (s *CatalogStore) UpdateUser(ctx context.Context, user domain.User) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET
			name = COALESCE(NULLIF($2, ''), name),
			profile_picture = COALESCE(NULLIF($3, ''), profile_picture),
			password = COALESCE(NULLIF($4, ''), password)
		WHERE id = $1`,
		user.ID, user.Name, user.ProfilePicture, user.Password)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *CatalogStore) CreateClass(ctx context.Context, class domain.Class) (domain.Class, error) {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO classes (id, class_name, description, teacher_id)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		class.ID, class.Name, class.Description, class.TeacherID).
		Scan(&class.CreatedAt, &class.UpdatedAt)
	if err != nil {
		return domain.Class{}, fmt.Errorf("create class: %w", err)
	}
	return class, nil
}

func (s *CatalogStore) ListClasses(ctx context.Context, teacherID, cursor string, limit int) (app.ClassPage, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, class_name, COALESCE(description, ''), teacher_id::text, created_at, updated_at
		FROM classes
		WHERE ($1 = '' OR teacher_id = $1::uuid)
		  AND ($2 = '' OR id::text > $2)
		ORDER BY id
		LIMIT $3`, teacherID, cursor, limit)
	if err != nil {
		return app.ClassPage{}, fmt.Errorf("list classes: %w", err)
	}
	defer rows.Close()

	page := app.ClassPage{}
	for rows.Next() {
		var c domain.Class
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.TeacherID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return app.ClassPage{}, fmt.Errorf("scan class: %w", err)
		}
		page.Classes = append(page.Classes, c)
	}
	if err := rows.Err(); err != nil {
		return app.ClassPage{}, err
	}
	// A full page implies more may follow; the next fetch confirms.
	page.HasNext = len(page.Classes) == limit
	return page, nil
}

func (s *CatalogStore) DeleteClass(ctx context.Context, id, teacherID string) error {
	return s.deleteOwned(ctx, "classes", id, teacherID)
}

func (s *CatalogStore) EnrollStudent(ctx context.Context, classID, studentID string) (domain.Enrollment, error) {
	enr := domain.Enrollment{ID: uuid.NewString(), ClassID: classID, StudentID: studentID}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO class_enrollments (id, class_id, student_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (class_id, student_id) DO UPDATE SET class_id = EXCLUDED.class_id
		RETURNING id, enrolled_at`,
		enr.ID, classID, studentID).
		Scan(&enr.ID, &enr.EnrolledAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return domain.Enrollment{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Enrollment{}, fmt.Errorf("enroll student: %w", err)
	}
	return enr, nil
}

func (s *CatalogStore) ListEnrollments(ctx context.Context, classID string) ([]domain.Enrollment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, class_id::text, student_id::text, enrolled_at
		FROM class_enrollments WHERE class_id = $1 ORDER BY enrolled_at`, classID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Enrollment, 0)
	for rows.Next() {
		var e domain.Enrollment
		if err := rows.Scan(&e.ID, &e.ClassID, &e.StudentID, &e.EnrolledAt); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *CatalogStore) CreateQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	if err := q.Validate(); err != nil {
		return domain.Question{}, err
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	opts, err := json.Marshal(optionsOrEmpty(q.Options))
	if err != nil {
		return domain.Question{}, fmt.Errorf("marshal options: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO questions (id, teacher_id, question_type, question_text, options, correct_answer)
		VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, $6)`,
		q.ID, q.TeacherID, q.Type, q.Text, opts, q.CorrectAnswer)
	if err != nil {
		return domain.Question{}, fmt.Errorf("create question: %w", err)
	}
	return q, nil
}

func (s *CatalogStore) ListQuestions(ctx context.Context, teacherID string, page, pageSize int) (app.QuestionPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	result := app.QuestionPage{}
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM questions WHERE ($1 = '' OR teacher_id = $1::uuid)`, teacherID).
		Scan(&result.Total)
	if err != nil {
		return app.QuestionPage{}, fmt.Errorf("count questions: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, COALESCE(teacher_id::text, ''), question_type, question_text, options, correct_answer
		FROM questions
		WHERE ($1 = '' OR teacher_id = $1::uuid)
		ORDER BY id
		OFFSET $2 LIMIT $3`, teacherID, (page-1)*pageSize, pageSize)
	if err != nil {
		return app.QuestionPage{}, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			q       domain.Question
			rawOpts []byte
		)
		if err := rows.Scan(&q.ID, &q.TeacherID, &q.Type, &q.Text, &rawOpts, &q.CorrectAnswer); err != nil {
			return app.QuestionPage{}, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(rawOpts, &q.Options); err != nil {
			return app.QuestionPage{}, fmt.Errorf("unmarshal options: %w", err)
		}
		result.Questions = append(result.Questions, q)
	}
	return result, rows.Err()
}

func (s *CatalogStore) UpdateQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	if err := q.Validate(); err != nil {
		return domain.Question{}, err
	}
	owner, err := s.owner(ctx, "questions", q.ID)
	if err != nil {
		return domain.Question{}, err
	}
	if q.TeacherID != "" && owner != q.TeacherID {
		return domain.Question{}, domain.ErrForbidden
	}
	opts, err := json.Marshal(optionsOrEmpty(q.Options))
	if err != nil {
		return domain.Question{}, fmt.Errorf("marshal options: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE questions SET question_type=$2, question_text=$3, options=$4, correct_answer=$5, updated_at=now()
		WHERE id=$1`,
		q.ID, q.Type, q.Text, opts, q.CorrectAnswer)
	if err != nil {
		return domain.Question{}, fmt.Errorf("update question: %w", err)
	}
	// Ownership never moves on update.
	q.TeacherID = owner
	return q, nil
}

func (s *CatalogStore) DeleteQuestion(ctx context.Context, id, teacherID string) error {
	return s.deleteOwned(ctx, "questions", id, teacherID)
}

func (s *CatalogStore) CreateQuiz(ctx context.Context, quiz domain.Quiz, questionIDs []string) (domain.Quiz, error) {
	if len(questionIDs) == 0 {
		return domain.Quiz{}, domain.ErrEmptyQuiz
	}
	if quiz.ID == "" {
		quiz.ID = uuid.NewString()
	}
	ids, err := json.Marshal(questionIDs)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("marshal question ids: %w", err)
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO quizzes (id, quiz_name, class_id, teacher_id, duration_seconds, question_ids)
		VALUES ($1, $2, NULLIF($3, '')::uuid, NULLIF($4, '')::uuid, $5, $6)
		RETURNING updated_at`,
		quiz.ID, quiz.Name, quiz.ClassID, quiz.TeacherID, quiz.DurationSeconds, ids).
		Scan(&quiz.UpdatedAt)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("create quiz: %w", err)
	}
	quiz.Questions = nil
	return quiz, nil
}

func (s *CatalogStore) ListQuizzes(ctx context.Context, filter app.QuizFilter, page, pageSize int) (app.QuizPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	result := app.QuizPage{}
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM quizzes
		WHERE ($1 = '' OR class_id = $1::uuid) AND ($2 = '' OR teacher_id = $2::uuid)`,
		filter.ClassID, filter.TeacherID).
		Scan(&result.Total)
	if err != nil {
		return app.QuizPage{}, fmt.Errorf("count quizzes: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, quiz_name, COALESCE(class_id::text, ''), COALESCE(teacher_id::text, ''), duration_seconds, updated_at
		FROM quizzes
		WHERE ($1 = '' OR class_id = $1::uuid) AND ($2 = '' OR teacher_id = $2::uuid)
		ORDER BY id
		OFFSET $3 LIMIT $4`,
		filter.ClassID, filter.TeacherID, (page-1)*pageSize, pageSize)
	if err != nil {
		return app.QuizPage{}, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var q domain.Quiz
		if err := rows.Scan(&q.ID, &q.Name, &q.ClassID, &q.TeacherID, &q.DurationSeconds, &q.UpdatedAt); err != nil {
			return app.QuizPage{}, fmt.Errorf("scan quiz: %w", err)
		}
		result.Quizzes = append(result.Quizzes, q)
	}
	return result, rows.Err()
}

func (s *CatalogStore) DeleteQuiz(ctx context.Context, id, teacherID string) error {
	return s.deleteOwned(ctx, "quizzes", id, teacherID)
}

func (s *CatalogStore) CreatePaper(ctx context.Context, paper domain.Paper) (domain.Paper, error) {
	if paper.ID == "" {
		paper.ID = uuid.NewString()
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Paper{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO papers (id, title, class_id, teacher_id, duration_minutes, scheduled_at)
		VALUES ($1, $2, NULLIF($3, '')::uuid, NULLIF($4, '')::uuid, $5, $6)
		RETURNING created_at`,
		paper.ID, paper.Title, paper.ClassID, paper.TeacherID, paper.Duration, paper.ScheduledAt).
		Scan(&paper.CreatedAt)
	if err != nil {
		return domain.Paper{}, fmt.Errorf("create paper: %w", err)
	}
	for i, pq := range paper.Questions {
		paper.Questions[i].Position = i
		if _, err := tx.Exec(ctx, `
			INSERT INTO paper_questions (paper_id, question_id, marks, position)
			VALUES ($1, $2, $3, $4)`,
			paper.ID, pq.QuestionID, pq.Marks, i); err != nil {
			return domain.Paper{}, fmt.Errorf("attach question: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Paper{}, fmt.Errorf("commit: %w", err)
	}
	return paper, nil
}

func (s *CatalogStore) ListPapers(ctx context.Context, filter app.PaperFilter) (app.PaperPage, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, COALESCE(class_id::text, ''), COALESCE(teacher_id::text, ''),
		       duration_minutes, scheduled_at, created_at
		FROM papers
		WHERE ($1 = '' OR class_id = $1::uuid)
		  AND ($2 = '' OR teacher_id = $2::uuid)
		  AND ($3 = '' OR id::text > $3)
		ORDER BY id
		LIMIT $4`,
		filter.ClassID, filter.TeacherID, filter.Cursor, limit)
	if err != nil {
		return app.PaperPage{}, fmt.Errorf("list papers: %w", err)
	}
	defer rows.Close()

	page := app.PaperPage{}
	for rows.Next() {
		var p domain.Paper
		if err := rows.Scan(&p.ID, &p.Title, &p.ClassID, &p.TeacherID, &p.Duration, &p.ScheduledAt, &p.CreatedAt); err != nil {
			return app.PaperPage{}, fmt.Errorf("scan paper: %w", err)
		}
		page.Papers = append(page.Papers, p)
	}
	if err := rows.Err(); err != nil {
		return app.PaperPage{}, err
	}
	page.HasMore = len(page.Papers) == limit
	return page, nil
}

func (s *CatalogStore) GetPaper(ctx context.Context, id string) (domain.Paper, error) {
	var p domain.Paper
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, COALESCE(class_id::text, ''), COALESCE(teacher_id::text, ''),
		       duration_minutes, scheduled_at, created_at
		FROM papers WHERE id = $1`, id).
		Scan(&p.ID, &p.Title, &p.ClassID, &p.TeacherID, &p.Duration, &p.ScheduledAt, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Paper{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Paper{}, fmt.Errorf("get paper: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT question_id::text, marks, position
		FROM paper_questions WHERE paper_id = $1 ORDER BY position`, id)
	if err != nil {
		return domain.Paper{}, fmt.Errorf("paper questions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pq domain.PaperQuestion
		if err := rows.Scan(&pq.QuestionID, &pq.Marks, &pq.Position); err != nil {
			return domain.Paper{}, fmt.Errorf("scan paper question: %w", err)
		}
		p.Questions = append(p.Questions, pq)
	}
	return p, rows.Err()
}

func (s *CatalogStore) DeletePaper(ctx context.Context, id, teacherID string) error {
	return s.deleteOwned(ctx, "papers", id, teacherID)
}

func (s *CatalogStore) SaveResult(ctx context.Context, result domain.QuizResult) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO quiz_performance (id, quiz_id, student_id, score)
		VALUES ($1, $2, $3, $4)`,
		result.ID, result.QuizID, result.StudentID, result.Score)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

func (s *CatalogStore) ListResults(ctx context.Context, quizID, studentID string) ([]domain.QuizResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, quiz_id::text, student_id::text, score, created_at
		FROM quiz_performance
		WHERE ($1 = '' OR quiz_id = $1::uuid) AND ($2 = '' OR student_id = $2::uuid)
		ORDER BY created_at DESC`, quizID, studentID)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	out := make([]domain.QuizResult, 0)
	for rows.Next() {
		var r domain.QuizResult
		if err := rows.Scan(&r.ID, &r.QuizID, &r.StudentID, &r.Score, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// deleteOwned removes a row after checking ownership, distinguishing a missing
// row from a row owned by someone else.
func (s *CatalogStore) deleteOwned(ctx context.Context, table, id, teacherID string) error {
	owner, err := s.owner(ctx, table, id)
	if err != nil {
		return err
	}
	if teacherID != "" && owner != "" && owner != teacherID {
		return domain.ErrForbidden
	}
	_, err = s.pool.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	return nil
}

func (s *CatalogStore) owner(ctx context.Context, table, id string) (string, error) {
	var owner string
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(teacher_id::text, '') FROM `+table+` WHERE id = $1`, id).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup owner in %s: %w", table, err)
	}
	return owner, nil
}

func optionsOrEmpty(opts []string) []string {
	if opts == nil {
		return []string{}
	}
	return opts
}
