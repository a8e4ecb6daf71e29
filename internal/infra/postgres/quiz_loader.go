package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"classquiz-service/internal/domain"
)

// QuizLoader assembles a quiz with its ordered questions from Postgres.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var (
		quiz   domain.Quiz
		rawIDs []byte
	)
	err := l.pool.QueryRow(ctx, `
		SELECT id, quiz_name, COALESCE(class_id::text, ''), COALESCE(teacher_id::text, ''),
		       duration_seconds, question_ids, updated_at
		FROM quizzes WHERE id=$1`, quizID).
		Scan(&quiz.ID, &quiz.Name, &quiz.ClassID, &quiz.TeacherID, &quiz.DurationSeconds, &rawIDs, &quiz.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	var questionIDs []string
	if err := json.Unmarshal(rawIDs, &questionIDs); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal question ids: %w", err)
	}

	questions, err := l.loadQuestions(ctx, questionIDs)
	if err != nil {
		return domain.Quiz{}, err
	}
	// Preserve the order the teacher arranged at quiz creation.
	byID := make(map[string]domain.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	quiz.Questions = make([]domain.Question, 0, len(questionIDs))
	for _, id := range questionIDs {
		if q, ok := byID[id]; ok {
			quiz.Questions = append(quiz.Questions, q)
		}
	}
	return quiz, nil
}

func (l *QuizLoader) loadQuestions(ctx context.Context, ids []string) ([]domain.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := l.pool.Query(ctx, `
		SELECT id, COALESCE(teacher_id::text, ''), question_type, question_text, options, correct_answer
		FROM questions WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		var (
			q       domain.Question
			rawOpts []byte
		)
		if err := rows.Scan(&q.ID, &q.TeacherID, &q.Type, &q.Text, &rawOpts, &q.CorrectAnswer); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(rawOpts, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
