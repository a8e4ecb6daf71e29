package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"classquiz-service/internal/app"
	"classquiz-service/internal/domain"
	"classquiz-service/internal/infra/memory"
)

func TestStartUnknownQuiz(t *testing.T) {
	service, _ := newTestService()
	_, _, err := service.Start(context.Background(), "missing", student())
	if !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestStartEmptyQuiz(t *testing.T) {
	service, _ := newTestService()
	_, _, err := service.Start(context.Background(), "quiz-empty", student())
	if !errors.Is(err, domain.ErrEmptyQuiz) {
		t.Fatalf("expected ErrEmptyQuiz, got %v", err)
	}
}

func TestAttemptWalkthrough(t *testing.T) {
	ctx := context.Background()
	service, sink := newTestService()

	attemptID, session, err := service.Start(ctx, "quiz-1", student())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if session.Quiz().ID != "quiz-1" {
		t.Fatalf("unexpected quiz: %s", session.Quiz().ID)
	}

	if err := service.Select(attemptID, "Paris"); err != nil {
		t.Fatalf("select: %v", err)
	}
	done, err := service.Advance(ctx, attemptID)
	if err != nil || done {
		t.Fatalf("advance: done=%v err=%v", done, err)
	}
	done, err = service.Skip(ctx, attemptID)
	if err != nil || !done {
		t.Fatalf("final skip: done=%v err=%v", done, err)
	}

	result, err := service.Result(attemptID)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if result.Score != 1 || result.Attempted != 1 || result.Skipped != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(sink.saved) != 1 {
		t.Fatalf("expected one persisted result, got %d", len(sink.saved))
	}

	service.Finish(attemptID)
	if _, err := service.Result(attemptID); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound after finish, got %v", err)
	}
}

func TestAbandonDiscardsProgress(t *testing.T) {
	ctx := context.Background()
	service, sink := newTestService()

	attemptID, _, err := service.Start(ctx, "quiz-1", student())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := service.Select(attemptID, "Paris"); err != nil {
		t.Fatalf("select: %v", err)
	}
	service.Abandon(attemptID)

	if _, err := service.Advance(ctx, attemptID); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound, got %v", err)
	}
	if len(sink.saved) != 0 {
		t.Fatalf("abandoned attempt must not persist, got %d", len(sink.saved))
	}
}

func newTestService() (*app.AttemptService, *recordingSink) {
	sink := newRecordingSink()
	quizzes := memory.NewQuizRepository(memory.NewStaticQuizLoader(map[string]domain.Quiz{
		"quiz-1": {
			ID:   "quiz-1",
			Name: "Geography",
			Questions: []domain.Question{
				{ID: "q1", Text: "Capital of France?", Options: []string{"Paris", "Lyon"}, CorrectAnswer: "Paris"},
				{ID: "q2", Text: "Capital of Spain?", Options: []string{"Madrid", "Sevilla"}, CorrectAnswer: "Madrid"},
			},
		},
		"quiz-empty": {ID: "quiz-empty", Name: "Empty"},
	}), 5*time.Minute)
	return app.NewAttemptService(memory.NewAttemptStore(), quizzes, sink), sink
}
