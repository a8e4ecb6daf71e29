package app

import (
	"context"

	"github.com/google/uuid"

	"classquiz-service/internal/domain"
)

// AttemptRepository abstracts how live attempt sessions are tracked
// (in-memory, Redis-marked, etc).
type AttemptRepository interface {
	Put(attemptID string, session *Session)
	Get(attemptID string) (*Session, bool)
	Delete(attemptID string)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// AttemptService contains the quiz-taking use cases: starting an attempt,
// walking its questions, and reading the terminal result.
type AttemptService struct {
	attempts AttemptRepository
	quizzes  QuizRepository
	results  ResultSink
	newID    func() string
}

func NewAttemptService(attempts AttemptRepository, quizzes QuizRepository, results ResultSink) *AttemptService {
	return &AttemptService{
		attempts: attempts,
		quizzes:  quizzes,
		results:  results,
		newID:    uuid.NewString,
	}
}

// Start loads the quiz, builds a session for the respondent, arms the
// countdown and registers the attempt. A missing quiz and an empty quiz are
// distinct failures; neither produces a session.
func (s *AttemptService) Start(ctx context.Context, quizID string, respondent domain.Respondent) (string, *Session, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return "", nil, err
	}
	session, err := NewSession(quiz, respondent, s.results)
	if err != nil {
		return "", nil, err
	}
	attemptID := s.newID()
	s.attempts.Put(attemptID, session)
	session.StartCountdown()
	return attemptID, session, nil
}

// Get returns the live session for an attempt ID.
func (s *AttemptService) Get(attemptID string) (*Session, error) {
	session, ok := s.attempts.Get(attemptID)
	if !ok {
		return nil, domain.ErrAttemptNotFound
	}
	return session, nil
}

// Select stages a choice on the attempt's current question.
func (s *AttemptService) Select(attemptID, option string) error {
	session, err := s.Get(attemptID)
	if err != nil {
		return err
	}
	return session.Select(option)
}

// Advance commits the staged choice; the flag reports terminal completion.
func (s *AttemptService) Advance(ctx context.Context, attemptID string) (bool, error) {
	session, err := s.Get(attemptID)
	if err != nil {
		return false, err
	}
	return session.Advance(ctx)
}

// Skip records a no-answer for the current question.
func (s *AttemptService) Skip(ctx context.Context, attemptID string) (bool, error) {
	session, err := s.Get(attemptID)
	if err != nil {
		return false, err
	}
	return session.Skip(ctx)
}

// Result returns the terminal outcome of a completed attempt.
func (s *AttemptService) Result(attemptID string) (Result, error) {
	session, err := s.Get(attemptID)
	if err != nil {
		return Result{}, err
	}
	return session.Result()
}

// Abandon drops an attempt without completion; its progress is discarded.
func (s *AttemptService) Abandon(attemptID string) {
	session, ok := s.attempts.Get(attemptID)
	if !ok {
		return
	}
	session.Abandon()
	s.attempts.Delete(attemptID)
}

// Finish removes a completed attempt from the registry once its result has
// been delivered.
func (s *AttemptService) Finish(attemptID string) {
	s.attempts.Delete(attemptID)
}
