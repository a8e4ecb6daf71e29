package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"classquiz-service/internal/domain"
)

// ResultSink persists the score of a completed attempt.
type ResultSink interface {
	SaveResult(ctx context.Context, result domain.QuizResult) error
}

// QuestionReview is one row of the per-question breakdown shown after completion.
type QuestionReview struct {
	QuestionID    string `json:"questionId"`
	Text          string `json:"text"`
	CorrectAnswer string `json:"correctAnswer"`
	Selected      string `json:"selected"`
	Answered      bool   `json:"answered"`
	Correct       bool   `json:"correct"`
}

// Result is the terminal view of a completed attempt. SubmitErr is non-nil when
// the score could not be persisted; the attempt still completed and the
// respondent sees their result, the failure is surfaced as a notice only.
type Result struct {
	QuizID    string           `json:"quizId"`
	Score     int              `json:"score"`
	Total     int              `json:"total"`
	Attempted int              `json:"attempted"`
	Skipped   int              `json:"skipped"`
	TimedOut  bool             `json:"timedOut"`
	Persisted bool             `json:"persisted"`
	Review    []QuestionReview `json:"review"`
	SubmitErr error            `json:"-"`
}

// Progress is a read-only view of a running attempt for display.
type Progress struct {
	Index     int           `json:"index"`
	Total     int           `json:"total"`
	Attempted int           `json:"attempted"`
	Skipped   int           `json:"skipped"`
	Remaining time.Duration `json:"-"`
	Completed bool          `json:"completed"`
}

// Session tracks one respondent's pass through a quiz: the current position,
// the staged choice, and the append-only response list. All mutations are
// serialized by the mutex; completion happens exactly once, whether the last
// answer or the countdown gets there first.
type Session struct {
	mu         sync.Mutex
	quiz       domain.Quiz
	respondent domain.Respondent
	sink       ResultSink
	countdown  *Countdown
	now        func() time.Time

	current   int
	responses []domain.Response
	staged    string
	hasStaged bool
	completed bool
	result    Result
	done      chan struct{}
}

// NewSession validates the quiz and builds a fresh attempt session. A quiz
// with no questions is a precondition violation, distinct from a missing quiz.
func NewSession(quiz domain.Quiz, respondent domain.Respondent, sink ResultSink) (*Session, error) {
	return newSessionWithClock(quiz, respondent, sink, time.Now)
}

// newSessionWithClock is test-only for deterministic countdown displays.
func newSessionWithClock(quiz domain.Quiz, respondent domain.Respondent, sink ResultSink, now func() time.Time) (*Session, error) {
	if len(quiz.Questions) == 0 {
		return nil, domain.ErrEmptyQuiz
	}
	return &Session{
		quiz:       quiz,
		respondent: respondent,
		sink:       sink,
		countdown:  newCountdownWithClock(now),
		now:        now,
		responses:  make([]domain.Response, 0, len(quiz.Questions)),
		done:       make(chan struct{}),
	}, nil
}

// StartCountdown arms the quiz timer; a no-op for untimed quizzes. Expiry
// force-completes the session with every unanswered question marked skipped.
func (s *Session) StartCountdown() {
	s.countdown.Start(s.quiz.Duration(), func() {
		s.ForceTimeout(context.Background())
	})
}

// Quiz returns the immutable quiz under attempt.
func (s *Session) Quiz() domain.Quiz {
	return s.quiz
}

// Respondent returns the viewer identity this session was built for.
func (s *Session) Respondent() domain.Respondent {
	return s.respondent
}

// Current returns the active question and its index.
func (s *Session) Current() (int, domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return 0, domain.Question{}, domain.ErrAttemptCompleted
	}
	return s.current, s.quiz.Questions[s.current], nil
}

// Select stages a choice for the active question. It does not advance; a
// later Select for the same question replaces the staged choice.
func (s *Session) Select(option string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return domain.ErrAttemptCompleted
	}
	s.staged = option
	s.hasStaged = true
	return nil
}

// Advance commits the staged choice and moves to the next question, or
// completes the attempt on the last one. Without a staged choice it rejects
// with ErrNoSelection and mutates nothing. The returned flag is true once the
// session reached its terminal state.
func (s *Session) Advance(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return true, domain.ErrAttemptCompleted
	}
	if !s.hasStaged {
		return false, domain.ErrNoSelection
	}
	s.responses = append(s.responses, domain.Response{
		QuestionID: s.quiz.Questions[s.current].ID,
		Selected:   s.staged,
		Answered:   true,
	})
	s.staged = ""
	s.hasStaged = false
	return s.stepLocked(ctx, false), nil
}

// Skip records a no-answer response for the active question and advances.
func (s *Session) Skip(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return true, domain.ErrAttemptCompleted
	}
	s.responses = append(s.responses, domain.NoAnswer(s.quiz.Questions[s.current].ID))
	s.staged = ""
	s.hasStaged = false
	return s.stepLocked(ctx, false), nil
}

// ForceTimeout fills every question from the current position onward with
// no-answer responses and completes the attempt. Idempotent: once the session
// is terminal this is a guaranteed no-op, so a stale timer cannot double-submit.
func (s *Session) ForceTimeout(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completed {
		return
	}
	for i := len(s.responses); i < len(s.quiz.Questions); i++ {
		s.responses = append(s.responses, domain.NoAnswer(s.quiz.Questions[i].ID))
	}
	s.completeLocked(ctx, true)
}

// stepLocked advances the cursor or runs the completion transition when the
// last question was just recorded.
func (s *Session) stepLocked(ctx context.Context, timedOut bool) bool {
	if len(s.responses) < len(s.quiz.Questions) {
		s.current++
		return false
	}
	s.completeLocked(ctx, timedOut)
	return true
}

// completeLocked is the single completion transition. The completed flag is
// set before the persistence side effect, so a racing trigger observes a
// terminal session and backs off.
func (s *Session) completeLocked(ctx context.Context, timedOut bool) {
	if s.completed {
		return
	}
	s.completed = true
	s.countdown.Cancel()
	defer close(s.done)

	score, review := s.scoreLocked()
	attempted := 0
	for _, r := range s.responses {
		if r.Answered {
			attempted++
		}
	}
	s.result = Result{
		QuizID:    s.quiz.ID,
		Score:     score,
		Total:     len(s.quiz.Questions),
		Attempted: attempted,
		Skipped:   len(s.responses) - attempted,
		TimedOut:  timedOut,
		Review:    review,
	}

	// Reviewers see their result but nothing is recorded.
	if !s.respondent.Scored || s.sink == nil {
		return
	}
	res := domain.QuizResult{
		QuizID:    s.quiz.ID,
		StudentID: s.respondent.UserID,
		Score:     score,
	}
	if err := s.sink.SaveResult(ctx, res); err != nil {
		// At-most-once delivery: no retry, the respondent still gets their
		// terminal result and the failure rides along as a notice.
		s.result.SubmitErr = err
		return
	}
	s.result.Persisted = true
}

// scoreLocked counts answered responses matching the correct answer
// case-insensitively and builds the per-question review.
func (s *Session) scoreLocked() (int, []QuestionReview) {
	byID := make(map[string]domain.Response, len(s.responses))
	for _, r := range s.responses {
		byID[r.QuestionID] = r
	}

	score := 0
	review := make([]QuestionReview, 0, len(s.quiz.Questions))
	for _, q := range s.quiz.Questions {
		r, ok := byID[q.ID]
		correct := ok && r.Answered && strings.EqualFold(r.Selected, q.CorrectAnswer)
		if correct {
			score++
		}
		review = append(review, QuestionReview{
			QuestionID:    q.ID,
			Text:          q.Text,
			CorrectAnswer: q.CorrectAnswer,
			Selected:      r.Selected,
			Answered:      r.Answered,
			Correct:       correct,
		})
	}
	return score, review
}

// Done is closed once the session reaches its terminal state, whichever of
// the user or the countdown got there first.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Completed reports whether the session reached its terminal state.
func (s *Session) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// Progress returns a display snapshot of the running attempt.
func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempted := 0
	for _, r := range s.responses {
		if r.Answered {
			attempted++
		}
	}
	return Progress{
		Index:     s.current,
		Total:     len(s.quiz.Questions),
		Attempted: attempted,
		Skipped:   len(s.responses) - attempted,
		Remaining: s.countdown.Remaining(),
		Completed: s.completed,
	}
}

// Responses returns a copy of the responses recorded so far.
func (s *Session) Responses() []domain.Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Response, len(s.responses))
	copy(out, s.responses)
	return out
}

// Result returns the terminal outcome; an error while the attempt is running.
func (s *Session) Result() (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.completed {
		return Result{}, domain.ErrAttemptInProgress
	}
	return s.result, nil
}

// Abandon cancels the countdown without completing; in-progress state is lost.
func (s *Session) Abandon() {
	s.countdown.Cancel()
}
