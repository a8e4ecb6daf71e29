package memory

import (
	"sync"

	"classquiz-service/internal/app"
)

// AttemptStore is an in-memory implementation of app.AttemptRepository.
// Attempts are keyed by their generated ID; a lost entry means the respondent
// starts over, which matches the no-resume lifecycle of an attempt.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]*app.Session
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts: make(map[string]*app.Session),
	}
}

func (s *AttemptStore) Put(attemptID string, session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[attemptID] = session
}

func (s *AttemptStore) Get(attemptID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.attempts[attemptID]
	return session, ok
}

func (s *AttemptStore) Delete(attemptID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, attemptID)
}
