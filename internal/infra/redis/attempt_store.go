package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"classquiz-service/internal/app"
)

// AttemptStore is a Redis-aware implementation of app.AttemptRepository.
// Notes:
//   - Sessions themselves stay in a local map; the countdown and the staged
//     selection are live in-process state and are not replayable from Redis.
//   - Redis marks attempt liveness with a TTL so operators can see open
//     attempts across instances and stale markers age out on their own.
type AttemptStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	attempts map[string]*app.Session
}

func NewAttemptStore(client *redis.Client, ttl time.Duration) *AttemptStore {
	return &AttemptStore{
		client:   client,
		ttl:      ttl,
		attempts: make(map[string]*app.Session),
	}
}

func (s *AttemptStore) Put(attemptID string, session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[attemptID] = session
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(attemptID), session.Quiz().ID, s.ttl).Err()
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
	if _, ok := s.attempts[attemptID]; !ok {
		return
	}
	delete(s.attempts, attemptID)
	_ = s.client.Del(context.Background(), s.key(attemptID)).Err()
}

func (s *AttemptStore) key(attemptID string) string {
	return "attempt:" + attemptID
}
