package redis

import (
	"context"
	"sync"
	"time"

	"speak-assessment-service/internal/app"

	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Controllers hold live device handles, so they stay in a local map.
//   - Redis marks session liveness with the section id, so operators can see
//     what is running across instances. The marker lives at least as long as
//     the set's time budget and is refreshed on every lookup.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Controller
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Controller),
	}
}

func (s *SessionStore) Put(session *app.Controller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID()] = session
	// best-effort liveness marker
	section := string(session.QuestionSet().Section)
	_ = s.client.Set(context.Background(), s.key(session.ID()), section, s.ttlFor(session)).Err()
}

func (s *SessionStore) Get(sessionID string) (*app.Controller, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if ok {
		_ = s.client.Expire(context.Background(), s.key(sessionID), s.ttlFor(session)).Err()
	}
	return session, ok
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return
	}
	delete(s.sessions, sessionID)
	_ = s.client.Del(context.Background(), s.key(sessionID)).Err()
}

func (s *SessionStore) ttlFor(session *app.Controller) time.Duration {
	return max(s.ttl, session.QuestionSet().TimeBudget)
}

func (s *SessionStore) key(sessionID string) string {
	return "assessment:session:" + sessionID
}
