package memory

import (
	"context"
	"sync"
	"time"

	"speak-assessment-service/internal/domain"
)

// ResultStore keeps completed sessions for the results view until they expire.
type ResultStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.Mutex
	results map[string]storedResult
}

type storedResult struct {
	completion domain.Completion
	expiresAt  time.Time
}

func NewResultStore(ttl time.Duration) *ResultStore {
	return &ResultStore{
		ttl:     ttl,
		clock:   time.Now,
		results: make(map[string]storedResult),
	}
}

func (s *ResultStore) SaveResult(_ context.Context, completion domain.Completion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	s.evictLocked(now)
	s.results[completion.SessionID] = storedResult{
		completion: completion,
		expiresAt:  now.Add(s.ttl),
	}
	return nil
}

func (s *ResultStore) GetResult(_ context.Context, sessionID string) (domain.Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.results[sessionID]
	if !ok || !entry.expiresAt.After(s.clock()) {
		delete(s.results, sessionID)
		return domain.Completion{}, domain.ErrResultNotFound
	}
	return entry.completion, nil
}

func (s *ResultStore) evictLocked(now time.Time) {
	for id, entry := range s.results {
		if !entry.expiresAt.After(now) {
			delete(s.results, id)
		}
	}
}
