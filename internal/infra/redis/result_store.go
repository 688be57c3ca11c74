package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"speak-assessment-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

// ResultStore hands completed sessions to the results view through Redis so any
// instance can serve them. Entries expire after ttl.
type ResultStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResultStore(client *redis.Client, ttl time.Duration) *ResultStore {
	return &ResultStore{client: client, ttl: ttl}
}

func (s *ResultStore) SaveResult(ctx context.Context, completion domain.Completion) error {
	data, err := json.Marshal(completion)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return s.client.Set(ctx, s.key(completion.SessionID), data, s.ttl).Err()
}

func (s *ResultStore) GetResult(ctx context.Context, sessionID string) (domain.Completion, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Completion{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.Completion{}, fmt.Errorf("get result: %w", err)
	}
	var completion domain.Completion
	if err := json.Unmarshal(data, &completion); err != nil {
		return domain.Completion{}, fmt.Errorf("unmarshal result: %w", err)
	}
	return completion, nil
}

func (s *ResultStore) key(sessionID string) string {
	return "assessment:result:" + sessionID
}
