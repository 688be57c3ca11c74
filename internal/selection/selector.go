// Package selection builds the question set of a session from a section's pool.
package selection

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"speak-assessment-service/internal/domain"
)

// PoolRepository provides candidate questions per section (cached, file or database backed).
type PoolRepository interface {
	GetPool(ctx context.Context, section domain.SectionID) (domain.QuestionPool, error)
}

// Sample returns k distinct elements of items in random order. items is not modified.
func Sample[T any](items []T, k int, rnd *rand.Rand) ([]T, error) {
	if k <= 0 {
		return []T{}, nil
	}
	if len(items) < k {
		return nil, fmt.Errorf("%w: need %d, have %d", domain.ErrInsufficientPool, k, len(items))
	}
	shuffled := make([]T, len(items))
	copy(shuffled, items)
	// partial Fisher-Yates: only the first k slots need to be settled
	for i := 0; i < k; i++ {
		j := i + rnd.Intn(len(shuffled)-i)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:k], nil
}

// Selector samples question sets. It is safe for concurrent use.
type Selector struct {
	pools      PoolRepository
	timeBudget time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option customizes a Selector.
type Option func(*Selector)

// WithTimeBudget overrides every section's countdown length.
func WithTimeBudget(d time.Duration) Option {
	return func(s *Selector) {
		s.timeBudget = d
	}
}

// NewSelector uses rnd as its only source of randomness; a nil rnd is seeded from the clock.
func NewSelector(pools PoolRepository, rnd *rand.Rand, opts ...Option) *Selector {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s := &Selector{pools: pools, rnd: rnd}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QuestionSet draws a fresh set for the section.
func (s *Selector) QuestionSet(ctx context.Context, id domain.SectionID) (domain.QuestionSet, error) {
	section, ok := domain.LookupSection(id)
	if !ok {
		return domain.QuestionSet{}, fmt.Errorf("%w: %q", domain.ErrUnknownSection, id)
	}

	pool, err := s.pools.GetPool(ctx, id)
	if err != nil {
		return domain.QuestionSet{}, fmt.Errorf("load %s pool: %w", id, err)
	}
	for i, q := range pool.Questions {
		if q.Kind != section.Kind {
			return domain.QuestionSet{}, fmt.Errorf("%w: %s question %d has kind %s, want %s", domain.ErrInvalidPool, id, i, q.Kind, section.Kind)
		}
	}

	s.mu.Lock()
	questions, err := Sample(pool.Questions, section.SampleSize, s.rnd)
	s.mu.Unlock()
	if err != nil {
		return domain.QuestionSet{}, fmt.Errorf("sample %s: %w", id, err)
	}

	budget := section.TimeBudget
	if s.timeBudget > 0 {
		budget = s.timeBudget
	}
	return domain.QuestionSet{
		Section:      section.ID,
		Title:        section.Title,
		Instructions: section.Instructions,
		TimeBudget:   budget,
		Questions:    questions,
	}, nil
}
