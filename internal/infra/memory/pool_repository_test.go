package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"speak-assessment-service/internal/domain"
)

func TestPoolRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		PoolLoader: NewStaticPoolLoader(map[domain.SectionID]domain.QuestionPool{
			domain.SectionReading: samplePool(),
		}),
	}
	repo := NewPoolRepository(loader, time.Minute)

	if _, err := repo.GetPool(context.Background(), domain.SectionReading); err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.GetPool(context.Background(), domain.SectionReading); err != nil {
		t.Fatalf("get pool 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestPoolRepositoryReloadsAfterExpiry(t *testing.T) {
	loader := &countingLoader{
		PoolLoader: NewStaticPoolLoader(map[domain.SectionID]domain.QuestionPool{
			domain.SectionReading: samplePool(),
		}),
	}
	repo := NewPoolRepository(loader, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	_, _ = repo.GetPool(context.Background(), domain.SectionReading)
	now = now.Add(2 * time.Minute)
	_, _ = repo.GetPool(context.Background(), domain.SectionReading)
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.calls)
	}
}

func TestPoolRepositoryUnknownSection(t *testing.T) {
	repo := NewPoolRepository(NewStaticPoolLoader(nil), time.Minute)
	_, err := repo.GetPool(context.Background(), "nope")
	if !errors.Is(err, domain.ErrUnknownSection) {
		t.Fatalf("expected unknown section, got %v", err)
	}
}

type countingLoader struct {
	PoolLoader
	calls int
}

func (l *countingLoader) LoadPool(ctx context.Context, section domain.SectionID) (domain.QuestionPool, error) {
	l.calls++
	return l.PoolLoader.LoadPool(ctx, section)
}

func samplePool() domain.QuestionPool {
	return domain.QuestionPool{
		Section: domain.SectionReading,
		Questions: []domain.Question{
			{Kind: domain.KindReadAloud, Text: "The quick brown fox jumps over the lazy dog."},
			{Kind: domain.KindReadAloud, Text: "Technology has revolutionized the way we communicate."},
		},
	}
}
