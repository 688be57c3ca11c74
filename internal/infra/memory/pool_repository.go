package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"speak-assessment-service/internal/domain"

	"golang.org/x/sync/singleflight"
)

// PoolLoader fetches a section's question pool from a backing store (file, database).
type PoolLoader interface {
	LoadPool(ctx context.Context, section domain.SectionID) (domain.QuestionPool, error)
}

// PoolRepository caches pools with TTL to avoid repeated loads.
type PoolRepository struct {
	loader PoolLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[domain.SectionID]cachedPool
}

type cachedPool struct {
	pool      domain.QuestionPool
	expiresAt time.Time
}

func NewPoolRepository(loader PoolLoader, ttl time.Duration) *PoolRepository {
	return &PoolRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[domain.SectionID]cachedPool),
	}
}

func (r *PoolRepository) GetPool(ctx context.Context, section domain.SectionID) (domain.QuestionPool, error) {
	if pool, ok := r.cached(section); ok {
		return pool, nil
	}

	result, err, _ := r.sf.Do(string(section), func() (interface{}, error) {
		if pool, ok := r.cached(section); ok {
			return pool, nil
		}

		pool, err := r.loader.LoadPool(ctx, section)
		if err != nil {
			return domain.QuestionPool{}, err
		}

		r.mu.Lock()
		r.cache[section] = cachedPool{
			pool:      pool,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return pool, nil
	})
	if err != nil {
		return domain.QuestionPool{}, err
	}
	return result.(domain.QuestionPool), nil
}

func (r *PoolRepository) cached(section domain.SectionID) (domain.QuestionPool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[section]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.QuestionPool{}, false
	}
	return entry.pool, true
}

func (r *PoolRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticPoolLoader is a loader backed by an in-memory map (useful for tests/demos).
type StaticPoolLoader struct {
	pools map[domain.SectionID]domain.QuestionPool
}

func NewStaticPoolLoader(pools map[domain.SectionID]domain.QuestionPool) *StaticPoolLoader {
	return &StaticPoolLoader{pools: pools}
}

func (l *StaticPoolLoader) LoadPool(_ context.Context, section domain.SectionID) (domain.QuestionPool, error) {
	if pool, ok := l.pools[section]; ok {
		return pool, nil
	}
	return domain.QuestionPool{}, domain.ErrUnknownSection
}
