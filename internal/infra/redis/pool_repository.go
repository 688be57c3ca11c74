package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"speak-assessment-service/internal/domain"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// PoolLoader fetches a section's question pool from a backing store (file, database).
type PoolLoader interface {
	LoadPool(ctx context.Context, section domain.SectionID) (domain.QuestionPool, error)
}

// PoolRepository caches pools in Redis as JSON and falls back to a loader on cache miss.
// Pools are stored as: SET pool:{section} {json} EX {ttl}
type PoolRepository struct {
	client *redis.Client
	loader PoolLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewPoolRepository(client *redis.Client, loader PoolLoader, ttl time.Duration) *PoolRepository {
	return &PoolRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *PoolRepository) GetPool(ctx context.Context, section domain.SectionID) (domain.QuestionPool, error) {
	if pool, ok := r.cached(ctx, section); ok {
		return pool, nil
	}

	result, err, _ := r.sf.Do(string(section), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if pool, ok := r.cached(ctx, section); ok {
			return pool, nil
		}

		pool, err := r.loader.LoadPool(ctx, section)
		if err != nil {
			return domain.QuestionPool{}, err
		}

		data, err := json.Marshal(pool)
		if err != nil {
			return domain.QuestionPool{}, fmt.Errorf("marshal pool: %w", err)
		}
		// best-effort; a failed write only costs a reload
		_ = r.client.Set(ctx, r.key(section), data, r.ttlWithJitter()).Err()
		return pool, nil
	})
	if err != nil {
		return domain.QuestionPool{}, err
	}
	return result.(domain.QuestionPool), nil
}

func (r *PoolRepository) cached(ctx context.Context, section domain.SectionID) (domain.QuestionPool, bool) {
	data, err := r.client.Get(ctx, r.key(section)).Bytes()
	if err != nil {
		return domain.QuestionPool{}, false
	}
	var pool domain.QuestionPool
	if err := json.Unmarshal(data, &pool); err != nil {
		return domain.QuestionPool{}, false
	}
	return pool, true
}

// Invalidate drops a cached pool so the next read goes to the loader.
func (r *PoolRepository) Invalidate(ctx context.Context, section domain.SectionID) error {
	return r.client.Del(ctx, r.key(section)).Err()
}

func (r *PoolRepository) key(section domain.SectionID) string {
	return "pool:" + string(section)
}

func (r *PoolRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
