package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"speak-assessment-service/internal/catalog"
	"speak-assessment-service/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// PoolLoader loads question pool JSONB from Postgres.
type PoolLoader struct {
	pool *pgxpool.Pool
}

func NewPoolLoader(pool *pgxpool.Pool) *PoolLoader {
	return &PoolLoader{pool: pool}
}

func (l *PoolLoader) LoadPool(ctx context.Context, section domain.SectionID) (domain.QuestionPool, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM question_pools WHERE section=$1`, string(section)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuestionPool{}, fmt.Errorf("load pool %s: %w", section, domain.ErrUnknownSection)
	}
	if err != nil {
		return domain.QuestionPool{}, fmt.Errorf("load pool %s: %w", section, err)
	}
	var pool domain.QuestionPool
	if err := json.Unmarshal(raw, &pool); err != nil {
		return domain.QuestionPool{}, fmt.Errorf("unmarshal pool %s: %w", section, err)
	}
	pool.Section = section
	if err := catalog.Validate(pool); err != nil {
		return domain.QuestionPool{}, err
	}
	return pool, nil
}

// SavePool validates and upserts a pool.
func (l *PoolLoader) SavePool(ctx context.Context, pool domain.QuestionPool) error {
	if err := catalog.Validate(pool); err != nil {
		return err
	}
	data, err := json.Marshal(pool)
	if err != nil {
		return fmt.Errorf("marshal pool %s: %w", pool.Section, err)
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO question_pools (section, data, updated_at) VALUES ($1, $2::jsonb, now())
		ON CONFLICT (section) DO UPDATE SET data=EXCLUDED.data, updated_at=now()`,
		string(pool.Section), string(data))
	if err != nil {
		return fmt.Errorf("save pool %s: %w", pool.Section, err)
	}
	return nil
}
