// Package catalog loads question pools from YAML, either the copy embedded in the
// binary or a file on disk, and validates pool content wherever it comes from.
package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"speak-assessment-service/internal/domain"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed pools.yaml
var embeddedPools []byte

var validate = validator.New()

type document struct {
	Pools map[domain.SectionID][]domain.Question `yaml:"pools"`
}

// Loader serves pools parsed once from a YAML document.
type Loader struct {
	pools map[domain.SectionID]domain.QuestionPool
}

// NewEmbeddedLoader parses the pools shipped with the binary.
func NewEmbeddedLoader() (*Loader, error) {
	return Parse(embeddedPools)
}

// NewFileLoader parses pools from a YAML file.
func NewFileLoader(path string) (*Loader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pools: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a pool document.
func Parse(data []byte) (*Loader, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode pools: %w", err)
	}
	pools := make(map[domain.SectionID]domain.QuestionPool, len(doc.Pools))
	for section, questions := range doc.Pools {
		pool := domain.QuestionPool{Section: section, Questions: questions}
		if err := Validate(pool); err != nil {
			return nil, err
		}
		pools[section] = pool
	}
	return &Loader{pools: pools}, nil
}

func (l *Loader) LoadPool(_ context.Context, section domain.SectionID) (domain.QuestionPool, error) {
	pool, ok := l.pools[section]
	if !ok {
		return domain.QuestionPool{}, fmt.Errorf("%w: no pool for %q", domain.ErrUnknownSection, section)
	}
	return pool, nil
}

// Pools returns every parsed pool, for seeding other stores.
func (l *Loader) Pools() []domain.QuestionPool {
	out := make([]domain.QuestionPool, 0, len(l.pools))
	for _, s := range domain.Catalog() {
		if pool, ok := l.pools[s.ID]; ok {
			out = append(out, pool)
		}
	}
	return out
}

// Validate checks struct constraints and per-kind invariants of every question, and
// that each question has the kind its section runs.
func Validate(pool domain.QuestionPool) error {
	section, ok := domain.LookupSection(pool.Section)
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownSection, pool.Section)
	}
	if err := validate.Struct(pool); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s: %s failed %q", domain.ErrInvalidPool, pool.Section, verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidPool, pool.Section, err)
	}
	for i, q := range pool.Questions {
		if q.Kind != section.Kind {
			return fmt.Errorf("%w: %s question %d has kind %s, want %s", domain.ErrInvalidPool, pool.Section, i, q.Kind, section.Kind)
		}
		if err := q.Validate(); err != nil {
			return fmt.Errorf("%s question %d: %w", pool.Section, i, err)
		}
	}
	return nil
}
