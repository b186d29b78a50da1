// Package match answers "where should we eat" queries: typed filters
// against the store, open-hours evaluation at a reference time and
// bounded random sampling.
package match

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/dinefind/place-crawler/internal/metrics"
	"github.com/dinefind/place-crawler/internal/poi"
)

const (
	defaultCount   = 3
	candidateLimit = 200
)

// Request describes one match query.
type Request struct {
	Criteria   poi.Criteria
	TargetTime *time.Time
	Count      int
}

// Config holds engine settings.
type Config struct {
	// Timezone used to evaluate opening hours when the request's
	// target time carries no better information.
	Timezone *time.Location
	// DefaultCount is the sample size when the request omits one.
	DefaultCount int
}

// Engine runs match queries against the place store.
type Engine struct {
	store  poi.Store
	clock  poi.Clock
	cfg    Config
	logger *zap.Logger
}

func New(store poi.Store, clock poi.Clock, cfg Config, logger *zap.Logger) *Engine {
	if cfg.Timezone == nil {
		cfg.Timezone = time.Local
	}
	if cfg.DefaultCount <= 0 {
		cfg.DefaultCount = defaultCount
	}
	return &Engine{store: store, clock: clock, cfg: cfg, logger: logger}
}

// Match returns up to Count places matching the criteria that are open
// at the target time, sampled uniformly without replacement. Fewer
// matches than requested returns all of them; zero matches returns an
// empty slice, not an error.
func (e *Engine) Match(ctx context.Context, req Request) ([]poi.Place, error) {
	if err := validateCriteria(req.Criteria); err != nil {
		return nil, err
	}
	count := req.Count
	if count <= 0 {
		count = e.cfg.DefaultCount
	}

	candidates, err := e.store.Find(ctx, req.Criteria, candidateLimit)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}

	at := e.clock.Now()
	if req.TargetTime != nil {
		at = *req.TargetTime
	}
	at = at.In(e.cfg.Timezone)

	open := make([]poi.Place, 0, len(candidates))
	for _, place := range candidates {
		if place.Hours.OpenAt(at) {
			open = append(open, place)
		}
	}
	metrics.ObserveMatchQuery(len(open))
	e.logger.Debug("match query evaluated",
		zap.Int("candidates", len(candidates)),
		zap.Int("open", len(open)),
		zap.Time("at", at))

	return sample(open, count), nil
}

func validateCriteria(criteria poi.Criteria) error {
	for _, tier := range criteria.PriceTiers {
		if !tier.Valid() {
			return fmt.Errorf("%w: price tier %q", poi.ErrValidation, tier)
		}
	}
	if criteria.MinRating != nil && (*criteria.MinRating < 0 || *criteria.MinRating > 5) {
		return fmt.Errorf("%w: min rating %f out of range", poi.ErrValidation, *criteria.MinRating)
	}
	if criteria.Near != nil {
		if err := criteria.Near.Center.Validate(); err != nil {
			return err
		}
		if criteria.Near.RadiusMeters <= 0 {
			return fmt.Errorf("%w: radius must be > 0", poi.ErrValidation)
		}
	}
	return nil
}

// sample picks n elements uniformly without replacement. When the pool
// is smaller than n the whole pool is returned, shuffled.
func sample(pool []poi.Place, n int) []poi.Place {
	if n > len(pool) {
		n = len(pool)
	}
	picked := make([]poi.Place, len(pool))
	copy(picked, pool)
	rand.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})
	return picked[:n]
}
