// Package pipeline runs a full crawl: discovery, dedup against the
// store, concurrent enrichment and idempotent persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/dinefind/place-crawler/internal/discovery"
	"github.com/dinefind/place-crawler/internal/metrics"
	"github.com/dinefind/place-crawler/internal/poi"
)

const defaultConcurrency = 8

// Config bounds pipeline behavior.
type Config struct {
	Concurrency int
}

// Archiver copies a place photo into durable storage. Optional.
type Archiver interface {
	Archive(ctx context.Context, place *poi.Place) error
}

// Pipeline wires the crawl stages together.
type Pipeline struct {
	discoverer *discovery.Discoverer
	dedup      *discovery.DedupFilter
	enricher   Enricher
	store      poi.Store
	archiver   Archiver
	cfg        Config
	logger     *zap.Logger
}

// Enricher produces a storable place from a provider place ID.
type Enricher interface {
	Enrich(ctx context.Context, placeID string) (poi.Place, error)
}

func New(discoverer *discovery.Discoverer, dedup *discovery.DedupFilter, enricher Enricher, store poi.Store, archiver Archiver, cfg Config, logger *zap.Logger) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Pipeline{
		discoverer: discoverer,
		dedup:      dedup,
		enricher:   enricher,
		store:      store,
		archiver:   archiver,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run executes one crawl. It returns an error only when discovery
// fails outright or the dedup query fails; individual place failures
// are absorbed into the summary error count.
func (p *Pipeline) Run(ctx context.Context, params poi.CrawlParams) (poi.CrawlSummary, error) {
	if err := params.Validate(); err != nil {
		return poi.CrawlSummary{}, err
	}

	ids, pages, err := p.discoverer.Discover(ctx, params)
	if err != nil {
		return poi.CrawlSummary{PagesCrawled: pages}, fmt.Errorf("discover: %w", err)
	}

	fresh, existing, err := p.dedup.Filter(ctx, ids, params.ForceUpdate)
	if err != nil {
		return poi.CrawlSummary{TotalFound: len(ids), PagesCrawled: pages}, fmt.Errorf("dedup: %w", err)
	}

	summary := poi.CrawlSummary{
		TotalFound:    len(ids),
		AlreadyExists: existing,
		ToProcess:     len(fresh),
		PagesCrawled:  pages,
	}
	p.logger.Info("crawl discovered places",
		zap.Int("total_found", summary.TotalFound),
		zap.Int("already_exists", summary.AlreadyExists),
		zap.Int("to_process", summary.ToProcess))

	outcomes := p.processAll(ctx, fresh)
	for _, outcome := range outcomes {
		switch outcome {
		case poi.OutcomeSucceeded:
			summary.Succeeded++
		case poi.OutcomeSkippedNonPOI:
			summary.SkippedNonPOI++
		case poi.OutcomeError:
			summary.Errors++
		}
		metrics.ObserveOutcome(string(outcome))
	}
	return summary, nil
}

// processAll enriches and stores the given place IDs with bounded
// concurrency, waiting for every task before returning. Each ID yields
// exactly one outcome.
func (p *Pipeline) processAll(ctx context.Context, placeIDs []string) []poi.OutcomeStatus {
	outcomes := make([]poi.OutcomeStatus, len(placeIDs))
	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, placeID := range placeIDs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, placeID string) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = p.processOne(ctx, placeID)
		}(i, placeID)
	}
	wg.Wait()
	return outcomes
}

func (p *Pipeline) processOne(ctx context.Context, placeID string) poi.OutcomeStatus {
	place, err := p.enricher.Enrich(ctx, placeID)
	if errors.Is(err, poi.ErrNonPOI) {
		return poi.OutcomeSkippedNonPOI
	}
	if err != nil {
		p.logger.Warn("enrich failed", zap.String("place_id", placeID), zap.Error(err))
		return poi.OutcomeError
	}

	if p.archiver != nil {
		// Photo archival is best effort and must not fail the place.
		if err := p.archiver.Archive(ctx, &place); err != nil {
			p.logger.Warn("photo archive failed", zap.String("place_id", placeID), zap.Error(err))
		}
	}

	if err := p.store.Upsert(ctx, place); err != nil {
		p.logger.Warn("upsert failed", zap.String("place_id", placeID), zap.Error(err))
		return poi.OutcomeError
	}
	return poi.OutcomeSucceeded
}
