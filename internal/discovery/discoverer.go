// Package discovery drives paginated nearby search against the places
// provider and filters out already-ingested ids.
package discovery

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/dinefind/place-crawler/internal/metrics"
	"github.com/dinefind/place-crawler/internal/poi"
)

// DefaultTokenSettle is how long a continuation token needs before it is
// usable. Tokens reused immediately are rejected by the provider.
const DefaultTokenSettle = 2 * time.Second

// Config controls Discoverer behavior.
type Config struct {
	TokenSettle time.Duration
}

// Discoverer accumulates a deduplicated id set across result pages.
type Discoverer struct {
	provider poi.PlacesProvider
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Discoverer.
func New(provider poi.PlacesProvider, cfg Config, logger *zap.Logger) *Discoverer {
	if cfg.TokenSettle <= 0 {
		cfg.TokenSettle = DefaultTokenSettle
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{provider: provider, cfg: cfg, logger: logger}
}

// Discover pages through nearby search until the page window closes, the
// result cap fills, or the provider stops returning continuation tokens.
// A page-fetch error after the first page truncates pagination and returns
// the partial set; a first-page failure is fatal for the crawl.
func (d *Discoverer) Discover(ctx context.Context, params poi.CrawlParams) ([]string, int, error) {
	ids := make(map[string]struct{}, params.MaxResults)
	pageToken := ""
	page := 0
	startPage := params.StartPage
	if startPage < 1 {
		startPage = 1
	}

	for {
		if pageToken != "" {
			if err := d.settle(ctx); err != nil {
				return sortedIDs(ids), page, err
			}
		}
		result, err := d.provider.NearbySearch(ctx, params.Center(), params.RadiusMeters, pageToken)
		if err != nil {
			if page == 0 {
				return nil, 0, fmt.Errorf("nearby search: %w", err)
			}
			d.logger.Warn("page fetch failed, returning partial result",
				zap.Int("pages_crawled", page),
				zap.Int("ids", len(ids)),
				zap.Error(err),
			)
			return sortedIDs(ids), page, nil
		}
		page++
		metrics.ObservePageCrawled()

		capped := false
		if page >= startPage {
			capped = accumulate(ids, result.PlaceIDs, params.MaxResults)
		} else {
			d.logger.Debug("skipping page before window start",
				zap.Int("page", page),
				zap.Int("start_page", startPage),
			)
		}

		d.logger.Debug("page fetched",
			zap.Int("page", page),
			zap.Int("page_ids", len(result.PlaceIDs)),
			zap.Int("total_ids", len(ids)),
		)

		if capped {
			return sortedIDs(ids), page, nil
		}
		if params.EndPage > 0 && page >= params.EndPage {
			return sortedIDs(ids), page, nil
		}
		if result.NextPageToken == "" {
			return sortedIDs(ids), page, nil
		}
		pageToken = result.NextPageToken
	}
}

// accumulate merges a page's ids into the set, truncating the page's
// contribution to the remaining slots. Reports whether the cap is full.
func accumulate(ids map[string]struct{}, pageIDs []string, maxResults int) bool {
	for _, id := range pageIDs {
		if len(ids) >= maxResults {
			return true
		}
		ids[id] = struct{}{}
	}
	return len(ids) >= maxResults
}

func (d *Discoverer) settle(ctx context.Context) error {
	timer := time.NewTimer(d.cfg.TokenSettle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("settle wait: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func sortedIDs(ids map[string]struct{}) []string {
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
