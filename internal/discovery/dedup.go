package discovery

import (
	"context"
	"fmt"

	"github.com/dinefind/place-crawler/internal/poi"
)

// DedupFilter removes ids already present in the store.
type DedupFilter struct {
	store poi.Store
}

// NewDedupFilter constructs a DedupFilter.
func NewDedupFilter(store poi.Store) *DedupFilter {
	return &DedupFilter{store: store}
}

// Filter returns the ids not yet in the store plus the count of ids that
// were. Existence is resolved with one batched query, never per id. Under
// force, every id passes and the existing count is reported as zero.
func (f *DedupFilter) Filter(ctx context.Context, ids []string, force bool) ([]string, int, error) {
	if force || len(ids) == 0 {
		return ids, 0, nil
	}
	existing, err := f.store.ExistsBatch(ctx, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("existence check: %w", err)
	}
	toProcess := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := existing[id]; !ok {
			toProcess = append(toProcess, id)
		}
	}
	return toProcess, len(existing), nil
}
