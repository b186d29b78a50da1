package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dinefind/place-crawler/internal/poi"
)

type existsOnlyStore struct {
	poi.Store
	existing map[string]struct{}
	queries  int
	err      error
}

func (s *existsOnlyStore) ExistsBatch(_ context.Context, ids []string) (map[string]struct{}, error) {
	s.queries++
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]struct{})
	for _, id := range ids {
		if _, ok := s.existing[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func TestFilter_SetDifference(t *testing.T) {
	t.Parallel()

	store := &existsOnlyStore{existing: map[string]struct{}{"b": {}, "d": {}}}
	f := NewDedupFilter(store)

	toProcess, existing, err := f.Filter(context.Background(), []string{"a", "b", "c", "d"}, false)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "c"}, toProcess)
	require.Equal(t, 2, existing)
	require.Equal(t, 1, store.queries, "existence is one batched query")
}

func TestFilter_ForceReturnsAllWithZeroExisting(t *testing.T) {
	t.Parallel()

	store := &existsOnlyStore{existing: map[string]struct{}{"a": {}}}
	f := NewDedupFilter(store)

	toProcess, existing, err := f.Filter(context.Background(), []string{"a", "b"}, true)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, toProcess)
	require.Zero(t, existing)
	require.Zero(t, store.queries, "force skips the store entirely")
}

func TestFilter_EmptyInput(t *testing.T) {
	t.Parallel()

	store := &existsOnlyStore{}
	toProcess, existing, err := NewDedupFilter(store).Filter(context.Background(), nil, false)
	require.NoError(t, err)
	require.Empty(t, toProcess)
	require.Zero(t, existing)
	require.Zero(t, store.queries)
}

func TestFilter_StoreError(t *testing.T) {
	t.Parallel()

	store := &existsOnlyStore{err: errors.New("connection reset")}
	_, _, err := NewDedupFilter(store).Filter(context.Background(), []string{"a"}, false)
	require.Error(t, err)
}
