package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dinefind/place-crawler/internal/poi"
)

func testPlace(placeID, name string) poi.Place {
	return poi.Place{
		PlaceID:    placeID,
		Name:       name,
		Location:   poi.NewGeoPoint(23.045, 113.398),
		Categories: []string{"sichuan"},
		PriceTier:  poi.PriceModerate,
		Hours:      poi.OpeningHours{},
	}
}

func TestPlaceStoreUpsertIsIdempotent(t *testing.T) {
	t.Parallel()
	store := NewPlaceStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, testPlace("p1", "Old Name")))
	require.NoError(t, store.Upsert(ctx, testPlace("p1", "New Name")))

	got, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, "New Name", got.Name)
	require.Equal(t, "p1", got.ID)
	require.False(t, got.LastUpdated.IsZero())
}

func TestPlaceStoreUpsertRejectsMissingPlaceID(t *testing.T) {
	t.Parallel()
	store := NewPlaceStore()
	err := store.Upsert(context.Background(), poi.Place{Name: "nameless"})
	require.ErrorIs(t, err, poi.ErrValidation)
}

func TestPlaceStoreGetMissing(t *testing.T) {
	t.Parallel()
	store := NewPlaceStore()
	_, err := store.Get(context.Background(), "absent")
	require.ErrorIs(t, err, poi.ErrNotFound)
}

func TestPlaceStoreDelete(t *testing.T) {
	t.Parallel()
	store := NewPlaceStore()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, testPlace("p1", "A")))

	n, err := store.Delete(ctx, "p1")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	n, err = store.Delete(ctx, "p1")
	require.NoError(t, err)
	require.EqualValues(t, 0, n)
}

func TestPlaceStoreExistsBatch(t *testing.T) {
	t.Parallel()
	store := NewPlaceStore()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, testPlace("p1", "A")))
	require.NoError(t, store.Upsert(ctx, testPlace("p3", "C")))

	existing, err := store.ExistsBatch(ctx, []string{"p1", "p2", "p3"})
	require.NoError(t, err)
	require.Len(t, existing, 2)
	require.Contains(t, existing, "p1")
	require.Contains(t, existing, "p3")
}

func TestPlaceStoreDistinct(t *testing.T) {
	t.Parallel()
	store := NewPlaceStore()
	ctx := context.Background()

	a := testPlace("p1", "A")
	a.Categories = []string{"sichuan", "hotpot"}
	b := testPlace("p2", "B")
	b.Categories = []string{"hotpot"}
	require.NoError(t, store.Upsert(ctx, a))
	require.NoError(t, store.Upsert(ctx, b))

	values, err := store.Distinct(ctx, "categories")
	require.NoError(t, err)
	require.Equal(t, []string{"hotpot", "sichuan"}, values)

	_, err = store.Distinct(ctx, "address")
	require.ErrorIs(t, err, poi.ErrValidation)
}

func TestPlaceStoreFindByCriteria(t *testing.T) {
	t.Parallel()
	store := NewPlaceStore()
	ctx := context.Background()

	cheap := testPlace("p1", "Noodle House")
	cheap.PriceTier = poi.PriceCheap
	high := 4.6
	fancy := testPlace("p2", "Grand Sichuan")
	fancy.PriceTier = poi.PriceExpensive
	fancy.Rating = &high
	fancy.Tags = []string{"spicy"}
	require.NoError(t, store.Upsert(ctx, cheap))
	require.NoError(t, store.Upsert(ctx, fancy))

	minRating := 4.0
	got, err := store.Find(ctx, poi.Criteria{
		Categories: []string{"sichuan"},
		PriceTiers: []poi.PriceTier{poi.PriceExpensive},
		MinRating:  &minRating,
	}, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "p2", got[0].PlaceID)
}

func TestPlaceStoreFindKeywordMatchesNameTagOrCategory(t *testing.T) {
	t.Parallel()
	store := NewPlaceStore()
	ctx := context.Background()

	byName := testPlace("p1", "Dragon Noodles")
	byTag := testPlace("p2", "Plain Diner")
	byTag.Tags = []string{"noodles"}
	miss := testPlace("p3", "Salad Bar")
	require.NoError(t, store.Upsert(ctx, byName))
	require.NoError(t, store.Upsert(ctx, byTag))
	require.NoError(t, store.Upsert(ctx, miss))

	got, err := store.Find(ctx, poi.Criteria{Keywords: []string{"noodles"}}, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "p1", got[0].PlaceID)
	require.Equal(t, "p2", got[1].PlaceID)
}

func TestPlaceStoreGeoNear(t *testing.T) {
	t.Parallel()
	store := NewPlaceStore()
	ctx := context.Background()

	near := testPlace("near", "Near")
	near.Location = poi.NewGeoPoint(23.0451, 113.3981)
	far := testPlace("far", "Far")
	far.Location = poi.NewGeoPoint(23.5, 113.9)
	require.NoError(t, store.Upsert(ctx, near))
	require.NoError(t, store.Upsert(ctx, far))

	got, err := store.GeoNear(ctx, poi.NewGeoPoint(23.045, 113.398), 2000, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "near", got[0].PlaceID)
}

func TestJobStoreLifecycle(t *testing.T) {
	t.Parallel()
	store := NewJobStore()
	ctx := context.Background()

	job := poi.CrawlJob{ID: "job-1", Status: poi.JobQueued}
	require.NoError(t, store.CreateJob(ctx, job))

	require.NoError(t, store.UpdateJobStatus(ctx, "job-1", poi.JobRunning, "", nil))
	got, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, poi.JobRunning, got.Status)
	require.NotNil(t, got.Started)

	summary := &poi.CrawlSummary{TotalFound: 3, Succeeded: 3}
	require.NoError(t, store.UpdateJobStatus(ctx, "job-1", poi.JobSucceeded, "", summary))
	got, err = store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, poi.JobSucceeded, got.Status)
	require.NotNil(t, got.Finished)
	require.Equal(t, summary, got.Summary)

	require.ErrorIs(t, store.UpdateJobStatus(ctx, "nope", poi.JobFailed, "x", nil), poi.ErrNotFound)
}
