package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dinefind/place-crawler/internal/config"
	"github.com/dinefind/place-crawler/internal/discovery"
	"github.com/dinefind/place-crawler/internal/dispatcher"
	"github.com/dinefind/place-crawler/internal/match"
	"github.com/dinefind/place-crawler/internal/pipeline"
	"github.com/dinefind/place-crawler/internal/poi"
	queuemem "github.com/dinefind/place-crawler/internal/queue/memory"
	"github.com/dinefind/place-crawler/internal/storage/memory"
)

type stubProvider struct {
	pages   []poi.NearbyPage
	geocode poi.GeoPoint
	calls   int
}

func (p *stubProvider) NearbySearch(ctx context.Context, center poi.GeoPoint, radiusMeters float64, pageToken string) (poi.NearbyPage, error) {
	if p.calls >= len(p.pages) {
		return poi.NearbyPage{}, nil
	}
	page := p.pages[p.calls]
	p.calls++
	return page, nil
}

func (p *stubProvider) PlaceDetails(ctx context.Context, placeID string) (poi.PlaceDetail, error) {
	return poi.PlaceDetail{}, nil
}

func (p *stubProvider) Geocode(ctx context.Context, address string) (poi.GeoPoint, error) {
	return p.geocode, nil
}

func (p *stubProvider) PhotoURL(photoReference string) string { return "" }

type stubEnricher struct {
	nonPOI map[string]bool
}

func (e *stubEnricher) Enrich(ctx context.Context, placeID string) (poi.Place, error) {
	if e.nonPOI[placeID] {
		return poi.Place{}, poi.ErrNonPOI
	}
	return poi.Place{
		PlaceID:  placeID,
		Name:     "Place " + placeID,
		Location: poi.NewGeoPoint(23.045, 113.398),
	}, nil
}

type seqID struct{ n int }

func (g *seqID) NewID() string {
	g.n++
	return "job-" + string(rune('0'+g.n))
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type testEnv struct {
	server   *Server
	store    *memory.PlaceStore
	jobStore *memory.JobStore
	provider *stubProvider
}

func newTestEnv(t *testing.T, provider *stubProvider, cfg config.Config) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewPlaceStore()
	jobStore := memory.NewJobStore()
	queue := queuemem.NewQueue(8)
	enricher := &stubEnricher{nonPOI: map[string]bool{"hotel": true}}

	disc := discovery.New(provider, discovery.Config{TokenSettle: time.Millisecond}, logger)
	pipe := pipeline.New(disc, discovery.NewDedupFilter(store), enricher, store, nil, pipeline.Config{Concurrency: 2}, logger)
	matcher := match.New(store, fixedClock{t: time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)}, match.Config{Timezone: time.UTC}, logger)

	if cfg.Crawl.MaxResultsDefault == 0 {
		cfg.Crawl.MaxResultsDefault = 60
	}
	srv := NewServer(
		store,
		jobStore,
		dispatcher.New(queue, nil),
		pipe,
		enricher,
		provider,
		matcher,
		&seqID{},
		fixedClock{t: time.Now()},
		cfg,
		logger,
	)
	return &testEnv{server: srv, store: store, jobStore: jobStore, provider: provider}
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, &stubProvider{}, config.Config{})

	rec := doJSON(t, env.server.Handler(), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestSubmitCrawlQueuesJob(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, &stubProvider{}, config.Config{})

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/v1/crawls", map[string]any{
		"lat": 23.045, "lon": 113.398, "radius_m": 2000,
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["job_id"])

	job, err := env.jobStore.GetJob(context.Background(), resp["job_id"])
	require.NoError(t, err)
	require.Equal(t, poi.JobQueued, job.Status)
	require.Equal(t, 2000.0, job.Params.RadiusMeters)
}

func TestSubmitCrawlRejectsBadParams(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, &stubProvider{}, config.Config{})

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/v1/crawls", map[string]any{
		"lat": 23.045, "lon": 113.398, "radius_m": -5,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunCrawlSyncReturnsSummary(t *testing.T) {
	t.Parallel()
	provider := &stubProvider{pages: []poi.NearbyPage{
		{PlaceIDs: []string{"p1", "hotel", "p2"}},
	}}
	env := newTestEnv(t, provider, config.Config{})

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/v1/crawls/sync", map[string]any{
		"lat": 23.045, "lon": 113.398, "radius_m": 2000, "max_results": 10,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var summary poi.CrawlSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, 3, summary.TotalFound)
	require.Equal(t, 2, summary.Succeeded)
	require.Equal(t, 1, summary.SkippedNonPOI)
	require.Equal(t, 0, summary.Errors)
}

func TestGetCrawlJobNotFound(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, &stubProvider{}, config.Config{})

	rec := doJSON(t, env.server.Handler(), http.MethodGet, "/v1/crawls/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddPlaceByID(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, &stubProvider{}, config.Config{})

	rec := doJSON(t, env.server.Handler(), http.MethodPut, "/v1/places/p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result poi.AddResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, poi.OutcomeSucceeded, result.Status)
	require.Equal(t, "Place p1", result.Name)

	_, err := env.store.Get(context.Background(), "p1")
	require.NoError(t, err)
}

func TestAddPlaceSkipsNonPOI(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, &stubProvider{}, config.Config{})

	rec := doJSON(t, env.server.Handler(), http.MethodPut, "/v1/places/hotel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result poi.AddResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, poi.OutcomeSkippedNonPOI, result.Status)
}

func TestAddPlaceResolvesPlusCode(t *testing.T) {
	t.Parallel()
	provider := &stubProvider{
		geocode: poi.NewGeoPoint(23.045, 113.398),
		pages:   []poi.NearbyPage{{PlaceIDs: []string{"resolved"}}},
	}
	env := newTestEnv(t, provider, config.Config{})

	rec := doJSON(t, env.server.Handler(), http.MethodPut, "/v1/places/8Q7X+2F", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := env.store.Get(context.Background(), "resolved")
	require.NoError(t, err)
}

func TestGetAndDeletePlace(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, &stubProvider{}, config.Config{})
	require.NoError(t, env.store.Upsert(context.Background(), poi.Place{
		PlaceID:  "p1",
		Name:     "Keeper",
		Location: poi.NewGeoPoint(23.045, 113.398),
	}))

	rec := doJSON(t, env.server.Handler(), http.MethodGet, "/v1/places/p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, env.server.Handler(), http.MethodDelete, "/v1/places/p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var deleted map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &deleted))
	require.EqualValues(t, 1, deleted["deleted"])

	rec = doJSON(t, env.server.Handler(), http.MethodGet, "/v1/places/p1", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFindPlaces(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, &stubProvider{}, config.Config{})
	require.NoError(t, env.store.Upsert(context.Background(), poi.Place{
		PlaceID:    "open",
		Name:       "Open Spot",
		Location:   poi.NewGeoPoint(23.045, 113.398),
		Categories: []string{"sichuan"},
		Hours:      poi.OpeningHours{"monday": "09:00-22:00"},
	}))
	require.NoError(t, env.store.Upsert(context.Background(), poi.Place{
		PlaceID:    "closed",
		Name:       "Closed Spot",
		Location:   poi.NewGeoPoint(23.045, 113.398),
		Categories: []string{"sichuan"},
		Hours:      poi.OpeningHours{"monday": poi.HoursClosed},
	}))

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/v1/places/find", map[string]any{
		"filters": map[string]any{"categories": []string{"sichuan"}},
		"count":   5,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Places []poi.Place `json:"places"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Places, 1)
	require.Equal(t, "open", resp.Places[0].PlaceID)
}

func TestFindPlacesRejectsBadTier(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, &stubProvider{}, config.Config{})

	rec := doJSON(t, env.server.Handler(), http.MethodPost, "/v1/places/find", map[string]any{
		"filters": map[string]any{"price_tiers": []string{"cheap"}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVocabulary(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, &stubProvider{}, config.Config{})
	require.NoError(t, env.store.Upsert(context.Background(), poi.Place{
		PlaceID:    "p1",
		Name:       "A",
		Location:   poi.NewGeoPoint(23.045, 113.398),
		Categories: []string{"sichuan"},
		Tags:       []string{"spicy"},
	}))

	rec := doJSON(t, env.server.Handler(), http.MethodGet, "/v1/vocabulary", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var vocab map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &vocab))
	require.Equal(t, []string{"sichuan"}, vocab["categories"])
	require.Equal(t, []string{"spicy"}, vocab["tags"])
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()
	cfg := config.Config{}
	cfg.Auth.Enabled = true
	cfg.Auth.APIKey = "secret"
	env := newTestEnv(t, &stubProvider{}, cfg)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
