// Package api exposes the HTTP interface for the place crawler service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/dinefind/place-crawler/internal/config"
	"github.com/dinefind/place-crawler/internal/dispatcher"
	"github.com/dinefind/place-crawler/internal/match"
	"github.com/dinefind/place-crawler/internal/metrics"
	"github.com/dinefind/place-crawler/internal/pipeline"
	"github.com/dinefind/place-crawler/internal/poi"
)

// identifierResolveRadius bounds the nearby lookup when a Plus Code is
// resolved to a concrete place.
const identifierResolveRadius = 50.0

// Server wires HTTP handlers to the pipeline, stores and match engine.
type Server struct {
	router     chi.Router
	store      poi.Store
	jobStore   poi.JobStore
	dispatcher *dispatcher.Dispatcher
	pipeline   *pipeline.Pipeline
	enricher   pipeline.Enricher
	provider   poi.PlacesProvider
	matcher    *match.Engine
	idGen      poi.IDGenerator
	clock      poi.Clock
	cfg        config.Config
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	store poi.Store,
	jobStore poi.JobStore,
	dispatch *dispatcher.Dispatcher,
	pipe *pipeline.Pipeline,
	enricher pipeline.Enricher,
	provider poi.PlacesProvider,
	matcher *match.Engine,
	idGen poi.IDGenerator,
	clock poi.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	s := &Server{
		store:      store,
		jobStore:   jobStore,
		dispatcher: dispatch,
		pipeline:   pipe,
		enricher:   enricher,
		provider:   provider,
		matcher:    matcher,
		idGen:      idGen,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/crawls", func(r chi.Router) {
			r.Post("/", s.submitCrawl)
			r.Post("/sync", s.runCrawlSync)
			r.Get("/{job_id}", s.getCrawlJob)
		})
		r.Route("/places", func(r chi.Router) {
			r.Post("/find", s.findPlaces)
			r.Put("/{identifier}", s.addPlace)
			r.Get("/{place_id}", s.getPlace)
			r.Delete("/{place_id}", s.deletePlace)
		})
		r.Get("/vocabulary", s.getVocabulary)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	// The store is the only hard dependency; a cheap query proves it.
	if _, err := s.store.ExistsBatch(r.Context(), nil); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable", s.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, s.logger)
}

type crawlRequest struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	RadiusM     float64 `json:"radius_m"`
	MaxResults  *int    `json:"max_results"`
	StartPage   *int    `json:"start_page"`
	EndPage     *int    `json:"end_page"`
	ForceUpdate bool    `json:"force_update"`
}

func (s *Server) toCrawlParams(req crawlRequest) (poi.CrawlParams, error) {
	params := poi.CrawlParams{
		CenterLat:    req.Lat,
		CenterLng:    req.Lon,
		RadiusMeters: req.RadiusM,
		MaxResults:   valueOrDefault(req.MaxResults, s.cfg.Crawl.MaxResultsDefault),
		StartPage:    valueOrDefault(req.StartPage, 0),
		EndPage:      valueOrDefault(req.EndPage, 0),
		ForceUpdate:  req.ForceUpdate,
	}
	if err := params.Validate(); err != nil {
		return poi.CrawlParams{}, err
	}
	return params, nil
}

func (s *Server) submitCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", s.logger)
		return
	}
	params, err := s.toCrawlParams(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), s.logger)
		return
	}

	jobID := s.idGen.NewID()
	now := s.clock.Now()
	job := poi.CrawlJob{
		ID:        jobID,
		Status:    poi.JobQueued,
		Submitted: now,
		Params:    params,
	}
	if err := s.jobStore.CreateJob(r.Context(), job); err != nil {
		writeError(w, http.StatusInternalServerError, "create job failed", s.logger)
		return
	}

	queueCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	item := poi.QueueItem{JobID: jobID, Params: params, Submitted: now.Unix()}
	if err := s.dispatcher.Enqueue(queueCtx, item); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusRequestTimeout
		}
		writeError(w, status, err.Error(), s.logger)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID}, s.logger)
}

func (s *Server) runCrawlSync(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", s.logger)
		return
	}
	params, err := s.toCrawlParams(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), s.logger)
		return
	}
	summary, err := s.pipeline.Run(r.Context(), params)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error(), s.logger)
		return
	}
	writeJSON(w, http.StatusOK, summary, s.logger)
}

func (s *Server) getCrawlJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobStore.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found", s.logger)
		return
	}
	writeJSON(w, http.StatusOK, job, s.logger)
}

type findRequest struct {
	Filters struct {
		Categories []string        `json:"categories"`
		PriceTiers []poi.PriceTier `json:"price_tiers"`
		MinRating  *float64        `json:"min_rating"`
		Keywords   []string        `json:"keywords"`
	} `json:"filters"`
	Near *struct {
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
		RadiusM float64 `json:"radius_m"`
	} `json:"near"`
	TargetTime *time.Time `json:"target_time"`
	Count      int        `json:"count"`
}

func (s *Server) findPlaces(w http.ResponseWriter, r *http.Request) {
	var req findRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", s.logger)
		return
	}

	criteria := poi.Criteria{
		Categories: req.Filters.Categories,
		PriceTiers: req.Filters.PriceTiers,
		MinRating:  req.Filters.MinRating,
		Keywords:   req.Filters.Keywords,
	}
	if req.Near != nil {
		criteria.Near = &poi.GeoCircle{
			Center:       poi.NewGeoPoint(req.Near.Lat, req.Near.Lon),
			RadiusMeters: req.Near.RadiusM,
		}
	}

	places, err := s.matcher.Match(r.Context(), match.Request{
		Criteria:   criteria,
		TargetTime: req.TargetTime,
		Count:      req.Count,
	})
	if err != nil {
		if errors.Is(err, poi.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error(), s.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "match query failed", s.logger)
		return
	}
	if places == nil {
		places = []poi.Place{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"places": places}, s.logger)
}

func (s *Server) addPlace(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	placeID, err := s.resolveIdentifier(r.Context(), identifier)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error(), s.logger)
		return
	}

	place, err := s.enricher.Enrich(r.Context(), placeID)
	if errors.Is(err, poi.ErrNonPOI) {
		writeJSON(w, http.StatusOK, poi.AddResult{Status: poi.OutcomeSkippedNonPOI}, s.logger)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error(), s.logger)
		return
	}
	if err := s.store.Upsert(r.Context(), place); err != nil {
		writeError(w, http.StatusInternalServerError, "upsert failed", s.logger)
		return
	}
	writeJSON(w, http.StatusOK, poi.AddResult{Status: poi.OutcomeSucceeded, Name: place.Name}, s.logger)
}

// resolveIdentifier maps the path identifier to a provider place ID.
// Plus Codes and free-form addresses are geocoded, then the nearest
// result within a short radius wins.
func (s *Server) resolveIdentifier(ctx context.Context, identifier string) (string, error) {
	if !strings.ContainsAny(identifier, "+ ") {
		return identifier, nil
	}
	point, err := s.provider.Geocode(ctx, identifier)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", identifier, err)
	}
	page, err := s.provider.NearbySearch(ctx, point, identifierResolveRadius, "")
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", identifier, err)
	}
	if len(page.PlaceIDs) == 0 {
		return "", fmt.Errorf("%w: no place at %q", poi.ErrNotFound, identifier)
	}
	return page.PlaceIDs[0], nil
}

func (s *Server) getPlace(w http.ResponseWriter, r *http.Request) {
	placeID := chi.URLParam(r, "place_id")
	place, err := s.store.Get(r.Context(), placeID)
	if errors.Is(err, poi.ErrNotFound) {
		writeError(w, http.StatusNotFound, "place not found", s.logger)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "get place failed", s.logger)
		return
	}
	writeJSON(w, http.StatusOK, place, s.logger)
}

func (s *Server) deletePlace(w http.ResponseWriter, r *http.Request) {
	placeID := chi.URLParam(r, "place_id")
	deleted, err := s.store.Delete(r.Context(), placeID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed", s.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted}, s.logger)
}

func (s *Server) getVocabulary(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.Distinct(r.Context(), "categories")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "vocabulary query failed", s.logger)
		return
	}
	tags, err := s.store.Distinct(r.Context(), "tags")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "vocabulary query failed", s.logger)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	if tags == nil {
		tags = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{
		"categories": categories,
		"tags":       tags,
	}, s.logger)
}

func valueOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}
