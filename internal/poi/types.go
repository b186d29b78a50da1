// Package poi defines core types shared across subsystems.
package poi

import (
	"fmt"
	"time"
)

// PriceTier is one of the four ordinal price symbols.
type PriceTier string

// Price tiers from cheapest to most expensive.
const (
	PriceCheap     PriceTier = "$"
	PriceModerate  PriceTier = "$$"
	PriceExpensive PriceTier = "$$$"
	PriceLuxury    PriceTier = "$$$$"
)

// Valid reports whether the tier is one of the four known symbols.
func (t PriceTier) Valid() bool {
	switch t {
	case PriceCheap, PriceModerate, PriceExpensive, PriceLuxury:
		return true
	}
	return false
}

// GeoPoint is a GeoJSON point. Coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string     `bson:"type" json:"type"`
	Coordinates [2]float64 `bson:"coordinates" json:"coordinates"`
}

// NewGeoPoint builds a GeoPoint from latitude and longitude.
func NewGeoPoint(lat, lng float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: [2]float64{lng, lat}}
}

// Longitude returns coordinate 0.
func (p GeoPoint) Longitude() float64 { return p.Coordinates[0] }

// Latitude returns coordinate 1.
func (p GeoPoint) Latitude() float64 { return p.Coordinates[1] }

// Validate checks coordinate ranges.
func (p GeoPoint) Validate() error {
	lng, lat := p.Coordinates[0], p.Coordinates[1]
	if lng < -180 || lng > 180 {
		return fmt.Errorf("%w: longitude %f out of range", ErrValidation, lng)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range", ErrValidation, lat)
	}
	return nil
}

// GeoCircle bounds a query to a radius around a center point.
type GeoCircle struct {
	Center       GeoPoint `json:"center"`
	RadiusMeters float64  `json:"radius_meters"`
}

// Place is the canonical persisted record for one point of interest.
// The PlaceID (the provider's identifier) is the uniqueness key; ID is
// the store's internal row identifier in caller-safe string form.
type Place struct {
	ID          string       `bson:"-" json:"id,omitempty"`
	PlaceID     string       `bson:"place_id" json:"place_id"`
	Name        string       `bson:"name" json:"name"`
	Address     string       `bson:"address" json:"address"`
	Location    GeoPoint     `bson:"location" json:"location"`
	Categories  []string     `bson:"categories" json:"categories"`
	Tags        []string     `bson:"tags" json:"tags"`
	PriceTier   PriceTier    `bson:"price_tier" json:"price_tier"`
	Rating      *float64     `bson:"rating,omitempty" json:"rating,omitempty"`
	RatingCount *int         `bson:"rating_count,omitempty" json:"rating_count,omitempty"`
	PhotoURL    string       `bson:"photo_url,omitempty" json:"photo_url,omitempty"`
	PhotoBlob   string       `bson:"photo_blob_uri,omitempty" json:"photo_blob_uri,omitempty"`
	MapURL      string       `bson:"map_url,omitempty" json:"map_url,omitempty"`
	Hours       OpeningHours `bson:"opening_hours,omitempty" json:"opening_hours,omitempty"`
	LastUpdated time.Time    `bson:"last_updated" json:"last_updated"`
}

// Validate enforces the invariants required before an upsert.
func (p Place) Validate() error {
	if p.PlaceID == "" {
		return fmt.Errorf("%w: place_id is required", ErrValidation)
	}
	if err := p.Location.Validate(); err != nil {
		return err
	}
	return p.Hours.Validate()
}

// CrawlParams captures one crawl invocation.
type CrawlParams struct {
	CenterLat    float64 `json:"center_lat"`
	CenterLng    float64 `json:"center_lng"`
	RadiusMeters float64 `json:"radius_meters"`
	MaxResults   int     `json:"max_results"`
	StartPage    int     `json:"start_page,omitempty"`
	EndPage      int     `json:"end_page,omitempty"`
	ForceUpdate  bool    `json:"force_update,omitempty"`
}

// Center returns the crawl center as a GeoPoint.
func (p CrawlParams) Center() GeoPoint {
	return NewGeoPoint(p.CenterLat, p.CenterLng)
}

// Validate enforces required crawl parameters.
func (p CrawlParams) Validate() error {
	if err := p.Center().Validate(); err != nil {
		return err
	}
	if p.RadiusMeters <= 0 {
		return fmt.Errorf("%w: radius_meters must be > 0", ErrValidation)
	}
	if p.MaxResults <= 0 {
		return fmt.Errorf("%w: max_results must be > 0", ErrValidation)
	}
	if p.EndPage > 0 && p.StartPage > p.EndPage {
		return fmt.Errorf("%w: start_page %d after end_page %d", ErrValidation, p.StartPage, p.EndPage)
	}
	return nil
}

// CrawlSummary aggregates the outcome counts of one crawl.
type CrawlSummary struct {
	TotalFound    int `json:"total_found"`
	AlreadyExists int `json:"already_exists"`
	ToProcess     int `json:"to_process"`
	Succeeded     int `json:"succeeded"`
	SkippedNonPOI int `json:"skipped_non_poi"`
	Errors        int `json:"errors"`
	PagesCrawled  int `json:"pages_crawled"`
}

// OutcomeStatus is the bucket a single enrichment task lands in.
type OutcomeStatus string

// Every processed id contributes to exactly one of these.
const (
	OutcomeSucceeded     OutcomeStatus = "succeeded"
	OutcomeSkippedNonPOI OutcomeStatus = "skipped_non_poi"
	OutcomeError         OutcomeStatus = "error"
)

// AddResult is returned by the single-id ingestion path.
type AddResult struct {
	Status OutcomeStatus `json:"status"`
	Name   string        `json:"name,omitempty"`
}

// JobStatus represents the lifecycle state of a crawl job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// CrawlJob is the metadata persisted for each submitted crawl request.
type CrawlJob struct {
	ID        string        `json:"id"`
	Status    JobStatus     `json:"status"`
	Submitted time.Time     `json:"submitted_at"`
	Started   *time.Time    `json:"started_at,omitempty"`
	Finished  *time.Time    `json:"finished_at,omitempty"`
	ErrorText string        `json:"error_text,omitempty"`
	Params    CrawlParams   `json:"params"`
	Summary   *CrawlSummary `json:"summary,omitempty"`
}

// QueueItem wraps a crawl job ready to run.
type QueueItem struct {
	JobID     string
	Params    CrawlParams
	Submitted int64
}

// NearbyPage is one page of nearby-search results.
type NearbyPage struct {
	PlaceIDs      []string
	NextPageToken string
}

// PlaceDetail is the raw detail record fetched from the provider.
type PlaceDetail struct {
	PlaceID          string
	Name             string
	FormattedAddress string
	Latitude         float64
	Longitude        float64
	Types            []string
	Rating           float64
	UserRatingsTotal int
	PriceLevel       int
	WeekdayText      []string
	PhotoReference   string
	MapURL           string
	Reviews          []string
}

// FeatureSubset is the reduced detail view submitted to the classifier.
type FeatureSubset struct {
	Name             string   `json:"name"`
	Types            []string `json:"types"`
	Rating           float64  `json:"rating"`
	UserRatingsTotal int      `json:"user_ratings_total"`
	PriceLevel       int      `json:"price_level"`
	Reviews          []string `json:"reviews,omitempty"`
}

// Classification is the classifier's verdict for one place.
type Classification struct {
	IsPOI       bool      `json:"is_poi"`
	Name        string    `json:"name,omitempty"`
	Categories  []string  `json:"categories,omitempty"`
	PriceTier   PriceTier `json:"price_tier,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Rating      *float64  `json:"rating,omitempty"`
	RatingCount *int      `json:"rating_count,omitempty"`
}

// Criteria is the typed store-level query built by the matching engine.
// Empty groups are omitted from the query, never treated as match-nothing.
type Criteria struct {
	Categories []string
	PriceTiers []PriceTier
	MinRating  *float64
	Keywords   []string
	Near       *GeoCircle
}
