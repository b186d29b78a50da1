package poi

import (
	"context"
	"time"
)

// Store persists Place records keyed by the provider's place id.
type Store interface {
	// Upsert replaces the mutable fields of the record keyed by place id,
	// refreshing last_updated. Calling it repeatedly with the same record
	// is safe.
	Upsert(ctx context.Context, place Place) error
	Get(ctx context.Context, placeID string) (Place, error)
	Delete(ctx context.Context, placeID string) (int64, error)
	// ExistsBatch returns the subset of ids already present, resolved with
	// a single batched query.
	ExistsBatch(ctx context.Context, placeIDs []string) (map[string]struct{}, error)
	// Distinct returns the distinct values of a field, for building filter
	// vocabularies.
	Distinct(ctx context.Context, field string) ([]string, error)
	// GeoNear returns records within maxDistance meters of center, sorted
	// by distance.
	GeoNear(ctx context.Context, center GeoPoint, maxDistanceMeters float64, limit int) ([]Place, error)
	// Find runs a filtered scan over the collection.
	Find(ctx context.Context, criteria Criteria, limit int) ([]Place, error)
}

// PlacesProvider is the external geo-places API.
type PlacesProvider interface {
	// NearbySearch fetches one page of nearby results. The first page is
	// requested with center+radius; subsequent pages with the opaque token
	// from the previous page.
	NearbySearch(ctx context.Context, center GeoPoint, radiusMeters float64, pageToken string) (NearbyPage, error)
	PlaceDetails(ctx context.Context, placeID string) (PlaceDetail, error)
	// Geocode resolves a Plus Code or free-form address to a point.
	Geocode(ctx context.Context, address string) (GeoPoint, error)
	// PhotoURL derives a stable photo URL from a photo reference.
	PhotoURL(photoReference string) string
}

// Classifier decides whether a place is a point of interest and extracts
// the normalized fields.
type Classifier interface {
	Classify(ctx context.Context, features FeatureSubset) (Classification, error)
}

// JobStore persists crawl job metadata.
type JobStore interface {
	CreateJob(ctx context.Context, job CrawlJob) error
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errText string, summary *CrawlSummary) error
	GetJob(ctx context.Context, jobID string) (CrawlJob, error)
}

// Publisher pushes crawl-summary events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes raw artifacts (archived photos) and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Queue provides enqueue/dequeue semantics for crawl jobs.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() string
}
