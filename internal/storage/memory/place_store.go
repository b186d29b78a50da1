// Package memory provides in-memory implementations of the storage
// interfaces, used in tests and for local development without external
// services.
package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dinefind/place-crawler/internal/poi"
)

// PlaceStore keeps places in a map keyed by provider place ID.
type PlaceStore struct {
	mu     sync.RWMutex
	places map[string]poi.Place
}

func NewPlaceStore() *PlaceStore {
	return &PlaceStore{places: make(map[string]poi.Place)}
}

func (s *PlaceStore) Upsert(ctx context.Context, place poi.Place) error {
	if place.PlaceID == "" {
		return poi.ErrValidation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	place.ID = place.PlaceID
	place.LastUpdated = time.Now().UTC()
	s.places[place.PlaceID] = place
	return nil
}

func (s *PlaceStore) Get(ctx context.Context, placeID string) (poi.Place, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	place, ok := s.places[placeID]
	if !ok {
		return poi.Place{}, poi.ErrNotFound
	}
	return place, nil
}

func (s *PlaceStore) Delete(ctx context.Context, placeID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.places[placeID]; !ok {
		return 0, nil
	}
	delete(s.places, placeID)
	return 1, nil
}

func (s *PlaceStore) ExistsBatch(ctx context.Context, placeIDs []string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	existing := make(map[string]struct{})
	for _, id := range placeIDs {
		if _, ok := s.places[id]; ok {
			existing[id] = struct{}{}
		}
	}
	return existing, nil
}

func (s *PlaceStore) Distinct(ctx context.Context, field string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, place := range s.places {
		switch field {
		case "categories":
			for _, c := range place.Categories {
				seen[c] = struct{}{}
			}
		case "tags":
			for _, t := range place.Tags {
				seen[t] = struct{}{}
			}
		case "price_tier":
			if place.PriceTier != "" {
				seen[string(place.PriceTier)] = struct{}{}
			}
		default:
			return nil, poi.ErrValidation
		}
	}
	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return values, nil
}

func (s *PlaceStore) GeoNear(ctx context.Context, center poi.GeoPoint, maxDistanceMeters float64, limit int) ([]poi.Place, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type scored struct {
		place poi.Place
		dist  float64
	}
	var hits []scored
	for _, place := range s.places {
		d := haversineMeters(center, place.Location)
		if d <= maxDistanceMeters {
			hits = append(hits, scored{place: place, dist: d})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	places := make([]poi.Place, 0, len(hits))
	for _, h := range hits {
		places = append(places, h.place)
	}
	return places, nil
}

func (s *PlaceStore) Find(ctx context.Context, criteria poi.Criteria, limit int) ([]poi.Place, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []poi.Place
	for _, place := range s.places {
		if !matches(place, criteria) {
			continue
		}
		matched = append(matched, place)
	}
	// Map iteration order is random; sort so callers see stable results.
	sort.Slice(matched, func(i, j int) bool { return matched[i].PlaceID < matched[j].PlaceID })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func matches(place poi.Place, criteria poi.Criteria) bool {
	if len(criteria.Categories) > 0 && !intersects(place.Categories, criteria.Categories) {
		return false
	}
	if len(criteria.PriceTiers) > 0 {
		found := false
		for _, tier := range criteria.PriceTiers {
			if place.PriceTier == tier {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if criteria.MinRating != nil {
		if place.Rating == nil || *place.Rating < *criteria.MinRating {
			return false
		}
	}
	if len(criteria.Keywords) > 0 && !matchesKeywords(place, criteria.Keywords) {
		return false
	}
	if criteria.Near != nil {
		if haversineMeters(criteria.Near.Center, place.Location) > criteria.Near.RadiusMeters {
			return false
		}
	}
	return true
}

// matchesKeywords mirrors the store query: a keyword hits when it is a
// case-insensitive substring of the name or an exact tag or category.
func matchesKeywords(place poi.Place, keywords []string) bool {
	lowerName := strings.ToLower(place.Name)
	for _, kw := range keywords {
		if strings.Contains(lowerName, strings.ToLower(kw)) {
			return true
		}
		for _, t := range place.Tags {
			if t == kw {
				return true
			}
		}
		for _, c := range place.Categories {
			if c == kw {
				return true
			}
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

const earthRadiusMeters = 6371000.0

func haversineMeters(a, b poi.GeoPoint) float64 {
	lat1 := a.Latitude() * math.Pi / 180
	lat2 := b.Latitude() * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.Longitude() - a.Longitude()) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
