// Package enrich turns a bare place ID into a complete, classified
// place record: provider detail lookup, model classification and field
// normalization.
package enrich

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dinefind/place-crawler/internal/poi"
)

const maxReviewsForClassification = 2

// priceTierByLevel maps the provider's 0-4 price level to a tier, used
// when the classifier does not supply one.
var priceTierByLevel = map[int]poi.PriceTier{
	0: poi.PriceCheap,
	1: poi.PriceCheap,
	2: poi.PriceModerate,
	3: poi.PriceExpensive,
	4: poi.PriceExpensive,
}

// Enricher builds storable place records from provider place IDs.
type Enricher struct {
	provider   poi.PlacesProvider
	classifier poi.Classifier
	logger     *zap.Logger
}

func New(provider poi.PlacesProvider, classifier poi.Classifier, logger *zap.Logger) *Enricher {
	return &Enricher{provider: provider, classifier: classifier, logger: logger}
}

// Enrich fetches details for the place ID, classifies them and returns
// the normalized record. A negative classification, including one
// degraded from a classifier failure, returns poi.ErrNonPOI.
func (e *Enricher) Enrich(ctx context.Context, placeID string) (poi.Place, error) {
	detail, err := e.provider.PlaceDetails(ctx, placeID)
	if err != nil {
		return poi.Place{}, fmt.Errorf("details %s: %w", placeID, err)
	}

	verdict, err := e.classifier.Classify(ctx, featureSubset(detail))
	if err != nil {
		// A broken classifier must not fail the whole crawl; treat the
		// place as unclassifiable and skip it.
		e.logger.Warn("classification failed, skipping place",
			zap.String("place_id", placeID),
			zap.Error(err))
		return poi.Place{}, poi.ErrNonPOI
	}
	if !verdict.IsPOI {
		return poi.Place{}, poi.ErrNonPOI
	}

	return buildPlace(detail, verdict, e.provider.PhotoURL(detail.PhotoReference)), nil
}

// featureSubset selects the detail fields the classifier sees. Reviews
// are capped to keep the prompt small.
func featureSubset(detail poi.PlaceDetail) poi.FeatureSubset {
	reviews := detail.Reviews
	if len(reviews) > maxReviewsForClassification {
		reviews = reviews[:maxReviewsForClassification]
	}
	return poi.FeatureSubset{
		Name:             detail.Name,
		Types:            detail.Types,
		Rating:           detail.Rating,
		UserRatingsTotal: detail.UserRatingsTotal,
		PriceLevel:       detail.PriceLevel,
		Reviews:          reviews,
	}
}

func buildPlace(detail poi.PlaceDetail, verdict poi.Classification, photoURL string) poi.Place {
	place := poi.Place{
		PlaceID:     detail.PlaceID,
		Name:        verdict.Name,
		Address:     detail.FormattedAddress,
		Location:    poi.NewGeoPoint(detail.Latitude, detail.Longitude),
		Categories:  verdict.Categories,
		Tags:        verdict.Tags,
		PriceTier:   verdict.PriceTier,
		Rating:      verdict.Rating,
		RatingCount: verdict.RatingCount,
		PhotoURL:    photoURL,
		MapURL:      detail.MapURL,
		Hours:       normalizeHours(detail.WeekdayText),
	}
	if place.Name == "" {
		place.Name = detail.Name
	}
	if place.PriceTier == "" {
		if tier, ok := priceTierByLevel[detail.PriceLevel]; ok {
			place.PriceTier = tier
		}
	}
	if place.Rating == nil && detail.Rating > 0 {
		rating := detail.Rating
		place.Rating = &rating
	}
	if place.RatingCount == nil && detail.UserRatingsTotal > 0 {
		count := detail.UserRatingsTotal
		place.RatingCount = &count
	}
	return place
}
