// Package googleplaces implements the places provider on the Google
// Maps web service APIs: Nearby Search, Place Details, Geocoding and
// the Place Photo redirect endpoint.
package googleplaces

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dinefind/place-crawler/internal/metrics"
	"github.com/dinefind/place-crawler/internal/poi"
)

const (
	defaultBaseURL  = "https://maps.googleapis.com"
	defaultTimeout  = 15 * time.Second
	defaultQPS      = 10
	photoMaxWidthPx = 400
)

// Config holds provider client settings.
type Config struct {
	APIKey   string
	BaseURL  string
	Language string
	Timeout  time.Duration
	QPS      float64
}

// Client talks to the Google Maps web services. Requests are rate
// limited client-side to stay under the provider quota.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api key required", poi.ErrValidation)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.QPS <= 0 {
		cfg.QPS = defaultQPS
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.QPS), 1),
		logger:  logger,
	}, nil
}

type nearbyResponse struct {
	Status        string `json:"status"`
	ErrorMessage  string `json:"error_message"`
	NextPageToken string `json:"next_page_token"`
	Results       []struct {
		PlaceID string `json:"place_id"`
	} `json:"results"`
}

// NearbySearch returns one page of place IDs around the center. An
// empty pageToken requests the first page.
func (c *Client) NearbySearch(ctx context.Context, center poi.GeoPoint, radiusMeters float64, pageToken string) (poi.NearbyPage, error) {
	params := url.Values{}
	if pageToken != "" {
		params.Set("pagetoken", pageToken)
	} else {
		params.Set("location", fmt.Sprintf("%f,%f", center.Latitude(), center.Longitude()))
		params.Set("radius", strconv.FormatFloat(radiusMeters, 'f', 0, 64))
		params.Set("type", "restaurant")
	}

	var resp nearbyResponse
	if err := c.get(ctx, "nearbysearch", "/maps/api/place/nearbysearch/json", params, &resp); err != nil {
		return poi.NearbyPage{}, err
	}
	if err := checkStatus(resp.Status, resp.ErrorMessage); err != nil {
		return poi.NearbyPage{}, err
	}

	page := poi.NearbyPage{NextPageToken: resp.NextPageToken}
	for _, r := range resp.Results {
		if r.PlaceID != "" {
			page.PlaceIDs = append(page.PlaceIDs, r.PlaceID)
		}
	}
	return page, nil
}

type detailsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Result       struct {
		PlaceID          string  `json:"place_id"`
		Name             string  `json:"name"`
		FormattedAddress string  `json:"formatted_address"`
		Types            []string `json:"types"`
		Rating           float64 `json:"rating"`
		UserRatingsTotal int     `json:"user_ratings_total"`
		PriceLevel       int     `json:"price_level"`
		URL              string  `json:"url"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		OpeningHours struct {
			WeekdayText []string `json:"weekday_text"`
		} `json:"opening_hours"`
		Photos []struct {
			PhotoReference string `json:"photo_reference"`
		} `json:"photos"`
		Reviews []struct {
			Text string `json:"text"`
		} `json:"reviews"`
	} `json:"result"`
}

func (c *Client) PlaceDetails(ctx context.Context, placeID string) (poi.PlaceDetail, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", "place_id,name,formatted_address,geometry,type,rating,user_ratings_total,price_level,opening_hours,photo,url,review")

	var resp detailsResponse
	if err := c.get(ctx, "details", "/maps/api/place/details/json", params, &resp); err != nil {
		return poi.PlaceDetail{}, err
	}
	if err := checkStatus(resp.Status, resp.ErrorMessage); err != nil {
		return poi.PlaceDetail{}, err
	}

	r := resp.Result
	detail := poi.PlaceDetail{
		PlaceID:          r.PlaceID,
		Name:             r.Name,
		FormattedAddress: r.FormattedAddress,
		Latitude:         r.Geometry.Location.Lat,
		Longitude:        r.Geometry.Location.Lng,
		Types:            r.Types,
		Rating:           r.Rating,
		UserRatingsTotal: r.UserRatingsTotal,
		PriceLevel:       r.PriceLevel,
		WeekdayText:      r.OpeningHours.WeekdayText,
		MapURL:           r.URL,
	}
	if len(r.Photos) > 0 {
		detail.PhotoReference = r.Photos[0].PhotoReference
	}
	for _, rev := range r.Reviews {
		detail.Reviews = append(detail.Reviews, rev.Text)
	}
	return detail, nil
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode resolves an address or Plus Code to a point.
func (c *Client) Geocode(ctx context.Context, address string) (poi.GeoPoint, error) {
	params := url.Values{}
	params.Set("address", address)

	var resp geocodeResponse
	if err := c.get(ctx, "geocode", "/maps/api/geocode/json", params, &resp); err != nil {
		return poi.GeoPoint{}, err
	}
	if err := checkStatus(resp.Status, resp.ErrorMessage); err != nil {
		return poi.GeoPoint{}, err
	}
	if len(resp.Results) == 0 {
		return poi.GeoPoint{}, fmt.Errorf("%w: geocode: no results for %q", poi.ErrProvider, address)
	}
	loc := resp.Results[0].Geometry.Location
	return poi.NewGeoPoint(loc.Lat, loc.Lng), nil
}

// PhotoURL builds the public photo redirect URL for a photo reference.
func (c *Client) PhotoURL(photoReference string) string {
	if photoReference == "" {
		return ""
	}
	params := url.Values{}
	params.Set("maxwidth", strconv.Itoa(photoMaxWidthPx))
	params.Set("photoreference", photoReference)
	params.Set("key", c.cfg.APIKey)
	return c.cfg.BaseURL + "/maps/api/place/photo?" + params.Encode()
}

func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limit wait: %v", poi.ErrProvider, err)
	}
	params.Set("key", c.cfg.APIKey)
	if c.cfg.Language != "" {
		params.Set("language", c.cfg.Language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", poi.ErrProvider, err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveProviderRequest(endpoint, "transport_error", time.Since(start))
		return fmt.Errorf("%w: %s: %v", poi.ErrProvider, endpoint, err)
	}
	defer resp.Body.Close()
	metrics.ObserveProviderRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: unexpected status %d", poi.ErrProvider, endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: decode response: %v", poi.ErrProvider, endpoint, err)
	}
	return nil
}

// checkStatus maps the provider's application-level status field.
// ZERO_RESULTS is not an error, it is an empty page.
func checkStatus(status, message string) error {
	switch status {
	case "OK", "ZERO_RESULTS":
		return nil
	default:
		if message != "" {
			return fmt.Errorf("%w: status %s: %s", poi.ErrProvider, status, message)
		}
		return fmt.Errorf("%w: status %s", poi.ErrProvider, status)
	}
}
