// Package photos archives place photos into blob storage so records do
// not depend on expiring provider URLs.
package photos

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dinefind/place-crawler/internal/poi"
)

const (
	defaultTimeout = 20 * time.Second
	maxPhotoBytes  = 5 << 20
)

// Config holds archiver settings.
type Config struct {
	// Prefix is prepended to object paths inside the blob store.
	Prefix  string
	Timeout time.Duration
}

// Archiver downloads a place photo and stores it durably, recording
// the blob URI on the place.
type Archiver struct {
	blobs  poi.BlobStore
	http   *http.Client
	cfg    Config
	logger *zap.Logger
}

func New(blobs poi.BlobStore, cfg Config, logger *zap.Logger) *Archiver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Archiver{
		blobs:  blobs,
		http:   &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		logger: logger,
	}
}

// Archive fetches the place photo and uploads it. Places without a
// photo URL are left untouched.
func (a *Archiver) Archive(ctx context.Context, place *poi.Place) error {
	if place.PhotoURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, place.PhotoURL, nil)
	if err != nil {
		return fmt.Errorf("build photo request: %w", err)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch photo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch photo: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	if err != nil {
		return fmt.Errorf("read photo body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	uri, err := a.blobs.PutObject(ctx, a.objectPath(place.PlaceID, contentType), contentType, data)
	if err != nil {
		return fmt.Errorf("store photo: %w", err)
	}

	place.PhotoBlob = uri
	a.logger.Debug("photo archived", zap.String("place_id", place.PlaceID), zap.String("uri", uri))
	return nil
}

func (a *Archiver) objectPath(placeID, contentType string) string {
	ext := ".jpg"
	if strings.Contains(contentType, "png") {
		ext = ".png"
	}
	prefix := strings.Trim(a.cfg.Prefix, "/")
	if prefix == "" {
		return placeID + ext
	}
	return prefix + "/" + placeID + ext
}
