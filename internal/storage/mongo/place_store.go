// Package mongo implements the place store on MongoDB, with a 2dsphere
// index for geo queries and a unique index on the provider place ID.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/dinefind/place-crawler/internal/poi"
)

// Config holds connection settings for the place store.
type Config struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// PlaceStore implements poi.Store backed by a MongoDB collection.
type PlaceStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *zap.Logger
}

// document wraps a place with the Mongo object ID so the string ID on
// poi.Place stays driver-agnostic.
type document struct {
	ObjectID  primitive.ObjectID `bson:"_id,omitempty"`
	poi.Place `bson:",inline"`
}

// Connect dials MongoDB, verifies the connection and ensures indexes.
func Connect(ctx context.Context, cfg Config, logger *zap.Logger) (*PlaceStore, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(dialCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", poi.ErrStore, err)
	}
	if err := client.Ping(dialCtx, nil); err != nil {
		return nil, fmt.Errorf("%w: ping: %v", poi.ErrStore, err)
	}

	store := &PlaceStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		logger:     logger,
	}
	if err := store.ensureIndexes(dialCtx); err != nil {
		return nil, err
	}
	logger.Info("connected to mongodb",
		zap.String("database", cfg.Database),
		zap.String("collection", cfg.Collection))
	return store, nil
}

func (s *PlaceStore) ensureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "location", Value: "2dsphere"}},
			Options: options.Index().SetName("location_2dsphere"),
		},
		{
			Keys:    bson.D{{Key: "place_id", Value: 1}},
			Options: options.Index().SetName("place_id_unique").SetUnique(true),
		},
	}
	if _, err := s.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("%w: create indexes: %v", poi.ErrStore, err)
	}
	return nil
}

// Close disconnects the underlying client.
func (s *PlaceStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *PlaceStore) Upsert(ctx context.Context, place poi.Place) error {
	if place.PlaceID == "" {
		return fmt.Errorf("%w: upsert requires place_id", poi.ErrValidation)
	}
	place.LastUpdated = time.Now().UTC()
	filter := bson.M{"place_id": place.PlaceID}
	update := bson.M{"$set": place}
	_, err := s.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%w: upsert %s: %v", poi.ErrStore, place.PlaceID, err)
	}
	return nil
}

func (s *PlaceStore) Get(ctx context.Context, placeID string) (poi.Place, error) {
	var doc document
	err := s.collection.FindOne(ctx, bson.M{"place_id": placeID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return poi.Place{}, poi.ErrNotFound
	}
	if err != nil {
		return poi.Place{}, fmt.Errorf("%w: get %s: %v", poi.ErrStore, placeID, err)
	}
	return docToPlace(doc), nil
}

func (s *PlaceStore) Delete(ctx context.Context, placeID string) (int64, error) {
	res, err := s.collection.DeleteOne(ctx, bson.M{"place_id": placeID})
	if err != nil {
		return 0, fmt.Errorf("%w: delete %s: %v", poi.ErrStore, placeID, err)
	}
	return res.DeletedCount, nil
}

// ExistsBatch resolves which of the given place IDs already have a
// document, in a single query.
func (s *PlaceStore) ExistsBatch(ctx context.Context, placeIDs []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(placeIDs) == 0 {
		return existing, nil
	}
	filter := bson.M{"place_id": bson.M{"$in": placeIDs}}
	opts := options.Find().SetProjection(bson.M{"place_id": 1})
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: exists batch: %v", poi.ErrStore, err)
	}
	defer cursor.Close(ctx)
	for cursor.Next(ctx) {
		var row struct {
			PlaceID string `bson:"place_id"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("%w: exists batch decode: %v", poi.ErrStore, err)
		}
		existing[row.PlaceID] = struct{}{}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%w: exists batch cursor: %v", poi.ErrStore, err)
	}
	return existing, nil
}

func (s *PlaceStore) Distinct(ctx context.Context, field string) ([]string, error) {
	switch field {
	case "categories", "tags", "price_tier":
	default:
		return nil, fmt.Errorf("%w: distinct field %q", poi.ErrValidation, field)
	}
	raw, err := s.collection.Distinct(ctx, field, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("%w: distinct %s: %v", poi.ErrStore, field, err)
	}
	values := make([]string, 0, len(raw))
	for _, v := range raw {
		if str, ok := v.(string); ok && str != "" {
			values = append(values, str)
		}
	}
	return values, nil
}

func (s *PlaceStore) GeoNear(ctx context.Context, center poi.GeoPoint, maxDistanceMeters float64, limit int) ([]poi.Place, error) {
	filter := bson.M{
		"location": bson.M{
			"$near": bson.M{
				"$geometry":    center,
				"$maxDistance": maxDistanceMeters,
			},
		},
	}
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return s.find(ctx, filter, opts)
}

func (s *PlaceStore) Find(ctx context.Context, criteria poi.Criteria, limit int) ([]poi.Place, error) {
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return s.find(ctx, buildQuery(criteria), opts)
}

func (s *PlaceStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]poi.Place, error) {
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: find: %v", poi.ErrStore, err)
	}
	defer cursor.Close(ctx)

	var places []poi.Place
	for cursor.Next(ctx) {
		var doc document
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: find decode: %v", poi.ErrStore, err)
		}
		places = append(places, docToPlace(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("%w: find cursor: %v", poi.ErrStore, err)
	}
	return places, nil
}

func docToPlace(doc document) poi.Place {
	place := doc.Place
	place.ID = doc.ObjectID.Hex()
	return place
}
