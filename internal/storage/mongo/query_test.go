package mongo

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/dinefind/place-crawler/internal/poi"
)

func TestBuildQueryEmptyCriteria(t *testing.T) {
	t.Parallel()
	require.Equal(t, bson.M{}, buildQuery(poi.Criteria{}))
}

func TestBuildQueryCombinesConditionsWithAnd(t *testing.T) {
	t.Parallel()
	minRating := 4.0
	query := buildQuery(poi.Criteria{
		Categories: []string{"sichuan", "hotpot"},
		PriceTiers: []poi.PriceTier{poi.PriceCheap, poi.PriceModerate},
		MinRating:  &minRating,
	})

	and, ok := query["$and"].([]bson.M)
	require.True(t, ok)
	require.Len(t, and, 3)
	require.Equal(t, bson.M{"categories": bson.M{"$in": []string{"sichuan", "hotpot"}}}, and[0])
	require.Equal(t, bson.M{"price_tier": bson.M{"$in": []string{"$", "$$"}}}, and[1])
	require.Equal(t, bson.M{"rating": bson.M{"$gte": 4.0}}, and[2])
}

func TestBuildQueryKeywordsProduceOrGroup(t *testing.T) {
	t.Parallel()
	query := buildQuery(poi.Criteria{Keywords: []string{"noodle", "bbq"}})

	and := query["$and"].([]bson.M)
	require.Len(t, and, 1)
	or, ok := and[0]["$or"].([]bson.M)
	require.True(t, ok)
	// One regex clause per keyword plus the tag and category groups.
	require.Len(t, or, 4)
	require.Equal(t, bson.M{"name": bson.M{"$regex": "noodle", "$options": "i"}}, or[0])
	require.Equal(t, bson.M{"tags": bson.M{"$in": []string{"noodle", "bbq"}}}, or[2])
	require.Equal(t, bson.M{"categories": bson.M{"$in": []string{"noodle", "bbq"}}}, or[3])
}

func TestBuildQueryEscapesRegexMetacharacters(t *testing.T) {
	t.Parallel()
	query := buildQuery(poi.Criteria{Keywords: []string{"a.b(c)"}})

	and := query["$and"].([]bson.M)
	or := and[0]["$or"].([]bson.M)
	name := or[0]["name"].(bson.M)
	require.Equal(t, `a\.b\(c\)`, name["$regex"])
}

func TestBuildQueryGeoCondition(t *testing.T) {
	t.Parallel()
	center := poi.NewGeoPoint(23.045, 113.398)
	query := buildQuery(poi.Criteria{Near: &poi.GeoCircle{Center: center, RadiusMeters: 1500}})

	and := query["$and"].([]bson.M)
	require.Len(t, and, 1)
	near := and[0]["location"].(bson.M)["$near"].(bson.M)
	require.Equal(t, center, near["$geometry"])
	require.Equal(t, 1500.0, near["$maxDistance"])
}
