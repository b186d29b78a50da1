package anthropic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dinefind/place-crawler/internal/poi"
)

func TestParseClassificationPositive(t *testing.T) {
	t.Parallel()
	result, err := parseClassification(`{
		"is_poi": true,
		"name": "Dragon Noodles",
		"categories": ["sichuan", "noodles"],
		"price_tier": "$$",
		"tags": ["spicy", "casual", "late night"],
		"rating": 4.4,
		"rating_count": 213
	}`)
	require.NoError(t, err)
	require.True(t, result.IsPOI)
	require.Equal(t, "Dragon Noodles", result.Name)
	require.Equal(t, poi.PriceModerate, result.PriceTier)
	require.Equal(t, []string{"sichuan", "noodles"}, result.Categories)
	require.NotNil(t, result.Rating)
	require.Equal(t, 4.4, *result.Rating)
}

func TestParseClassificationNegative(t *testing.T) {
	t.Parallel()
	result, err := parseClassification(`{"is_poi": false}`)
	require.NoError(t, err)
	require.False(t, result.IsPOI)
}

func TestParseClassificationStripsCodeFence(t *testing.T) {
	t.Parallel()
	result, err := parseClassification("```json\n{\"is_poi\": true, \"name\": \"Cafe\"}\n```")
	require.NoError(t, err)
	require.True(t, result.IsPOI)
	require.Equal(t, "Cafe", result.Name)
}

func TestParseClassificationTruncatesLists(t *testing.T) {
	t.Parallel()
	result, err := parseClassification(`{
		"is_poi": true,
		"name": "X",
		"categories": ["a", "b", "c", "d"],
		"tags": ["1", "2", "3", "4", "5", "6"]
	}`)
	require.NoError(t, err)
	require.Len(t, result.Categories, 3)
	require.Len(t, result.Tags, 5)
}

func TestParseClassificationRejectsNonJSON(t *testing.T) {
	t.Parallel()
	_, err := parseClassification("I could not decide.")
	require.ErrorIs(t, err, poi.ErrClassification)
}

func TestParseClassificationDropsInvalidPriceTier(t *testing.T) {
	t.Parallel()
	result, err := parseClassification(`{"is_poi": true, "name": "X", "price_tier": "cheap"}`)
	require.NoError(t, err)
	require.Equal(t, poi.PriceTier(""), result.PriceTier)
}
