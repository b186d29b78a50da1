// Package anthropic classifies raw place details with a Claude model:
// deciding whether a result is a real point of interest and, when it
// is, producing the cleaned record fields.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/dinefind/place-crawler/internal/poi"
)

const systemPrompt = `You are a data cleaning assistant for a restaurant database.
You receive raw fields of one search result from a mapping provider and must decide
whether it is a genuine food or drink establishment (restaurant, cafe, bar, bakery,
street food stall) rather than a hotel, office, apartment block or other non-food place.

Respond with a single JSON object and nothing else:
{
  "is_poi": true or false,
  "name": cleaned display name,
  "categories": up to 3 cuisine or venue categories, lowercase,
  "price_tier": one of "$", "$$", "$$$", "$$$$" or "",
  "tags": 3 to 5 short descriptive tags, lowercase,
  "rating": the numeric rating or null,
  "rating_count": the number of ratings or null
}

If is_poi is false, the other fields may be empty.`

// Config holds classifier settings.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int64
}

// Classifier implements poi.Classifier with the Anthropic Messages API.
type Classifier struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	logger    *zap.Logger
}

func New(cfg Config, logger *zap.Logger) (*Classifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: api key required", poi.ErrValidation)
	}
	if cfg.Model == "" {
		cfg.Model = string(anthropic.ModelClaudeSonnet4_5)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	return &Classifier{
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     anthropic.Model(cfg.Model),
		maxTokens: cfg.MaxTokens,
		logger:    logger,
	}, nil
}

// Classify sends the feature subset to the model and parses its verdict.
func (c *Classifier) Classify(ctx context.Context, features poi.FeatureSubset) (poi.Classification, error) {
	payload, err := json.Marshal(features)
	if err != nil {
		return poi.Classification{}, fmt.Errorf("%w: marshal features: %v", poi.ErrClassification, err)
	}

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(string(payload))),
		},
	})
	if err != nil {
		return poi.Classification{}, fmt.Errorf("%w: messages api: %v", poi.ErrClassification, err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return poi.Classification{}, fmt.Errorf("%w: empty response", poi.ErrClassification)
	}
	return parseClassification(text)
}

// parseClassification decodes the model's JSON verdict, tolerating a
// markdown code fence around the object.
func parseClassification(text string) (poi.Classification, error) {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
		cleaned = strings.TrimSpace(cleaned)
	}

	var result poi.Classification
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return poi.Classification{}, fmt.Errorf("%w: decode verdict: %v", poi.ErrClassification, err)
	}
	if result.IsPOI && !result.PriceTier.Valid() && result.PriceTier != "" {
		result.PriceTier = ""
	}
	if len(result.Categories) > 3 {
		result.Categories = result.Categories[:3]
	}
	if len(result.Tags) > 5 {
		result.Tags = result.Tags[:5]
	}
	return result, nil
}
