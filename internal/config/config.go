// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Crawl      CrawlConfig      `mapstructure:"crawl"`
	Provider   ProviderConfig   `mapstructure:"provider"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Mongo      MongoConfig      `mapstructure:"mongo"`
	Storage    StorageConfig    `mapstructure:"storage"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Match      MatchConfig      `mapstructure:"match"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlConfig governs crawl pipeline behavior.
type CrawlConfig struct {
	Concurrency        int `mapstructure:"concurrency"`
	Workers            int `mapstructure:"workers"`
	QueueDepth         int `mapstructure:"queue_depth"`
	MaxResultsDefault  int `mapstructure:"max_results_default"`
	TokenSettleSeconds int `mapstructure:"token_settle_seconds"`
}

// ProviderConfig configures the places provider client.
type ProviderConfig struct {
	APIKey         string  `mapstructure:"api_key"`
	BaseURL        string  `mapstructure:"base_url"`
	Language       string  `mapstructure:"language"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	QPS            float64 `mapstructure:"qps"`
}

// ClassifierConfig configures the model-backed classifier.
type ClassifierConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int64  `mapstructure:"max_tokens"`
}

// MongoConfig controls access to the document database.
type MongoConfig struct {
	URI            string `mapstructure:"uri"`
	Database       string `mapstructure:"database"`
	Collection     string `mapstructure:"collection"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// StorageConfig sets paths for photo blob persistence.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for crawl summary notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MatchConfig controls match query behavior.
type MatchConfig struct {
	Timezone     string `mapstructure:"timezone"`
	DefaultCount int    `mapstructure:"default_count"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PLACES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawl.concurrency", 8)
	v.SetDefault("crawl.workers", 2)
	v.SetDefault("crawl.queue_depth", 64)
	v.SetDefault("crawl.max_results_default", 60)
	v.SetDefault("crawl.token_settle_seconds", 2)
	v.SetDefault("provider.timeout_seconds", 15)
	v.SetDefault("provider.qps", 10)
	v.SetDefault("classifier.max_tokens", 1024)
	v.SetDefault("mongo.database", "places")
	v.SetDefault("mongo.collection", "restaurants")
	v.SetDefault("mongo.timeout_seconds", 10)
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_dir", "blobs")
	v.SetDefault("storage.prefix", "photos")
	v.SetDefault("match.timezone", "Asia/Shanghai")
	v.SetDefault("match.default_count", 3)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawl.Concurrency <= 0 {
		return fmt.Errorf("crawl.concurrency must be > 0")
	}
	if c.Crawl.Workers <= 0 {
		return fmt.Errorf("crawl.workers must be > 0")
	}
	if c.Provider.TimeoutSeconds <= 0 {
		return fmt.Errorf("provider.timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Storage.Backend {
	case "local", "gcs", "memory":
	default:
		return fmt.Errorf("storage.backend must be local, gcs or memory")
	}
	if c.Storage.Backend == "gcs" && c.Storage.GCSBucket == "" {
		return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
	}
	return nil
}

// TokenSettle converts the page token settle delay to a duration.
func (c Config) TokenSettle() time.Duration {
	return time.Duration(c.Crawl.TokenSettleSeconds) * time.Second
}

// ProviderTimeout converts the provider timeout to a duration.
func (c Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSeconds) * time.Second
}

// MongoTimeout converts the database dial timeout to a duration.
func (c Config) MongoTimeout() time.Duration {
	return time.Duration(c.Mongo.TimeoutSeconds) * time.Second
}
