// Package main wires together the place crawler service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/dinefind/place-crawler/internal/api"
	anthropicclassifier "github.com/dinefind/place-crawler/internal/classifier/anthropic"
	"github.com/dinefind/place-crawler/internal/clock"
	"github.com/dinefind/place-crawler/internal/config"
	"github.com/dinefind/place-crawler/internal/discovery"
	"github.com/dinefind/place-crawler/internal/dispatcher"
	"github.com/dinefind/place-crawler/internal/enrich"
	"github.com/dinefind/place-crawler/internal/id"
	"github.com/dinefind/place-crawler/internal/logging"
	"github.com/dinefind/place-crawler/internal/match"
	"github.com/dinefind/place-crawler/internal/metrics"
	"github.com/dinefind/place-crawler/internal/photos"
	"github.com/dinefind/place-crawler/internal/pipeline"
	"github.com/dinefind/place-crawler/internal/poi"
	"github.com/dinefind/place-crawler/internal/provider/googleplaces"
	memorypublisher "github.com/dinefind/place-crawler/internal/publisher/memory"
	pubsubpublisher "github.com/dinefind/place-crawler/internal/publisher/pubsub"
	queuememory "github.com/dinefind/place-crawler/internal/queue/memory"
	"github.com/dinefind/place-crawler/internal/storage/gcs"
	"github.com/dinefind/place-crawler/internal/storage/local"
	memorystorage "github.com/dinefind/place-crawler/internal/storage/memory"
	mongostorage "github.com/dinefind/place-crawler/internal/storage/mongo"
	"github.com/dinefind/place-crawler/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("service failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	store, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	provider, err := googleplaces.New(googleplaces.Config{
		APIKey:   cfg.Provider.APIKey,
		BaseURL:  cfg.Provider.BaseURL,
		Language: cfg.Provider.Language,
		Timeout:  cfg.ProviderTimeout(),
		QPS:      cfg.Provider.QPS,
	}, logger.Named("provider"))
	if err != nil {
		return fmt.Errorf("provider init: %w", err)
	}

	classifier, err := anthropicclassifier.New(anthropicclassifier.Config{
		APIKey:    cfg.Classifier.APIKey,
		Model:     cfg.Classifier.Model,
		MaxTokens: cfg.Classifier.MaxTokens,
	}, logger.Named("classifier"))
	if err != nil {
		return fmt.Errorf("classifier init: %w", err)
	}

	blobStore, err := buildBlobStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("blob store init: %w", err)
	}

	publisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		return fmt.Errorf("publisher init: %w", err)
	}

	enricher := enrich.New(provider, classifier, logger.Named("enrich"))
	archiver := photos.New(blobStore, photos.Config{Prefix: cfg.Storage.Prefix}, logger.Named("photos"))
	disc := discovery.New(provider, discovery.Config{TokenSettle: cfg.TokenSettle()}, logger.Named("discovery"))
	pipe := pipeline.New(
		disc,
		discovery.NewDedupFilter(store),
		enricher,
		store,
		archiver,
		pipeline.Config{Concurrency: cfg.Crawl.Concurrency},
		logger.Named("pipeline"),
	)

	tz, err := time.LoadLocation(cfg.Match.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Match.Timezone, err)
	}
	sysClock := clock.System{}
	matcher := match.New(store, sysClock, match.Config{
		Timezone:     tz,
		DefaultCount: cfg.Match.DefaultCount,
	}, logger.Named("match"))

	jobStore := memorystorage.NewJobStore()
	queue := queuememory.NewQueue(cfg.Crawl.QueueDepth)
	workerCfg := worker.Config{Topic: cfg.PubSub.TopicName}

	var workers []*worker.Worker
	for i := 0; i < cfg.Crawl.Workers; i++ {
		workers = append(workers, worker.New(
			queue,
			jobStore,
			pipe,
			publisher,
			sysClock,
			workerCfg,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	dispatch := dispatcher.New(queue, workers)

	apiServer := api.NewServer(
		store,
		jobStore,
		dispatch,
		pipe,
		enricher,
		provider,
		matcher,
		id.UUID{},
		sysClock,
		cfg,
		logger.Named("api"),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("dispatcher started", zap.Int("workers", cfg.Crawl.Workers))
		dispatch.Run(ctx)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	queue.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func buildStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (poi.Store, error) {
	if cfg.Mongo.URI == "" {
		logger.Warn("mongo.uri not set, using in-memory place store")
		return memorystorage.NewPlaceStore(), nil
	}
	store, err := mongostorage.Connect(ctx, mongostorage.Config{
		URI:        cfg.Mongo.URI,
		Database:   cfg.Mongo.Database,
		Collection: cfg.Mongo.Collection,
		Timeout:    cfg.MongoTimeout(),
	}, logger.Named("mongo"))
	if err != nil {
		return nil, fmt.Errorf("mongo init: %w", err)
	}
	return store, nil
}

func buildBlobStore(ctx context.Context, cfg config.Config) (poi.BlobStore, error) {
	switch cfg.Storage.Backend {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		return gcs.New(client, gcs.Config{Bucket: cfg.Storage.GCSBucket})
	case "local":
		return local.New(local.Config{BaseDir: cfg.Storage.LocalDir})
	default:
		return memorystorage.NewBlobStore(), nil
	}
}

func buildPublisher(ctx context.Context, cfg config.Config) (poi.Publisher, error) {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.TopicName == "" {
		return memorypublisher.New(), nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	return pubsubpublisher.New(client), nil
}
