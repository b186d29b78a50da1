// Package worker implements the crawl job execution loop.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dinefind/place-crawler/internal/metrics"
	"github.com/dinefind/place-crawler/internal/poi"
)

// Runner executes one crawl and reports its summary.
type Runner interface {
	Run(ctx context.Context, params poi.CrawlParams) (poi.CrawlSummary, error)
}

// Config controls Worker behavior.
type Config struct {
	// Topic is the summary publication topic. Empty disables publishing.
	Topic string
}

// Worker consumes queued crawl jobs and runs the pipeline for each.
type Worker struct {
	queue     poi.Queue
	jobStore  poi.JobStore
	runner    Runner
	publisher poi.Publisher
	clock     poi.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker.
func New(
	queue poi.Queue,
	jobStore poi.JobStore,
	runner Runner,
	publisher poi.Publisher,
	clock poi.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		queue:     queue,
		jobStore:  jobStore,
		runner:    runner,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", item.JobID))
		w.processJob(ctx, item)
	}
}

func (w *Worker) processJob(ctx context.Context, item poi.QueueItem) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	if err := w.jobStore.UpdateJobStatus(ctx, item.JobID, poi.JobRunning, "", nil); err != nil {
		w.logger.Error("update job status failed", zap.String("job_id", item.JobID), zap.Error(err))
		return
	}

	summary, err := w.runner.Run(ctx, item.Params)
	if err != nil {
		w.logger.Error("crawl job failed", zap.String("job_id", item.JobID), zap.Error(err))
		w.finalize(ctx, item.JobID, poi.JobFailed, err.Error(), &summary)
		return
	}

	w.logger.Info("crawl job finished",
		zap.String("job_id", item.JobID),
		zap.Int("total_found", summary.TotalFound),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("skipped_non_poi", summary.SkippedNonPOI),
		zap.Int("errors", summary.Errors))
	w.finalize(ctx, item.JobID, poi.JobSucceeded, "", &summary)
	w.publishSummary(ctx, item.JobID, summary)
}

func (w *Worker) finalize(ctx context.Context, jobID string, status poi.JobStatus, errText string, summary *poi.CrawlSummary) {
	metrics.ObserveJob(string(status))
	if err := w.jobStore.UpdateJobStatus(ctx, jobID, status, errText, summary); err != nil {
		w.logger.Error("final job status update failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (w *Worker) publishSummary(ctx context.Context, jobID string, summary poi.CrawlSummary) {
	if w.cfg.Topic == "" || w.publisher == nil {
		return
	}
	payload := map[string]any{
		"job_id":          jobID,
		"total_found":     summary.TotalFound,
		"already_exists":  summary.AlreadyExists,
		"to_process":      summary.ToProcess,
		"succeeded":       summary.Succeeded,
		"skipped_non_poi": summary.SkippedNonPOI,
		"errors":          summary.Errors,
		"timestamp":       w.clock.Now().Format(time.RFC3339),
	}
	if _, err := w.publisher.Publish(ctx, w.cfg.Topic, payload); err != nil {
		w.logger.Warn("summary publish failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	w.logger.Info("crawl summary published", zap.String("job_id", jobID), zap.String("topic", w.cfg.Topic))
}
