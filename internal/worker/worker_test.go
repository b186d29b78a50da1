package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dinefind/place-crawler/internal/poi"
	queuemem "github.com/dinefind/place-crawler/internal/queue/memory"
	"github.com/dinefind/place-crawler/internal/storage/memory"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type stubRunner struct {
	summary poi.CrawlSummary
	err     error
}

func (r *stubRunner) Run(ctx context.Context, params poi.CrawlParams) (poi.CrawlSummary, error) {
	return r.summary, r.err
}

type capturingPublisher struct {
	mu       sync.Mutex
	topic    string
	payloads []map[string]any
}

func (p *capturingPublisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	if m, ok := payload.(map[string]any); ok {
		p.payloads = append(p.payloads, m)
	}
	return "msg-1", nil
}

func runWorkerOnce(t *testing.T, runner *stubRunner, publisher poi.Publisher, jobs *memory.JobStore) {
	t.Helper()
	queue := queuemem.NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, jobs.CreateJob(ctx, poi.CrawlJob{ID: "job-1", Status: poi.JobQueued}))
	require.NoError(t, queue.Enqueue(ctx, poi.QueueItem{JobID: "job-1"}))

	w := New(queue, jobs, runner, publisher, fixedClock{t: time.Now()}, Config{Topic: "crawl-summaries"}, zap.NewNop())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		job, err := jobs.GetJob(context.Background(), "job-1")
		return err == nil && (job.Status == poi.JobSucceeded || job.Status == poi.JobFailed)
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestWorkerRunsJobToSuccess(t *testing.T) {
	t.Parallel()
	jobs := memory.NewJobStore()
	publisher := &capturingPublisher{}
	runner := &stubRunner{summary: poi.CrawlSummary{TotalFound: 4, Succeeded: 3, SkippedNonPOI: 1}}

	runWorkerOnce(t, runner, publisher, jobs)

	job, err := jobs.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, poi.JobSucceeded, job.Status)
	require.NotNil(t, job.Summary)
	require.Equal(t, 3, job.Summary.Succeeded)

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	require.Equal(t, "crawl-summaries", publisher.topic)
	require.Len(t, publisher.payloads, 1)
	require.Equal(t, "job-1", publisher.payloads[0]["job_id"])
	require.Equal(t, 4, publisher.payloads[0]["total_found"])
}

func TestWorkerMarksJobFailed(t *testing.T) {
	t.Parallel()
	jobs := memory.NewJobStore()
	publisher := &capturingPublisher{}
	runner := &stubRunner{err: errors.New("discover: quota exceeded")}

	runWorkerOnce(t, runner, publisher, jobs)

	job, err := jobs.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, poi.JobFailed, job.Status)
	require.Equal(t, "discover: quota exceeded", job.ErrorText)

	// Failed jobs publish nothing.
	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	require.Empty(t, publisher.payloads)
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	t.Parallel()
	queue := queuemem.NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	w := New(queue, memory.NewJobStore(), &stubRunner{}, nil, fixedClock{t: time.Now()}, Config{}, zap.NewNop())

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
