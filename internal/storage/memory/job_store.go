package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dinefind/place-crawler/internal/poi"
)

// JobStore tracks crawl jobs in memory.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]poi.CrawlJob
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]poi.CrawlJob)}
}

func (s *JobStore) CreateJob(ctx context.Context, job poi.CrawlJob) error {
	if job.ID == "" {
		return poi.ErrValidation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *JobStore) UpdateJobStatus(ctx context.Context, id string, status poi.JobStatus, errText string, summary *poi.CrawlSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return poi.ErrNotFound
	}
	now := time.Now().UTC()
	job.Status = status
	job.ErrorText = errText
	if summary != nil {
		job.Summary = summary
	}
	switch status {
	case poi.JobRunning:
		job.Started = &now
	case poi.JobSucceeded, poi.JobFailed:
		job.Finished = &now
	}
	s.jobs[id] = job
	return nil
}

func (s *JobStore) GetJob(ctx context.Context, id string) (poi.CrawlJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return poi.CrawlJob{}, poi.ErrNotFound
	}
	return job, nil
}
