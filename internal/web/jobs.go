package web

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobState is the lifecycle of a background job.
type JobState string

const (
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// Job is a snapshot of a background operation started over HTTP or by the
// backup schedule.
type Job struct {
	ID       string     `json:"id"`
	Kind     string     `json:"kind"`
	State    JobState   `json:"state"`
	Error    string     `json:"error,omitempty"`
	Result   any        `json:"result,omitempty"`
	Started  time.Time  `json:"started"`
	Finished *time.Time `json:"finished,omitempty"`
}

// jobStore runs jobs in goroutines and remembers how they ended.
type jobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	wg   sync.WaitGroup
	now  func() time.Time
}

func newJobStore(now func() time.Time) *jobStore {
	return &jobStore{jobs: make(map[string]*Job), now: now}
}

// start runs fn in the background under ctx and returns the job ID.
func (s *jobStore) start(ctx context.Context, kind string, fn func(context.Context) (any, error)) string {
	job := &Job{
		ID:      uuid.NewString(),
		Kind:    kind,
		State:   JobRunning,
		Started: s.now(),
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		result, err := fn(ctx)

		s.mu.Lock()
		defer s.mu.Unlock()
		finished := s.now()
		job.Finished = &finished
		job.Result = result
		if err != nil {
			job.State = JobFailed
			job.Error = err.Error()
			slog.Warn("job failed", "id", job.ID, "kind", kind, "err", err)
			return
		}
		job.State = JobSucceeded
		slog.Info("job finished", "id", job.ID, "kind", kind)
	}()
	return job.ID
}

// get returns a copy of the job with id.
func (s *jobStore) get(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// wait blocks until every started job has returned.
func (s *jobStore) wait() {
	s.wg.Wait()
}
