// internal/api/job/store.go
package job

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/newthinker/chartgen/internal/core"
)

// Status represents job status.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Finished reports whether the job has stopped.
func (s Status) Finished() bool {
	return s == StatusComplete || s == StatusFailed
}

// Job is one asynchronous chart run.
type Job struct {
	ID        string           `json:"id"`
	Status    Status           `json:"status"`
	Total     int              `json:"total"`
	Done      int              `json:"done"`
	Progress  int              `json:"progress"`
	Summary   *core.RunSummary `json:"summary,omitempty"`
	ErrorCode string           `json:"error_code,omitempty"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Advance records one more finished symbol.
func (j *Job) Advance() {
	j.Done++
	if j.Total > 0 {
		j.Progress = j.Done * 100 / j.Total
	}
}

// Fail marks the job failed with err.
func (j *Job) Fail(err *core.Error) {
	j.Status = StatusFailed
	j.ErrorCode = err.Code
	j.Error = err.Error()
}

// Store keeps recent jobs in memory.
type Store struct {
	jobs    map[string]*Job
	order   []string // insertion order for eviction
	maxSize int
	ttl     time.Duration
	mu      sync.RWMutex
	now     func() time.Time
}

// NewStore creates a store holding at most maxSize jobs. Finished jobs
// older than ttl are dropped; a non-positive ttl keeps them until evicted.
func NewStore(maxSize int, ttl time.Duration) *Store {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Store{
		jobs:    make(map[string]*Job),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Create registers a pending job for total symbols and returns a copy.
func (s *Store) Create(total int) Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expire()
	for len(s.jobs) >= s.maxSize && len(s.order) > 0 {
		s.evictOldest()
	}

	now := s.now()
	j := &Job{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		Total:     total,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.jobs[j.ID] = j
	s.order = append(s.order, j.ID)
	return *j
}

// Get retrieves a job by ID.
func (s *Store) Get(id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return Job{}, core.ErrNotFound
	}
	return *j, nil
}

// Update modifies a job using an update function.
func (s *Store) Update(id string, fn func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return core.ErrNotFound
	}

	fn(j)
	j.UpdatedAt = s.now()
	return nil
}

// List returns all jobs, newest first.
func (s *Store) List() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expire()
	result := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		result = append(result, *j)
	}
	sort.Slice(result, func(a, b int) bool {
		return result[a].CreatedAt.After(result[b].CreatedAt)
	})
	return result
}

// evictOldest prefers the oldest finished job so a running job survives.
func (s *Store) evictOldest() {
	victim := 0
	for i, id := range s.order {
		if s.jobs[id].Status.Finished() {
			victim = i
			break
		}
	}
	delete(s.jobs, s.order[victim])
	s.order = append(s.order[:victim], s.order[victim+1:]...)
}

func (s *Store) expire() {
	if s.ttl <= 0 {
		return
	}
	cutoff := s.now().Add(-s.ttl)
	kept := s.order[:0]
	for _, id := range s.order {
		j := s.jobs[id]
		if j.Status.Finished() && j.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}
