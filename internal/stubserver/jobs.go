package stubserver

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/rreenactt/AI-Videos-Tool/internal/domain"
)

// Job is the progress record served by the progress endpoint.
type Job struct {
	Status    domain.JobStatus `json:"status"`
	Progress  float64          `json:"progress"`
	Message   string           `json:"message"`
	Error     string           `json:"error,omitempty"`
	Results   []any            `json:"results,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// JobStore keeps job progress in memory. Finished jobs expire after the TTL.
type JobStore struct {
	mu    sync.Mutex
	cache *cache.Cache
	ttl   time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JobStore{cache: cache.New(ttl, ttl/2), ttl: ttl}
}

// Put stores a fresh job. Jobs that are not finished never expire.
func (s *JobStore) Put(id string, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(id, job)
}

// Get returns a copy of the job.
func (s *JobStore) Get(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cache.Get(id)
	if !ok {
		return Job{}, false
	}
	job := v.(Job)
	job.Results = append([]any(nil), job.Results...)
	return job, true
}

// Update applies fn to the stored job. It is a no-op for unknown ids.
func (s *JobStore) Update(id string, fn func(*Job)) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cache.Get(id)
	if !ok {
		return Job{}, false
	}
	job := v.(Job)
	fn(&job)
	s.putLocked(id, job)
	return job, true
}

func (s *JobStore) putLocked(id string, job Job) {
	job.UpdatedAt = time.Now().UTC()
	ttl := cache.NoExpiration
	if job.Status.Terminal() {
		ttl = s.ttl
	}
	s.cache.Set(id, job, ttl)
}
