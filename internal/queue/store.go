package queue

import (
	"slices"
	"sync"

	"github.com/codebuildervaibhav/vidscribe/internal/types"
)

// Store is the in-memory job table. The map lock only guards lookups and
// inserts; every Job carries its own mutex, so a worker updating one job never
// blocks readers of another. Records live until the process exits.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

// Create inserts a queued job.
func (s *Store) Create(id, url string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; exists {
		return Snapshot{}, types.ErrDuplicateID
	}
	job := NewJob(id, url)
	s.jobs[id] = job
	return job.snapshot(), nil
}

// Get returns a consistent copy of the job.
func (s *Store) Get(id string) (Snapshot, error) {
	job := s.lookup(id)
	if job == nil {
		return Snapshot{}, types.ErrNotFound
	}
	job.mu.Lock()
	defer job.mu.Unlock()
	return job.snapshot(), nil
}

// Update applies fn to the job while holding its lock, so readers observe
// either the state before fn or after it, never in between.
func (s *Store) Update(id string, fn func(*Job) error) error {
	job := s.lookup(id)
	if job == nil {
		return types.ErrNotFound
	}
	job.mu.Lock()
	defer job.mu.Unlock()
	return fn(job)
}

// List returns all jobs, most recent first.
func (s *Store) List() []Snapshot {
	s.mu.RLock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	s.mu.RUnlock()

	out := make([]Snapshot, 0, len(jobs))
	for _, job := range jobs {
		job.mu.Lock()
		out = append(out, job.snapshot())
		job.mu.Unlock()
	}
	slices.SortFunc(out, func(a, b Snapshot) int {
		return b.SubmittedAt.Compare(a.SubmittedAt)
	})
	return out
}

// Counts tallies jobs per status.
func (s *Store) Counts() map[types.Status]int {
	counts := map[types.Status]int{
		types.StatusQueued:    0,
		types.StatusRunning:   0,
		types.StatusCompleted: 0,
		types.StatusFailed:    0,
	}
	for _, snap := range s.List() {
		counts[snap.Status]++
	}
	return counts
}

// Active returns the ids of jobs that are not yet terminal.
func (s *Store) Active() []string {
	var ids []string
	for _, snap := range s.List() {
		if !snap.Status.IsTerminal() {
			ids = append(ids, snap.ID)
		}
	}
	return ids
}

func (s *Store) lookup(id string) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[id]
}
