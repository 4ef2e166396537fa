package restore

import (
	"sync"
	"time"
)

// Job tracks one restoration attempt for a backup
type Job struct {
	BackupID    string     `json:"backup_id"`
	Status      Status     `json:"status"`
	Progress    int        `json:"progress"`
	Message     string     `json:"message"`
	StartedAt   time.Time  `json:"started"`
	CompletedAt *time.Time `json:"completed"`
	Error       *string    `json:"error"`
}

// clone returns a copy that shares no pointers with j
func (j Job) clone() Job {
	if j.CompletedAt != nil {
		completedAt := *j.CompletedAt
		j.CompletedAt = &completedAt
	}
	if j.Error != nil {
		msg := *j.Error
		j.Error = &msg
	}
	return j
}

// entry guards a single job record
type entry struct {
	mu  sync.Mutex
	job Job
}

// Store holds the latest restoration job per backup identifier.
// The map lock is only held to find or insert an entry; each record has its
// own lock, so work on one backup never waits on another.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
}

// NewStore creates an empty job store
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

func (s *Store) lookup(backupID string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[backupID]
	return e, ok
}

func (s *Store) seed(backupID string) Job {
	return Job{
		BackupID:  backupID,
		Status:    StatusStarting,
		Progress:  0,
		Message:   "Initializing restoration...",
		StartedAt: s.now().UTC(),
	}
}

// CreateIfAbsent inserts a fresh starting job for backupID and returns it with created=true.
// If a non-terminal job already exists it is returned unchanged with created=false.
// A terminal job is replaced by the new attempt.
func (s *Store) CreateIfAbsent(backupID string) (Job, bool) {
	e, ok := s.lookup(backupID)
	if !ok {
		s.mu.Lock()
		e, ok = s.entries[backupID]
		if !ok {
			e = &entry{job: s.seed(backupID)}
			s.entries[backupID] = e
			s.mu.Unlock()
			return e.job.clone(), true
		}
		s.mu.Unlock()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.job.Status.IsTerminal() {
		return e.job.clone(), false
	}

	e.job = s.seed(backupID)
	return e.job.clone(), true
}

// Get returns a point-in-time snapshot of the job for backupID
func (s *Store) Get(backupID string) (Job, bool) {
	e, ok := s.lookup(backupID)
	if !ok {
		return Job{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job.clone(), true
}

// Update applies mutate to the job for backupID atomically.
// It returns false when no job exists.
func (s *Store) Update(backupID string, mutate func(*Job)) bool {
	e, ok := s.lookup(backupID)
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	mutate(&e.job)
	return true
}

// List returns snapshots of every tracked job
func (s *Store) List() []Job {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	jobs := make([]Job, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		jobs = append(jobs, e.job.clone())
		e.mu.Unlock()
	}
	return jobs
}
