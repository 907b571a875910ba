package jobs

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/sandeshsk12/port/models"
)

// entry holds a job with the timestamp of its last update, used for
// TTL eviction.
type entry struct {
	job       *models.MirrorJob
	updatedAt time.Time
}

// Store is an in-memory registry of mirror jobs. Safe for concurrent
// use. Finished jobs stay queryable until the TTL sweep evicts them.
type Store struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
}

// New creates a Store. A background goroutine sweeps expired entries
// every 5 minutes.
func New(maxEntries int, ttl time.Duration) *Store {
	if maxEntries <= 0 {
		maxEntries = 500
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	s := &Store{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
	go s.cleanupLoop()
	return s
}

// Create registers a new processing job for a URL and returns it.
func (s *Store) Create(url, outputDir string) *models.MirrorJob {
	job := &models.MirrorJob{
		ID:        newID(),
		URL:       url,
		Status:    models.JobStatusProcessing,
		OutputDir: outputDir,
		CreatedAt: time.Now().Unix(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Evict one random entry if at capacity (map iteration is random in Go).
	if len(s.store) >= s.maxEntries {
		for k := range s.store {
			delete(s.store, k)
			break
		}
	}
	s.store[job.ID] = &entry{job: job, updatedAt: time.Now()}
	return job
}

// Get returns a snapshot copy of a job, so callers never race with
// in-flight updates.
func (s *Store) Get(id string) (*models.MirrorJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.store[id]
	if !ok {
		return nil, false
	}
	snapshot := *e.job
	snapshot.Pages = append([]models.PageResult(nil), e.job.Pages...)
	return &snapshot, true
}

// Update applies fn to a job under the store lock.
func (s *Store) Update(id string, fn func(*models.MirrorJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.store[id]
	if !ok {
		return
	}
	fn(e.job)
	e.updatedAt = time.Now()
}

// Len returns the number of retained jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.store)
}

// cleanupLoop evicts entries idle longer than the TTL every 5 minutes.
func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-s.ttl)
		s.mu.Lock()
		for k, e := range s.store {
			if e.updatedAt.Before(cutoff) {
				delete(s.store, k)
			}
		}
		s.mu.Unlock()
	}
}

// newID returns a 16-hex-character random job ID.
func newID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// Timestamp fallback keeps IDs unique enough for an in-memory
		// registry when the entropy source is unavailable.
		return hex.EncodeToString([]byte(time.Now().Format("150405.000000000")))[:16]
	}
	return hex.EncodeToString(b)
}
