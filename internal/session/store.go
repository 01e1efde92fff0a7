package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Store is a session-scoped key-value store with atomic read-and-remove
type Store interface {
	Set(key, value string)
	Pop(key, defaultValue string) string
}

// MemoryStore keeps the values of a single session in memory
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Set stores value under key, replacing any previous value
func (s *MemoryStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Pop returns the value stored under key and removes it. defaultValue is
// returned when the key is absent.
func (s *MemoryStore) Pop(key, defaultValue string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.values[key]
	if !ok {
		return defaultValue
	}
	delete(s.values, key)
	return value
}

// Len returns the number of stored values
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

type entry struct {
	store    *MemoryStore
	lastUsed time.Time
}

// Registry hands out one MemoryStore per session id
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	now      func() time.Time
}

// NewRegistry creates an empty session registry
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*entry),
		now:      time.Now,
	}
}

// Get returns the store of the given session, creating it on first use
func (r *Registry) Get(sessionID string) *MemoryStore {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[sessionID]
	if !ok {
		e = &entry{store: NewMemoryStore()}
		r.sessions[sessionID] = e
		log.Debug().
			Str("session_id", sessionID).
			Int("sessions", len(r.sessions)).
			Msg("Session store created")
	}
	e.lastUsed = r.now()
	return e.store
}

// Release drops the session when its store holds no values
func (r *Registry) Release(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.sessions[sessionID]; ok && e.store.Len() == 0 {
		delete(r.sessions, sessionID)
	}
}

// Delete drops the store of the given session
func (r *Registry) Delete(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}

// Evict drops sessions not used for longer than maxIdle and returns how many
// were dropped.
func (r *Registry) Evict(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-maxIdle)
	evicted := 0
	for id, e := range r.sessions {
		if e.lastUsed.Before(cutoff) {
			delete(r.sessions, id)
			evicted++
		}
	}
	if evicted > 0 {
		log.Info().
			Int("evicted", evicted).
			Int("sessions", len(r.sessions)).
			Msg("Idle sessions evicted")
	}
	return evicted
}

// RunEviction evicts idle sessions every interval until ctx is cancelled
func (r *Registry) RunEviction(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Evict(maxIdle)
		}
	}
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
