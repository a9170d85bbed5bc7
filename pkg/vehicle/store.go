package vehicle

import "sync"

// StatusStore holds the current vehicle Status. Telemetry ingestion is the
// only writer; readers get copies.
type StatusStore struct {
	mu     sync.RWMutex
	status Status
}

// NewStatusStore returns a store holding the zero Status.
func NewStatusStore() *StatusStore {
	return &StatusStore{}
}

// Get returns a copy of the current status.
func (s *StatusStore) Get() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Update applies fn to the status under the write lock. fn must not block.
func (s *StatusStore) Update(fn func(*Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.status)
}
