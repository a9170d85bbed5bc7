package tracker

import (
	"sync"
	"sync/atomic"
)

// Tracker tracks outcome statistics per operation (arm, goto, param:MC_ROLL_P, ...).
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*OperationStats
}

// OperationStats holds counters for a specific operation.
// Fields are accessed atomically.
type OperationStats struct {
	Success  int64
	Failures int64
	Timeouts int64
	Rejected int64
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*OperationStats),
	}
}

func (t *Tracker) getStats(op string) *OperationStats {
	t.mu.RLock()
	s, ok := t.stats[op]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Double check
	if s, ok = t.stats[op]; ok {
		return s
	}
	s = &OperationStats{}
	t.stats[op] = s
	return s
}

func (t *Tracker) TrackSuccess(op string) {
	atomic.AddInt64(&t.getStats(op).Success, 1)
}

func (t *Tracker) TrackFailure(op string) {
	atomic.AddInt64(&t.getStats(op).Failures, 1)
}

func (t *Tracker) TrackTimeout(op string) {
	atomic.AddInt64(&t.getStats(op).Timeouts, 1)
}

// TrackRejected counts operations refused locally before reaching the vehicle
// (failed preflight, link not running).
func (t *Tracker) TrackRejected(op string) {
	atomic.AddInt64(&t.getStats(op).Rejected, 1)
}

// Track records a boolean outcome.
func (t *Tracker) Track(op string, ok bool) {
	if ok {
		t.TrackSuccess(op)
		return
	}
	t.TrackFailure(op)
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]OperationStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]OperationStats, len(t.stats))
	for k, v := range t.stats {
		result[k] = OperationStats{
			Success:  atomic.LoadInt64(&v.Success),
			Failures: atomic.LoadInt64(&v.Failures),
			Timeouts: atomic.LoadInt64(&v.Timeouts),
			Rejected: atomic.LoadInt64(&v.Rejected),
		}
	}
	return result
}

// Reset zeroes all counters but keeps the known operations.
func (t *Tracker) Reset() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, v := range t.stats {
		atomic.StoreInt64(&v.Success, 0)
		atomic.StoreInt64(&v.Failures, 0)
		atomic.StoreInt64(&v.Timeouts, 0)
		atomic.StoreInt64(&v.Rejected, 0)
	}
}
