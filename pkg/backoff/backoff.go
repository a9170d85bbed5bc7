package backoff

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Policy manages exponential backoff per key (a subscription, the link handshake, ...).
type Policy struct {
	mu        sync.RWMutex
	keys      map[string]*state
	baseDelay time.Duration
	maxDelay  time.Duration
}

type state struct {
	failureCount int
	nextAllowed  time.Time
}

// New creates a new backoff policy.
func New(baseDelay, maxDelay time.Duration) *Policy {
	return &Policy{
		keys:      make(map[string]*state),
		baseDelay: baseDelay,
		maxDelay:  maxDelay,
	}
}

// Wait blocks until the key is allowed to retry or ctx is done.
func (p *Policy) Wait(ctx context.Context, key string) error {
	p.mu.RLock()
	s, exists := p.keys[key]
	var until time.Time
	if exists {
		until = s.nextAllowed
	}
	p.mu.RUnlock()

	d := time.Until(until)
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RecordFailure increases the backoff delay for a key and returns the new delay.
func (p *Policy) RecordFailure(key string) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, exists := p.keys[key]
	if !exists {
		s = &state{}
		p.keys[key] = s
	}

	s.failureCount++
	delay := p.calculateDelay(s.failureCount)
	s.nextAllowed = time.Now().Add(delay)
	return delay
}

// RecordSuccess clears the backoff for a key. A link that came back is
// healthy again, so there is no gradual recovery.
func (p *Policy) RecordSuccess(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.keys, key)
}

// calculateDelay returns exponential delay with jitter.
func (p *Policy) calculateDelay(failures int) time.Duration {
	// baseDelay * 2^(failures-1)
	multiplier := math.Pow(2, float64(failures-1))
	delay := time.Duration(float64(p.baseDelay) * multiplier)

	if delay > p.maxDelay || delay <= 0 {
		delay = p.maxDelay
	}

	// 10% jitter
	jitter := time.Duration(rand.Float64() * 0.1 * float64(delay))
	return delay + jitter
}

// State returns current backoff state for a key.
func (p *Policy) State(key string) (failureCount int, nextAllowed time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if s, exists := p.keys[key]; exists {
		return s.failureCount, s.nextAllowed
	}
	return 0, time.Time{}
}
