package semantic

import (
	"context"
	"sync"
	"time"
)

// Throttle implements token bucket throttling for outbound detection
// service calls.
type Throttle struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

// NewThrottle creates a throttle allowing requestsPerMinute sustained calls
// with the given burst capacity. Returns nil when requestsPerMinute is zero,
// which disables throttling.
func NewThrottle(requestsPerMinute, burst int) *Throttle {
	if requestsPerMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &Throttle{
		tokens:     float64(burst),
		capacity:   float64(burst),
		refillRate: float64(requestsPerMinute) / 60.0,
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available or the context is cancelled
func (t *Throttle) Wait(ctx context.Context) error {
	for {
		wait := t.reserve()
		if wait <= 0 {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve consumes a token if available, otherwise returns how long to wait
// before trying again.
func (t *Throttle) reserve() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(t.lastRefill).Seconds()
	t.tokens += elapsed * t.refillRate
	if t.tokens > t.capacity {
		t.tokens = t.capacity
	}
	t.lastRefill = now

	if t.tokens >= 1 {
		t.tokens--
		return 0
	}

	deficit := 1 - t.tokens
	return time.Duration(deficit / t.refillRate * float64(time.Second))
}
