package core

// run_limiter.go keeps sync runs from overlapping.
//
// A sync run reads every stored table and then rewrites some of them, so
// two runs against the same store would diff against each other's
// half-written state. The limiter holds a single slot: a second run waits
// up to maxWait for the first to finish and then fails with
// ErrSyncInProgress.
//
// WaitForDrain lets the server block shutdown until the active run is done.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSyncInProgress is returned when another sync run holds the slot and
// the wait timeout expires.
var ErrSyncInProgress = errors.New("sync already in progress, please try again later")

// DefaultRunWait is how long a run waits for the slot before rejecting.
const DefaultRunWait = 5 * time.Second

// RunLimiter serializes sync runs.
type RunLimiter struct {
	slot    chan struct{}
	maxWait time.Duration

	mu      sync.RWMutex
	active  bool
	started time.Time
}

// NewRunLimiter creates a limiter whose waiters give up after maxWait.
func NewRunLimiter(maxWait time.Duration) *RunLimiter {
	if maxWait <= 0 {
		maxWait = DefaultRunWait
	}
	return &RunLimiter{
		slot:    make(chan struct{}, 1),
		maxWait: maxWait,
	}
}

// Acquire takes the run slot.
// Returns nil on success, ErrSyncInProgress if the timeout expires.
// The caller MUST call Release() when the run completes (use defer).
func (l *RunLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.slot <- struct{}{}:
		l.markActive(true)
		return nil

	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrSyncInProgress
	}
}

// TryAcquire takes the slot without blocking.
func (l *RunLimiter) TryAcquire() bool {
	select {
	case l.slot <- struct{}{}:
		l.markActive(true)
		return true
	default:
		return false
	}
}

// Release frees the slot.
// Must be called exactly once for each successful Acquire/TryAcquire.
func (l *RunLimiter) Release() {
	l.markActive(false)
	<-l.slot
}

func (l *RunLimiter) markActive(active bool) {
	l.mu.Lock()
	l.active = active
	if active {
		l.started = time.Now()
	} else {
		l.started = time.Time{}
	}
	l.mu.Unlock()
}

// Active reports whether a run currently holds the slot.
func (l *RunLimiter) Active() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// WaitForDrain blocks until no run is active or ctx is cancelled.
// Used for graceful shutdown so a run is not cut between tables.
func (l *RunLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if !l.Active() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunLimiterStatus is a snapshot of the limiter state.
type RunLimiterStatus struct {
	Active    bool      `json:"active"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

// Status returns the current limiter state for monitoring.
func (l *RunLimiter) Status() RunLimiterStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return RunLimiterStatus{Active: l.active, StartedAt: l.started}
}
