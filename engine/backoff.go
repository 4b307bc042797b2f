package engine

import (
	"context"
	"time"
)

// Backoff is the ingress reconnect policy: a couple of fast retries for
// transient hiccups, then a steady delay so a stream that is simply offline
// is not hammered.
type Backoff struct {
	FastRetries int
	FastDelay   time.Duration
	SteadyDelay time.Duration
}

// DefaultBackoff returns the standard reconnect policy with the configured
// steady-state delay.
func DefaultBackoff(steady time.Duration) Backoff {
	if steady <= 0 {
		steady = DefaultReconnectDelay
	}
	return Backoff{
		FastRetries: 2,
		FastDelay:   5 * time.Second,
		SteadyDelay: steady,
	}
}

// Delay returns the wait before the given 1-based attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt <= b.FastRetries {
		return b.FastDelay
	}
	return b.SteadyDelay
}

// sleep waits for d, returning false immediately if ctx is cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
