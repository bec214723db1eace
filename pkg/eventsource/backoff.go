package eventsource

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// minimumBackoff wraps a cenkalti/backoff/v4 policy with a floor: the
// next delay is never shorter than the floor, even immediately after a
// reset. Servers can raise the floor at any time via a "retry:" frame;
// lowering it never happens, matching the "retry" field's role as the
// minimum delay the server is willing to accept reconnects at.
type minimumBackoff struct {
	mu    sync.Mutex
	inner backoff.BackOff
	floor time.Duration
}

func newMinimumBackoff(inner backoff.BackOff, floor time.Duration) *minimumBackoff {
	return &minimumBackoff{inner: inner, floor: floor}
}

func (b *minimumBackoff) NextBackOff() time.Duration {
	b.mu.Lock()
	floor := b.floor
	b.mu.Unlock()

	d := b.inner.NextBackOff()
	if d == backoff.Stop {
		return backoff.Stop
	}
	if d < floor {
		return floor
	}
	return d
}

func (b *minimumBackoff) Reset() {
	b.inner.Reset()
}

// SetMinimumDuration raises the floor applied to every subsequent
// NextBackOff call. It never lowers it: a later, smaller "retry:" value
// does not relax a floor a larger one already set. It does not touch
// the wrapped policy's own internal state.
func (b *minimumBackoff) SetMinimumDuration(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d > b.floor {
		b.floor = d
	}
}

func newExponentialBackOff(initial, max, maxElapsed time.Duration) *backoff.ExponentialBackOff {
	return backoff.NewExponentialBackOff([]backoff.ExponentialBackOffOpts{
		backoff.WithInitialInterval(initial),
		backoff.WithMaxInterval(max),
		backoff.WithMaxElapsedTime(maxElapsed),
		backoff.WithRandomizationFactor(backoff.DefaultRandomizationFactor),
	}...)
}
