package orchestrator

import (
	"context"
	"time"

	"github.com/ShayCichocki/brigade/internal/store"
)

// DefaultPollInterval is used when no backoff is configured.
const DefaultPollInterval = 200 * time.Millisecond

// Backoff decides how long a loop waits before re-reading the store.
// Wait returns the context's error if it is canceled first.
type Backoff interface {
	Wait(ctx context.Context) error
}

// FixedBackoff sleeps for a constant interval.
type FixedBackoff struct {
	Interval time.Duration
}

// Wait sleeps for the interval. A non-positive interval only yields to
// cancellation.
func (b FixedBackoff) Wait(ctx context.Context) error {
	if b.Interval <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(b.Interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NotifyBackoff wakes as soon as the store reports a change, or after
// Fallback at the latest. Changes that land between the caller's last scan
// and the call to Wait are only seen once Fallback expires.
type NotifyBackoff struct {
	Notifier store.ChangeNotifier
	Fallback time.Duration
}

// Wait blocks until the next store change, the fallback interval, or
// cancellation.
func (b NotifyBackoff) Wait(ctx context.Context) error {
	fallback := b.Fallback
	if fallback <= 0 {
		fallback = time.Second
	}
	if b.Notifier == nil {
		return FixedBackoff{Interval: fallback}.Wait(ctx)
	}

	timer := time.NewTimer(fallback)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.Notifier.Changed():
		return nil
	case <-timer.C:
		return nil
	}
}
