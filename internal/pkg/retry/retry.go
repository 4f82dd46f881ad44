package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is a bounded exponential backoff: Base, doubling, capped at Max.
type Policy struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
	// Jitter is the randomization factor; 0 gives exact delays.
	Jitter float64
}

// Default is three attempts starting at one second.
var Default = Policy{Attempts: 3, Base: time.Second, Max: time.Minute, Jitter: 0.5}

func (p Policy) exponential() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(p.Base),
		backoff.WithMultiplier(2),
		backoff.WithMaxInterval(p.Max),
		backoff.WithRandomizationFactor(p.Jitter),
		backoff.WithMaxElapsedTime(0),
	)
	b.Reset()
	return b
}

// Do runs fn until it succeeds, returns a permanent error, ctx ends, or the
// attempts are used up. The last error is returned.
func Do(ctx context.Context, p Policy, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithContext(backoff.WithMaxRetries(p.exponential(), uint64(attempts-1)), ctx)
	return backoff.Retry(fn, b)
}

// Permanent marks err so Do stops retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Delay returns the wait before retry number attempt (1-based).
func Delay(p Policy, attempt int) time.Duration {
	b := p.exponential()
	d := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}
