// Package retry holds the retry policy shared by every component that
// calls an external service (vector store, embedder, cross-encoder).
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy is an immutable retry policy value.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Jitter     time.Duration
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 2,
		BaseDelay:  200 * time.Millisecond,
		Jitter:     100 * time.Millisecond,
	}
}

// Do runs fn up to MaxRetries+1 times with exponential backoff and
// jitter between attempts. It stops early when fn succeeds or the
// context is done, and returns the last error otherwise.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	var err error
	delay := p.BaseDelay

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := delay
			if p.Jitter > 0 {
				wait += time.Duration(rand.Int63n(int64(p.Jitter)))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			delay *= 2
		}

		if err = fn(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return err
}
