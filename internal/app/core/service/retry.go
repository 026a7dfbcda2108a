package service

import (
	"context"
	"time"
)

// RetryPolicy bounds a transport-failure retry loop (§7 "transport errors
// retry next tick" policy, generalized for callers that want immediate
// backoff rather than waiting for the next evaluator tick).
type RetryPolicy struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultRetryPolicy makes up to three attempts with exponential backoff
// starting at 100ms, capped at 2s.
var DefaultRetryPolicy = RetryPolicy{
	Attempts:       3,
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
	Multiplier:     2,
}

// Retry calls fn until it succeeds, the policy's attempts are exhausted, or
// ctx is cancelled, whichever comes first.
func Retry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	backoff := policy.InitialBackoff
	var err error
	for attempt := 0; attempt < policy.Attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == policy.Attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = time.Duration(float64(backoff) * policy.Multiplier)
		if backoff > policy.MaxBackoff {
			backoff = policy.MaxBackoff
		}
	}
	return err
}
