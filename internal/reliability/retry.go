package reliability

import (
	"context"
	"time"
)

// RetryPolicy bounds how often and how fast an operation is retried.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Do runs op until it succeeds, returns a non-retryable error, the retry
// budget is spent, or ctx is done. The last error is returned.
func Do(ctx context.Context, p RetryPolicy, op func(ctx context.Context) error) error {
	if p.BaseDelay <= 0 {
		p.BaseDelay = 200 * time.Millisecond
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}

	var err error
	for attempt := 0; ; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if attempt >= p.MaxRetries || !IsRetryable(err) {
			return err
		}

		timer := time.NewTimer(ExponentialBackoff(attempt, p.BaseDelay, p.MaxDelay))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}
