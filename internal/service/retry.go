package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"careerprep/internal/domain"
)

// RetryPolicy bounds calls to external sources.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts; 0 retries until ctx is done.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Timeout applies to each attempt.
	Timeout time.Duration
	OnRetry func(attempt int, err error)
}

// DefaultRetryPolicy is used when the container does not override it.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Timeout:     10 * time.Second,
	}
}

// Retry runs op until it succeeds, fails with a permanent error, or the attempt
// budget is spent. Timeouts of a single attempt come back as ErrNetworkTimeout,
// other transient failures as ErrNetwork.
func Retry(ctx context.Context, p RetryPolicy, op func(ctx context.Context) error) error {
	for attempt := 1; ; attempt++ {
		err := runAttempt(ctx, p.Timeout, op)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if isPermanent(err) {
			return err
		}
		err = classifyNetworkError(err)
		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		timer := time.NewTimer(p.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func runAttempt(ctx context.Context, timeout time.Duration, op func(ctx context.Context) error) error {
	if timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(attemptCtx)
}

// backoff returns BaseDelay * 2^(attempt-1), capped at MaxDelay.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

func isPermanent(err error) bool {
	var cfgErr *domain.ConfigurationError
	var vErr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrQuotaExceeded),
		errors.Is(err, domain.ErrAlreadySubmitted),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrUnknownTier),
		errors.Is(err, domain.ErrInvalidToken),
		errors.As(err, &cfgErr),
		errors.As(err, &vErr):
		return true
	}
	return false
}

func classifyNetworkError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNetworkTimeout), errors.Is(err, domain.ErrNetwork):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", domain.ErrNetworkTimeout, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}
}
