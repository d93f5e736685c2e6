package declarest

import (
	"context"
	"fmt"
	"time"

	"github.com/taoudi-abdelbasset/declarest/internal/backoff"
)

// RetryPolicy bounds the retry behavior of one endpoint. It is derived once
// from the endpoint descriptor and shared read-only afterwards.
type RetryPolicy struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	BackoffFactor float64
	Jitter        bool
}

func (p RetryPolicy) validate() error {
	if p.MaxAttempts < 1 {
		return newConfigurationError("retry max attempts must be >= 1, got %d", p.MaxAttempts)
	}
	if p.BaseDelay < 0 {
		return newConfigurationError("retry base delay must be >= 0, got %v", p.BaseDelay)
	}
	if p.BackoffFactor < 1 {
		return newConfigurationError("retry backoff factor must be >= 1, got %v", p.BackoffFactor)
	}
	return nil
}

// RetryCondition decides whether a transport outcome earns another attempt.
type RetryCondition func(resp *TransportResponse, err error) bool

// DefaultRetryCondition retries transport errors (excluding the
// non-retryable taxonomy kinds), 5xx responses and 429.
func DefaultRetryCondition(resp *TransportResponse, err error) bool {
	if err != nil {
		return isRetryable(err)
	}
	if resp == nil {
		return false
	}
	return resp.StatusCode >= 500 || resp.StatusCode == 429
}

// Operation is one attempt of the retried work, typically a transport call.
type Operation func(ctx context.Context) (*TransportResponse, error)

// RetryExecutor runs an Operation with bounded exponential-backoff retry.
// It sleeps between attempts and performs no cancellation of in-flight
// calls; per-attempt timeouts belong to the transport. A nil condition
// falls back to DefaultRetryCondition.
type RetryExecutor struct {
	policy    RetryPolicy
	condition RetryCondition
	strategy  backoff.Strategy
}

// NewRetryExecutor builds an executor for the given policy.
func NewRetryExecutor(policy RetryPolicy, condition RetryCondition) (*RetryExecutor, error) {
	if err := policy.validate(); err != nil {
		return nil, err
	}
	if condition == nil {
		condition = DefaultRetryCondition
	}
	return &RetryExecutor{
		policy:    policy,
		condition: condition,
		strategy:  backoff.Exponential{},
	}, nil
}

// Run attempts op up to MaxAttempts times. Before each sleep the callback,
// when set, observes (attempt, maxAttempts, delay, cause); it must not
// affect control flow. When every attempt fails with an error the result is
// a RetryExhaustedError wrapping the last one. A retryable status code that
// survives all attempts is handed back as-is so response mapping decides
// its fate. Context cancellation aborts at the next sleep boundary.
func (e *RetryExecutor) Run(ctx context.Context, op Operation, onRetry RetryCallback) (*TransportResponse, error) {
	var (
		lastResp *TransportResponse
		lastErr  error
	)

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		resp, err := op(ctx)
		if !e.condition(resp, err) {
			return resp, err
		}
		lastResp, lastErr = resp, err

		if attempt == e.policy.MaxAttempts {
			break
		}

		delay := e.strategy.Delay(attempt, e.policy.BaseDelay, e.policy.BackoffFactor, e.policy.Jitter)
		if onRetry != nil {
			onRetry(attempt, e.policy.MaxAttempts, delay, retryCause(resp, err))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if lastErr != nil {
		return nil, &RetryExhaustedError{Attempts: e.policy.MaxAttempts, Cause: lastErr}
	}
	return lastResp, nil
}

// retryCause normalizes the failure handed to the retry callback.
func retryCause(resp *TransportResponse, err error) error {
	if err != nil {
		return err
	}
	if resp != nil {
		return fmt.Errorf("retryable status %d", resp.StatusCode)
	}
	return fmt.Errorf("retryable failure")
}
