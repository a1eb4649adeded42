package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/goliatone/go-payroll-link/core"
)

const KindRetry = "retry"

// RetryAdapter repeats idempotent requests a bounded number of times with a
// fixed delay. Requests that are not flagged idempotent pass through once.
type RetryAdapter struct {
	Next     core.TransportAdapter
	Attempts int
	Delay    time.Duration
	Logger   core.Logger

	sleep func(ctx context.Context, delay time.Duration) error
}

func NewRetryAdapter(next core.TransportAdapter, cfg core.TransportConfig, logger core.Logger) *RetryAdapter {
	return &RetryAdapter{
		Next:     next,
		Attempts: cfg.RetryAttempts,
		Delay:    cfg.RetryDelay,
		Logger:   logger,
	}
}

func (a *RetryAdapter) Kind() string {
	if a == nil || a.Next == nil {
		return KindRetry
	}
	return a.Next.Kind()
}

func (a *RetryAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil || a.Next == nil {
		return core.TransportResponse{}, internalError(nil, "transport: retry adapter requires a next adapter")
	}
	attempts := a.Attempts
	if attempts < 1 || !req.Idempotent {
		attempts = 1
	}

	var (
		res core.TransportResponse
		err error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err = a.Next.Do(ctx, req)
		if !shouldRetry(res, err) || attempt == attempts {
			break
		}
		if a.Logger != nil {
			a.Logger.Warn("transport retrying idempotent request",
				"attempt", attempt,
				"max_attempts", attempts,
				"status_code", res.StatusCode,
			)
		}
		if waitErr := a.wait(ctx); waitErr != nil {
			return core.TransportResponse{}, unavailableError(waitErr, "transport: retry interrupted", nil)
		}
	}
	return res, err
}

func (a *RetryAdapter) wait(ctx context.Context) error {
	if a.sleep != nil {
		return a.sleep(ctx, a.Delay)
	}
	if a.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(a.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func shouldRetry(res core.TransportResponse, err error) bool {
	if err != nil {
		return core.Retryable(err)
	}
	return res.StatusCode >= http.StatusInternalServerError || res.StatusCode == http.StatusTooManyRequests
}

var _ core.TransportAdapter = (*RetryAdapter)(nil)
