package provider

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy configures WithRetry. Waits are indexed by attempt; the last entry is reused.
type RetryPolicy struct {
	Retries         int
	RateLimitWaits  []time.Duration
	ServerErrorWait []time.Duration
	Logger          *zap.Logger
}

// DefaultRetryPolicy returns conservative waits for hosted APIs.
func DefaultRetryPolicy(retries int) RetryPolicy {
	return RetryPolicy{
		Retries:         retries,
		RateLimitWaits:  []time.Duration{65 * time.Second, 100 * time.Second, 135 * time.Second},
		ServerErrorWait: []time.Duration{5 * time.Second, 30 * time.Second, 60 * time.Second},
	}
}

type retryGateway struct {
	next   Gateway
	policy RetryPolicy
	logger *zap.Logger
}

// WithRetry wraps g so rate-limit and server transport failures are retried.
// Timeouts, malformed output, and missing content are returned immediately.
// With policy.Retries <= 0 it returns g unchanged.
func WithRetry(g Gateway, policy RetryPolicy) Gateway {
	if policy.Retries <= 0 {
		return g
	}
	logger := policy.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &retryGateway{next: g, policy: policy, logger: logger}
}

func (r *retryGateway) Complete(ctx context.Context, req Request) (Completion, error) {
	for attempt := 0; ; attempt++ {
		out, err := r.next.Complete(ctx, req)
		if err == nil || attempt >= r.policy.Retries {
			return out, err
		}

		var wait time.Duration
		switch {
		case isRateLimitError(err):
			wait = pickWait(r.policy.RateLimitWaits, attempt)
		case isServerError(err):
			wait = pickWait(r.policy.ServerErrorWait, attempt)
		default:
			return out, err
		}

		r.logger.Warn("retrying completion",
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err))

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return Completion{}, ctx.Err()
		case <-t.C:
		}
	}
}

func pickWait(waits []time.Duration, attempt int) time.Duration {
	if len(waits) == 0 {
		return 0
	}
	if attempt >= len(waits) {
		return waits[len(waits)-1]
	}
	return waits[attempt]
}

func isRateLimitError(err error) bool {
	if err == nil || KindOf(err) != FailureTransport {
		return false
	}
	if f := asFailure(err); f != nil && f.StatusCode == http.StatusTooManyRequests {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

func isServerError(err error) bool {
	if err == nil || KindOf(err) != FailureTransport {
		return false
	}
	if f := asFailure(err); f != nil && f.StatusCode >= 500 {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "server_error")
}
