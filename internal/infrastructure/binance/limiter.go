package binance

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Default rate-limiter tuning, sized for the exchange's per-minute weight budget.
const (
	RequestIntervalMs  = 150
	MaxRetryAttempts   = 5
	RetryBackoffBaseMs = 500
	MaxRetryBackoffMs  = 4000
)

// HTTPStatusError carries the HTTP status code of a non-retryable
// response so callers can inspect it without re-parsing the body.
type HTTPStatusError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPStatusError) Error() string {
	return "binance API error " + http.StatusText(e.StatusCode)
}

func (e *HTTPStatusError) HTTPStatus() int { return e.StatusCode }

// httpStatusCoder is implemented by any error that knows the HTTP
// status it came from, so the limiter can classify retryability
// regardless of whether the body parsed as structured JSON.
type httpStatusCoder interface {
	HTTPStatus() int
}

// Limiter serializes outbound exchange calls to a minimum spacing and
// retries transient failures with exponential backoff. It is meant to
// be constructed once per process and shared by every exchange call
// as a single instance.
type Limiter struct {
	interval time.Duration
	mu       sync.Mutex
	lastSend time.Time

	maxAttempts   int
	backoffBase   time.Duration
	maxBackoff    time.Duration

	// sleep is swappable in tests to avoid real wall-clock waits.
	sleep func(time.Duration)
}

// NewLimiter builds a Limiter with the package defaults above.
func NewLimiter() *Limiter {
	return &Limiter{
		interval:    RequestIntervalMs * time.Millisecond,
		maxAttempts: MaxRetryAttempts,
		backoffBase: RetryBackoffBaseMs * time.Millisecond,
		maxBackoff:  MaxRetryBackoffMs * time.Millisecond,
		sleep:       time.Sleep,
	}
}

// acquire blocks until at least `interval` has elapsed since the last
// send, then reserves the slot.
func (l *Limiter) acquire(ctx context.Context) error {
	l.mu.Lock()
	wait := l.interval - time.Since(l.lastSend)
	if wait < 0 {
		wait = 0
	}
	l.lastSend = time.Now().Add(wait)
	l.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do runs fn under the rate limit, retrying transient failures
// (network errors, 5xx, 429) up to maxAttempts with doubling backoff.
// 4xx responses other than 429 are returned immediately as
// non-retryable.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := l.backoffBase
	var lastErr error

	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		if err := l.acquire(ctx); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if coder, ok := err.(httpStatusCoder); ok {
			code := coder.HTTPStatus()
			if code >= 400 && code < 500 && code != 429 {
				return err // permanent-remote: surfaced immediately
			}
		}

		if attempt == l.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		l.sleep(backoff)
		backoff *= 2
		if backoff > l.maxBackoff {
			backoff = l.maxBackoff
		}
	}
	return lastErr
}
