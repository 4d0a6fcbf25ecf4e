package agro

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"

	"github.com/couchcryptid/agro-monitor/internal/observability"
)

// ErrCircuitOpen is returned without contacting the API while the circuit
// breaker is open.
var ErrCircuitOpen = errors.New("agromonitoring circuit breaker is open")

// maxBodyBytes bounds any single upstream response.
const maxBodyBytes = 8 << 20

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("agromonitoring API error: status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed on a later attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// RetryPolicy controls the exponential backoff between attempts.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy returns the retry policy used by NewClient.
func DefaultRetryPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{
		MaxRetries:      uint64(max(maxRetries, 0)),
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// fetcher performs GET requests through a circuit breaker with retries on
// network errors, 5xx and 429 responses. Other 4xx responses fail at once
// and do not count against the breaker.
type fetcher struct {
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	retry   RetryPolicy
	metrics *observability.Metrics
	logger  *slog.Logger
}

func newFetcher(httpClient *http.Client, retry RetryPolicy, metrics *observability.Metrics, logger *slog.Logger) *fetcher {
	f := &fetcher{
		http:    httpClient,
		retry:   retry,
		metrics: metrics,
		logger:  logger,
	}
	f.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "agromonitoring",
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= 5 && float64(c.TotalFailures)/float64(c.Requests) >= 0.5
		},
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return !se.Retryable()
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreaker.Set(breakerStateValue(to))
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return f
}

// get fetches rawURL and returns the body. endpoint labels metrics and errors.
func (f *fetcher) get(ctx context.Context, endpoint, rawURL string) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.retry.InitialInterval
	bo.MaxInterval = f.retry.MaxInterval
	bo.MaxElapsedTime = 0

	attempt := 0
	var body []byte
	op := func() error {
		if attempt > 0 {
			f.metrics.APIRetries.Inc()
		}
		attempt++

		start := time.Now()
		b, err := f.breaker.Execute(func() ([]byte, error) {
			return f.do(ctx, rawURL)
		})
		f.metrics.APIDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

		if err == nil {
			body = b
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(ErrCircuitOpen)
		}
		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		f.logger.Debug("agromonitoring request failed, retrying", "endpoint", endpoint, "attempt", attempt, "error", err)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, f.retry.MaxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		outcome := "error"
		if errors.Is(err, ErrCircuitOpen) {
			outcome = "circuit_open"
		}
		f.metrics.APIRequests.WithLabelValues(endpoint, outcome).Inc()
		return nil, fmt.Errorf("%s request: %w", endpoint, err)
	}
	f.metrics.APIRequests.WithLabelValues(endpoint, "success").Inc()
	return body, nil
}

func (f *fetcher) do(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}
	return body, nil
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
