package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-observatory/internal/weather"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
	Logger  *slog.Logger
}

// DefaultBackoff is used by providers unless overridden.
var DefaultBackoff = BackoffConfig{
	MaxRetries:      2,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

// maxErrorBody bounds how much of a failed response is kept on UpstreamError.
const maxErrorBody = 64 << 10

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// retryableError carries the last response status of a retryable failure so
// it can be reported as an UpstreamError once retries are exhausted.
type retryableError struct {
	cause  error
	status int
	body   []byte
}

func (e *retryableError) Error() string { return fmt.Sprintf("%v: %d", e.cause, e.status) }
func (e *retryableError) Unwrap() error { return e.cause }

// doRequestWithResilience executes the HTTP request with retries, exponential
// backoff and a circuit breaker. Errors are classified into the weather error
// taxonomy: transport failures and open circuits wrap weather.ErrNetwork,
// non-2xx responses are *weather.UpstreamError. Only 429 and 5xx responses and
// transport failures are retried.
func doRequestWithResilience(
	ctx context.Context,
	provider string,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	var attempt int
	var lastErr error

	for {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", weather.ErrNetwork, ctx.Err())
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}

		// Ensure the request obeys context cancellation.
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}

			// Rate limiting and server errors count against the breaker.
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				body := readErrorBody(resp)
				cause := errServerError
				if resp.StatusCode == http.StatusTooManyRequests {
					cause = errRateLimited
				}
				return nil, &retryableError{cause: cause, status: resp.StatusCode, body: body}
			}

			return resp, nil
		})

		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				// Client errors are final: retrying will not change the answer.
				return nil, &weather.UpstreamError{
					Provider: provider,
					Status:   resp.StatusCode,
					Body:     readErrorBody(resp),
				}
			}
			return resp, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w: %v", weather.ErrNetwork, errCircuitOpen, err)
		}

		lastErr = err
		if attempt >= cfg.Backoff.MaxRetries {
			return nil, classify(provider, lastErr)
		}

		// Backoff with exponential delay.
		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}
		if cfg.Logger != nil {
			cfg.Logger.Debug("retrying provider request", "provider", provider, "attempt", attempt+1, "delay", delay, "error", err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %w", weather.ErrNetwork, ctx.Err())
		case <-timer.C:
			// continue to next attempt
		}

		attempt++
	}
}

// classify maps the last failed attempt onto the weather error taxonomy.
func classify(provider string, err error) error {
	var re *retryableError
	if errors.As(err, &re) {
		return &weather.UpstreamError{Provider: provider, Status: re.status, Body: re.body}
	}
	return fmt.Errorf("%w: %s: %w", weather.ErrNetwork, provider, err)
}

func readErrorBody(resp *http.Response) []byte {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return body
}
