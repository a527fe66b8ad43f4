package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork covers timeouts, refused connections and open circuit breakers.
	ErrNetwork = errors.New("network error")
	// ErrUpstream is the sentinel behind every UpstreamError.
	ErrUpstream = errors.New("upstream error")
	// ErrAuth is returned when a provider rejects or cannot issue credentials.
	ErrAuth = errors.New("authentication failed")
	// ErrNotFound is returned when a place cannot be geocoded.
	ErrNotFound = errors.New("place not found")
	// ErrEmptyResult means the upstream answered but had no usable readings.
	ErrEmptyResult = errors.New("no usable data in response")
	// ErrNoData is returned by GetWeather when no provider produced a usable result.
	ErrNoData = errors.New("no weather data available")
	// ErrStorage wraps failures of the observation store.
	ErrStorage = errors.New("storage error")
)

// UpstreamError is a non-success HTTP response from a provider.
type UpstreamError struct {
	Provider string
	Status   int
	Body     []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Provider, e.Status)
}

func (e *UpstreamError) Unwrap() error {
	return ErrUpstream
}
