package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/kelvins/geocoder"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-observatory/internal/common"
	"github.com/i474232898/weather-observatory/internal/weather"
)

// OpenMeteoGeocoder looks places up with the Open-Meteo geocoding API.
type OpenMeteoGeocoder struct {
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoGeocoder(client *http.Client, baseURL string, backoff BackoffConfig, logger *slog.Logger) *OpenMeteoGeocoder {
	if baseURL == "" {
		baseURL = "https://geocoding-api.open-meteo.com/v1/search"
	}
	return &OpenMeteoGeocoder{
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{Client: client, Backoff: backoff, Logger: logger},
		circuit: newCircuitBreaker("openmeteo-geocoding"),
	}
}

// Geocode returns the best match for place, or weather.ErrNotFound.
func (g *OpenMeteoGeocoder) Geocode(ctx context.Context, place string) (weather.Coordinates, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("name", place)
		values.Set("count", "1")
		values.Set("language", "en")
		values.Set("format", "json")

		return http.NewRequest(http.MethodGet, fmt.Sprintf("%s?%s", g.baseURL, values.Encode()), nil)
	}

	resp, err := doRequestWithResilience(ctx, "openmeteo-geocoding", g.httpCfg, g.circuit, buildRequest)
	if err != nil {
		return weather.Coordinates{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Results []struct {
			Name      string  `json:"name"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Coordinates{}, fmt.Errorf("openmeteo geocoding: error decoding response: %w", err)
	}
	if len(payload.Results) == 0 {
		return weather.Coordinates{}, fmt.Errorf("%w: %q", weather.ErrNotFound, place)
	}

	return weather.Coordinates{Lat: payload.Results[0].Latitude, Lon: payload.Results[0].Longitude}, nil
}

// defaultGoogleTimeout bounds a Google lookup when no timeout is configured.
const defaultGoogleTimeout = 10 * time.Second

// GoogleGeocoder looks places up with the Google Geocoding API.
type GoogleGeocoder struct {
	apiKey  string
	timeout time.Duration
}

// NewGoogleGeocoder creates a Google backend. timeout bounds every lookup;
// the geocoder library uses an http.Client without one.
func NewGoogleGeocoder(apiKey string, timeout time.Duration) *GoogleGeocoder {
	if timeout <= 0 {
		timeout = defaultGoogleTimeout
	}
	return &GoogleGeocoder{apiKey: apiKey, timeout: timeout}
}

// Geocode resolves place as a city. The underlying client takes no context,
// so an expired lookup is abandoned and reported as weather.ErrNetwork.
func (g *GoogleGeocoder) Geocode(ctx context.Context, place string) (weather.Coordinates, error) {
	if g.apiKey == "" {
		return weather.Coordinates{}, fmt.Errorf("google geocoder api key is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type result struct {
		loc geocoder.Location
		err error
	}
	done := make(chan result, 1)
	go func() {
		// The library indexes the first result without a length check for
		// statuses it does not know, e.g. OVER_DAILY_LIMIT.
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("google geocoding: unexpected response: %v", r)}
			}
		}()
		loc, err := geocoder.Geocoding(googleAddress(place, g.apiKey))
		done <- result{loc: loc, err: err}
	}()

	select {
	case <-ctx.Done():
		return weather.Coordinates{}, fmt.Errorf("%w: google geocoding: %w", weather.ErrNetwork, ctx.Err())
	case r := <-done:
		if r.err != nil {
			if common.HasAny(r.err.Error(), "zero_results", "no results") {
				return weather.Coordinates{}, fmt.Errorf("%w: %q", weather.ErrNotFound, place)
			}
			return weather.Coordinates{}, fmt.Errorf("%w: google geocoding: %w", weather.ErrNetwork, r.err)
		}
		return weather.Coordinates{Lat: r.loc.Latitude, Lon: r.loc.Longitude}, nil
	}
}

// googleAddress builds the address the library appends to its URL verbatim.
// The place is query-escaped and the key rides along in the same query, so
// the package-level geocoder.ApiKey stays unset and concurrent lookups share
// no mutable state.
func googleAddress(place, apiKey string) geocoder.Address {
	return geocoder.Address{City: url.QueryEscape(place) + "&key=" + url.QueryEscape(apiKey)}
}
