package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-observatory/internal/weather"
)

// yrForecast is the subset of the locationforecast "compact" payload we use.
// Details are pointers so that missing values stay missing.
type yrForecast struct {
	Properties struct {
		Timeseries []struct {
			Time time.Time `json:"time"`
			Data struct {
				Instant struct {
					Details struct {
						AirPressureAtSeaLevel *float64 `json:"air_pressure_at_sea_level"`
						AirTemperature        *float64 `json:"air_temperature"`
						RelativeHumidity      *float64 `json:"relative_humidity"`
						WindSpeed             *float64 `json:"wind_speed"`
					} `json:"details"`
				} `json:"instant"`
			} `json:"data"`
		} `json:"timeseries"`
	} `json:"properties"`
}

// YrProvider implements weather.Provider for MET Norway's locationforecast API.
type YrProvider struct {
	baseURL   string
	userAgent string
	httpCfg   HTTPClientConfig
	circuit   *gobreaker.CircuitBreaker
}

// NewYrProvider creates a Yr provider. MET Norway rejects requests without an
// identifying User-Agent.
func NewYrProvider(client *http.Client, baseURL, userAgent string, backoff BackoffConfig, logger *slog.Logger) *YrProvider {
	if baseURL == "" {
		baseURL = "https://api.met.no/weatherapi/locationforecast/2.0/compact"
	}
	return &YrProvider{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpCfg:   HTTPClientConfig{Client: client, Backoff: backoff, Logger: logger},
		circuit:   newCircuitBreaker("yr"),
	}
}

func (p *YrProvider) Source() weather.Source {
	return weather.SourceYr
}

func (p *YrProvider) RequiresCoordinates() bool {
	return true
}

func (p *YrProvider) Fetch(ctx context.Context, loc weather.Location) (weather.Observation, error) {
	if loc.Coords == nil {
		return weather.Observation{}, fmt.Errorf("yr requires latitude and longitude")
	}
	if p.userAgent == "" {
		return weather.Observation{}, fmt.Errorf("yr user agent is not configured")
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("lat", strconv.FormatFloat(loc.Coords.Lat, 'f', -1, 64))
		values.Set("lon", strconv.FormatFloat(loc.Coords.Lon, 'f', -1, 64))

		req, err := http.NewRequest(http.MethodGet, p.baseURL+"?"+values.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", p.userAgent)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, "yr", p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Observation{}, err
	}
	defer resp.Body.Close()

	var payload yrForecast
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Observation{}, fmt.Errorf("yr: error decoding response: %w", err)
	}

	if len(payload.Properties.Timeseries) == 0 {
		return weather.Observation{}, fmt.Errorf("%w: yr: empty timeseries", weather.ErrEmptyResult)
	}

	// The first entry is the current instant.
	details := payload.Properties.Timeseries[0].Data.Instant.Details

	obs := weather.Observation{
		Place:        loc.Place,
		Source:       weather.SourceYr,
		PressureHPa:  details.AirPressureAtSeaLevel,
		WindSpeedMps: details.WindSpeed,
		// The instant view carries no precipitation.
		PrecipitationMm: nil,
		Description:     weather.DescriptionUnknown,
	}
	if details.AirTemperature != nil {
		obs.Temperature = *details.AirTemperature
	}
	if details.RelativeHumidity != nil {
		obs.Humidity = weather.Int(int(*details.RelativeHumidity))
	}

	return obs, nil
}
