package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-observatory/internal/weather"
)

// tokenRefreshMargin is subtracted from the advertised token lifetime.
const tokenRefreshMargin = time.Minute

// ForecaProvider implements weather.Provider for the Foreca point forecast API.
// Every fetch first needs a bearer token issued for the configured account.
type ForecaProvider struct {
	baseURL    string
	user       string
	password   string
	locationID string
	httpCfg    HTTPClientConfig
	circuit    *gobreaker.CircuitBreaker
	authCB     *gobreaker.CircuitBreaker
	logger     *slog.Logger
	now        func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewForecaProvider creates a Foreca provider. When locationID is empty the
// provider asks for coordinates and queries by "lon,lat".
func NewForecaProvider(client *http.Client, baseURL, user, password, locationID string, backoff BackoffConfig, logger *slog.Logger) *ForecaProvider {
	if baseURL == "" {
		baseURL = "https://pfa.foreca.com"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ForecaProvider{
		baseURL:    baseURL,
		user:       user,
		password:   password,
		locationID: locationID,
		httpCfg:    HTTPClientConfig{Client: client, Backoff: backoff, Logger: logger},
		circuit:    newCircuitBreaker("foreca"),
		authCB:     newCircuitBreaker("foreca-auth"),
		logger:     logger,
		now:        time.Now,
	}
}

func (p *ForecaProvider) Source() weather.Source {
	return weather.SourceForeca
}

func (p *ForecaProvider) RequiresCoordinates() bool {
	return p.locationID == ""
}

func (p *ForecaProvider) Fetch(ctx context.Context, loc weather.Location) (weather.Observation, error) {
	location := p.locationID
	if location == "" {
		if loc.Coords == nil {
			return weather.Observation{}, fmt.Errorf("foreca requires a location id or coordinates")
		}
		location = strconv.FormatFloat(loc.Coords.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(loc.Coords.Lat, 'f', -1, 64)
	}

	token, err := p.accessToken(ctx)
	if err != nil {
		return weather.Observation{}, err
	}

	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, p.baseURL+"/api/v1/current/"+location, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, "foreca", p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		var ue *weather.UpstreamError
		if errors.As(err, &ue) && (ue.Status == http.StatusUnauthorized || ue.Status == http.StatusForbidden) {
			p.dropToken()
			return weather.Observation{}, fmt.Errorf("%w: foreca rejected token: %w", weather.ErrAuth, err)
		}
		return weather.Observation{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Current *struct {
			Temperature  *float64 `json:"temperature"`
			SymbolPhrase *string  `json:"symbolPhrase"`
			WindSpeed    *float64 `json:"windSpeed"`
			RelHumidity  *float64 `json:"relHumidity"`
			Pressure     *float64 `json:"pressure"`
			PrecipRate   *float64 `json:"precipRate"`
		} `json:"current"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Observation{}, fmt.Errorf("foreca: error decoding response: %w", err)
	}
	if payload.Current == nil {
		return weather.Observation{}, fmt.Errorf("%w: foreca: no current conditions", weather.ErrEmptyResult)
	}

	cur := payload.Current
	obs := weather.Observation{
		Place:           loc.Place,
		Source:          weather.SourceForeca,
		PressureHPa:     cur.Pressure,
		WindSpeedMps:    cur.WindSpeed,
		PrecipitationMm: cur.PrecipRate,
		Description:     weather.DescriptionUnknown,
	}
	if cur.Temperature != nil {
		obs.Temperature = *cur.Temperature
	}
	if cur.RelHumidity != nil {
		obs.Humidity = weather.Int(int(*cur.RelHumidity))
	}
	if cur.SymbolPhrase != nil && *cur.SymbolPhrase != "" {
		obs.Description = *cur.SymbolPhrase
	}

	return obs, nil
}

// accessToken returns a cached token or exchanges the credentials for a new
// one. Any failure is reported as weather.ErrAuth.
func (p *ForecaProvider) accessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && p.now().Before(p.tokenExpiry) {
		return p.token, nil
	}
	if p.user == "" || p.password == "" {
		return "", fmt.Errorf("%w: foreca credentials are not configured", weather.ErrAuth)
	}

	creds, err := json.Marshal(map[string]string{"user": p.user, "password": p.password})
	if err != nil {
		return "", fmt.Errorf("%w: %w", weather.ErrAuth, err)
	}

	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, p.baseURL+"/authorize/token?expire_hours=2", bytes.NewReader(creds))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, "foreca", p.httpCfg, p.authCB, buildRequest)
	if err != nil {
		return "", fmt.Errorf("%w: foreca token request: %w", weather.ErrAuth, err)
	}
	defer resp.Body.Close()

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: foreca token response: %w", weather.ErrAuth, err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("%w: foreca returned no access token", weather.ErrAuth)
	}

	lifetime := time.Duration(payload.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = 2 * time.Hour
	}
	p.token = payload.AccessToken
	p.tokenExpiry = p.now().Add(lifetime - tokenRefreshMargin)
	p.logger.Debug("foreca: obtained access token", "expires_at", p.tokenExpiry)

	return p.token, nil
}

func (p *ForecaProvider) dropToken() {
	p.mu.Lock()
	p.token = ""
	p.tokenExpiry = time.Time{}
	p.mu.Unlock()
}
