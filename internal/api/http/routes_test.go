package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-observatory/internal/analytics"
	"github.com/i474232898/weather-observatory/internal/store"
	"github.com/i474232898/weather-observatory/internal/weather"
)

type stubService struct {
	merged weather.MergedObservation
	err    error
	got    string
}

func (s *stubService) GetWeather(_ context.Context, place string) (weather.MergedObservation, error) {
	s.got = place
	return s.merged, s.err
}

func newTestApp(t *testing.T, svc WeatherService, st weather.Store) *fiber.App {
	t.Helper()
	app := NewApp(AppOptions{
		Name:        "weather-observatory",
		CORSOrigins: []string{"http://localhost:5173"},
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	RegisterRoutes(app, svc, analytics.NewEngine(st))
	return app
}

func doJSON(t *testing.T, app *fiber.App, target string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, &stubService{}, store.NewMemoryStore())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
}

func TestGetWeather(t *testing.T) {
	svc := &stubService{merged: weather.MergedObservation{
		Place:       "Helsinki",
		SourceLabel: "FMI + Yr",
		Primary:     weather.SourceFMI,
		Sources:     []weather.Source{weather.SourceFMI, weather.SourceYr},
		ObservedAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Data: weather.Observation{
			Place:       "Helsinki",
			Source:      weather.SourceFMI,
			Temperature: -1.8,
			Humidity:    weather.Int(86),
			Description: "cloudy or partly cloudy",
		},
	}}
	app := newTestApp(t, svc, store.NewMemoryStore())

	status, body := doJSON(t, app, "/weather?city=Helsinki")
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, "Helsinki", svc.got)
	assert.Equal(t, "Helsinki", body["city"])
	assert.Equal(t, "FMI + Yr", body["source"])
	assert.Equal(t, "FMI", body["primary"])

	data := body["data"].(map[string]any)
	assert.Equal(t, -1.8, data["temperature"])
	assert.Equal(t, 86.0, data["humidity"])
	assert.Contains(t, data, "pressure")
	assert.Nil(t, data["pressure"], "absent values are null")
	assert.Equal(t, "cloudy or partly cloudy", data["weather"])
}

func TestGetWeatherRequiresCity(t *testing.T) {
	app := newTestApp(t, &stubService{}, store.NewMemoryStore())

	status, body := doJSON(t, app, "/weather")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, true, body["error"])
}

func TestGetWeatherNoData(t *testing.T) {
	svc := &stubService{err: fmt.Errorf("%w for %q", weather.ErrNoData, "Atlantis")}
	app := newTestApp(t, svc, store.NewMemoryStore())

	status, body := doJSON(t, app, "/weather?city=Atlantis")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "No weather data found for 'Atlantis'", body["message"])
}

func TestGetWeatherUpstreamFailure(t *testing.T) {
	svc := &stubService{err: weather.ErrNetwork}
	app := newTestApp(t, svc, store.NewMemoryStore())

	status, _ := doJSON(t, app, "/weather?city=Oulu")
	assert.Equal(t, http.StatusInternalServerError, status)
}

func seededStore(t *testing.T) weather.Store {
	t.Helper()
	st := store.NewMemoryStore()
	now := time.Now().UTC()
	for i, temp := range []float64{10, 10.4, 11.5} {
		rec := weather.Record{
			ObservedAt: now.Add(-time.Duration(3-i) * time.Hour),
			Observation: weather.Observation{
				Place:       "Tromsø",
				Source:      weather.SourceYr,
				Temperature: temp,
				Description: weather.DescriptionUnknown,
			},
		}
		require.NoError(t, st.Append(context.Background(), rec))
	}
	return st
}

func TestHistoryEndpoints(t *testing.T) {
	app := newTestApp(t, &stubService{}, seededStore(t))

	status, body := doJSON(t, app, "/weather/history/Troms%C3%B8?hours=24")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Tromsø", body["city"])
	assert.Equal(t, 24.0, body["hours"])
	assert.Equal(t, 3.0, body["observation_count"])
	first := body["data"].([]any)[0].(map[string]any)
	assert.Equal(t, 11.5, first["temperature"], "newest first")
	assert.Contains(t, first, "timestamp")

	status, body = doJSON(t, app, "/weather/stats/Troms%C3%B8")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 24.0, body["period_hours"])
	stats := body["statistics"].(map[string]any)
	assert.Equal(t, 3.0, stats["observation_count"])
	assert.Equal(t, 10.6, stats["avg_temperature"])

	status, body = doJSON(t, app, "/weather/trend/Troms%C3%B8")
	require.Equal(t, http.StatusOK, status)
	trend := body["trend_analysis"].(map[string]any)
	assert.Equal(t, "warming", trend["trend"])
	assert.Equal(t, 1.5, trend["change"])

	status, body = doJSON(t, app, "/weather/compare/Troms%C3%B8")
	require.Equal(t, http.StatusOK, status)
	cmp := body["source_comparison"].(map[string]any)
	assert.Contains(t, cmp, "Yr")

	status, body = doJSON(t, app, "/weather/hourly/Troms%C3%B8")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["hourly_data"], 3)
}

func TestHistoryEndpointsEmptyWindow(t *testing.T) {
	app := newTestApp(t, &stubService{}, store.NewMemoryStore())

	status, body := doJSON(t, app, "/weather/compare/Nowhere")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"error": "No data available"}, body["source_comparison"])

	status, body = doJSON(t, app, "/weather/trend/Nowhere")
	require.Equal(t, http.StatusOK, status)
	trend := body["trend_analysis"].(map[string]any)
	assert.Equal(t, "insufficient_data", trend["trend"])
	assert.Equal(t, 0.0, trend["change"])

	status, body = doJSON(t, app, "/weather/stats/Nowhere")
	require.Equal(t, http.StatusOK, status)
	stats := body["statistics"].(map[string]any)
	assert.Nil(t, stats["min_temperature"])
	assert.Equal(t, 0.0, stats["observation_count"])

	status, body = doJSON(t, app, "/weather/history/Nowhere")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{}, body["data"])

	status, body = doJSON(t, app, "/weather/hourly/Nowhere")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{}, body["hourly_data"])
}

func TestWindowValidation(t *testing.T) {
	app := newTestApp(t, &stubService{}, store.NewMemoryStore())

	for _, target := range []string{
		"/weather/history/Oulu?hours=abc",
		"/weather/stats/Oulu?hours=-1",
		"/weather/trend/Oulu?hours=9000",
	} {
		t.Run(target, func(t *testing.T) {
			status, body := doJSON(t, app, target)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, true, body["error"])
		})
	}
}
