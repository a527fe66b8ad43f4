package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "HTTP_TIMEOUT", "PROVIDER_MAX_RETRIES", "FMI_BASE_URL", "FMI_WINDOW",
		"STORE_DRIVER", "STORE_DSN", "FETCH_INTERVAL", "CORS_ORIGINS", "LOG_LEVEL",
		"TRACKED_PLACES", "PLACES_FILE", "FORECA_USER", "FORECA_PASSWORD",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 2, cfg.ProviderMaxRetries)
	assert.Equal(t, "https://opendata.fmi.fi/wfs", cfg.FMIBaseURL)
	assert.Equal(t, time.Hour, cfg.FMIWindow)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, "weather_data.db", cfg.StoreDSN)
	assert.Equal(t, 15*time.Minute, cfg.FetchInterval)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:5174"}, cfg.CORSOrigins)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.Places)
	assert.False(t, cfg.ForecaEnabled())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("HTTP_TIMEOUT", "3s")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("STORE_DSN", "")
	t.Setenv("TRACKED_PLACES", "Helsinki, Oulu ,,Helsinki")
	t.Setenv("PLACES_FILE", "")
	t.Setenv("FORECA_USER", "alice")
	t.Setenv("FORECA_PASSWORD", "secret")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, []string{"Helsinki", "Oulu"}, cfg.Places)
	assert.True(t, cfg.ForecaEnabled())
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadPlacesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "places.yaml")
	require.NoError(t, os.WriteFile(path, []byte("places:\n  - Tampere\n  - Oslo\n  - Helsinki\n"), 0o600))

	t.Setenv("TRACKED_PLACES", "Helsinki")
	t.Setenv("PLACES_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"Helsinki", "Tampere", "Oslo"}, cfg.Places)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"bad duration", "FETCH_INTERVAL", "soon"},
		{"unknown driver", "STORE_DRIVER", "mongodb"},
		{"non-numeric port", "PORT", "http"},
		{"bad url", "YR_BASE_URL", "not a url"},
		{"bad log level", "LOG_LEVEL", "loud"},
		{"missing places file", "PLACES_FILE", "/nonexistent/places.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
