package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Port string `validate:"required,numeric"`

	// HTTPTimeout bounds every single upstream call.
	HTTPTimeout        time.Duration `validate:"gt=0"`
	ProviderMaxRetries int           `validate:"gte=0,lte=10"`

	FMIBaseURL string        `validate:"required,url"`
	FMIWindow  time.Duration `validate:"gt=0"`

	YrBaseURL   string `validate:"required,url"`
	YrUserAgent string `validate:"required"`

	// Foreca is only enabled when both user and password are set.
	ForecaBaseURL    string `validate:"required,url"`
	ForecaUser       string
	ForecaPassword   string
	ForecaLocationID string

	GeocoderBaseURL      string `validate:"required,url"`
	GoogleGeocoderAPIKey string

	StoreDriver string `validate:"oneof=sqlite postgres memory"`
	StoreDSN    string `validate:"required_unless=StoreDriver memory"`

	// Places collected periodically by the scheduler.
	Places        []string      `validate:"dive,required"`
	FetchInterval time.Duration `validate:"gt=0"`

	CORSOrigins []string
	StaticDir   string
	LogLevel    slog.Level
}

// ForecaEnabled reports whether Foreca credentials are configured.
func (c *AppConfig) ForecaEnabled() bool {
	return c.ForecaUser != "" && c.ForecaPassword != ""
}

// placesFile is the layout of PLACES_FILE.
type placesFile struct {
	Places []string `yaml:"places"`
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "error", err)
	}
	cfg := &AppConfig{}
	var err error

	cfg.Port = getenvDefault("PORT", "8000")

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	cfg.ProviderMaxRetries = getenvInt("PROVIDER_MAX_RETRIES", 2)

	cfg.FMIBaseURL = getenvDefault("FMI_BASE_URL", "https://opendata.fmi.fi/wfs")
	if cfg.FMIWindow, err = getenvDuration("FMI_WINDOW", "1h"); err != nil {
		return nil, err
	}

	cfg.YrBaseURL = getenvDefault("YR_BASE_URL", "https://api.met.no/weatherapi/locationforecast/2.0/compact")
	cfg.YrUserAgent = getenvDefault("YR_USER_AGENT", "weather-observatory/1.0 github.com/i474232898/weather-observatory")

	cfg.ForecaBaseURL = getenvDefault("FORECA_BASE_URL", "https://pfa.foreca.com")
	cfg.ForecaUser = os.Getenv("FORECA_USER")
	cfg.ForecaPassword = os.Getenv("FORECA_PASSWORD")
	cfg.ForecaLocationID = os.Getenv("FORECA_LOCATION_ID")

	cfg.GeocoderBaseURL = getenvDefault("GEOCODER_BASE_URL", "https://geocoding-api.open-meteo.com/v1/search")
	cfg.GoogleGeocoderAPIKey = os.Getenv("GOOGLE_GEOCODER_API_KEY")

	cfg.StoreDriver = getenvDefault("STORE_DRIVER", "sqlite")
	cfg.StoreDSN = getenvDefault("STORE_DSN", "weather_data.db")

	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", "15m"); err != nil {
		return nil, err
	}
	if cfg.Places, err = loadPlaces(); err != nil {
		return nil, err
	}

	cfg.CORSOrigins = splitList(getenvDefault("CORS_ORIGINS", "http://localhost:5173,http://localhost:5174"))
	cfg.StaticDir = os.Getenv("STATIC_DIR")

	if err := cfg.LogLevel.UnmarshalText([]byte(getenvDefault("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadPlaces merges TRACKED_PLACES with the places listed in PLACES_FILE,
// dropping duplicates while keeping the first occurrence.
func loadPlaces() ([]string, error) {
	places := splitList(os.Getenv("TRACKED_PLACES"))

	if path := os.Getenv("PLACES_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read PLACES_FILE: %w", err)
		}
		var pf placesFile
		if err := yaml.Unmarshal(raw, &pf); err != nil {
			return nil, fmt.Errorf("parse PLACES_FILE %s: %w", path, err)
		}
		for _, p := range pf.Places {
			places = append(places, strings.TrimSpace(p))
		}
	}

	seen := make(map[string]bool, len(places))
	out := places[:0]
	for _, p := range places {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
