package geocode

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/i474232898/weather-observatory/internal/common"
	"github.com/i474232898/weather-observatory/internal/weather"
)

// Geocoder is a backend that turns a place name into coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, place string) (weather.Coordinates, error)
}

// Resolver memoizes successful geocoder lookups for the lifetime of the
// process. Failures are never cached, so an outage is retried on the next call.
type Resolver struct {
	backend Geocoder
	logger  *slog.Logger

	mu    sync.RWMutex
	cache map[string]weather.Coordinates
}

func NewResolver(backend Geocoder, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		backend: backend,
		logger:  logger,
		cache:   make(map[string]weather.Coordinates),
	}
}

// Resolve returns coordinates rounded to two decimals. The cache is keyed by
// the exact place string.
func (r *Resolver) Resolve(ctx context.Context, place string) (weather.Coordinates, error) {
	r.mu.RLock()
	coords, ok := r.cache[place]
	r.mu.RUnlock()
	if ok {
		return coords, nil
	}

	found, err := r.backend.Geocode(ctx, place)
	if err != nil {
		return weather.Coordinates{}, fmt.Errorf("resolve %q: %w", place, err)
	}

	coords = weather.Coordinates{
		Lat: common.Round(found.Lat, 2),
		Lon: common.Round(found.Lon, 2),
	}

	// Concurrent lookups of the same place compute equal values; last write wins.
	r.mu.Lock()
	r.cache[place] = coords
	r.mu.Unlock()

	r.logger.Debug("geocoded place", "place", place, "lat", coords.Lat, "lon", coords.Lon)
	return coords, nil
}
