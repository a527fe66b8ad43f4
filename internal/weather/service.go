package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Service orchestrates fetching from multiple providers, merging their results
// and persisting every usable per-provider observation.
type Service struct {
	store     Store
	providers []Provider
	resolver  Resolver
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a new Service. Providers must be given in priority order:
// the first usable result becomes the primary of the merge.
func NewService(store Store, resolver Resolver, providers []Provider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		providers: providers,
		resolver:  resolver,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// providerResult is the settled outcome of one provider for one request.
type providerResult struct {
	obs Observation
	err error
}

// GetWeather fetches the place from every provider concurrently, waits for all
// of them to settle and merges the usable results. It fails with ErrNoData only
// when no provider produced usable data.
func (s *Service) GetWeather(ctx context.Context, place string) (MergedObservation, error) {
	if len(s.providers) == 0 {
		s.logger.Error("no providers configured", "place", place)
		return MergedObservation{}, fmt.Errorf("%w: no weather providers configured", ErrNoData)
	}

	resolve := sync.OnceValues(func() (Coordinates, error) {
		if s.resolver == nil {
			return Coordinates{}, fmt.Errorf("no geocoding resolver configured")
		}
		return s.resolver.Resolve(ctx, place)
	})

	results := make([]providerResult, len(s.providers))

	var wg sync.WaitGroup
	for i, p := range s.providers {
		i, p := i, p
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.fetchOne(ctx, p, place, resolve)
		}()
	}
	wg.Wait()

	usable := make([]Observation, 0, len(results))
	for i, r := range results {
		src := s.providers[i].Source()
		switch {
		case r.err != nil && errors.Is(r.err, ErrEmptyResult):
			s.logger.Info("provider returned no data", "provider", src, "place", place, "error", r.err)
		case r.err != nil:
			s.logger.Warn("provider fetch failed", "provider", src, "place", place, "error", r.err)
		case r.obs.IsEmpty():
			s.logger.Info("provider returned an empty observation", "provider", src, "place", place)
		default:
			usable = append(usable, r.obs)
		}
	}

	observedAt := s.now()
	merged, ok := Merge(place, observedAt, usable)
	if !ok {
		return MergedObservation{}, fmt.Errorf("%w for %q", ErrNoData, place)
	}

	for _, obs := range usable {
		rec := Record{ObservedAt: observedAt, Observation: obs}
		rec.Place = place
		if err := s.store.Append(ctx, rec); err != nil {
			// History is best-effort; the live answer is still served.
			s.logger.Error("failed to persist observation", "provider", obs.Source, "place", place, "error", err)
		}
	}

	return merged, nil
}

func (s *Service) fetchOne(ctx context.Context, p Provider, place string, resolve func() (Coordinates, error)) providerResult {
	loc := Location{Place: place}
	if p.RequiresCoordinates() {
		coords, err := resolve()
		if err != nil {
			return providerResult{err: fmt.Errorf("geocoding %q: %w", place, err)}
		}
		loc.Coords = &coords
	}

	obs, err := p.Fetch(ctx, loc)
	if err != nil {
		return providerResult{err: err}
	}
	obs.Place = place
	obs.Source = p.Source()
	return providerResult{obs: obs}
}
