package weather

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	source      Source
	needsCoords bool
	obs         Observation
	err         error

	mu      sync.Mutex
	lastLoc Location
}

func (p *fakeProvider) Source() Source            { return p.source }
func (p *fakeProvider) RequiresCoordinates() bool { return p.needsCoords }

func (p *fakeProvider) Fetch(_ context.Context, loc Location) (Observation, error) {
	p.mu.Lock()
	p.lastLoc = loc
	p.mu.Unlock()
	if p.err != nil {
		return Observation{}, p.err
	}
	return p.obs, nil
}

type fakeResolver struct {
	calls  atomic.Int32
	coords Coordinates
	err    error
}

func (r *fakeResolver) Resolve(context.Context, string) (Coordinates, error) {
	r.calls.Add(1)
	return r.coords, r.err
}

type fakeStore struct {
	mu        sync.Mutex
	records   []Record
	appendErr error
}

func (s *fakeStore) Append(_ context.Context, rec Record) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *fakeStore) Query(context.Context, string, int) ([]Record, error) { return nil, nil }

func (s *fakeStore) SummaryStats(context.Context, string, int) (Summary, error) {
	return Summary{}, nil
}

func (s *fakeStore) Close() error { return nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(store Store, resolver Resolver, providers ...Provider) *Service {
	svc := NewService(store, resolver, providers, quietLogger())
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestGetWeatherMergesInPriorityOrder(t *testing.T) {
	fmi := &fakeProvider{source: SourceFMI, obs: Observation{Temperature: -1.8, Humidity: Int(86), Description: "cloudy or partly cloudy"}}
	yr := &fakeProvider{source: SourceYr, needsCoords: true, obs: Observation{Temperature: -2.5, PressureHPa: Float(1012), WindSpeedMps: Float(4)}}
	resolver := &fakeResolver{coords: Coordinates{Lat: 60.17, Lon: 24.94}}
	store := &fakeStore{}

	svc := newTestService(store, resolver, fmi, yr)
	merged, err := svc.GetWeather(context.Background(), "Helsinki")
	require.NoError(t, err)

	assert.Equal(t, "FMI + Yr", merged.SourceLabel)
	assert.Equal(t, SourceFMI, merged.Primary)
	assert.InDelta(t, -1.8, merged.Data.Temperature, 1e-9)
	assert.InDelta(t, 1012.0, *merged.Data.PressureHPa, 1e-9)
	assert.InDelta(t, 4.0, *merged.Data.WindSpeedMps, 1e-9)

	assert.Nil(t, fmi.lastLoc.Coords, "place-based providers are not geocoded")
	require.NotNil(t, yr.lastLoc.Coords)
	assert.Equal(t, Coordinates{Lat: 60.17, Lon: 24.94}, *yr.lastLoc.Coords)

	require.Len(t, store.records, 2)
	for _, rec := range store.records {
		assert.Equal(t, "Helsinki", rec.Place)
		assert.Equal(t, merged.ObservedAt, rec.ObservedAt)
	}
}

func TestGetWeatherResolvesOncePerRequest(t *testing.T) {
	yr := &fakeProvider{source: SourceYr, needsCoords: true, obs: Observation{Temperature: 1}}
	foreca := &fakeProvider{source: SourceForeca, needsCoords: true, obs: Observation{Temperature: 2}}
	resolver := &fakeResolver{coords: Coordinates{Lat: 1, Lon: 2}}

	svc := newTestService(&fakeStore{}, resolver, yr, foreca)
	_, err := svc.GetWeather(context.Background(), "Oslo")
	require.NoError(t, err)
	assert.Equal(t, int32(1), resolver.calls.Load())
}

func TestGetWeatherEmptyPrimaryFallsBack(t *testing.T) {
	fmi := &fakeProvider{source: SourceFMI, obs: EmptyObservation("London", SourceFMI)}
	yr := &fakeProvider{source: SourceYr, needsCoords: true, obs: Observation{Temperature: 8.4, Humidity: Int(81)}}
	store := &fakeStore{}

	svc := newTestService(store, &fakeResolver{coords: Coordinates{Lat: 51.51, Lon: -0.13}}, fmi, yr)
	merged, err := svc.GetWeather(context.Background(), "London")
	require.NoError(t, err)

	assert.Equal(t, "Yr", merged.SourceLabel)
	assert.Equal(t, SourceYr, merged.Primary)
	assert.InDelta(t, 8.4, merged.Data.Temperature, 1e-9)
	require.Len(t, store.records, 1, "empty observations are not persisted")
	assert.Equal(t, SourceYr, store.records[0].Source)
}

func TestGetWeatherFailedProviderIsSkipped(t *testing.T) {
	fmi := &fakeProvider{source: SourceFMI, err: &UpstreamError{Provider: "FMI", Status: 502}}
	yr := &fakeProvider{source: SourceYr, needsCoords: true, obs: Observation{Temperature: 5}}

	svc := newTestService(&fakeStore{}, &fakeResolver{}, fmi, yr)
	merged, err := svc.GetWeather(context.Background(), "Oulu")
	require.NoError(t, err)
	assert.Equal(t, []Source{SourceYr}, merged.Sources)
}

func TestGetWeatherGeocodingFailureOnlyAffectsCoordinateProviders(t *testing.T) {
	fmi := &fakeProvider{source: SourceFMI, obs: Observation{Temperature: 2}}
	yr := &fakeProvider{source: SourceYr, needsCoords: true, obs: Observation{Temperature: 3}}
	resolver := &fakeResolver{err: ErrNotFound}

	svc := newTestService(&fakeStore{}, resolver, fmi, yr)
	merged, err := svc.GetWeather(context.Background(), "Kuopio")
	require.NoError(t, err)
	assert.Equal(t, "FMI", merged.SourceLabel)
}

func TestGetWeatherNoData(t *testing.T) {
	fmi := &fakeProvider{source: SourceFMI, err: ErrEmptyResult}
	yr := &fakeProvider{source: SourceYr, needsCoords: true, err: errors.New("boom")}
	store := &fakeStore{}

	svc := newTestService(store, &fakeResolver{}, fmi, yr)
	_, err := svc.GetWeather(context.Background(), "Atlantis")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoData)
	assert.Empty(t, store.records)
}

func TestGetWeatherNoProviders(t *testing.T) {
	svc := newTestService(&fakeStore{}, nil)
	_, err := svc.GetWeather(context.Background(), "Helsinki")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestGetWeatherPersistenceFailureIsSwallowed(t *testing.T) {
	fmi := &fakeProvider{source: SourceFMI, obs: Observation{Temperature: 1}}
	store := &fakeStore{appendErr: ErrStorage}

	svc := newTestService(store, nil, fmi)
	merged, err := svc.GetWeather(context.Background(), "Espoo")
	require.NoError(t, err)
	assert.Equal(t, "FMI", merged.SourceLabel)
}

func TestGetWeatherOverridesPlaceAndSource(t *testing.T) {
	fmi := &fakeProvider{source: SourceFMI, obs: Observation{Place: "helsinki", Source: "other", Temperature: 1}}
	store := &fakeStore{}

	svc := newTestService(store, nil, fmi)
	merged, err := svc.GetWeather(context.Background(), "Helsinki")
	require.NoError(t, err)

	assert.Equal(t, "Helsinki", merged.Data.Place)
	assert.Equal(t, SourceFMI, merged.Data.Source)
	assert.Equal(t, SourceFMI, store.records[0].Source)
}
