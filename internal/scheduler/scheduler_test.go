package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-observatory/internal/weather"
)

type recordingFetcher struct {
	mu     sync.Mutex
	places []string
	fail   map[string]bool
}

func (f *recordingFetcher) GetWeather(_ context.Context, place string) (weather.MergedObservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.places = append(f.places, place)
	if f.fail[place] {
		return weather.MergedObservation{}, weather.ErrNoData
	}
	return weather.MergedObservation{Place: place, SourceLabel: "FMI"}, nil
}

func (f *recordingFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.places)
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCollectFetchesEveryPlace(t *testing.T) {
	f := &recordingFetcher{fail: map[string]bool{"Atlantis": true}}
	s := New([]string{"Helsinki", "Atlantis", "Oulu"}, time.Hour, f, quiet())

	ok := s.Collect(context.Background())

	assert.Equal(t, 2, ok)
	assert.ElementsMatch(t, []string{"Helsinki", "Atlantis", "Oulu"}, f.places)
}

func TestStartRunsImmediately(t *testing.T) {
	f := &recordingFetcher{}
	s := New([]string{"Helsinki"}, time.Hour, f, quiet())
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return f.calls() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestStartWithoutPlaces(t *testing.T) {
	f := &recordingFetcher{}
	s := New(nil, time.Hour, f, quiet())
	require.NoError(t, s.Start())
	s.Stop()
	assert.Equal(t, 0, f.calls())
}
