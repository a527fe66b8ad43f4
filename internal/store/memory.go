package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/weather-observatory/internal/weather"
)

// MemoryStore is a concurrency-safe in-memory implementation of weather.Store.
// Records live for the lifetime of the process.
type MemoryStore struct {
	mu sync.RWMutex

	// key: place, value: records ordered by ObservedAt ascending
	data   map[string][]weather.Record
	nextID int64

	now func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]weather.Record),
		now:  time.Now,
	}
}

// Append stores a copy of rec, assigning an id and, if missing, a timestamp.
func (s *MemoryStore) Append(_ context.Context, rec weather.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec = cloneRecord(rec)
	s.nextID++
	rec.ID = s.nextID
	if rec.ObservedAt.IsZero() {
		rec.ObservedAt = s.now()
	}
	rec.ObservedAt = rec.ObservedAt.UTC().Truncate(time.Microsecond)

	history := s.data[rec.Place]
	// Keep ascending order even if an older timestamp arrives late; equal
	// timestamps keep insertion order.
	i := sort.Search(len(history), func(i int) bool {
		return history[i].ObservedAt.After(rec.ObservedAt)
	})
	history = append(history, weather.Record{})
	copy(history[i+1:], history[i:])
	history[i] = rec
	s.data[rec.Place] = history
	return nil
}

// Query returns the records for place within [now-hours, now], oldest first.
func (s *MemoryStore) Query(_ context.Context, place string, hours int) ([]weather.Record, error) {
	from, to := window(s.now(), hours)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []weather.Record
	for _, rec := range s.data[place] {
		if rec.ObservedAt.Before(from) || rec.ObservedAt.After(to) {
			continue
		}
		result = append(result, cloneRecord(rec))
	}
	return result, nil
}

// SummaryStats returns temperature statistics for the same window as Query.
func (s *MemoryStore) SummaryStats(ctx context.Context, place string, hours int) (weather.Summary, error) {
	records, err := s.Query(ctx, place, hours)
	if err != nil {
		return weather.Summary{}, err
	}
	return summarize(records), nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// cloneRecord copies the optional fields so stored records never share memory
// with callers.
func cloneRecord(rec weather.Record) weather.Record {
	if rec.Humidity != nil {
		rec.Humidity = weather.Int(*rec.Humidity)
	}
	rec.PressureHPa = cloneFloat(rec.PressureHPa)
	rec.WindSpeedMps = cloneFloat(rec.WindSpeedMps)
	rec.PrecipitationMm = cloneFloat(rec.PrecipitationMm)
	return rec
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return weather.Float(*v)
}
