// Package analytics derives time-windowed statistics from the observation log.
// Every computation is a pure function over the records of one window; the
// Engine only reads the window from the store and hands it over.
package analytics

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/i474232898/weather-observatory/internal/common"
	"github.com/i474232898/weather-observatory/internal/weather"
)

// Trend classifications.
const (
	TrendInsufficientData = "insufficient_data"
	TrendWarming          = "warming"
	TrendCooling          = "cooling"
	TrendStable           = "stable"
)

// trendThreshold is the temperature change, in degrees, above which a window
// counts as warming or cooling.
const trendThreshold = 0.5

// TrendResult compares the first and last temperature of a window.
type TrendResult struct {
	Trend            string   `json:"trend"`
	Change           float64  `json:"change"`
	FirstTemperature *float64 `json:"first_temperature"`
	LastTemperature  *float64 `json:"last_temperature"`
	Observations     int      `json:"observations"`
}

// SourceStats are the per-source figures of a comparison.
type SourceStats struct {
	Count          int     `json:"count"`
	AvgTemperature float64 `json:"avg_temperature"`
	MinTemperature float64 `json:"min_temperature"`
	MaxTemperature float64 `json:"max_temperature"`
}

// SourceComparison groups a window by source. Available is false when the
// window had no records at all.
type SourceComparison struct {
	Available bool
	Sources   map[weather.Source]SourceStats
}

// MarshalJSON renders the per-source map, or an explicit error object when no
// data was available.
func (c SourceComparison) MarshalJSON() ([]byte, error) {
	if !c.Available {
		return json.Marshal(map[string]string{"error": "No data available"})
	}
	return json.Marshal(c.Sources)
}

// HourlyAverage is the mean temperature of the records observed in one hour of
// the day.
type HourlyAverage struct {
	Hour           int     `json:"hour"`
	AvgTemperature float64 `json:"avg_temperature"`
}

// ComputeTrend classifies records, which must be ordered oldest first.
func ComputeTrend(records []weather.Record) TrendResult {
	if len(records) < 2 {
		res := TrendResult{Trend: TrendInsufficientData, Observations: len(records)}
		if len(records) == 1 {
			res.FirstTemperature = weather.Float(records[0].Temperature)
			res.LastTemperature = weather.Float(records[0].Temperature)
		}
		return res
	}

	first := records[0].Temperature
	last := records[len(records)-1].Temperature
	change := common.Round(last-first, 1)

	trend := TrendStable
	switch {
	case change > trendThreshold:
		trend = TrendWarming
	case change < -trendThreshold:
		trend = TrendCooling
	}

	return TrendResult{
		Trend:            trend,
		Change:           change,
		FirstTemperature: weather.Float(first),
		LastTemperature:  weather.Float(last),
		Observations:     len(records),
	}
}

// CompareRecords computes count and rounded avg/min/max temperature per source.
func CompareRecords(records []weather.Record) SourceComparison {
	if len(records) == 0 {
		return SourceComparison{}
	}

	type acc struct {
		count         int
		sum, min, max float64
	}
	groups := make(map[weather.Source]*acc)
	for _, rec := range records {
		a, ok := groups[rec.Source]
		if !ok {
			a = &acc{min: rec.Temperature, max: rec.Temperature}
			groups[rec.Source] = a
		}
		a.count++
		a.sum += rec.Temperature
		a.min = min(a.min, rec.Temperature)
		a.max = max(a.max, rec.Temperature)
	}

	out := SourceComparison{Available: true, Sources: make(map[weather.Source]SourceStats, len(groups))}
	for src, a := range groups {
		out.Sources[src] = SourceStats{
			Count:          a.count,
			AvgTemperature: common.Round(a.sum/float64(a.count), 1),
			MinTemperature: common.Round(a.min, 1),
			MaxTemperature: common.Round(a.max, 1),
		}
	}
	return out
}

// HourlyAveragesOf averages temperature per hour of day of the stored
// timestamp. Hours without records are omitted; the result is ordered by hour.
func HourlyAveragesOf(records []weather.Record) []HourlyAverage {
	var (
		sums   [24]float64
		counts [24]int
	)
	for _, rec := range records {
		h := rec.ObservedAt.Hour()
		sums[h] += rec.Temperature
		counts[h]++
	}

	out := []HourlyAverage{}
	for h := 0; h < 24; h++ {
		if counts[h] == 0 {
			continue
		}
		out = append(out, HourlyAverage{
			Hour:           h,
			AvgTemperature: common.Round(sums[h]/float64(counts[h]), 1),
		})
	}
	return out
}

// Engine answers historical queries for a place over the last hours.
type Engine struct {
	store weather.Store
}

func NewEngine(store weather.Store) *Engine {
	return &Engine{store: store}
}

// History returns the window newest first.
func (e *Engine) History(ctx context.Context, place string, hours int) ([]weather.Record, error) {
	records, err := e.store.Query(ctx, place, hours)
	if err != nil {
		return nil, err
	}
	slices.Reverse(records)
	if records == nil {
		records = []weather.Record{}
	}
	return records, nil
}

func (e *Engine) Stats(ctx context.Context, place string, hours int) (weather.Summary, error) {
	return e.store.SummaryStats(ctx, place, hours)
}

func (e *Engine) Trend(ctx context.Context, place string, hours int) (TrendResult, error) {
	records, err := e.store.Query(ctx, place, hours)
	if err != nil {
		return TrendResult{}, err
	}
	return ComputeTrend(records), nil
}

func (e *Engine) CompareSources(ctx context.Context, place string, hours int) (SourceComparison, error) {
	records, err := e.store.Query(ctx, place, hours)
	if err != nil {
		return SourceComparison{}, err
	}
	return CompareRecords(records), nil
}

func (e *Engine) HourlyAverages(ctx context.Context, place string, hours int) ([]HourlyAverage, error) {
	records, err := e.store.Query(ctx, place, hours)
	if err != nil {
		return nil, err
	}
	return HourlyAveragesOf(records), nil
}
