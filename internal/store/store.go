package store

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/i474232898/weather-observatory/internal/common"
	"github.com/i474232898/weather-observatory/internal/weather"
)

// Supported store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Open returns the store for driver. dsn is a file path for SQLite and a
// connection string for Postgres; it is ignored for the memory driver.
func Open(driver, dsn string, logger *slog.Logger) (weather.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		s   *SQLStore
		err error
	)
	switch driver {
	case DriverSQLite:
		logger.Info("opening observation store", "driver", driver, "path", dsn)
		s, err = NewSQLite(dsn)
	case DriverPostgres:
		logger.Info("opening observation store", "driver", driver)
		s, err = NewPostgres(dsn)
	case DriverMemory:
		logger.Info("opening observation store", "driver", driver)
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown store driver %q", weather.ErrStorage, driver)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// window returns the inclusive bounds [now-hours, now].
func window(now time.Time, hours int) (time.Time, time.Time) {
	if hours < 0 {
		hours = 0
	}
	now = now.UTC()
	return now.Add(-time.Duration(hours) * time.Hour), now
}

func summarize(records []weather.Record) weather.Summary {
	if len(records) == 0 {
		return weather.Summary{}
	}
	lo, hi, sum := records[0].Temperature, records[0].Temperature, 0.0
	for _, rec := range records {
		t := rec.Temperature
		if t < lo {
			lo = t
		}
		if t > hi {
			hi = t
		}
		sum += t
	}
	return weather.Summary{
		Min:   weather.Float(common.Round(lo, 1)),
		Max:   weather.Float(common.Round(hi, 1)),
		Avg:   weather.Float(common.Round(sum/float64(len(records)), 1)),
		Count: len(records),
	}
}
