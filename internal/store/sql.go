package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/i474232898/weather-observatory/internal/common"
	"github.com/i474232898/weather-observatory/internal/weather"
)

// SQLStore persists observations in a single weather_data table. The same
// queries serve SQLite and Postgres; only placeholders and column types differ.
type SQLStore struct {
	db       *sql.DB
	postgres bool
	now      func() time.Time
}

// NewSQLite opens (creating if needed) the SQLite database at path.
func NewSQLite(path string) (*SQLStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: sqlite: path is required", weather.ErrStorage)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: sqlite: %v", weather.ErrStorage, err)
	}
	db.SetMaxOpenConns(1)

	return newSQLStore(db, false)
}

// NewPostgres connects to Postgres using a lib/pq connection string.
func NewPostgres(dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres: dsn is required", weather.ErrStorage)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: postgres: %v", weather.ErrStorage, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: postgres: %v", weather.ErrStorage, err)
	}

	return newSQLStore(db, true)
}

func newSQLStore(db *sql.DB, postgres bool) (*SQLStore, error) {
	s := &SQLStore{db: db, postgres: postgres, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrate: %v", weather.ErrStorage, err)
	}
	return s, nil
}

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) Append(ctx context.Context, rec weather.Record) error {
	if rec.ObservedAt.IsZero() {
		rec.ObservedAt = s.now()
	}

	var humidity any
	if rec.Humidity != nil {
		humidity = int64(*rec.Humidity)
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO weather_data (
			city, source, temperature, humidity, pressure, wind_speed,
			precipitation, weather_description, observed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		rec.Place,
		string(rec.Source),
		rec.Temperature,
		humidity,
		nullableFloat(rec.PressureHPa),
		nullableFloat(rec.WindSpeedMps),
		nullableFloat(rec.PrecipitationMm),
		rec.Description,
		rec.ObservedAt.UTC().UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("%w: append %s/%s: %v", weather.ErrStorage, rec.Place, rec.Source, err)
	}
	return nil
}

func (s *SQLStore) Query(ctx context.Context, place string, hours int) ([]weather.Record, error) {
	from, to := window(s.now(), hours)

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, city, source, temperature, humidity, pressure, wind_speed,
			precipitation, weather_description, observed_at
		FROM weather_data
		WHERE city = ? AND observed_at >= ? AND observed_at <= ?
		ORDER BY observed_at, id
	`), place, from.UnixMicro(), to.UnixMicro())
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", weather.ErrStorage, place, err)
	}
	defer rows.Close()

	var records []weather.Record
	for rows.Next() {
		var (
			rec        weather.Record
			source     string
			humidity   sql.NullInt64
			pressure   sql.NullFloat64
			wind       sql.NullFloat64
			precip     sql.NullFloat64
			observedAt int64
		)
		if err := rows.Scan(
			&rec.ID, &rec.Place, &source, &rec.Temperature, &humidity,
			&pressure, &wind, &precip, &rec.Description, &observedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %v", weather.ErrStorage, place, err)
		}
		rec.Source = weather.Source(source)
		if humidity.Valid {
			rec.Humidity = weather.Int(int(humidity.Int64))
		}
		rec.PressureHPa = floatPtr(pressure)
		rec.WindSpeedMps = floatPtr(wind)
		rec.PrecipitationMm = floatPtr(precip)
		rec.ObservedAt = time.UnixMicro(observedAt).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", weather.ErrStorage, place, err)
	}
	return records, nil
}

func (s *SQLStore) SummaryStats(ctx context.Context, place string, hours int) (weather.Summary, error) {
	from, to := window(s.now(), hours)

	var (
		lo, hi, avg sql.NullFloat64
		count       int64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT MIN(temperature), MAX(temperature), AVG(temperature), COUNT(*)
		FROM weather_data
		WHERE city = ? AND observed_at >= ? AND observed_at <= ?
	`), place, from.UnixMicro(), to.UnixMicro()).Scan(&lo, &hi, &avg, &count)
	if err != nil {
		return weather.Summary{}, fmt.Errorf("%w: summary %s: %v", weather.ErrStorage, place, err)
	}

	summary := weather.Summary{Count: int(count)}
	if count == 0 {
		return summary, nil
	}
	summary.Min = weather.Float(common.Round(lo.Float64, 1))
	summary.Max = weather.Float(common.Round(hi.Float64, 1))
	summary.Avg = weather.Float(common.Round(avg.Float64, 1))
	return summary, nil
}

func (s *SQLStore) migrate() error {
	idType, floatType := "INTEGER PRIMARY KEY AUTOINCREMENT", "REAL"
	if s.postgres {
		idType, floatType = "BIGSERIAL PRIMARY KEY", "DOUBLE PRECISION"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS weather_data (
			id ` + idType + `,
			city TEXT NOT NULL,
			source TEXT NOT NULL,
			temperature ` + floatType + ` NOT NULL,
			humidity INTEGER,
			pressure ` + floatType + `,
			wind_speed ` + floatType + `,
			precipitation ` + floatType + `,
			weather_description TEXT NOT NULL,
			observed_at BIGINT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_weather_data_city_observed_at
			ON weather_data (city, observed_at);`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $1..$n for Postgres.
func (s *SQLStore) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return weather.Float(v.Float64)
}
