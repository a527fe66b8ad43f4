package weather

import (
	"time"
)

// Source identifies the upstream adapter that produced an observation.
type Source string

const (
	// SourceFMI is the station-based XML provider (Finnish Meteorological Institute).
	SourceFMI Source = "FMI"
	// SourceForeca is the token-authenticated JSON provider.
	SourceForeca Source = "Foreca"
	// SourceYr is the geocoded JSON provider (MET Norway locationforecast).
	SourceYr Source = "Yr"
)

// DescriptionUnknown is used when a provider has no description of its own.
const DescriptionUnknown = "Unknown"

// Coordinates is a resolved geographic position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Location is what a provider is asked about. Coords is set only after the
// place has been geocoded.
type Location struct {
	Place  string       `json:"place"`
	Coords *Coordinates `json:"coords,omitempty"`
}

// Observation is a single provider's normalized reading.
// Optional fields are nil when the upstream did not report them.
type Observation struct {
	Place           string   `json:"place"`
	Source          Source   `json:"source"`
	Temperature     float64  `json:"temperature"`
	Humidity        *int     `json:"humidity"`
	PressureHPa     *float64 `json:"pressure"`
	WindSpeedMps    *float64 `json:"wind_speed"`
	PrecipitationMm *float64 `json:"precipitation"`
	Description     string   `json:"weather"`

	empty bool
}

// EmptyObservation returns the observation a provider reports when the upstream
// answered successfully but carried no usable readings.
func EmptyObservation(place string, source Source) Observation {
	return Observation{
		Place:       place,
		Source:      source,
		Description: DescriptionUnknown,
		empty:       true,
	}
}

// IsEmpty reports whether the observation was built from zero readings.
func (o Observation) IsEmpty() bool {
	return o.empty
}

// MergedObservation is the answer for one place after combining providers.
type MergedObservation struct {
	Place       string      `json:"city"`
	SourceLabel string      `json:"source"`
	Primary     Source      `json:"primary"`
	Sources     []Source    `json:"sources"`
	ObservedAt  time.Time   `json:"observed_at"`
	Data        Observation `json:"data"`
}

// Record is one persisted observation. Records are never modified once stored.
type Record struct {
	ID         int64     `json:"id"`
	ObservedAt time.Time `json:"timestamp"` // always UTC
	Observation
}

// Summary holds temperature statistics over a window. Min, Max and Avg are nil
// when Count is zero.
type Summary struct {
	Min   *float64 `json:"min_temperature"`
	Max   *float64 `json:"max_temperature"`
	Avg   *float64 `json:"avg_temperature"`
	Count int      `json:"observation_count"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
