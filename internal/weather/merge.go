package weather

import (
	"strings"
	"time"
)

// Merge combines usable observations, given in provider priority order, into
// one answer. The first observation is the primary; its reported fields are
// kept as-is. Pressure and wind speed missing on the primary are filled from
// the remaining observations in order. ok is false when obs is empty.
func Merge(place string, observedAt time.Time, obs []Observation) (merged MergedObservation, ok bool) {
	if len(obs) == 0 {
		return MergedObservation{}, false
	}

	data := obs[0]
	sources := make([]Source, 0, len(obs))
	names := make([]string, 0, len(obs))
	for _, o := range obs {
		sources = append(sources, o.Source)
		names = append(names, string(o.Source))
	}

	for _, secondary := range obs[1:] {
		if data.PressureHPa == nil && secondary.PressureHPa != nil {
			v := *secondary.PressureHPa
			data.PressureHPa = &v
		}
		if data.WindSpeedMps == nil && secondary.WindSpeedMps != nil {
			v := *secondary.WindSpeedMps
			data.WindSpeedMps = &v
		}
	}
	data.Place = place

	return MergedObservation{
		Place:       place,
		SourceLabel: strings.Join(names, " + "),
		Primary:     obs[0].Source,
		Sources:     sources,
		ObservedAt:  observedAt,
		Data:        data,
	}, true
}
