package weather

import (
	"context"
)

// Provider abstracts an upstream weather source (FMI, Yr, Foreca).
//
// Fetch returns an error from the package taxonomy (ErrNetwork, *UpstreamError,
// ErrAuth, ErrEmptyResult) or an observation. A successful observation may still
// be empty; callers check IsEmpty.
type Provider interface {
	Source() Source
	RequiresCoordinates() bool
	Fetch(ctx context.Context, loc Location) (Observation, error)
}

// Resolver turns a place name into coordinates.
type Resolver interface {
	Resolve(ctx context.Context, place string) (Coordinates, error)
}

// Store is the contract every observation store must satisfy.
// Query returns records oldest first within [now-hours, now].
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, place string, hours int) ([]Record, error)
	SummaryStats(ctx context.Context, place string, hours int) (Summary, error)
	Close() error
}
