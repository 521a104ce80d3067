// Package repository defines the storage connector the dispatcher hands records to, and its
// concrete backends.
package repository

import (
	"context"

	"metering-collector/internal/metering/domain"
)

// Result reports what a connector stored for an events call.
type Result struct {
	Stored int
}

// Connector persists metering records. Implementations must tolerate concurrent calls.
type Connector interface {
	// RecordSample stores one verified, normalized sample.
	RecordSample(ctx context.Context, s domain.Sample) error
	// RecordEvents stores events in one call and reports how many were stored.
	RecordEvents(ctx context.Context, events []domain.Event) (Result, error)
}

// Pinger is implemented by connectors that can report readiness of their backend.
type Pinger interface {
	Ping(ctx context.Context) error
}
