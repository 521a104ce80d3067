package repository

import (
	"context"
	"sync"

	"metering-collector/internal/metering/domain"
)

// MemoryConnector keeps records in process memory. Used for local runs and tests.
type MemoryConnector struct {
	mu      sync.RWMutex
	samples []domain.Sample
	events  []domain.Event
}

// NewMemoryConnector returns an empty in-memory connector.
func NewMemoryConnector() *MemoryConnector {
	return &MemoryConnector{}
}

// RecordSample appends the unsigned sample.
func (m *MemoryConnector) RecordSample(ctx context.Context, s domain.Sample) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, s.Unsigned())
	return nil
}

// RecordEvents appends events in order.
func (m *MemoryConnector) RecordEvents(ctx context.Context, events []domain.Event) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return Result{Stored: len(events)}, nil
}

// Ping always succeeds.
func (m *MemoryConnector) Ping(context.Context) error { return nil }

// Samples returns a copy of the stored samples in arrival order.
func (m *MemoryConnector) Samples() []domain.Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Sample, len(m.samples))
	copy(out, m.samples)
	return out
}

// Events returns a copy of the stored events in arrival order.
func (m *MemoryConnector) Events() []domain.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Event, len(m.events))
	copy(out, m.events)
	return out
}
