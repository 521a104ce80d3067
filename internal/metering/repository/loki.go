package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"metering-collector/internal/loki"
	"metering-collector/internal/metering/domain"
)

// LokiPusher is the subset of loki.Client the connector needs.
type LokiPusher interface {
	Push(ctx context.Context, labels map[string]string, entries ...loki.Entry) error
	Ready(ctx context.Context) error
}

// LokiConnector writes samples and events as JSON log lines to Loki.
type LokiConnector struct {
	client LokiPusher
	clock  func() time.Time
}

// NewLokiConnector returns a connector pushing through client.
func NewLokiConnector(client LokiPusher) *LokiConnector {
	return &LokiConnector{client: client, clock: time.Now}
}

// RecordSample pushes one line labelled with counter_name and source. The line time is the
// sample timestamp, or the receipt time when the sample carries none.
func (c *LokiConnector) RecordSample(ctx context.Context, s domain.Sample) error {
	line, err := json.Marshal(s.Unsigned())
	if err != nil {
		return fmt.Errorf("loki: encode sample: %w", err)
	}
	at := c.clock().UTC()
	if s.Timestamp.Normalized() {
		at = s.Timestamp.Time
	}
	labels := map[string]string{"kind": "sample", "counter_name": s.CounterName, "source": s.Source}
	return c.client.Push(ctx, labels, loki.Entry{Time: at, Line: string(line)})
}

// RecordEvents pushes all events as one stream in a single request.
func (c *LokiConnector) RecordEvents(ctx context.Context, events []domain.Event) (Result, error) {
	if len(events) == 0 {
		return Result{}, nil
	}
	now := c.clock().UTC()
	entries := make([]loki.Entry, len(events))
	for i, e := range events {
		entries[i] = loki.Entry{Time: now, Line: string(eventPayload(e))}
	}
	if err := c.client.Push(ctx, map[string]string{"kind": "event"}, entries...); err != nil {
		return Result{}, err
	}
	return Result{Stored: len(events)}, nil
}

// Ping checks Loki readiness.
func (c *LokiConnector) Ping(ctx context.Context) error {
	return c.client.Ready(ctx)
}
