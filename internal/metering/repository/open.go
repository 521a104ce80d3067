package repository

import (
	"context"
	"fmt"

	"metering-collector/internal/db"
	"metering-collector/internal/loki"
)

// Storage drivers selectable with STORAGE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverLoki     = "loki"
	DriverKafka    = "kafka"
)

// Options selects and configures a storage backend.
type Options struct {
	Driver       string
	DatabaseURL  string
	LokiURL      string
	KafkaBrokers []string
	KafkaTopic   string
}

// Open builds the connector named by opts.Driver. The returned close function releases the
// backend's resources and is never nil.
func Open(ctx context.Context, opts Options) (Connector, func() error, error) {
	noop := func() error { return nil }
	switch opts.Driver {
	case DriverMemory, "":
		return NewMemoryConnector(), noop, nil
	case DriverPostgres:
		conn, err := db.Open(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("storage: postgres: %w", err)
		}
		return NewPostgresConnector(conn), conn.Close, nil
	case DriverLoki:
		client, err := loki.NewClient(opts.LokiURL, "metering", nil)
		if err != nil {
			return nil, noop, fmt.Errorf("storage: %w", err)
		}
		return NewLokiConnector(client), noop, nil
	case DriverKafka:
		w, err := NewKafkaWriter(opts.KafkaBrokers, opts.KafkaTopic)
		if err != nil {
			return nil, noop, fmt.Errorf("storage: %w", err)
		}
		c := NewKafkaConnector(w)
		return c, c.Close, nil
	default:
		return nil, noop, fmt.Errorf("storage: unknown driver %q", opts.Driver)
	}
}
