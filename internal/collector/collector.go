// Package collector assembles the dispatcher and its storage, metrics and telemetry from config.
// cmd/server and cmd/worker share it.
package collector

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"metering-collector/internal/config"
	"metering-collector/internal/db/migrate"
	"metering-collector/internal/health"
	"metering-collector/internal/metering/dispatcher"
	"metering-collector/internal/metering/repository"
	"metering-collector/internal/telemetry/metrics"
	"metering-collector/internal/telemetry/otel"
)

// Collector is a configured dispatcher plus everything that must be shut down with it.
type Collector struct {
	Dispatcher *dispatcher.Dispatcher
	Connector  repository.Connector
	// Pinger is the connector's readiness check, or nil when the backend has none.
	Pinger    health.Pinger
	Registry  *prometheus.Registry
	Providers *otel.Providers

	closeStorage func() error
}

// migrateFn is replaced in tests.
var migrateFn = migrate.Run

// New opens storage, applies migrations when configured, sets up OpenTelemetry and Prometheus,
// and builds the dispatcher.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Collector, error) {
	if cfg == nil {
		return nil, errors.New("collector: nil config")
	}
	if cfg.StorageDriver == repository.DriverPostgres && cfg.MigrateOnStart {
		if err := migrateFn(cfg.DatabaseURL, migrate.Up); err != nil {
			return nil, fmt.Errorf("collector: migrate: %w", err)
		}
		log.Info().Msg("migrations applied")
	}

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.OTLPInsecure)
	if err != nil {
		return nil, fmt.Errorf("collector: otel: %w", err)
	}
	providers.SetGlobal()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom, err := metrics.NewPrometheus(reg)
	if err != nil {
		_ = providers.Shutdown(ctx)
		return nil, fmt.Errorf("collector: metrics: %w", err)
	}

	conn, closeStorage, err := repository.Open(ctx, repository.Options{
		Driver:       cfg.StorageDriver,
		DatabaseURL:  cfg.DatabaseURL,
		LokiURL:      cfg.LokiURL,
		KafkaBrokers: cfg.KafkaBrokersList(),
		KafkaTopic:   cfg.StorageKafkaTopic,
	})
	if err != nil {
		_ = providers.Shutdown(ctx)
		return nil, err
	}

	policy := dispatcher.AbsorbStorageFailures
	if cfg.SurfaceStorageFailures() {
		policy = dispatcher.SurfaceStorageFailures
	}
	d := dispatcher.New(conn, cfg.MeteringSecret,
		dispatcher.WithLogger(log),
		dispatcher.WithPolicy(policy),
		dispatcher.WithMetrics(prom),
		dispatcher.WithEventEmitter(otel.NewEventEmitter(providers.LoggerProvider)),
	)

	c := &Collector{
		Dispatcher:   d,
		Connector:    conn,
		Registry:     reg,
		Providers:    providers,
		closeStorage: closeStorage,
	}
	if p, ok := conn.(repository.Pinger); ok {
		c.Pinger = p
	}
	return c, nil
}

// Close releases storage and flushes telemetry. Errors from both are joined.
func (c *Collector) Close(ctx context.Context) error {
	var errs []error
	if c.closeStorage != nil {
		if err := c.closeStorage(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c.Providers != nil && c.Providers.Shutdown != nil {
		if err := c.Providers.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("otel: %w", err))
		}
	}
	return errors.Join(errs...)
}
