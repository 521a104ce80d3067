// Package config loads and validates collector config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// Storage failure policies for the samples path.
const (
	StorageFailuresAbsorb  = "absorb"
	StorageFailuresSurface = "surface"
)

// Config holds collector configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC intake listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// MetricsAddr serves Prometheus /metrics; empty disables the endpoint.
	MetricsAddr string `mapstructure:"METRICS_ADDR"`
	// Env is the application environment; "development" switches logs to console output.
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// MeteringSecret is the shared secret samples are signed with. Required.
	MeteringSecret string `mapstructure:"METERING_SECRET"`

	// StorageDriver selects the connector: memory, postgres, loki or kafka.
	StorageDriver string `mapstructure:"STORAGE_DRIVER"`
	// StorageFailurePolicy is "absorb" (log and continue) or "surface" (return joined errors to the caller).
	StorageFailurePolicy string `mapstructure:"STORAGE_FAILURE_POLICY"`
	// DatabaseURL is the Postgres DSN; required when StorageDriver is postgres.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// MigrateOnStart applies embedded migrations before serving when StorageDriver is postgres.
	MigrateOnStart bool `mapstructure:"MIGRATE_ON_START"`
	// LokiURL is the Loki base URL; required when StorageDriver is loki.
	LokiURL string `mapstructure:"LOKI_URL"`
	// StorageKafkaTopic is the downstream topic when StorageDriver is kafka.
	StorageKafkaTopic string `mapstructure:"STORAGE_KAFKA_TOPIC"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// MeteringKafkaTopic is the intake topic the worker consumes.
	MeteringKafkaTopic string `mapstructure:"METERING_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty uses no-op providers.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext OTLP connection.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is the OTel service.name resource attribute.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// IngestTokenSecret enables bearer-token auth on the intake RPCs when set (HS256).
	IngestTokenSecret string `mapstructure:"INGEST_TOKEN_SECRET"`
	// IngestTokenAudience is the aud claim intake tokens must carry.
	IngestTokenAudience string `mapstructure:"INGEST_TOKEN_AUDIENCE"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored. Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("METRICS_ADDR", ":9100")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("METERING_SECRET", "")
	v.SetDefault("STORAGE_DRIVER", "memory")
	v.SetDefault("STORAGE_FAILURE_POLICY", StorageFailuresAbsorb)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("MIGRATE_ON_START", false)
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("STORAGE_KAFKA_TOPIC", "metering-accepted")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("METERING_KAFKA_TOPIC", "metering")
	v.SetDefault("KAFKA_GROUP_ID", "metering-collector")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "metering-collector")
	v.SetDefault("INGEST_TOKEN_SECRET", "")
	v.SetDefault("INGEST_TOKEN_AUDIENCE", "metering-intake")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}
	if cfg.MeteringSecret == "" {
		return nil, errors.New("config: METERING_SECRET must be set")
	}

	cfg.StorageFailurePolicy = strings.ToLower(strings.TrimSpace(cfg.StorageFailurePolicy))
	switch cfg.StorageFailurePolicy {
	case StorageFailuresAbsorb, StorageFailuresSurface:
	default:
		return nil, errors.New("config: STORAGE_FAILURE_POLICY must be absorb or surface")
	}

	switch cfg.StorageDriver {
	case "memory", "loki", "kafka", "postgres":
	default:
		return nil, errors.New("config: STORAGE_DRIVER must be one of memory, postgres, loki, kafka")
	}
	if cfg.StorageDriver == "postgres" && cfg.DatabaseURL == "" {
		return nil, errors.New("config: DATABASE_URL must be set when STORAGE_DRIVER=postgres")
	}
	if cfg.StorageDriver == "loki" && cfg.LokiURL == "" {
		return nil, errors.New("config: LOKI_URL must be set when STORAGE_DRIVER=loki")
	}
	if cfg.StorageDriver == "kafka" && len(cfg.KafkaBrokersList()) == 0 {
		return nil, errors.New("config: KAFKA_BROKERS must be set when STORAGE_DRIVER=kafka")
	}

	return &cfg, nil
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SurfaceStorageFailures reports whether sample storage failures are returned to the caller.
func (c *Config) SurfaceStorageFailures() bool {
	return c != nil && c.StorageFailurePolicy == StorageFailuresSurface
}

// AuthEnabled reports whether intake RPCs require a bearer token.
func (c *Config) AuthEnabled() bool {
	return c != nil && c.IngestTokenSecret != ""
}
