package config

import (
	"reflect"
	"strings"
	"testing"
)

var configKeys = []string{
	"GRPC_ADDR", "METRICS_ADDR", "APP_ENV", "LOG_LEVEL", "METERING_SECRET",
	"STORAGE_DRIVER", "STORAGE_FAILURE_POLICY", "DATABASE_URL", "MIGRATE_ON_START",
	"LOKI_URL", "STORAGE_KAFKA_TOPIC", "KAFKA_BROKERS", "METERING_KAFKA_TOPIC",
	"KAFKA_GROUP_ID", "OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE",
	"OTEL_SERVICE_NAME", "INGEST_TOKEN_SECRET", "INGEST_TOKEN_AUDIENCE",
}

// setEnv clears every config key for the test, then applies env.
func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, map[string]string{"METERING_SECRET": "s3cret"})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != ":8080" {
		t.Errorf("GRPCAddr = %q, want :8080", cfg.GRPCAddr)
	}
	if cfg.MetricsAddr != ":9100" {
		t.Errorf("MetricsAddr = %q, want :9100", cfg.MetricsAddr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.StorageDriver != "memory" {
		t.Errorf("StorageDriver = %q, want memory", cfg.StorageDriver)
	}
	if cfg.StorageFailurePolicy != StorageFailuresAbsorb || cfg.SurfaceStorageFailures() {
		t.Errorf("StorageFailurePolicy = %q, want absorb", cfg.StorageFailurePolicy)
	}
	if cfg.MeteringKafkaTopic != "metering" || cfg.KafkaGroupID != "metering-collector" {
		t.Errorf("kafka defaults = %q/%q", cfg.MeteringKafkaTopic, cfg.KafkaGroupID)
	}
	if cfg.ServiceName != "metering-collector" {
		t.Errorf("ServiceName = %q", cfg.ServiceName)
	}
	if cfg.AuthEnabled() {
		t.Error("auth must be disabled without INGEST_TOKEN_SECRET")
	}
	if cfg.IngestTokenAudience != "metering-intake" {
		t.Errorf("IngestTokenAudience = %q", cfg.IngestTokenAudience)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	setEnv(t, map[string]string{
		"GRPC_ADDR":              ":9090",
		"METERING_SECRET":        "s3cret",
		"STORAGE_FAILURE_POLICY": " Surface ",
		"INGEST_TOKEN_SECRET":    "tok",
		"MIGRATE_ON_START":       "true",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != ":9090" {
		t.Errorf("GRPCAddr = %q, want :9090", cfg.GRPCAddr)
	}
	if !cfg.SurfaceStorageFailures() {
		t.Errorf("StorageFailurePolicy = %q, want surface", cfg.StorageFailurePolicy)
	}
	if !cfg.AuthEnabled() {
		t.Error("auth must be enabled with INGEST_TOKEN_SECRET")
	}
	if !cfg.MigrateOnStart {
		t.Error("MigrateOnStart should be true")
	}
}

func TestLoad_Invalid(t *testing.T) {
	testCases := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"missing secret", map[string]string{}, "METERING_SECRET"},
		{"bad policy", map[string]string{"METERING_SECRET": "s", "STORAGE_FAILURE_POLICY": "retry"}, "STORAGE_FAILURE_POLICY"},
		{"bad driver", map[string]string{"METERING_SECRET": "s", "STORAGE_DRIVER": "mongo"}, "STORAGE_DRIVER"},
		{"postgres without dsn", map[string]string{"METERING_SECRET": "s", "STORAGE_DRIVER": "postgres"}, "DATABASE_URL"},
		{"loki without url", map[string]string{"METERING_SECRET": "s", "STORAGE_DRIVER": "loki"}, "LOKI_URL"},
		{"kafka without brokers", map[string]string{"METERING_SECRET": "s", "STORAGE_DRIVER": "kafka", "KAFKA_BROKERS": " , "}, "KAFKA_BROKERS"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			setEnv(t, tc.env)
			cfg, err := Load()
			if err == nil {
				t.Fatalf("Load should fail, got %+v", cfg)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("err = %v, want mention of %s", err, tc.wantErr)
			}
		})
	}
}

func TestLoad_DriverSpecificSettings(t *testing.T) {
	setEnv(t, map[string]string{
		"METERING_SECRET": "s",
		"STORAGE_DRIVER":  "postgres",
		"DATABASE_URL":    "postgres://localhost/metering",
	})
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://localhost/metering" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
}

func TestKafkaBrokersList(t *testing.T) {
	testCases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"localhost:9092", []string{"localhost:9092"}},
		{" a:1 , b:2,, ", []string{"a:1", "b:2"}},
	}
	for _, tc := range testCases {
		cfg := &Config{KafkaBrokers: tc.in}
		got := cfg.KafkaBrokersList()
		if len(got) == 0 && len(tc.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("KafkaBrokersList(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	var nilCfg *Config
	if nilCfg.KafkaBrokersList() != nil || nilCfg.SurfaceStorageFailures() || nilCfg.AuthEnabled() {
		t.Error("nil config helpers must return zero values")
	}
}
