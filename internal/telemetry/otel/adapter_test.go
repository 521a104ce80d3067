package otel

import (
	"context"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/embedded"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"metering-collector/internal/telemetry"
)

// recordCapture stores the last Record passed to Emit for assertion.
type recordCapture struct {
	embedded.Logger
	rec otellog.Record
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.rec = rec
}

func (r *recordCapture) Enabled(context.Context, otellog.EnabledParameters) bool { return true }

func attributes(rec otellog.Record) map[string]string {
	attrs := make(map[string]string)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value.AsString()
		return true
	})
	return attrs
}

func TestNewEventEmitter_NilProvider_ReturnsNoop(t *testing.T) {
	em := NewEventEmitter(nil)
	if em == nil {
		t.Fatal("NewEventEmitter(nil) returned nil")
	}
	if err := em.Emit(context.Background(), telemetry.Notice{Kind: telemetry.KindRejected}); err != nil {
		t.Errorf("noop Emit: %v", err)
	}
}

func TestNewEventEmitter_SDKProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	em := NewEventEmitter(provider)
	if err := em.Emit(context.Background(), telemetry.Notice{Kind: telemetry.KindFailed}); err != nil {
		t.Errorf("Emit: %v", err)
	}
}

func TestEmit_RejectedNotice(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	n := telemetry.Notice{
		Kind:        telemetry.KindRejected,
		CounterName: "cpu",
		ResourceID:  "vm-1",
		Source:      "openstack",
		Reason:      "message signature invalid",
		At:          at,
	}
	if err := em.Emit(context.Background(), n); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := cap.rec
	if rec.Severity() != otellog.SeverityWarn {
		t.Errorf("severity = %v, want warn", rec.Severity())
	}
	if !rec.Timestamp().Equal(at) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp(), at)
	}
	if got := rec.Body().AsString(); got != "message signature invalid" {
		t.Errorf("body = %q", got)
	}
	want := map[string]string{
		"event_type": telemetry.KindRejected, "counter_name": "cpu", "resource_id": "vm-1", "source": "openstack",
	}
	attrs := attributes(rec)
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("attr %q = %q, want %q", k, attrs[k], v)
		}
	}
}

func TestEmit_FailedNotice_PartialFields(t *testing.T) {
	cap := &recordCapture{}
	em := NewEventEmitterWithLogger(cap)
	before := time.Now().UTC()
	if err := em.Emit(context.Background(), telemetry.Notice{Kind: telemetry.KindFailed, CounterName: "disk"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	rec := cap.rec
	if rec.Severity() != otellog.SeverityError {
		t.Errorf("severity = %v, want error", rec.Severity())
	}
	if rec.Timestamp().Before(before) {
		t.Errorf("timestamp = %v, should default to now", rec.Timestamp())
	}
	if !rec.Body().Empty() {
		t.Error("body should be empty without a reason")
	}
	attrs := attributes(rec)
	if _, ok := attrs["resource_id"]; ok {
		t.Error("resource_id should not be set when empty")
	}
	if attrs["counter_name"] != "disk" {
		t.Errorf("counter_name = %q, want disk", attrs["counter_name"])
	}
}
