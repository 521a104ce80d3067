package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg)
	if err != nil {
		t.Fatalf("NewPrometheus: %v", err)
	}

	p.SampleStored()
	p.SampleStored()
	p.SampleRejected()
	p.SampleFailed()
	p.EventsRelayed(3)
	p.EventBatchFailed()

	if got := testutil.ToFloat64(p.stored); got != 2 {
		t.Errorf("stored = %v, want 2", got)
	}
	if got := testutil.ToFloat64(p.rejected); got != 1 {
		t.Errorf("rejected = %v, want 1", got)
	}
	if got := testutil.ToFloat64(p.failed); got != 1 {
		t.Errorf("failed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(p.events); got != 3 {
		t.Errorf("events = %v, want 3", got)
	}
	if got := testutil.ToFloat64(p.eventErr); got != 1 {
		t.Errorf("event batch failures = %v, want 1", got)
	}
}

func TestNewPrometheus_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheus(reg); err != nil {
		t.Fatalf("NewPrometheus: %v", err)
	}
	if _, err := NewPrometheus(reg); err == nil {
		t.Fatal("second NewPrometheus on the same registry should fail")
	}
}

func TestHandler_ServesCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg)
	if err != nil {
		t.Fatalf("NewPrometheus: %v", err)
	}
	p.SampleStored()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "metering_samples_stored_total 1") {
		t.Errorf("metrics output missing stored counter:\n%s", body)
	}
}
