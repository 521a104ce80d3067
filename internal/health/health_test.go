package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// mockPinger implements Pinger for tests.
type mockPinger struct {
	pingErr error
}

func (m *mockPinger) Ping(context.Context) error {
	return m.pingErr
}

func status(t *testing.T, srv *health.Server, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := srv.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q): %v", service, err)
	}
	return resp.GetStatus()
}

func TestCheck_NilPinger(t *testing.T) {
	srv := health.NewServer()
	w := NewWatcher(srv, nil, zerolog.Nop(), "metering.v1.MeteringService")
	if got := w.Check(context.Background()); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", got)
	}
	if got := status(t, srv, "metering.v1.MeteringService"); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("service status = %v, want SERVING", got)
	}
}

func TestCheck_PingerSuccess(t *testing.T) {
	srv := health.NewServer()
	w := NewWatcher(srv, &mockPinger{}, zerolog.Nop())
	w.Check(context.Background())
	if got := status(t, srv, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", got)
	}
}

func TestCheck_PingerFailure(t *testing.T) {
	srv := health.NewServer()
	p := &mockPinger{pingErr: errors.New("connection refused")}
	w := NewWatcher(srv, p, zerolog.Nop(), "metering.v1.MeteringService")
	if got := w.Check(context.Background()); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status = %v, want NOT_SERVING", got)
	}
	if got := status(t, srv, "metering.v1.MeteringService"); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("service status = %v, want NOT_SERVING", got)
	}

	p.pingErr = nil
	w.Check(context.Background())
	if got := status(t, srv, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("recovered status = %v, want SERVING", got)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	srv := health.NewServer()
	w := NewWatcher(srv, &mockPinger{pingErr: errors.New("down")}, zerolog.Nop())
	w.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if got := status(t, srv, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status = %v, want NOT_SERVING", got)
	}
}
