// Package health reports collector readiness through the standard grpc.health.v1 service.
package health

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	// DefaultInterval is how often the watcher pings storage.
	DefaultInterval = 15 * time.Second
	pingTimeout     = 5 * time.Second
)

// Pinger checks a storage backend. The memory, postgres and loki connectors implement it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Watcher keeps the serving status of the overall server ("") and of the named services in
// sync with storage reachability.
type Watcher struct {
	srv      *health.Server
	pinger   Pinger
	services []string
	interval time.Duration
	log      zerolog.Logger
}

// NewWatcher returns a watcher updating srv. If pinger is nil, the status is always SERVING.
func NewWatcher(srv *health.Server, pinger Pinger, log zerolog.Logger, services ...string) *Watcher {
	return &Watcher{
		srv:      srv,
		pinger:   pinger,
		services: services,
		interval: DefaultInterval,
		log:      log,
	}
}

// Check pings storage once, updates the serving status and returns it.
func (w *Watcher) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	if w.pinger != nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := w.pinger.Ping(pingCtx)
		cancel()
		if err != nil {
			w.log.Warn().Err(err).Msg("health: storage ping failed")
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	w.set(st)
	return st
}

// Run checks immediately and then every interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	w.Check(ctx)
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.Check(ctx)
		}
	}
}

func (w *Watcher) set(st healthpb.HealthCheckResponse_ServingStatus) {
	w.srv.SetServingStatus("", st)
	for _, name := range w.services {
		w.srv.SetServingStatus(name, st)
	}
}
