// Package metrics exposes dispatcher counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counts dispatch outcomes. The zero value is not usable; use NewPrometheus.
type Prometheus struct {
	stored   prometheus.Counter
	rejected prometheus.Counter
	failed   prometheus.Counter
	events   prometheus.Counter
	eventErr prometheus.Counter
}

// NewPrometheus registers the dispatcher counters on reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		stored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "metering_samples_stored_total",
			Help: "Samples verified, normalized and handed to storage.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "metering_samples_rejected_total",
			Help: "Samples dropped because their signature did not match.",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "metering_samples_failed_total",
			Help: "Samples dropped because validation, normalization or storage failed.",
		}),
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "metering_events_relayed_total",
			Help: "Events handed to storage.",
		}),
		eventErr: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "metering_event_batches_failed_total",
			Help: "Event batches the storage connector returned an error for.",
		}),
	}
	for _, c := range []prometheus.Collector{p.stored, p.rejected, p.failed, p.events, p.eventErr} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) SampleStored()   { p.stored.Inc() }
func (p *Prometheus) SampleRejected() { p.rejected.Inc() }
func (p *Prometheus) SampleFailed()   { p.failed.Inc() }

// EventsRelayed adds n relayed events.
func (p *Prometheus) EventsRelayed(n int) { p.events.Add(float64(n)) }

// EventBatchFailed counts one failed events call.
func (p *Prometheus) EventBatchFailed() { p.eventErr.Inc() }

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
