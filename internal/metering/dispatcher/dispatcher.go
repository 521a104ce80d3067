// Package dispatcher verifies, normalizes and forwards metering samples and events to a
// storage connector.
//
// The samples path isolates failures per item: a sample with a bad signature, a malformed
// timestamp or a storage error is logged and dropped while the rest of the batch continues.
// The events path relays the whole batch in one connector call and returns its error.
package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"metering-collector/internal/metering/domain"
	"metering-collector/internal/metering/normalize"
	"metering-collector/internal/metering/repository"
	"metering-collector/internal/metering/signature"
	"metering-collector/internal/telemetry"
)

// noTimestamp is logged in place of an absent sample timestamp.
const noTimestamp = "NO TIMESTAMP"

// Policy decides whether sample storage failures reach the caller of RecordSamples.
type Policy int

const (
	// AbsorbStorageFailures logs storage failures and returns a nil error.
	AbsorbStorageFailures Policy = iota
	// SurfaceStorageFailures returns the joined storage failures once the whole batch is processed.
	SurfaceStorageFailures
)

// Metrics receives dispatch outcome counts. *metrics.Prometheus implements it.
type Metrics interface {
	SampleStored()
	SampleRejected()
	SampleFailed()
	EventsRelayed(n int)
	EventBatchFailed()
}

// ErrPanic marks a sample whose processing panicked. A connector panic is also a StorageError.
var ErrPanic = errors.New("panic while recording sample")

// StorageError wraps an error returned by the storage connector for one sample.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string { return "storage: " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }

// Dispatcher is stateless across batches and safe for concurrent use when its connector is.
type Dispatcher struct {
	conn    repository.Connector
	secret  string
	policy  Policy
	log     zerolog.Logger
	metrics Metrics
	emitter telemetry.EventEmitter
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the trace logger. The default discards output.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithPolicy sets the storage failure policy.
func WithPolicy(p Policy) Option {
	return func(d *Dispatcher) { d.policy = p }
}

// WithMetrics sets the outcome counters.
func WithMetrics(m Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithEventEmitter mirrors rejected and failed samples to emitter.
func WithEventEmitter(e telemetry.EventEmitter) Option {
	return func(d *Dispatcher) { d.emitter = e }
}

// New returns a dispatcher forwarding to conn and verifying samples against secret.
func New(conn repository.Connector, secret string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		conn:   conn,
		secret: secret,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RecordSamples processes each sample in arrival order and reports one outcome per sample.
// Per-sample failures never stop the batch. The returned error is nil unless the policy is
// SurfaceStorageFailures and at least one storage call failed.
func (d *Dispatcher) RecordSamples(ctx context.Context, batch domain.Batch[domain.Sample]) (Report, error) {
	report := Report{Outcomes: make([]Outcome, 0, len(batch))}
	var storageErrs []error
	for i, s := range batch {
		out := d.recordSample(ctx, i, s)
		report.Outcomes = append(report.Outcomes, out)
		var se *StorageError
		if errors.As(out.Err, &se) {
			storageErrs = append(storageErrs, fmt.Errorf("sample %d: %w", i, se))
		}
	}
	if d.policy == SurfaceStorageFailures && len(storageErrs) > 0 {
		return report, errors.Join(storageErrs...)
	}
	return report, nil
}

// recordSample is the per-item error boundary: every failure, including a panic, becomes a
// failed Outcome. Only connector failures are StorageErrors.
func (d *Dispatcher) recordSample(ctx context.Context, i int, s domain.Sample) (out Outcome) {
	ts := noTimestamp
	if !s.Timestamp.IsZero() {
		ts = s.Timestamp.String()
	}
	d.log.Debug().
		Str("counter_name", s.CounterName).
		Str("resource_id", s.ResourceID).
		Str("timestamp", ts).
		Float64("counter_volume", s.CounterVolume).
		Msg("metering data")

	defer func() {
		if r := recover(); r != nil {
			out = d.fail(i, s, fmt.Errorf("%w: %v", ErrPanic, r))
		}
	}()

	if !signature.Verify(s, d.secret) {
		return d.reject(i, s)
	}
	if err := s.Validate(); err != nil {
		return d.fail(i, s, err)
	}
	normalized, err := normalize.Normalize(s)
	if err != nil {
		return d.fail(i, s, err)
	}
	if err := d.store(ctx, normalized); err != nil {
		return d.fail(i, s, &StorageError{Err: err})
	}
	if d.metrics != nil {
		d.metrics.SampleStored()
	}
	return Outcome{Index: i, Status: StatusStored}
}

// store calls the connector, turning a connector panic into an error.
func (d *Dispatcher) store(ctx context.Context, s domain.Sample) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return d.conn.RecordSample(ctx, s)
}

func (d *Dispatcher) reject(i int, s domain.Sample) Outcome {
	d.log.Warn().
		Interface("sample", s).
		Msg("message signature invalid, discarding message")
	if d.metrics != nil {
		d.metrics.SampleRejected()
	}
	telemetry.EmitAsync(d.emitter, telemetry.Notice{
		Kind:        telemetry.KindRejected,
		CounterName: s.CounterName,
		ResourceID:  s.ResourceID,
		Source:      s.Source,
		Reason:      signature.ErrInvalidSignature.Error(),
	})
	return Outcome{Index: i, Status: StatusRejected, Err: signature.ErrInvalidSignature}
}

func (d *Dispatcher) fail(i int, s domain.Sample, err error) Outcome {
	d.log.Error().
		Err(err).
		Int("index", i).
		Str("counter_name", s.CounterName).
		Str("resource_id", s.ResourceID).
		Msg("failed to record metering data")
	if d.metrics != nil {
		d.metrics.SampleFailed()
	}
	telemetry.EmitAsync(d.emitter, telemetry.Notice{
		Kind:        telemetry.KindFailed,
		CounterName: s.CounterName,
		ResourceID:  s.ResourceID,
		Source:      s.Source,
		Reason:      err.Error(),
	})
	return Outcome{Index: i, Status: StatusFailed, Err: err}
}

// RecordEvents hands the whole batch, unverified and unmodified, to the connector in one call
// and returns the connector's result and error unchanged.
func (d *Dispatcher) RecordEvents(ctx context.Context, batch domain.Batch[domain.Event]) (repository.Result, error) {
	res, err := d.conn.RecordEvents(ctx, []domain.Event(batch))
	if d.metrics != nil {
		if err != nil {
			d.metrics.EventBatchFailed()
		} else {
			d.metrics.EventsRelayed(res.Stored)
		}
	}
	return res, err
}
