package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"metering-collector/internal/telemetry"
)

const loggerName = "metering.dispatcher"

// NewEventEmitter returns an EventEmitter that sends notices as OTel log records via provider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return NewEventEmitterWithLogger(provider.Logger(loggerName))
}

// NewEventEmitterWithLogger returns an EventEmitter writing to logger.
func NewEventEmitterWithLogger(logger otellog.Logger) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, telemetry.Notice) error { return nil }

type otelEmitter struct {
	logger otellog.Logger
}

// Emit converts the notice to an OTel log record. Rejections are warnings, failures errors.
func (e *otelEmitter) Emit(ctx context.Context, n telemetry.Notice) error {
	rec := otellog.Record{}
	if n.At.IsZero() {
		rec.SetTimestamp(time.Now().UTC())
	} else {
		rec.SetTimestamp(n.At)
	}
	switch n.Kind {
	case telemetry.KindRejected:
		rec.SetSeverity(otellog.SeverityWarn)
		rec.SetSeverityText("WARN")
	default:
		rec.SetSeverity(otellog.SeverityError)
		rec.SetSeverityText("ERROR")
	}
	if n.Reason != "" {
		rec.SetBody(otellog.StringValue(n.Reason))
	}
	rec.AddAttributes(otellog.String("event_type", n.Kind))
	if n.CounterName != "" {
		rec.AddAttributes(otellog.String("counter_name", n.CounterName))
	}
	if n.ResourceID != "" {
		rec.AddAttributes(otellog.String("resource_id", n.ResourceID))
	}
	if n.Source != "" {
		rec.AddAttributes(otellog.String("source", n.Source))
	}
	e.logger.Emit(ctx, rec)
	return nil
}
