// Package telemetry carries dispatch notices (rejected or failed samples) to an out-of-band
// sink such as OTel Logs, alongside the local trace log.
package telemetry

import (
	"context"
	"time"
)

// Notice kinds.
const (
	KindRejected = "sample_rejected"
	KindFailed   = "sample_failed"
)

// Notice describes one sample the dispatcher did not store.
type Notice struct {
	Kind        string
	CounterName string
	ResourceID  string
	Source      string
	Reason      string
	At          time.Time
}

// EventEmitter emits notices. Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, n Notice) error
}
