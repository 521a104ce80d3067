package telemetry

import (
	"context"
	"log"
	"time"
)

// emitTimeout is the max time allowed for a single async emit.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the intake stops before shutting down OTel
// providers, so in-flight async emits can finish. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EmitAsync runs Emit in a goroutine with a short timeout so the dispatch loop is not blocked.
// A nil emitter is a no-op. The goroutine uses context.Background() so a cancelled batch
// context does not abort the emit.
func EmitAsync(emitter EventEmitter, n Notice) {
	if emitter == nil {
		return
	}
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, n); err != nil {
			log.Printf("telemetry: async emit failed: %v", err)
		}
	}()
}
