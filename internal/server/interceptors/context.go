package interceptors

import "context"

type contextKey struct{ name string }

var (
	producerKey     = contextKey{"producer"}
	producerSlotKey = contextKey{"producer-slot"}
)

// WithProducer returns a context carrying the authenticated producer name. The name is also
// recorded for an enclosing LoggingUnary.
func WithProducer(ctx context.Context, producer string) context.Context {
	if slot, ok := ctx.Value(producerSlotKey).(*string); ok {
		*slot = producer
	}
	return context.WithValue(ctx, producerKey, producer)
}

// GetProducer returns the producer from context and true if set; otherwise "", false.
func GetProducer(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(producerKey).(string)
	return v, ok
}

// withProducerSlot returns a context in which a WithProducer made further down the chain is
// visible through the returned pointer.
func withProducerSlot(ctx context.Context) (context.Context, *string) {
	slot := new(string)
	return context.WithValue(ctx, producerSlotKey, slot), slot
}
