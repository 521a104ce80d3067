package domain

import (
	"bytes"
	"encoding/json"
)

// Batch is an ordered sequence of samples or events. On the wire it may be a single bare item
// or an array; both decode to the same ordered batch.
type Batch[T any] []T

// One returns a batch holding a single item.
func One[T any](item T) Batch[T] {
	return Batch[T]{item}
}

// Of returns a batch holding items in the given order.
func Of[T any](items ...T) Batch[T] {
	return Batch[T](items)
}

// UnmarshalJSON accepts either a JSON array of items or a single item.
func (b *Batch[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*b = nil
		return nil
	}
	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*b = items
		return nil
	}
	var item T
	if err := json.Unmarshal(trimmed, &item); err != nil {
		return err
	}
	*b = Batch[T]{item}
	return nil
}

// DecodeSamples decodes a wire payload holding one sample or an array of samples.
func DecodeSamples(data []byte) (Batch[Sample], error) {
	var b Batch[Sample]
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return b, nil
}

// DecodeEvents decodes a wire payload holding one event or an array of events.
func DecodeEvents(data []byte) (Batch[Event], error) {
	var b Batch[Event]
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return b, nil
}
