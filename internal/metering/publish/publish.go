// Package publish prepares signed sample batches for the collector intake, over gRPC or Kafka.
package publish

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"metering-collector/internal/metering/domain"
	"metering-collector/internal/metering/repository"
	"metering-collector/internal/metering/signature"
)

// Synthetic describes generated samples for smoke-testing an intake.
type Synthetic struct {
	CounterName string
	CounterType string
	CounterUnit string
	ResourceID  string
	Source      string
	Volume      float64
	Count       int
}

// Generate returns Count samples one second apart ending at now, with volumes Volume, 2*Volume, ...
func Generate(syn Synthetic, now time.Time) []domain.Sample {
	out := make([]domain.Sample, 0, syn.Count)
	for i := 0; i < syn.Count; i++ {
		at := now.Add(-time.Duration(syn.Count-1-i) * time.Second).UTC()
		out = append(out, domain.Sample{
			CounterName:   syn.CounterName,
			CounterType:   syn.CounterType,
			CounterUnit:   syn.CounterUnit,
			CounterVolume: syn.Volume * float64(i+1),
			ResourceID:    syn.ResourceID,
			Source:        syn.Source,
			Timestamp:     domain.RawTimestamp(at.Format(time.RFC3339Nano)),
		})
	}
	return out
}

// Sign assigns a message_id to samples without one and signs each with secret. The id is part
// of the signed content, so it is set first.
func Sign(samples []domain.Sample, secret string) ([]domain.Sample, error) {
	out := make([]domain.Sample, 0, len(samples))
	for i, s := range samples {
		if s.MessageID == "" {
			s.MessageID = uuid.NewString()
		}
		signed, err := signature.Sign(s, secret)
		if err != nil {
			return nil, fmt.Errorf("publish: sign sample %d: %w", i, err)
		}
		out = append(out, signed)
	}
	return out, nil
}

// SamplesMessage encodes samples as one intake message keyed by the first resource.
func SamplesMessage(samples []domain.Sample) (kafka.Message, error) {
	payload, err := json.Marshal(samples)
	if err != nil {
		return kafka.Message{}, err
	}
	var key []byte
	if len(samples) > 0 {
		key = []byte(samples[0].ResourceID)
	}
	return kafka.Message{
		Key:     key,
		Value:   payload,
		Headers: []kafka.Header{{Key: repository.KindHeader, Value: []byte(repository.KindSamples)}},
	}, nil
}

// EventsMessage wraps a raw events payload (one event or an array) as one intake message.
func EventsMessage(payload []byte) (kafka.Message, error) {
	if !json.Valid(payload) {
		return kafka.Message{}, fmt.Errorf("publish: events payload is not valid JSON")
	}
	return kafka.Message{
		Value:   payload,
		Headers: []kafka.Header{{Key: repository.KindHeader, Value: []byte(repository.KindEvents)}},
	}, nil
}
