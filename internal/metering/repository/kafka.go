package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"metering-collector/internal/metering/domain"
)

// Message kinds carried in the "kind" header of relayed and consumed Kafka messages.
const (
	KindHeader  = "kind"
	KindSamples = "samples"
	KindEvents  = "events"
)

const kafkaWriteTimeout = 5 * time.Second

// MessageWriter is the subset of *kafka.Writer the connector needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConnector relays accepted records to a downstream Kafka topic.
type KafkaConnector struct {
	writer MessageWriter
}

// NewKafkaWriter builds the writer for the downstream topic. brokers and topic must be non-empty.
func NewKafkaWriter(brokers []string, topic string) (*kafka.Writer, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, errors.New("kafka: brokers and topic are required")
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}, nil
}

// NewKafkaConnector returns a connector writing through w. Call Close when shutting down.
func NewKafkaConnector(w MessageWriter) *KafkaConnector {
	return &KafkaConnector{writer: w}
}

// RecordSample writes the unsigned sample keyed by resource_id so a resource stays on one partition.
func (c *KafkaConnector) RecordSample(ctx context.Context, s domain.Sample) error {
	payload, err := json.Marshal(s.Unsigned())
	if err != nil {
		return fmt.Errorf("kafka: encode sample: %w", err)
	}
	writeCtx, cancel := context.WithTimeout(ctx, kafkaWriteTimeout)
	defer cancel()
	return c.writer.WriteMessages(writeCtx, kafka.Message{
		Key:     []byte(s.ResourceID),
		Value:   payload,
		Headers: []kafka.Header{{Key: KindHeader, Value: []byte(KindSamples)}},
	})
}

// RecordEvents writes every event in a single WriteMessages call.
func (c *KafkaConnector) RecordEvents(ctx context.Context, events []domain.Event) (Result, error) {
	if len(events) == 0 {
		return Result{}, nil
	}
	msgs := make([]kafka.Message, len(events))
	for i, e := range events {
		msgs[i] = kafka.Message{
			Value:   eventPayload(e),
			Headers: []kafka.Header{{Key: KindHeader, Value: []byte(KindEvents)}},
		}
	}
	writeCtx, cancel := context.WithTimeout(ctx, kafkaWriteTimeout)
	defer cancel()
	if err := c.writer.WriteMessages(writeCtx, msgs...); err != nil {
		return Result{}, err
	}
	return Result{Stored: len(events)}, nil
}

// Close closes the writer. Safe to call on a nil connector.
func (c *KafkaConnector) Close() error {
	if c == nil || c.writer == nil {
		return nil
	}
	return c.writer.Close()
}
