// Package consumer feeds metering payloads read from a Kafka topic into the dispatcher.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"metering-collector/internal/metering/dispatcher"
	"metering-collector/internal/metering/domain"
	"metering-collector/internal/metering/repository"
)

const (
	dispatchTimeout = 10 * time.Second
	fetchBackoff    = time.Second
)

// retryBackoff is the pause before a message whose storage failed is dispatched again.
// Replaced in tests.
var retryBackoff = 2 * time.Second

// Reader is the subset of *kafka.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Recorder is the dispatcher API. *dispatcher.Dispatcher implements it.
type Recorder interface {
	RecordSamples(ctx context.Context, batch domain.Batch[domain.Sample]) (dispatcher.Report, error)
	RecordEvents(ctx context.Context, batch domain.Batch[domain.Event]) (repository.Result, error)
}

// NewReader returns a group reader for the intake topic.
func NewReader(brokers []string, topic, groupID string) (*kafka.Reader, error) {
	if len(brokers) == 0 || topic == "" || groupID == "" {
		return nil, errors.New("consumer: brokers, topic and group are required")
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	}), nil
}

// Consumer reads one payload per message. The "kind" header selects the path: "events" goes to
// RecordEvents, anything else (including no header) to RecordSamples.
type Consumer struct {
	reader Reader
	rec    Recorder
	log    zerolog.Logger
}

// New returns a consumer dispatching messages from reader to rec.
func New(reader Reader, rec Recorder, log zerolog.Logger) *Consumer {
	return &Consumer{reader: reader, rec: rec, log: log}
}

// Run consumes until ctx is done. A message is committed once handled. Payloads that cannot be
// decoded are committed too, so a poison message is never redelivered. A storage failure keeps
// the message uncommitted and it is dispatched again after a backoff, so the partition does not
// advance past data that was not stored.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error().Err(err).Msg("consumer: kafka fetch failed")
			if !sleep(ctx, fetchBackoff) {
				return nil
			}
			continue
		}

		for attempt := 1; ; attempt++ {
			err := c.Handle(ctx, msg)
			if err == nil {
				break
			}
			c.log.Warn().Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Int("attempt", attempt).
				Msg("consumer: storage failed, retrying message")
			if !sleep(ctx, retryBackoff) {
				return nil
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error().Err(err).Int64("offset", msg.Offset).Msg("consumer: commit failed")
		}
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// Handle decodes and dispatches one message. Decode failures are logged and return nil. A
// storage failure returned by the recorder is returned so the caller can retry: a failed events
// batch, or sample storage failures when the dispatcher surfaces them.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) error {
	dctx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	log := c.log.With().Int("partition", msg.Partition).Int64("offset", msg.Offset).Logger()
	switch Kind(msg) {
	case repository.KindEvents:
		batch, err := domain.DecodeEvents(msg.Value)
		if err != nil {
			log.Error().Err(err).Msg("consumer: discarding undecodable events payload")
			return nil
		}
		res, err := c.rec.RecordEvents(dctx, batch)
		if err != nil {
			log.Error().Err(err).Int("events", len(batch)).Msg("consumer: failed to record events")
			return fmt.Errorf("record events: %w", err)
		}
		log.Debug().Int("stored", res.Stored).Msg("consumer: events recorded")
	default:
		batch, err := domain.DecodeSamples(msg.Value)
		if err != nil {
			log.Error().Err(err).Msg("consumer: discarding undecodable samples payload")
			return nil
		}
		report, err := c.rec.RecordSamples(dctx, batch)
		log.Debug().
			Int("stored", report.Count(dispatcher.StatusStored)).
			Int("rejected", report.Count(dispatcher.StatusRejected)).
			Int("failed", report.Count(dispatcher.StatusFailed)).
			Msg("consumer: samples recorded")
		if err != nil {
			log.Error().Err(err).Msg("consumer: storage failures while recording samples")
			return fmt.Errorf("record samples: %w", err)
		}
	}
	return nil
}

// Kind returns the message's kind header, or KindSamples when absent.
func Kind(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == repository.KindHeader {
			return string(h.Value)
		}
	}
	return repository.KindSamples
}
