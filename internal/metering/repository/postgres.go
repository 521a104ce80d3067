package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"metering-collector/internal/metering/domain"
)

const insertMeterSQL = `INSERT INTO meters (message_id, counter_name, counter_type, counter_unit, counter_volume, user_id, project_id, resource_id, source, recorded_at, resource_metadata) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,COALESCE($10, now()),$11) ON CONFLICT (message_id) DO NOTHING`

const insertEventSQL = `INSERT INTO events (id, payload) VALUES ($1,$2)`

// PostgresConnector stores samples in the meters table and events in the events table.
type PostgresConnector struct {
	db    *sql.DB
	newID func() string
}

// NewPostgresConnector returns a connector that uses the given db for persistence.
func NewPostgresConnector(db *sql.DB) *PostgresConnector {
	return &PostgresConnector{db: db, newID: uuid.NewString}
}

// RecordSample inserts one meter row. A sample without a timestamp is stamped with the database
// receipt time. Replays of the same message_id are ignored.
func (r *PostgresConnector) RecordSample(ctx context.Context, s domain.Sample) error {
	meta, err := resourceMetadata(s.ResourceMetadata)
	if err != nil {
		return err
	}
	messageID := s.MessageID
	if messageID == "" {
		messageID = r.newID()
	}
	_, err = r.db.ExecContext(ctx, insertMeterSQL,
		messageID,
		s.CounterName,
		nullString(s.CounterType),
		nullString(s.CounterUnit),
		s.CounterVolume,
		nullString(s.UserID),
		nullString(s.ProjectID),
		s.ResourceID,
		nullString(s.Source),
		recordedAt(s.Timestamp),
		meta,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert meter: %w", err)
	}
	return nil
}

// RecordEvents inserts all events in one transaction; either every event is stored or none.
func (r *PostgresConnector) RecordEvents(ctx context.Context, events []domain.Event) (Result, error) {
	if len(events) == 0 {
		return Result{}, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, e := range events {
		if _, err := tx.ExecContext(ctx, insertEventSQL, r.newID(), eventPayload(e)); err != nil {
			return Result{}, fmt.Errorf("postgres: insert event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("postgres: commit: %w", err)
	}
	return Result{Stored: len(events)}, nil
}

// Ping checks the database connection.
func (r *PostgresConnector) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func recordedAt(ts domain.Timestamp) sql.NullTime {
	if !ts.Normalized() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: ts.Time, Valid: true}
}

func resourceMetadata(m map[string]any) (json.RawMessage, error) {
	if len(m) == 0 {
		return json.RawMessage("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("postgres: encode resource_metadata: %w", err)
	}
	return json.RawMessage(b), nil
}

func eventPayload(e domain.Event) json.RawMessage {
	if len(e) == 0 {
		return json.RawMessage("null")
	}
	return json.RawMessage(e)
}
