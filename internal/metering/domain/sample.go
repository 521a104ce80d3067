package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Sample is one metering data point (a counter observation) as sent by an upstream collector.
// Field names follow the wire mapping so the signature can be computed over the same keys the
// producer signed.
type Sample struct {
	CounterName      string         `json:"counter_name"`
	CounterType      string         `json:"counter_type,omitempty"`
	CounterUnit      string         `json:"counter_unit,omitempty"`
	CounterVolume    float64        `json:"counter_volume"`
	UserID           string         `json:"user_id,omitempty"`
	ProjectID        string         `json:"project_id,omitempty"`
	ResourceID       string         `json:"resource_id"`
	Source           string         `json:"source,omitempty"`
	MessageID        string         `json:"message_id,omitempty"`
	Timestamp        Timestamp      `json:"timestamp,omitzero"`
	ResourceMetadata map[string]any `json:"resource_metadata,omitempty"`
	// Signature is consumed by the verifier only; connectors must not persist it.
	Signature string `json:"message_signature,omitempty"`

	// wire is the JSON object the sample was decoded from. Producers sign that mapping, which
	// may carry nulls, empty strings and keys the struct does not model.
	wire json.RawMessage
}

// UnmarshalJSON decodes the sample and keeps the received object for signature checks.
func (s *Sample) UnmarshalJSON(b []byte) error {
	type plain Sample
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*s = Sample(p)
	s.wire = nil
	if trimmed := bytes.TrimSpace(b); len(trimmed) > 0 && trimmed[0] == '{' {
		s.wire = append(json.RawMessage(nil), trimmed...)
	}
	return nil
}

// Wire returns the JSON object the sample was decoded from, or nil for a sample built in
// process.
func (s Sample) Wire() json.RawMessage {
	return s.wire
}

// Detached returns a copy of s without its received JSON, so encodings and signatures are
// derived from the struct fields. Use it after changing a decoded sample.
func (s Sample) Detached() Sample {
	s.wire = nil
	return s
}

var (
	// ErrMissingCounterName is returned by Validate when counter_name is empty.
	ErrMissingCounterName = errors.New("sample: counter_name is required")
	// ErrMissingResourceID is returned by Validate when resource_id is empty.
	ErrMissingResourceID = errors.New("sample: resource_id is required")
)

// Validate checks the fields a sample cannot be stored without.
func (s Sample) Validate() error {
	if s.CounterName == "" {
		return ErrMissingCounterName
	}
	if s.ResourceID == "" {
		return ErrMissingResourceID
	}
	return nil
}

// Unsigned returns a copy of s without its signature or received JSON, for persistence and
// relays.
func (s Sample) Unsigned() Sample {
	s.Signature = ""
	s.wire = nil
	return s
}

// Timestamp is a sample time. Raw holds the string received on the wire; Time is set once the
// value has been normalized to a UTC instant. Both empty means the producer sent no timestamp.
type Timestamp struct {
	Raw  string
	Time time.Time
}

// RawTimestamp wraps an unparsed wire timestamp.
func RawTimestamp(s string) Timestamp {
	return Timestamp{Raw: s}
}

// InstantTimestamp wraps an already normalized instant.
func InstantTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

// IsZero reports whether the producer sent no timestamp.
func (t Timestamp) IsZero() bool {
	return t.Raw == "" && t.Time.IsZero()
}

// Normalized reports whether Time holds the parsed instant.
func (t Timestamp) Normalized() bool {
	return !t.Time.IsZero()
}

// String returns the normalized instant in RFC 3339 form, or the raw wire value.
func (t Timestamp) String() string {
	if t.Normalized() {
		return t.Time.UTC().Format(time.RFC3339Nano)
	}
	return t.Raw
}

// MarshalJSON encodes the timestamp as a string, or null when absent.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.String())
}

// UnmarshalJSON keeps the wire string as Raw; parsing happens in the normalizer.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	*t = Timestamp{Raw: s}
	return nil
}
