// Package normalize converts the optional ISO-8601 timestamp carried by a sample into a UTC instant.
package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"metering-collector/internal/metering/domain"
)

// ErrMalformedTimestamp is matched by every NormalizationError.
var ErrMalformedTimestamp = errors.New("malformed timestamp")

// NormalizationError identifies the timestamp value that could not be parsed.
type NormalizationError struct {
	Value string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize: malformed timestamp %q", e.Value)
}

func (e *NormalizationError) Unwrap() error {
	return ErrMalformedTimestamp
}

// Layouts without a zone are read as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseISOTime parses an ISO-8601 timestamp and returns it in UTC.
func ParseISOTime(value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, &NormalizationError{Value: value}
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &NormalizationError{Value: value}
}

// Normalize returns s with its timestamp replaced by the parsed UTC instant.
// A sample without a timestamp, or one already normalized, is returned unchanged.
func Normalize(s domain.Sample) (domain.Sample, error) {
	if s.Timestamp.IsZero() || s.Timestamp.Normalized() {
		return s, nil
	}
	t, err := ParseISOTime(s.Timestamp.Raw)
	if err != nil {
		return s, err
	}
	s.Timestamp = domain.InstantTimestamp(t)
	return s, nil
}
