package domain

import "encoding/json"

// Event is an opaque record relayed to storage as received. The collector never inspects it.
type Event json.RawMessage

// MarshalJSON writes the event bytes unchanged.
func (e Event) MarshalJSON() ([]byte, error) {
	if len(e) == 0 {
		return []byte("null"), nil
	}
	return e, nil
}

// UnmarshalJSON keeps a copy of the raw event bytes.
func (e *Event) UnmarshalJSON(b []byte) error {
	*e = append((*e)[:0], b...)
	return nil
}
