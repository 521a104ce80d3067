// Package signature computes and verifies the HMAC signature a collector attaches to each
// metering sample using the process-wide metering secret.
package signature

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"metering-collector/internal/metering/domain"
)

// FieldName is the wire key carrying the signature. It is excluded from the signed pairs.
const FieldName = "message_signature"

// ErrInvalidSignature marks a sample whose signature does not match the expected value.
var ErrInvalidSignature = errors.New("message signature invalid")

// Compute returns the hex-encoded HMAC-SHA256 of the sample's canonical key pairs.
// Keys are visited in sorted order; nested mappings are flattened as parent:child.
func Compute(s domain.Sample, secret string) (string, error) {
	pairs, err := keyPairs(s)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, []byte(secret))
	for _, p := range pairs {
		mac.Write([]byte(p.name))
		mac.Write([]byte(p.value))
	}
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify reports whether the sample's carried signature matches the one computed with secret.
// A mismatch or a missing signature is reported as false, not as an error.
func Verify(s domain.Sample, secret string) bool {
	if s.Signature == "" {
		return false
	}
	expected, err := Compute(s, secret)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(s.Signature)) == 1
}

// Sign returns a copy of s carrying the signature computed with secret. The copy is detached
// from any received JSON, so the signature covers the struct fields as they are now.
func Sign(s domain.Sample, secret string) (domain.Sample, error) {
	s = s.Detached()
	s.Signature = ""
	sig, err := Compute(s, secret)
	if err != nil {
		return domain.Sample{}, err
	}
	s.Signature = sig
	return s, nil
}

type pair struct {
	name  string
	value string
}

// keyPairs reads the mapping the producer signed: the received JSON object when the sample was
// decoded, otherwise the sample's own wire encoding.
func keyPairs(s domain.Sample) ([]pair, error) {
	raw := s.Wire()
	if len(raw) == 0 {
		encoded, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("signature: encode sample: %w", err)
		}
		raw = encoded
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("signature: decode sample: %w", err)
	}
	delete(fields, FieldName)
	return appendPairs(nil, "", fields), nil
}

func appendPairs(out []pair, prefix string, m map[string]any) []pair {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		name := k
		if prefix != "" {
			name = prefix + ":" + k
		}
		if nested, ok := m[k].(map[string]any); ok {
			out = appendPairs(out, name, nested)
			continue
		}
		out = append(out, pair{name: name, value: formatValue(m[k])})
	}
	return out
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
