// Package serialize converts values crossing the durable-scheduler
// boundary to and from a JSON-compatible wire form: plain values pass
// through JSON untouched, time values encode as RFC3339 strings, a
// top-level nil becomes a distinguished marker, and errors round-trip
// through model.SerializedError. It is deliberately small; most values
// crossing the boundary are already JSON-shaped structs, and
// encoding/json handles those without help. This package exists for the
// cases stdlib json does not cover on its own: the unit marker for a
// top-level nil, and normalizing arbitrary errors into
// model.SerializedError.
package serialize

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mfateev/n8n-sub001/internal/model"
)

// unitMarker is the distinguished top-level encoding of an absent
// value. It round-trips through IsUnit.
type unitMarker struct {
	Unit bool `json:"__n8nUnit"`
}

// Unit is the canonical encoded form of a top-level undefined value.
var Unit = unitMarker{Unit: true}

// IsUnit reports whether a decoded value is the unit marker.
func IsUnit(raw json.RawMessage) bool {
	var u unitMarker
	if err := json.Unmarshal(raw, &u); err != nil {
		return false
	}
	return u.Unit
}

// Encode converts a value to its JSON-encodable wire form. Primitives,
// plain structs, maps and slices pass through encoding/json directly;
// time.Time values already marshal to RFC3339 via their MarshalJSON, so
// no special casing is required there. A nil interface at the top level
// encodes as Unit.
func Encode(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return json.Marshal(Unit)
	}
	return json.Marshal(v)
}

// Decode unmarshals a wire value into dst. Decoding a Unit-marker raw
// message is a no-op: dst keeps whatever value it already held.
func Decode(raw json.RawMessage, dst interface{}) error {
	if IsUnit(raw) {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// EncodeError normalizes an arbitrary Go error into a model.SerializedError,
// preserving subtype fidelity when the error already is one.
func EncodeError(err error) *model.SerializedError {
	if err == nil {
		return nil
	}
	var se *model.SerializedError
	if errors.As(err, &se) {
		if se.Timestamp == 0 {
			se.Timestamp = time.Now().UnixMilli()
		}
		return se
	}
	return &model.SerializedError{
		Type:      model.ErrorKindGeneric,
		Name:      fmt.Sprintf("%T", err),
		Message:   err.Error(),
		Timestamp: time.Now().UnixMilli(),
	}
}

// DecodeError is the inverse of EncodeError's JSON round trip: it parses
// a wire-encoded SerializedError back into its typed Go form, preserving
// the __type tag.
func DecodeError(raw json.RawMessage) (*model.SerializedError, error) {
	var se model.SerializedError
	if err := json.Unmarshal(raw, &se); err != nil {
		return nil, fmt.Errorf("serialize: decode error: %w", err)
	}
	if se.Type == "" {
		se.Type = model.ErrorKindGeneric
	}
	return &se, nil
}
