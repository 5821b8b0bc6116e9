package serialize

import (
	"go.temporal.io/sdk/converter"
)

// NewDataConverter returns the payload converter registered with the
// durable scheduler. Every argument, return value, and error crossing
// the worker boundary goes through JSON encoding (carrying
// SerializedError's __type tag through history) while still falling
// back to Temporal's own nil/binary/proto converters for
// scheduler-reserved encodings.
func NewDataConverter() converter.DataConverter {
	return converter.NewCompositeDataConverter(
		converter.NewNilPayloadConverter(),
		converter.NewByteSlicePayloadConverter(),
		converter.NewProtoJSONPayloadConverter(),
		converter.NewJSONPayloadConverter(),
	)
}
