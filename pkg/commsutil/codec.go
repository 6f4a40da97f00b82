package commsutil

import (
	"bytes"
	"encoding/json"

	"github.com/morezero/bridgekit/pkg/envelope"
)

// EncodePayload serializes a value to JSON bytes.
func EncodePayload(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// DecodePayload deserializes JSON bytes into the given target.
func DecodePayload(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// DecodeMessage turns a message body received from the remote side into the
// generic value handed to the bridge intake. Numbers stay json.Number so
// integers beyond float64 precision reach handlers intact. Bodies that are not
// JSON are passed through as a plain string so the router can reject them.
func DecodeMessage(data []byte) any {
	v, err := envelope.Parse(data)
	if err != nil {
		return string(data)
	}
	return v
}

// DecodeResult interprets an evaluation reply body: empty means no result,
// JSON is decoded, anything else is returned as text.
func DecodeResult(data []byte) any {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return string(data)
	}
	return v
}
