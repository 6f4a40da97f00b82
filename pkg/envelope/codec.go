// Package envelope implements the canonical {topic, data} wire form exchanged
// between the host and the remote context.
package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"unicode/utf8"
)

// Wire keys of an envelope.
const (
	KeyTopic = "topic"
	KeyData  = "data"
)

var (
	// ErrIllegalPayloadFormat is returned by Decode when the raw value is not a keyed mapping.
	ErrIllegalPayloadFormat = errors.New("Payload is not a dictionary")
	// ErrEncoding is wrapped by every encoding failure of Encode and Canonicalize.
	ErrEncoding = errors.New("envelope encoding failed")
)

// MissingFieldError reports a required envelope key that is absent or has the wrong type.
type MissingFieldError struct {
	Key string
}

func (e *MissingFieldError) Error() string {
	return "Missing field: " + e.Key
}

// Envelope is one topic-addressed message.
type Envelope struct {
	Topic string `json:"topic"`
	Data  any    `json:"data"`
}

// Encode renders topic and payload as {"data":<payload>,"topic":"<topic>"}.
// Object keys are sorted at every depth, so equal content always yields equal bytes.
func Encode(topic string, payload any) (string, error) {
	data, err := Canonicalize(payload)
	if err != nil {
		return "", err
	}
	b, err := marshal(map[string]any{KeyTopic: topic, KeyData: data})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: could not convert data to UTF-8 string", ErrEncoding)
	}
	return string(b), nil
}

// Canonicalize converts payload into its generic JSON value: maps, slices,
// strings, bools, json.Number and nil. Re-marshalling the result sorts keys.
func Canonicalize(payload any) (any, error) {
	b, err := marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	v, err := unmarshalGeneric(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return v, nil
}

// Decode extracts an Envelope from a raw received value. raw must already be a
// parsed mapping; JSON text is a non-mapping value like any other string.
func Decode(raw any) (*Envelope, error) {
	m, ok := AsMapping(raw)
	if !ok {
		return nil, ErrIllegalPayloadFormat
	}
	topic, ok := m[KeyTopic].(string)
	if !ok {
		return nil, &MissingFieldError{Key: KeyTopic}
	}
	data, ok := m[KeyData]
	if !ok {
		return nil, &MissingFieldError{Key: KeyData}
	}
	return &Envelope{Topic: topic, Data: data}, nil
}

// AsMapping returns raw as a string-keyed map when it is one.
func AsMapping(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return v, true
	}

	rv := reflect.ValueOf(raw)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Parse decodes JSON text into its generic value, keeping numbers as
// json.Number so large integers survive. Transport collaborators use it to hand
// Decode a parsed value.
func Parse(b []byte) (any, error) {
	return unmarshalGeneric(b)
}

func unmarshalGeneric(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}
