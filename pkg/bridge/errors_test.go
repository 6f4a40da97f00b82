package bridge

import (
	"encoding/json"
	"errors"
	"testing"
)

const errorsTestPrefix = "bridge:errors_test"

func TestError_CodesAndMessages(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		code     int
		kind     string
		wantText string
	}{
		{"illegal payload", IllegalPayloadFormat("Payload is not a dictionary"), 1, "IllegalPayloadFormat", "Payload is not a dictionary"},
		{"missing field", MissingField("topic"), 2, "MissingField", "Missing field: topic"},
		{"missing handler", MissingMessageHandler("nope"), 3, "MissingMessageHandler", "Missing message handler for topic: nope"},
		{"invalid data", InvalidDataForHandler("t", "Counter"), 4, "InvalidDataForHandler", "Invalid data for topic 't'. Expected type: 'Counter'"},
		{"encoding", EncodingError("json: unsupported type: chan int"), 5, "EncodingError", "json: unsupported type: chan int"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code() != tt.code {
				t.Errorf("%s - Code() = %d, want %d", errorsTestPrefix, tt.err.Code(), tt.code)
			}
			if tt.err.Kind.String() != tt.kind {
				t.Errorf("%s - Kind = %s, want %s", errorsTestPrefix, tt.err.Kind, tt.kind)
			}
			if tt.err.Error() != tt.wantText {
				t.Errorf("%s - Error() = %q, want %q", errorsTestPrefix, tt.err.Error(), tt.wantText)
			}
		})
	}
}

func TestError_Is(t *testing.T) {
	var err error = MissingMessageHandler("x")
	if !errors.Is(err, &Error{Kind: KindMissingMessageHandler}) {
		t.Errorf("%s - expected errors.Is to match on kind", errorsTestPrefix)
	}
	if errors.Is(err, &Error{Kind: KindMissingField}) {
		t.Errorf("%s - expected errors.Is not to match a different kind", errorsTestPrefix)
	}
}

func TestKind_StringUnknown(t *testing.T) {
	if got := Kind(42).String(); got != "Kind(42)" {
		t.Errorf("%s - String() = %q", errorsTestPrefix, got)
	}
}

func TestNewErrorResponse_WireForm(t *testing.T) {
	resp := NewErrorResponse(MissingField("data"), MissingMessageHandler("t"))
	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("%s - marshal failed: %v", errorsTestPrefix, err)
	}
	want := `{"errors":[{"message":"Missing field: data","errorCode":2},{"message":"Missing message handler for topic: t","errorCode":3}]}`
	if string(b) != want {
		t.Errorf("%s - wire form = %s, want %s", errorsTestPrefix, b, want)
	}
}
