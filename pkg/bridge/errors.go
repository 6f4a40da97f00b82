package bridge

import (
	"errors"
	"fmt"

	"github.com/morezero/bridgekit/pkg/envelope"
)

// Kind enumerates bridge failures. The numeric value is the wire error code.
type Kind int

const (
	KindIllegalPayloadFormat Kind = iota + 1
	KindMissingField
	KindMissingMessageHandler
	KindInvalidDataForHandler
	KindEncodingError
)

func (k Kind) String() string {
	switch k {
	case KindIllegalPayloadFormat:
		return "IllegalPayloadFormat"
	case KindMissingField:
		return "MissingField"
	case KindMissingMessageHandler:
		return "MissingMessageHandler"
	case KindInvalidDataForHandler:
		return "InvalidDataForHandler"
	case KindEncodingError:
		return "EncodingError"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a structured bridge failure. Which fields are set depends on Kind.
type Error struct {
	Kind         Kind
	Message      string
	Key          string
	Topic        string
	ExpectedType string
}

// Code returns the stable wire code of the error.
func (e *Error) Code() int {
	return int(e.Kind)
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindMissingField:
		return "Missing field: " + e.Key
	case KindMissingMessageHandler:
		return "Missing message handler for topic: " + e.Topic
	case KindInvalidDataForHandler:
		return fmt.Sprintf("Invalid data for topic '%s'. Expected type: '%s'", e.Topic, e.ExpectedType)
	default:
		return e.Message
	}
}

// Is reports a match for any *Error of the same Kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// IllegalPayloadFormat reports a received message that is not a keyed mapping.
func IllegalPayloadFormat(message string) *Error {
	return &Error{Kind: KindIllegalPayloadFormat, Message: message}
}

// MissingField reports a required envelope key that is absent.
func MissingField(key string) *Error {
	return &Error{Kind: KindMissingField, Key: key}
}

// MissingMessageHandler reports a topic with no registered handler.
func MissingMessageHandler(topic string) *Error {
	return &Error{Kind: KindMissingMessageHandler, Topic: topic}
}

// InvalidDataForHandler reports data that does not decode into the handler's type.
func InvalidDataForHandler(topic, expectedType string) *Error {
	return &Error{Kind: KindInvalidDataForHandler, Topic: topic, ExpectedType: expectedType}
}

// EncodingError reports an outbound encoding or transport failure.
func EncodingError(message string) *Error {
	return &Error{Kind: KindEncodingError, Message: message}
}

// ErrorDetail is one entry of an ErrorResponse.
type ErrorDetail struct {
	Message   string `json:"message"`
	ErrorCode int    `json:"errorCode"`
}

// ErrorResponse is the payload posted back to the remote side when an inbound message fails.
type ErrorResponse struct {
	Errors []ErrorDetail `json:"errors"`
}

// NewErrorResponse serializes errs into an ErrorResponse.
func NewErrorResponse(errs ...*Error) ErrorResponse {
	details := make([]ErrorDetail, 0, len(errs))
	for _, err := range errs {
		details = append(details, ErrorDetail{Message: err.Error(), ErrorCode: err.Code()})
	}
	return ErrorResponse{Errors: details}
}

// fromCodecError maps envelope decode failures onto bridge errors.
func fromCodecError(err error) *Error {
	var missing *envelope.MissingFieldError
	switch {
	case errors.As(err, &missing):
		return MissingField(missing.Key)
	case errors.Is(err, envelope.ErrIllegalPayloadFormat):
		return IllegalPayloadFormat(err.Error())
	default:
		return EncodingError(err.Error())
	}
}
