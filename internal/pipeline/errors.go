// Package pipeline implements push message stages: parse envelope -> decode notification -> validate.
package pipeline

import "errors"

// Kind classifies a pipeline failure.
type Kind int

const (
	// KindMalformedEnvelope means the request body is not a well-formed push envelope.
	KindMalformedEnvelope Kind = iota + 1
	// KindInvalidEncoding means message.data is not base64 or does not decode to UTF-8.
	KindInvalidEncoding
	// KindInvalidNotificationPayload means the decoded text is not a valid notification.
	KindInvalidNotificationPayload
)

// Kinds lists every failure kind in declaration order.
var Kinds = []Kind{
	KindMalformedEnvelope,
	KindInvalidEncoding,
	KindInvalidNotificationPayload,
}

func (k Kind) String() string {
	switch k {
	case KindMalformedEnvelope:
		return "malformed_envelope"
	case KindInvalidEncoding:
		return "invalid_encoding"
	case KindInvalidNotificationPayload:
		return "invalid_notification_payload"
	default:
		return "unknown"
	}
}

// Stage names, used for logging.
const (
	StageReadBody = "read_body"
	StageEnvelope = "envelope"
	StageBase64   = "base64"
	StageUTF8     = "utf8"
	StagePayload  = "payload"
	StageValidate = "validate"
)

var errInvalidUTF8 = errors.New("decoded data is not valid UTF-8")

// DecodeError represents a failure in one of the pipeline stages.
// It wraps the underlying decoder/unmarshal error.
type DecodeError struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "decode failed"
	}
	msg := "decode failed: " + e.Kind.String()
	if e.Stage != "" {
		msg += ": " + e.Stage
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
// This is useful for error chaining and propagation.
func (e *DecodeError) Unwrap() error { return e.Err }

// KindOf reports the failure kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return 0, false
}

// NewReadError wraps a failure to read the request body.
// An unreadable body is treated as a malformed envelope.
func NewReadError(err error) error {
	return &DecodeError{Kind: KindMalformedEnvelope, Stage: StageReadBody, Err: err}
}

// ValidationError represents a missing or invalid field.
// Field is the name of the invalid field; Reason describes why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	errMsg := "validation failed"
	if e != nil && e.Field != "" {
		errMsg += ": " + e.Field
	}
	if e != nil && e.Reason != "" {
		errMsg += ": " + e.Reason
	}
	return errMsg
}
