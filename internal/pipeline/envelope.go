package pipeline

import (
	"errors"
	"unicode/utf8"

	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/types"
)

var errBodyNotUTF8 = errors.New("request body is not valid UTF-8")

// ParseEnvelope unmarshals a push request body into an Envelope.
// It returns a *DecodeError of KindMalformedEnvelope when the body is not
// a UTF-8 JSON object or a required field is missing or not a string.
// Field names must match exactly; "Message" does not satisfy "message".
func ParseEnvelope(body []byte) (*types.Envelope, error) {
	if !utf8.Valid(body) {
		return nil, malformedEnvelope(errBodyNotUTF8)
	}

	outer, err := decodeObject(body)
	if err != nil {
		return nil, malformedEnvelope(err)
	}

	rawMessage, err := member(outer, "message", "message")
	if err != nil {
		return nil, malformedEnvelope(err)
	}
	message, err := decodeObject(rawMessage)
	if err != nil {
		return nil, malformedEnvelope(err)
	}

	var env types.Envelope
	if env.Message.Data, err = stringMember(message, "data", "message.data"); err != nil {
		return nil, malformedEnvelope(err)
	}
	if env.Message.MessageID, err = stringMember(message, "messageId", "message.messageId"); err != nil {
		return nil, malformedEnvelope(err)
	}
	if env.Message.PublishTime, err = stringMember(message, "publishTime", "message.publishTime"); err != nil {
		return nil, malformedEnvelope(err)
	}
	if env.Subscription, err = stringMember(outer, "subscription", "subscription"); err != nil {
		return nil, malformedEnvelope(err)
	}
	return &env, nil
}

func malformedEnvelope(err error) error {
	return &DecodeError{Kind: KindMalformedEnvelope, Stage: StageEnvelope, Err: err}
}
