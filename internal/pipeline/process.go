package pipeline

import "github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/types"

// Result is the outcome of a successful decode.
type Result struct {
	Envelope     *types.Envelope
	Notification *types.Notification
}

// Decoder runs the full pipeline over a push request body.
// The zero value is ready to use and accepts blank notification fields.
type Decoder struct {
	// RequireNonEmpty rejects notifications with a blank email_address or history_id.
	RequireNonEmpty bool
}

// Decode parses the envelope, decodes its data and optionally validates
// the notification. It never returns a partial Result.
func (d Decoder) Decode(body []byte) (*Result, error) {
	env, err := ParseEnvelope(body)
	if err != nil {
		return nil, err
	}

	n, err := DecodeNotification(env.Message.Data)
	if err != nil {
		return nil, err
	}

	if d.RequireNonEmpty {
		if err := Validate(n); err != nil {
			return nil, err
		}
	}

	return &Result{Envelope: env, Notification: n}, nil
}
