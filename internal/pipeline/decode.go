package pipeline

import (
	"encoding/base64"
	"encoding/json"
	"unicode/utf8"

	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/types"
)

// dataEncoding is the standard padded alphabet. Strict mode rejects
// non-zero trailing bits so that every payload has one canonical encoding.
var dataEncoding = base64.StdEncoding.Strict()

// DecodeNotification turns message.data into a Notification.
// Stages run in order and the first failure is returned:
//   - base64 decode (KindInvalidEncoding)
//   - UTF-8 check (KindInvalidEncoding)
//   - JSON decode of the notification (KindInvalidNotificationPayload)
func DecodeNotification(data string) (*types.Notification, error) {
	raw, err := dataEncoding.DecodeString(data)
	if err != nil {
		return nil, &DecodeError{Kind: KindInvalidEncoding, Stage: StageBase64, Err: err}
	}

	if !utf8.Valid(raw) {
		return nil, &DecodeError{Kind: KindInvalidEncoding, Stage: StageUTF8, Err: errInvalidUTF8}
	}

	n, err := UnmarshalNotification(raw)
	if err != nil {
		return nil, invalidPayload(err)
	}
	return n, nil
}

// UnmarshalNotification parses the notification JSON object. Both fields
// must be present under their exact names and hold strings; the error is a
// *ValidationError for a missing or mistyped field.
func UnmarshalNotification(raw []byte) (*types.Notification, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	var n types.Notification
	if n.EmailAddress, err = stringMember(obj, "email_address", "email_address"); err != nil {
		return nil, err
	}
	if n.HistoryID, err = stringMember(obj, "history_id", "history_id"); err != nil {
		return nil, err
	}
	return &n, nil
}

// EncodeNotification is the inverse of DecodeNotification: JSON, then
// standard base64. It is used by the load producer and by tests.
func EncodeNotification(n types.Notification) (string, error) {
	b, err := json.Marshal(n)
	if err != nil {
		return "", err
	}
	return dataEncoding.EncodeToString(b), nil
}

func invalidPayload(err error) error {
	return &DecodeError{Kind: KindInvalidNotificationPayload, Stage: StagePayload, Err: err}
}
