package pipeline

import (
	"strings"

	"github.com/Sheliakhin-Golang-portfolio/gmail-push-webhook/internal/types"
)

// Validate checks that the decoded notification fields are not blank.
// It returns a *DecodeError of KindInvalidNotificationPayload wrapping a
// *ValidationError for the first blank field.
func Validate(n *types.Notification) error {
	if n == nil {
		return invalidField("notification", "is nil")
	}

	if strings.TrimSpace(n.EmailAddress) == "" {
		return invalidField("email_address", "is empty")
	}
	if strings.TrimSpace(n.HistoryID) == "" {
		return invalidField("history_id", "is empty")
	}

	return nil
}

// BlankFields returns the names of notification fields that are blank.
// Callers running in permissive mode use it to flag suspicious notifications.
func BlankFields(n *types.Notification) []string {
	if n == nil {
		return nil
	}
	var fields []string
	if strings.TrimSpace(n.EmailAddress) == "" {
		fields = append(fields, "email_address")
	}
	if strings.TrimSpace(n.HistoryID) == "" {
		fields = append(fields, "history_id")
	}
	return fields
}

func invalidField(field, reason string) error {
	return &DecodeError{
		Kind:  KindInvalidNotificationPayload,
		Stage: StageValidate,
		Err:   &ValidationError{Field: field, Reason: reason},
	}
}
