package pipeline

import (
	"encoding/base64"
	"errors"
	"testing"
)

const sampleData = "eyJlbWFpbF9hZGRyZXNzIjoidXNlckBleGFtcGxlLmNvbSIsImhpc3RvcnlfaWQiOiIxMjM0NTYifQ=="

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func TestDecodeNotification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		data        string
		wantEmail   string
		wantHistory string
		wantKind    Kind
		wantStage   string
		wantAsVal   bool
	}{
		{
			name:        "sample_payload",
			data:        sampleData,
			wantEmail:   "user@example.com",
			wantHistory: "123456",
		},
		{
			name:        "extra_fields_are_ignored",
			data:        b64(`{"email_address":"a@b.com","history_id":"9","extra":true}`),
			wantEmail:   "a@b.com",
			wantHistory: "9",
		},
		{
			name:        "empty_fields_are_accepted",
			data:        b64(`{"email_address":"","history_id":""}`),
			wantEmail:   "",
			wantHistory: "",
		},
		{
			name:        "large_history_id_stays_exact",
			data:        b64(`{"email_address":"a@b.com","history_id":"18446744073709551617"}`),
			wantEmail:   "a@b.com",
			wantHistory: "18446744073709551617",
		},
		{
			name:      "invalid_base64",
			data:      "not-valid-base64!!",
			wantKind:  KindInvalidEncoding,
			wantStage: StageBase64,
		},
		{
			name:      "missing_padding",
			data:      "eyJhIjoxfQ",
			wantKind:  KindInvalidEncoding,
			wantStage: StageBase64,
		},
		{
			name:      "url_safe_alphabet_rejected",
			data:      "__4=",
			wantKind:  KindInvalidEncoding,
			wantStage: StageBase64,
		},
		{
			name:      "non_utf8_bytes",
			data:      base64.StdEncoding.EncodeToString([]byte{0xFF, 0xFE}),
			wantKind:  KindInvalidEncoding,
			wantStage: StageUTF8,
		},
		{
			name:      "not_json",
			data:      b64("not json"),
			wantKind:  KindInvalidNotificationPayload,
			wantStage: StagePayload,
		},
		{
			name:      "empty_data",
			data:      "",
			wantKind:  KindInvalidNotificationPayload,
			wantStage: StagePayload,
		},
		{
			name:      "missing_history_id",
			data:      b64(`{"email_address": "a@b.com"}`),
			wantKind:  KindInvalidNotificationPayload,
			wantStage: StagePayload,
			wantAsVal: true,
		},
		{
			name:      "missing_email_address",
			data:      b64(`{"history_id": "1"}`),
			wantKind:  KindInvalidNotificationPayload,
			wantStage: StagePayload,
			wantAsVal: true,
		},
		{
			name:      "null_email_address",
			data:      b64(`{"email_address": null, "history_id": "1"}`),
			wantKind:  KindInvalidNotificationPayload,
			wantStage: StagePayload,
			wantAsVal: true,
		},
		{
			name:      "numeric_history_id",
			data:      b64(`{"email_address":"a@b.com","history_id":123}`),
			wantKind:  KindInvalidNotificationPayload,
			wantStage: StagePayload,
		},
		{
			name:      "array_payload",
			data:      b64(`[]`),
			wantKind:  KindInvalidNotificationPayload,
			wantStage: StagePayload,
		},
		{
			name:      "email_address_wrong_case",
			data:      b64(`{"EMAIL_ADDRESS":"a@b.com","history_id":"1"}`),
			wantKind:  KindInvalidNotificationPayload,
			wantStage: StagePayload,
			wantAsVal: true,
		},
		{
			name:      "history_id_wrong_case",
			data:      b64(`{"email_address":"a@b.com","History_Id":"1"}`),
			wantKind:  KindInvalidNotificationPayload,
			wantStage: StagePayload,
			wantAsVal: true,
		},
		{
			name:      "lone_high_surrogate_escape",
			data:      b64(`{"email_address":"a\ud800","history_id":"1"}`),
			wantKind:  KindInvalidNotificationPayload,
			wantStage: StagePayload,
			wantAsVal: true,
		},
		{
			name:      "lone_low_surrogate_escape",
			data:      b64(`{"email_address":"a@b.com","history_id":"\udc00"}`),
			wantKind:  KindInvalidNotificationPayload,
			wantStage: StagePayload,
			wantAsVal: true,
		},
		{
			name:        "escaped_surrogate_pair_accepted",
			data:        b64(`{"email_address":"\ud83d\ude00@b.com","history_id":"1"}`),
			wantEmail:   "\U0001F600@b.com",
			wantHistory: "1",
		},
		{
			name:        "escaped_backslash_before_u_accepted",
			data:        b64(`{"email_address":"a\\ud800","history_id":"1"}`),
			wantEmail:   `a\ud800`,
			wantHistory: "1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := DecodeNotification(tt.data)
			if tt.wantKind != 0 {
				if err == nil {
					t.Fatalf("expected error, got nil (notification=%+v)", got)
				}
				if got != nil {
					t.Fatalf("expected nil notification on error, got %+v", got)
				}
				var de *DecodeError
				if !errors.As(err, &de) {
					t.Fatalf("expected error to be *DecodeError, got %T (%v)", err, err)
				}
				if de.Kind != tt.wantKind {
					t.Fatalf("expected kind %v, got %v", tt.wantKind, de.Kind)
				}
				if de.Stage != tt.wantStage {
					t.Fatalf("expected stage %q, got %q", tt.wantStage, de.Stage)
				}
				if tt.wantAsVal {
					var ve *ValidationError
					if !errors.As(err, &ve) {
						t.Fatalf("expected error to wrap *ValidationError, got %v", err)
					}
				}
				return
			}

			if err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
			if got.EmailAddress != tt.wantEmail {
				t.Fatalf("expected EmailAddress=%q, got %q", tt.wantEmail, got.EmailAddress)
			}
			if got.HistoryID != tt.wantHistory {
				t.Fatalf("expected HistoryID=%q, got %q", tt.wantHistory, got.HistoryID)
			}
		})
	}
}

func TestEncodeNotification_MatchesSample(t *testing.T) {
	t.Parallel()

	got, err := DecodeNotification(sampleData)
	if err != nil {
		t.Fatalf("decode sample: %v", err)
	}
	enc, err := EncodeNotification(*got)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if enc != sampleData {
		t.Fatalf("expected %q, got %q", sampleData, enc)
	}
}

func TestUnmarshalNotification_ExactKeys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		raw       string
		wantField string
	}{
		{name: "empty_object", raw: `{}`, wantField: "email_address"},
		{name: "unrelated_object", raw: `{"foo":1}`, wantField: "email_address"},
		{name: "camel_case_keys", raw: `{"emailAddress":"a@b.com","historyId":"1"}`, wantField: "email_address"},
		{name: "numeric_history_id", raw: `{"email_address":"a@b.com","history_id":1}`, wantField: "history_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			n, err := UnmarshalNotification([]byte(tt.raw))
			if err == nil {
				t.Fatalf("expected error, got %+v", n)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %T (%v)", err, err)
			}
			if ve.Field != tt.wantField {
				t.Fatalf("expected field %q, got %q", tt.wantField, ve.Field)
			}
		})
	}
}
