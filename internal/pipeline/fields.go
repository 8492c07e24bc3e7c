package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

var errUnpairedSurrogate = errors.New("string contains an unpaired UTF-16 surrogate escape")

var jsonNull = []byte("null")

// decodeObject decodes raw as a JSON object keyed by exact member names.
// encoding/json matches struct tags case-insensitively, so required fields
// are looked up in the map instead. A JSON null decodes to an empty object.
func decodeObject(raw []byte) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		obj = map[string]json.RawMessage{}
	}
	return obj, nil
}

// member returns the raw value of key, or a *ValidationError naming field
// when the key is absent or null.
func member(obj map[string]json.RawMessage, key, field string) (json.RawMessage, error) {
	raw, ok := obj[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), jsonNull) {
		return nil, &ValidationError{Field: field, Reason: "is required"}
	}
	return raw, nil
}

// stringMember returns the string value of key. Unpaired surrogate escapes
// are rejected rather than replaced with U+FFFD.
func stringMember(obj map[string]json.RawMessage, key, field string) (string, error) {
	raw, err := member(obj, key, field)
	if err != nil {
		return "", err
	}
	if err := checkSurrogates(raw); err != nil {
		return "", &ValidationError{Field: field, Reason: err.Error()}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &ValidationError{Field: field, Reason: "must be a string"}
	}
	return s, nil
}

// checkSurrogates scans the \u escapes of a JSON string literal and fails
// on a high surrogate not followed by a low one, or a lone low surrogate.
// Malformed escapes are left for json.Unmarshal to report.
func checkSurrogates(raw []byte) error {
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' {
			continue
		}
		i++
		if i >= len(raw) || raw[i] != 'u' {
			continue
		}
		r, ok := hex4(raw[i+1:])
		if !ok {
			return nil
		}
		i += 4

		switch {
		case r >= 0xD800 && r < 0xDC00:
			if i+6 < len(raw) && raw[i+1] == '\\' && raw[i+2] == 'u' {
				if lo, ok := hex4(raw[i+3:]); ok && lo >= 0xDC00 && lo < 0xE000 {
					i += 6
					continue
				}
			}
			return errUnpairedSurrogate
		case r >= 0xDC00 && r < 0xE000:
			return errUnpairedSurrogate
		}
	}
	return nil
}

func hex4(b []byte) (uint64, bool) {
	if len(b) < 4 {
		return 0, false
	}
	r, err := strconv.ParseUint(string(b[:4]), 16, 32)
	if err != nil {
		return 0, false
	}
	return r, true
}
