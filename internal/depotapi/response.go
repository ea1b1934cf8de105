package depotapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// Decode attempts to parse body as JSON and returns the decoded value. When
// the body is not valid JSON the raw text is returned as a string instead;
// a best-effort decode never fails. Payloads that are not valid UTF-8 are
// returned as raw bytes.
func Decode(body []byte) any {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}

	var payload any
	if err := json.Unmarshal(trimmed, &payload); err == nil {
		return payload
	}
	if utf8.Valid(body) {
		return string(body)
	}
	return append([]byte(nil), body...)
}

// DecodeInto strictly decodes body into out, failing on malformed JSON.
// Used where a specific response shape is required, e.g. the login handshake.
func DecodeInto(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		trimmed = []byte("null")
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("depotapi: decode response: %w", err)
	}
	return nil
}
