package transport

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var bareNumeric = regexp.MustCompile(`^\d+$`)

// Error is the normalized shape every failed request resolves to before it is
// shown, logged, or returned to a caller.
type Error struct {
	Message   string `json:"message"`
	Traceback string `json:"traceback"`
	Status    int    `json:"status"`
	Code      string `json:"code"`
}

func (e *Error) Error() string {
	return e.Message
}

// IsNotFound reports whether the error is an HTTP 404. Callers treat 404 as
// "no longer exists" rather than a failure.
func (e *Error) IsNotFound() bool {
	return e.Status == 404
}

// errorBody is the JSON shape the backend uses for failure responses.
type errorBody struct {
	Message   string `json:"message"`
	Err       string `json:"error"`
	Traceback string `json:"traceback"`
}

// Normalize builds an Error from whatever the backend handed us. The message
// is guaranteed non-empty and never a bare numeric string; the backend is
// known to sometimes emit status-code-like bodies, which get rewritten to a
// sentence that keeps the code.
func Normalize(message, traceback string, status int, context string) *Error {
	message = strings.TrimSpace(message)
	if message == "" {
		if status > 0 {
			message = fmt.Sprintf("HTTP error %d", status)
		} else {
			message = "Unknown error"
		}
	}
	message = NormalizeMessage(message, context)

	code := "UNKNOWN"
	if status > 0 {
		code = fmt.Sprintf("HTTP_%d", status)
	}
	return &Error{
		Message:   message,
		Traceback: strings.TrimSpace(traceback),
		Status:    status,
		Code:      code,
	}
}

// NormalizeMessage rewrites bare numeric messages into a readable sentence.
// Shared with the overlay channel, which applies the same defense to error
// payloads that bypass the transport.
func NormalizeMessage(message, context string) string {
	trimmed := strings.TrimSpace(message)
	if !bareNumeric.MatchString(trimmed) {
		return trimmed
	}
	if context != "" {
		return fmt.Sprintf("Unexpected error (code %s) during %s", trimmed, context)
	}
	return fmt.Sprintf("Unexpected error (code %s)", trimmed)
}

// normalizeBody extracts {message, traceback} from a failure response body.
// JSON bodies are preferred, raw text is the fallback.
func normalizeBody(body []byte, status int, context string) *Error {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		msg := parsed.Message
		if msg == "" {
			msg = parsed.Err
		}
		if msg != "" || parsed.Traceback != "" {
			return Normalize(msg, parsed.Traceback, status, context)
		}
	}
	return Normalize(string(body), "", status, context)
}
