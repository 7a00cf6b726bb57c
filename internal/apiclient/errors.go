package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"pkt.systems/wayfare/schema"
)

// HTTPError is a non-2xx API response.
type HTTPError struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

// Is maps response statuses onto the schema sentinels.
func (e *HTTPError) Is(target error) bool {
	switch target {
	case schema.ErrUnauthenticated:
		return e.Status == http.StatusUnauthorized
	case schema.ErrForbidden:
		return e.Status == http.StatusForbidden
	case schema.ErrBookingNotFound:
		return e.Status == http.StatusNotFound && strings.HasPrefix(e.Path, "/bookings/")
	case schema.ErrBookingTerminal:
		return e.Status == http.StatusConflict || e.Status == http.StatusGone || terminalMessage(e.Message)
	case schema.ErrInvalidRequest:
		return e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity
	}
	return false
}

var terminalPhrases = []string{
	"already cancel",
	"already confirm",
	"already expired",
	"already resolved",
	"already paid",
	"not pending",
}

func terminalMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, phrase := range terminalPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

const maxMessageBytes = 200

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// errorMessage extracts a readable message from an error body. The API
// answers {"message": "..."} or {"message": ["...", "..."]} and sometimes
// {"error": "..."}.
func errorMessage(body []byte) string {
	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return truncate(strings.TrimSpace(string(body)), maxMessageBytes)
	}
	if len(payload.Message) > 0 {
		var single string
		if err := json.Unmarshal(payload.Message, &single); err == nil && single != "" {
			return single
		}
		var many []string
		if err := json.Unmarshal(payload.Message, &many); err == nil && len(many) > 0 {
			return strings.Join(many, "; ")
		}
	}
	return payload.Error
}
