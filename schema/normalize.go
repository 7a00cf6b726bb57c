package schema

import (
	"strings"
	"unicode"
)

// ParseNavigationTarget validates a target name.
func ParseNavigationTarget(value string) (NavigationTarget, error) {
	trimmed := NavigationTarget(strings.ToLower(strings.TrimSpace(value)))
	for _, target := range NavigationTargets() {
		if trimmed == target {
			return target, nil
		}
	}
	return "", ErrInvalidTarget
}

// NormalizeBookingID validates a booking identifier. Ids are opaque:
// surrounding space is trimmed, and only empty ids and ids carrying control
// characters are rejected. Callers escape the id when it goes into a URL.
func NormalizeBookingID(value string) (BookingID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", ErrInvalidBooking
	}
	if strings.IndexFunc(trimmed, unicode.IsControl) >= 0 {
		return "", ErrInvalidBooking
	}
	return BookingID(trimmed), nil
}
