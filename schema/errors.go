package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnauthenticated indicates missing or rejected credentials.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates the credentials lack access.
	ErrForbidden = errors.New("forbidden")
	// ErrBookingNotFound indicates the booking does not exist.
	ErrBookingNotFound = errors.New("booking not found")
	// ErrBookingTerminal indicates the booking is already confirmed, cancelled, or expired.
	ErrBookingTerminal = errors.New("booking already resolved")
	// ErrInvalidBooking indicates an invalid booking identifier.
	ErrInvalidBooking = errors.New("invalid booking id")
	// ErrInvalidMarker indicates the persisted pending booking marker is unreadable.
	ErrInvalidMarker = errors.New("invalid pending booking marker")
	// ErrNoCredentials indicates no stored API token was found.
	ErrNoCredentials = errors.New("no stored credentials")
	// ErrInvalidTarget indicates an unknown navigation target.
	ErrInvalidTarget = errors.New("invalid navigation target")
)
