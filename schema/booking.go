package schema

import "time"

// PendingBooking is the marker for a booking awaiting payment completion.
type PendingBooking struct {
	BookingID BookingID `json:"booking_id"`
	CreatedAt time.Time `json:"created_at"`
}

// CreatedAtEpochMillis returns the creation time in epoch milliseconds.
func (p PendingBooking) CreatedAtEpochMillis() int64 {
	return p.CreatedAt.UnixMilli()
}

// Elapsed returns how long the booking has been pending at now.
// A creation time in the future yields a negative duration.
func (p PendingBooking) Elapsed(now time.Time) time.Duration {
	return now.Sub(p.CreatedAt)
}

// PendingBookingFromMillis builds a marker from its persisted form.
func PendingBookingFromMillis(id BookingID, createdAtMillis int64) PendingBooking {
	return PendingBooking{BookingID: id, CreatedAt: time.UnixMilli(createdAtMillis)}
}
