package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"pkt.systems/wayfare/schema"
)

// CancelOutcome reports how a cancellation settled.
type CancelOutcome string

const (
	// CancelOutcomeCancelled means the API accepted the cancellation.
	CancelOutcomeCancelled CancelOutcome = "cancelled"
	// CancelOutcomeAlreadyResolved means the booking was already confirmed,
	// cancelled, or expired.
	CancelOutcomeAlreadyResolved CancelOutcome = "already_resolved"
)

// CancelBooking cancels a booking with reason. It tries the cancel action
// first and falls back to deleting the booking when the API does not route
// the action.
func (c *Client) CancelBooking(ctx context.Context, id schema.BookingID, reason string) (CancelOutcome, error) {
	id, err := schema.NormalizeBookingID(string(id))
	if err != nil {
		return "", err
	}
	segment := url.PathEscape(string(id))
	body := map[string]string{"reason": reason}
	err = c.do(ctx, http.MethodPatch, "/bookings/{id}/cancel", "/bookings/"+segment+"/cancel", body, nil, true)
	if err == nil {
		return CancelOutcomeCancelled, nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && (httpErr.Status == http.StatusNotFound || httpErr.Status == http.StatusMethodNotAllowed) {
		if c.log != nil {
			c.log.Debug("booking cancel action unavailable; deleting", "booking", id, "status", httpErr.Status)
		}
		err = c.do(ctx, http.MethodDelete, "/bookings/{id}", "/bookings/"+segment, nil, nil, true)
		if err == nil {
			return CancelOutcomeCancelled, nil
		}
	}
	if errors.Is(err, schema.ErrBookingTerminal) {
		return CancelOutcomeAlreadyResolved, nil
	}
	return "", err
}
