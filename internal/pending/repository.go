// Package pending stores the pending booking marker in local storage.
package pending

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pkt.systems/wayfare/internal/kvstore"
	"pkt.systems/wayfare/schema"
)

const (
	// DefaultBookingIDKey holds the pending booking id.
	DefaultBookingIDKey = "pendingBookingId"
	// DefaultCreatedAtKey holds the creation time in epoch milliseconds.
	DefaultCreatedAtKey = "pendingBookingCreatedAt"
)

// Keys names the two storage keys of the marker.
type Keys struct {
	BookingID string
	CreatedAt string
}

// DefaultKeys returns the standard key names.
func DefaultKeys() Keys {
	return Keys{BookingID: DefaultBookingIDKey, CreatedAt: DefaultCreatedAtKey}
}

// Repository reads and writes the marker.
type Repository struct {
	store kvstore.Store
	keys  Keys
}

// NewRepository builds a repository over store. Empty key names fall back
// to the defaults.
func NewRepository(store kvstore.Store, keys Keys) (*Repository, error) {
	if store == nil {
		return nil, errors.New("pending booking store is required")
	}
	defaults := DefaultKeys()
	if strings.TrimSpace(keys.BookingID) == "" {
		keys.BookingID = defaults.BookingID
	}
	if strings.TrimSpace(keys.CreatedAt) == "" {
		keys.CreatedAt = defaults.CreatedAt
	}
	if keys.BookingID == keys.CreatedAt {
		return nil, errors.New("pending booking keys must differ")
	}
	return &Repository{store: store, keys: keys}, nil
}

// Keys returns the key names in use.
func (r *Repository) Keys() Keys {
	return r.keys
}

// Get returns the marker. ok is false when no marker is stored. A partial
// or unparsable marker returns schema.ErrInvalidMarker.
func (r *Repository) Get(ctx context.Context) (schema.PendingBooking, bool, error) {
	rawID, hasID, err := r.store.Get(ctx, r.keys.BookingID)
	if err != nil {
		return schema.PendingBooking{}, false, err
	}
	rawCreated, hasCreated, err := r.store.Get(ctx, r.keys.CreatedAt)
	if err != nil {
		return schema.PendingBooking{}, false, err
	}
	if !hasID && !hasCreated {
		return schema.PendingBooking{}, false, nil
	}
	if !hasID || !hasCreated {
		return schema.PendingBooking{}, false, fmt.Errorf("%w: incomplete marker", schema.ErrInvalidMarker)
	}
	id, err := schema.NormalizeBookingID(rawID)
	if err != nil {
		return schema.PendingBooking{}, false, fmt.Errorf("%w: %v", schema.ErrInvalidMarker, err)
	}
	millis, err := strconv.ParseInt(strings.TrimSpace(rawCreated), 10, 64)
	if err != nil {
		return schema.PendingBooking{}, false, fmt.Errorf("%w: created at %q", schema.ErrInvalidMarker, rawCreated)
	}
	// Arm never writes epoch zero or earlier; such values are corrupt.
	if millis <= 0 {
		return schema.PendingBooking{}, false, fmt.Errorf("%w: created at %d", schema.ErrInvalidMarker, millis)
	}
	return schema.PendingBookingFromMillis(id, millis), true, nil
}

// Set writes the marker.
func (r *Repository) Set(ctx context.Context, marker schema.PendingBooking) error {
	id, err := schema.NormalizeBookingID(string(marker.BookingID))
	if err != nil {
		return err
	}
	if marker.CreatedAt.IsZero() {
		return fmt.Errorf("%w: created at is required", schema.ErrInvalidRequest)
	}
	// Timestamp first: a reader that sees the id always sees a timestamp.
	if err := r.store.Set(ctx, r.keys.CreatedAt, strconv.FormatInt(marker.CreatedAtEpochMillis(), 10)); err != nil {
		return err
	}
	return r.store.Set(ctx, r.keys.BookingID, string(id))
}

// Arm records bookingID as pending since now.
func (r *Repository) Arm(ctx context.Context, bookingID schema.BookingID, now time.Time) (schema.PendingBooking, error) {
	marker := schema.PendingBooking{BookingID: bookingID, CreatedAt: now}
	if err := r.Set(ctx, marker); err != nil {
		return schema.PendingBooking{}, err
	}
	return schema.PendingBookingFromMillis(bookingID, now.UnixMilli()), nil
}

// Clear removes both keys. Clearing an absent marker is not an error.
func (r *Repository) Clear(ctx context.Context) error {
	idErr := r.store.Delete(ctx, r.keys.BookingID)
	createdErr := r.store.Delete(ctx, r.keys.CreatedAt)
	return errors.Join(idErr, createdErr)
}
