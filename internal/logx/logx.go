package logx

import (
	"context"

	"pkt.systems/wayfare/schema"
	"pkt.systems/pslog"
)

type contextKey int

const (
	userKey contextKey = iota
	requestKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithUser annotates the logger with the user id if present.
func WithUser(ctx context.Context, userID schema.UserID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if userID != "" {
		if current, ok := ctx.Value(userKey).(schema.UserID); ok && current == userID {
			return log
		}
		log = log.With("user", userID)
	}
	return log
}

// WithBooking annotates the logger with a booking id when available.
func WithBooking(log pslog.Logger, bookingID schema.BookingID) pslog.Logger {
	if bookingID != "" {
		log = log.With("booking", bookingID)
	}
	return log
}

// WithTarget annotates the logger with the resolved landing.
func WithTarget(log pslog.Logger, target schema.NavigationTarget, path string) pslog.Logger {
	if target != "" {
		log = log.With("target", target)
	}
	if path != "" {
		log = log.With("route", path)
	}
	return log
}

// ContextWithUser stores the user marker on the context for log de-duplication.
func ContextWithUser(ctx context.Context, userID schema.UserID) context.Context {
	if ctx == nil || userID == "" {
		return ctx
	}
	return context.WithValue(ctx, userKey, userID)
}

// ContextWithUserLogger attaches the logger and user marker to the context.
func ContextWithUserLogger(ctx context.Context, log pslog.Logger, userID schema.UserID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithUser(ctx, userID)
}

// ContextWithRequestID stores the outbound request id for correlation.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestKey, requestID)
}

// RequestID returns the request id stored on ctx.
func RequestID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(requestKey).(string)
	return id, ok && id != ""
}

// CopyContextFields copies user and request markers from src to dst.
func CopyContextFields(dst context.Context, src context.Context) context.Context {
	if src == nil {
		return dst
	}
	if user, ok := src.Value(userKey).(schema.UserID); ok && user != "" {
		dst = ContextWithUser(dst, user)
	}
	if id, ok := RequestID(src); ok {
		dst = ContextWithRequestID(dst, id)
	}
	return dst
}
