package services

import (
	"errors"
	"fmt"

	"github.com/localbazaar/reservation-backend/internal/database"
)

// ErrorKind classifies booking lifecycle failures for callers and HTTP mapping
type ErrorKind string

const (
	KindValidation             ErrorKind = "validation_error"
	KindUnavailable            ErrorKind = "unavailable"
	KindCouponExpired          ErrorKind = "coupon_expired"
	KindCouponNotApplicable    ErrorKind = "coupon_not_applicable"
	KindCouponLimitReached     ErrorKind = "coupon_limit_reached"
	KindMinimumAmountNotMet    ErrorKind = "minimum_amount_not_met"
	KindInvalidStateTransition ErrorKind = "invalid_state_transition"
	KindInvalidSignature       ErrorKind = "invalid_signature"
	KindUnknownOrder           ErrorKind = "unknown_order"
	KindGatewayTimeout         ErrorKind = "gateway_timeout"
	KindGatewayError           ErrorKind = "gateway_error"
	KindTemporarilyUnavailable ErrorKind = "temporarily_unavailable"
	KindNotFound               ErrorKind = "not_found"
	KindForbidden              ErrorKind = "forbidden"
)

// IsCouponKind reports whether the kind belongs to the coupon error family
func (k ErrorKind) IsCouponKind() bool {
	switch k {
	case KindCouponExpired, KindCouponNotApplicable, KindCouponLimitReached, KindMinimumAmountNotMet:
		return true
	}
	return false
}

// BookingError is the typed error returned by every booking lifecycle operation
type BookingError struct {
	Kind    ErrorKind
	Message string
	Err     error // underlying cause, never shown to clients
}

func (e *BookingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *BookingError) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, format string, args ...interface{}) *BookingError {
	return &BookingError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a BookingError anywhere in the chain, or ""
func KindOf(err error) ErrorKind {
	var bookingErr *BookingError
	if errors.As(err, &bookingErr) {
		return bookingErr.Kind
	}
	return ""
}

// IsKind reports whether err is a BookingError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// translateDBError turns lock contention into a retryable error and leaves
// domain errors alone
func translateDBError(err error, operation string) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != "" {
		return err
	}
	if errors.Is(err, database.ErrLockTimeout) {
		return &BookingError{
			Kind:    KindTemporarilyUnavailable,
			Message: "the resource is busy, please retry shortly",
			Err:     err,
		}
	}
	return fmt.Errorf("%s: %w", operation, err)
}
