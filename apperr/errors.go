// Package apperr is the error taxonomy shared by services, stores and handlers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers and for HTTP status mapping.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindPersistence     Kind = "persistence"
	KindPaymentRequired Kind = "payment_required"
	KindUnauthorized    Kind = "unauthorized"
	KindForbidden       Kind = "forbidden"
)

// Sentinel errors. Every *Error matches the sentinel of its kind with errors.Is.
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrPersistence     = errors.New("persistence failure")
	ErrPaymentRequired = errors.New("payment required")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")

	// Stock shortfalls are conflicts, but they are reported to clients as bad requests.
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNoInventory       = errors.New("no inventory")
)

var kindSentinels = map[Kind]error{
	KindValidation:      ErrValidation,
	KindNotFound:        ErrNotFound,
	KindConflict:        ErrConflict,
	KindPersistence:     ErrPersistence,
	KindPaymentRequired: ErrPaymentRequired,
	KindUnauthorized:    ErrUnauthorized,
	KindForbidden:       ErrForbidden,
}

// Error carries a kind, a user-facing message and an optional cause.
type Error struct {
	Kind      Kind
	Message   string
	Err       error
	Retryable bool
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return newf(KindValidation, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newf(KindConflict, format, args...)
}

func PaymentRequired(format string, args ...any) *Error {
	return newf(KindPaymentRequired, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return newf(KindUnauthorized, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newf(KindForbidden, format, args...)
}

// Persistence wraps an unexpected storage failure. The message stays generic;
// the cause is kept for logs.
func Persistence(message string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: message, Err: err}
}

// RetryableConflict reports lock contention the caller may retry.
func RetryableConflict(message string, err error) *Error {
	return &Error{Kind: KindConflict, Message: message, Err: err, Retryable: true}
}

// InsufficientStock names the product whose stock cannot cover a line.
func InsufficientStock(product string) *Error {
	return &Error{Kind: KindConflict, Message: "Insufficient stock for " + product, Err: ErrInsufficientStock}
}

// NoInventory names a product that has never been stocked.
func NoInventory(product string) *Error {
	return &Error{Kind: KindConflict, Message: "No inventory for " + product, Err: ErrNoInventory}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindPersistence for anything unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPersistence
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsRetryable reports whether the operation may succeed if repeated unchanged.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}

// Message returns the user-facing text for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindPersistence {
			if e.Message != "" {
				return e.Message
			}
			return "Internal server error"
		}
		if e.Message != "" {
			return e.Message
		}
	}
	if err == nil {
		return ""
	}
	return "Internal server error"
}
