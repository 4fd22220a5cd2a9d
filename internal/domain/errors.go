package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized            = errors.New("unauthorized")
	ErrForbidden               = errors.New("forbidden")
	ErrNotFound                = errors.New("not found")
	ErrConflict                = errors.New("conflict")
	ErrValidation              = errors.New("validation failed")
	ErrInvalidPaymentSignature = errors.New("invalid payment signature")
	ErrPaymentIntentFailed     = errors.New("payment intent creation failed")
	ErrRateLimited             = errors.New("rate limited")
)

// Error carries a stable machine-readable code next to one of the sentinel
// kinds above. errors.Is(err, ErrConflict) holds for a conflict Error.
type Error struct {
	Kind    error
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Conflict(code, msg string) error   { return newError(ErrConflict, code, msg) }
func Validation(code, msg string) error { return newError(ErrValidation, code, msg) }
func NotFound(code, msg string) error   { return newError(ErrNotFound, code, msg) }
func Forbidden(code, msg string) error  { return newError(ErrForbidden, code, msg) }

func Unauthorized(msg string) error {
	return newError(ErrUnauthorized, "UNAUTHORIZED", msg)
}

func RateLimited(msg string) error {
	return newError(ErrRateLimited, "RATE_LIMITED", msg)
}

func PaymentIntentFailed(cause error) error {
	return fmt.Errorf("%w: %w", newError(ErrPaymentIntentFailed, "PAYMENT_INTENT_FAILED", "payment processor could not create the order"), cause)
}

func InvalidPaymentSignature() error {
	return newError(ErrInvalidPaymentSignature, "INVALID_PAYMENT_SIGNATURE", "payment signature does not match")
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
