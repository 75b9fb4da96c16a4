// Package apperr defines the error categories surfaced by the cart and order core.
package apperr

import (
	"errors"
	"fmt"
)

// Error codes. Each maps to one HTTP status in the api package.
const (
	EINVALID      = "invalid"
	ENOTFOUND     = "not_found"
	ESTOCK        = "insufficient_stock"
	EFORBIDDEN    = "forbidden"
	EEMPTYCART    = "empty_cart"
	ECONFLICT     = "conflict"
	EUNAUTHORIZED = "unauthorized"
	EINTERNAL     = "internal"
)

// Error is an application error with a stable code and a user-facing message.
type Error struct {
	Code    string
	Op      string
	Message string
	Err     error

	// ProductID is set for ESTOCK and for an ECONFLICT from a lost reservation race.
	// Available is set for ESTOCK only.
	ProductID int64
	Available int
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Op != "" {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Code extracts the error code from err. Non-application errors are EINTERNAL.
func Code(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// Message extracts a message safe to show to callers.
// Internal errors get a generic message so persistence details do not leak.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Code == EINTERNAL {
			return "An internal error occurred. Please try again later."
		}
		return e.Message
	}
	return "An internal error occurred. Please try again later."
}

// Is reports whether err carries code.
func Is(err error, code string) bool {
	return Code(err) == code
}

// As returns the application error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Invalid reports malformed or missing input.
func Invalid(op, format string, args ...interface{}) error {
	return &Error{Code: EINVALID, Op: op, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports an unknown resource.
// Example: apperr.NotFound("cart.add", "product", 42)
func NotFound(op, resource string, id interface{}) error {
	return &Error{Code: ENOTFOUND, Op: op, Message: fmt.Sprintf("%s not found: %v", resource, id)}
}

// InsufficientStock reports a quantity exceeding what a product can supply.
func InsufficientStock(op string, productID int64, available int, format string, args ...interface{}) error {
	return &Error{
		Code:      ESTOCK,
		Op:        op,
		Message:   fmt.Sprintf(format, args...),
		ProductID: productID,
		Available: available,
	}
}

// Forbidden reports an authorization or state-machine violation.
func Forbidden(op, format string, args ...interface{}) error {
	return &Error{Code: EFORBIDDEN, Op: op, Message: fmt.Sprintf(format, args...)}
}

// EmptyCart reports a checkout of a cart without items.
func EmptyCart(op string) error {
	return &Error{Code: EEMPTYCART, Op: op, Message: "Cart is empty"}
}

// Conflict reports a uniqueness violation or a lost race on a stock reservation.
func Conflict(op, format string, args ...interface{}) error {
	return &Error{Code: ECONFLICT, Op: op, Message: fmt.Sprintf(format, args...)}
}

// StockConflict reports a reservation lost to a concurrent order after the stock check passed.
func StockConflict(op string, productID int64, format string, args ...interface{}) error {
	return &Error{Code: ECONFLICT, Op: op, Message: fmt.Sprintf(format, args...), ProductID: productID}
}

// Unauthorized reports a missing or invalid credential.
func Unauthorized(op, message string) error {
	return &Error{Code: EUNAUTHORIZED, Op: op, Message: message}
}

// Internal wraps an unexpected failure. Returns nil if err is nil.
func Internal(err error, op, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: EINTERNAL, Op: op, Message: message, Err: err}
}
