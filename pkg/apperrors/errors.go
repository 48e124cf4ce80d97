// Package apperrors defines the error taxonomy shared by every agent and both
// entry-point adapters. Agents return typed errors; the orchestrator passes
// them through unchanged except for internal errors, which are sanitized
// before reaching the caller.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for outcome normalization.
type Kind int

const (
	// KindInternal is an unexpected failure. Logged with full context,
	// surfaced to callers as an opaque message.
	KindInternal Kind = iota
	// KindUnknownCapability means the capability name maps to no agent.
	KindUnknownCapability
	// KindSubscriptionRequired means the caller's tier is below the
	// capability's minimum. Distinct from a generic permission error so
	// callers can tell "upgrade needed" from "forbidden".
	KindSubscriptionRequired
	// KindUnauthenticated means no valid caller identity was presented.
	KindUnauthenticated
	// KindValidation means the payload shape is wrong (missing or malformed fields).
	KindValidation
	// KindBusiness is a domain rule violation (duplicate name, not found,
	// phase incomplete, expired token).
	KindBusiness
	// KindNotInitialized means the resource singleton was used before Initialize.
	KindNotInitialized
	// KindAlreadyInitialized means Initialize was called again with a
	// conflicting configuration.
	KindAlreadyInitialized
)

// String returns the wire identifier for the kind.
func (k Kind) String() string {
	switch k {
	case KindUnknownCapability:
		return "unknown_capability"
	case KindSubscriptionRequired:
		return "subscription_required"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindValidation:
		return "validation_error"
	case KindBusiness:
		return "business_error"
	case KindNotInitialized:
		return "not_initialized"
	case KindAlreadyInitialized:
		return "already_initialized_differently"
	default:
		return "internal_error"
	}
}

// Error is a typed application error.
type Error struct {
	Kind    Kind
	Code    string // stable machine-readable code, e.g. "duplicate_username"
	Message string // human-readable explanation
	Err     error  // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation creates a payload validation error.
func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// Validationf creates a payload validation error with a formatted message.
func Validationf(code, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Business creates a domain rule violation error.
func Business(code, message string) *Error {
	return &Error{Kind: KindBusiness, Code: code, Message: message}
}

// Businessf creates a domain rule violation error with a formatted message.
func Businessf(code, format string, args ...any) *Error {
	return &Error{Kind: KindBusiness, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: "internal_error", Message: "internal error", Err: err}
}

// UnknownCapability creates the error for an unregistered capability name.
func UnknownCapability(name string) *Error {
	return &Error{Kind: KindUnknownCapability, Code: "unknown_capability",
		Message: fmt.Sprintf("capability %q is not registered", name)}
}

// SubscriptionRequired creates the tier-gate error.
func SubscriptionRequired(capability, requiredTier string) *Error {
	return &Error{Kind: KindSubscriptionRequired, Code: "subscription_required",
		Message: fmt.Sprintf("capability %q requires the %s tier or above", capability, requiredTier)}
}

// Unauthenticated creates the missing-identity error.
func Unauthenticated() *Error {
	return &Error{Kind: KindUnauthenticated, Code: "unauthenticated",
		Message: "authenticated caller identity required"}
}

// KindOf extracts the Kind from err, defaulting to KindInternal for untyped errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict):
		return KindBusiness
	case errors.Is(err, ErrNotInitialized):
		return KindNotInitialized
	case errors.Is(err, ErrAlreadyInitialized):
		return KindAlreadyInitialized
	}
	return KindInternal
}

// CodeOf extracts the stable code from err, defaulting to "internal_error".
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	}
	return "internal_error"
}

// Sentinel errors used by the repository layer.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// ErrNotInitialized is returned when the resource singleton is read
	// before Initialize has completed.
	ErrNotInitialized = errors.New("resources not initialized")
	// ErrAlreadyInitialized is returned when Initialize is called again with
	// a conflicting configuration.
	ErrAlreadyInitialized = errors.New("resources already initialized with a different configuration")
)
