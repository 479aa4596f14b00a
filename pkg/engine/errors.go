package engine

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of an error for retry and recovery logic.
type ErrorClass string

const (
	// ErrorClassTransient indicates a temporary failure that may succeed on retry.
	// Examples: network timeouts, temporary service unavailability.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassThrottled indicates rate limiting or quota exhaustion.
	ErrorClassThrottled ErrorClass = "throttled"

	// ErrorClassConflict indicates another writer changed the lead first.
	ErrorClassConflict ErrorClass = "conflict"

	// ErrorClassPermanent indicates a non-recoverable error for this lead.
	// Examples: rejected recipient, permission denied.
	ErrorClassPermanent ErrorClass = "permanent"

	// ErrorClassValidation indicates the lead itself is unusable.
	ErrorClassValidation ErrorClass = "validation"

	// ErrorClassIntegrity indicates a stored record violates a workflow invariant.
	ErrorClassIntegrity ErrorClass = "integrity"
)

// Store sentinels.
var (
	// ErrNotFound is returned when no record exists for an identity.
	ErrNotFound = errors.New("lead not found")

	// ErrConflict is returned when a compare-and-set lost against another writer.
	ErrConflict = errors.New("lead state changed concurrently")

	// ErrStaleClaim is returned when a dispatch claim outlived its lease.
	// The outcome of that dispatch is unknown.
	ErrStaleClaim = errors.New("stale dispatch claim")
)

// Error represents a classified error with lead context.
type Error struct {
	// Class is the error classification for retry logic.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Lead is the normalized identity of the lead involved, if any.
	Lead string `json:"lead,omitempty"`

	// Operation is the port or store operation that failed.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Class, e.Message)
	if e.Lead != "" && e.Operation != "" {
		msg = fmt.Sprintf("%s (lead=%s, operation=%s)", msg, e.Lead, e.Operation)
	} else if e.Lead != "" {
		msg = fmt.Sprintf("%s (lead=%s)", msg, e.Lead)
	} else if e.Operation != "" {
		msg = fmt.Sprintf("%s (operation=%s)", msg, e.Operation)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

func newError(class ErrorClass, message string, err error) *Error {
	return &Error{Class: class, Message: message, Err: err}
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *Error {
	return newError(ErrorClassTransient, message, err)
}

// NewThrottledError creates a new throttled error.
func NewThrottledError(message string, err error) *Error {
	return newError(ErrorClassThrottled, message, err).WithCode(ErrCodeRateLimited)
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *Error {
	return newError(ErrorClassPermanent, message, err)
}

// NewValidationError creates a new validation error.
func NewValidationError(message string, err error) *Error {
	return newError(ErrorClassValidation, message, err).WithCode(ErrCodeValidation)
}

// NewIntegrityError creates a new integrity error.
func NewIntegrityError(message string, err error) *Error {
	return newError(ErrorClassIntegrity, message, err).WithCode(ErrCodeIntegrity)
}

// WithLead adds lead context to an error.
func (e *Error) WithLead(email string) *Error {
	e.Lead = email
	return e
}

// WithOperation adds operation context to an error.
func (e *Error) WithOperation(operation string) *Error {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// ClassOf returns the class of err. Errors that carry no classification,
// timeouts included, are treated as transient.
func ClassOf(err error) ErrorClass {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	if errors.Is(err, ErrConflict) {
		return ErrorClassConflict
	}
	return ErrorClassTransient
}

// CodeOf returns the code of a classified error, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsValidation returns true if the error is a lead validation failure.
func IsValidation(err error) bool {
	return ClassOf(err) == ErrorClassValidation
}

// IsIntegrity returns true if the error is an invariant violation.
func IsIntegrity(err error) bool {
	return ClassOf(err) == ErrorClassIntegrity
}

// IsRetryable returns true if a later invocation may succeed.
// Transient and throttled errors are retryable.
func IsRetryable(err error) bool {
	c := ClassOf(err)
	return c == ErrorClassTransient || c == ErrorClassThrottled
}

// Common error codes.
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodePermissionDenied = "PERMISSION_DENIED"
	ErrCodeTimeout          = "TIMEOUT"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeIntegrity        = "INTEGRITY_ERROR"
	ErrCodeRecipient        = "INVALID_RECIPIENT"
	ErrCodeContentInvalid   = "CONTENT_INVALID"
	ErrCodeOutcomeUnknown   = "OUTCOME_UNKNOWN"
)
