// Package llmerr defines the error taxonomy shared by the dispatch client,
// backend adapters, and the HTTP surface. Every error that crosses a service
// boundary is a *DispatchError with a classified Kind.
package llmerr

import (
	"errors"
	"fmt"
)

// Kind categorizes a dispatch failure.
type Kind string

const (
	KindNoCredential    Kind = "no_credential"
	KindNetwork         Kind = "network_error"
	KindAuth            Kind = "auth_error"
	KindRateLimit       Kind = "rate_limit"
	KindQuota           Kind = "quota_error"
	KindServer          Kind = "server_error"
	KindProcessNotFound Kind = "process_not_found"
	KindProcessTimeout  Kind = "process_timeout"
	KindExtraction      Kind = "extraction_error"
	KindUnknownProvider Kind = "unknown_provider"
	KindValidation      Kind = "validation"
	KindInternal        Kind = "internal"
)

// DispatchError is a structured error with a classified kind and optional
// detail context. Retryable marks transient conditions the dispatch client
// may retry with backoff.
type DispatchError struct {
	Kind      Kind
	Message   string
	Err       error
	Retryable bool
	Details   map[string]interface{}
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap implements errors.Unwrap.
func (e *DispatchError) Unwrap() error {
	return e.Err
}

// Is matches on Kind so sentinel comparisons work with errors.Is.
func (e *DispatchError) Is(target error) bool {
	t, ok := target.(*DispatchError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithDetail attaches a detail entry and returns the error for chaining.
func (e *DispatchError) WithDetail(key string, value interface{}) *DispatchError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a non-retryable error of the given kind.
func New(kind Kind, message string, err error) *DispatchError {
	return &DispatchError{Kind: kind, Message: message, Err: err}
}

// NewRetryable creates a retryable error of the given kind.
func NewRetryable(kind Kind, message string, err error) *DispatchError {
	return &DispatchError{Kind: kind, Message: message, Err: err, Retryable: true}
}

// KindOf returns the Kind of err, or empty string for unclassified errors.
func KindOf(err error) Kind {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsRetryable reports whether err is a transient condition worth retrying.
func IsRetryable(err error) bool {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Retryable
	}
	return false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// Details returns the detail map of err, or nil for unclassified errors.
func Details(err error) map[string]interface{} {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Details
	}
	return nil
}
