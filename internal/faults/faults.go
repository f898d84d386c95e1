// Package faults defines the recoverable error taxonomy shared by the
// catalog and tracking services. Every type here leaves state unchanged
// when returned and carries enough context for the transport layer to
// render a message.
package faults

import "fmt"

// ValidationError reports malformed input or an unmet count invariant.
// The caller corrects the request and retries.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// NewValidation builds a ValidationError from a format string.
func NewValidation(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// CapacityError reports that a category or daily cap would be exceeded.
// Category is empty for the per-day commitment cap.
type CapacityError struct {
	Scope    string
	Category string
	Limit    int
	Count    int
}

func (e *CapacityError) Error() string {
	if e.Category != "" {
		return fmt.Sprintf("%s capacity reached for %s: %d of %d in use", e.Scope, e.Category, e.Count, e.Limit)
	}
	return fmt.Sprintf("%s capacity reached: %d of %d in use", e.Scope, e.Count, e.Limit)
}

// PermissionError reports an operation on an activity the caller does
// not own or has not bookmarked.
type PermissionError struct {
	Reason string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s", e.Reason)
}

// NotFoundError reports an unknown entity identifier.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Kind)
	}
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// UnavailableError wraps an infrastructure failure. The request fails
// without partial writes; retrying is up to the caller.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: storage unavailable: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Unavailable wraps err as an UnavailableError for the named operation.
func Unavailable(op string, err error) *UnavailableError {
	return &UnavailableError{Op: op, Err: err}
}
