package application

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when no valid principal accompanies a request.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrForbidden is returned when the principal's role on a calendar does not permit the operation.
	ErrForbidden = errors.New("application: forbidden")
	// ErrGone is returned when an invite exists but its expiry has passed.
	ErrGone = errors.New("application: gone")
	// ErrInvalidState is matched by *InvalidStateError values.
	ErrInvalidState = errors.New("application: invalid state")
	// ErrInvalidOperation is returned for structurally disallowed requests such as targeting the owner.
	ErrInvalidOperation = errors.New("application: invalid operation")
	// ErrConflict is returned when a uniqueness rule would be violated.
	ErrConflict = errors.New("application: conflict")

	ErrInvalidCredentials = errors.New("application: invalid credentials")
	ErrSessionExpired     = errors.New("application: session expired")
	ErrSessionRevoked     = errors.New("application: session revoked")
)

// InvalidStateError reports that an invite is no longer pending.
type InvalidStateError struct {
	Status InviteStatus
}

// Error implements the error interface.
func (e *InvalidStateError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("application: invalid state: invite is %s", e.Status)
}

// Is lets errors.Is match ErrInvalidState.
func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

func invalidOperation(detail string) error {
	return fmt.Errorf("%w: %s", ErrInvalidOperation, detail)
}

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func fieldError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.add(field, message)
	return v
}
