// Package session authenticates against the directory host and carries the
// resulting cookie-bearing client for the rest of the run.
package session

import (
	"errors"
	"fmt"
)

var (
	// ErrHostUnreachable marks a login that failed at the network or HTTP status level.
	ErrHostUnreachable = errors.New("directory host unreachable")
	// ErrCredentialsRejected marks a login whose root page lacks the authenticated marker.
	ErrCredentialsRejected = errors.New("credentials rejected")
)

// AuthError represents a failed login. Kind is one of ErrHostUnreachable or
// ErrCredentialsRejected and is matchable with errors.Is.
type AuthError struct {
	BaseURL string
	Kind    error
	Message string
	Cause   error
}

func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("auth error for %s: %s: %v", e.BaseURL, e.Message, e.Cause)
	}
	return fmt.Sprintf("auth error for %s: %s", e.BaseURL, e.Message)
}

func (e *AuthError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}
