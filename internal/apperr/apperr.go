// Package apperr defines the typed errors the core services return across
// the HTTP boundary. Every error carries a machine-readable code separate
// from its human-readable message so callers can branch without string
// matching.
package apperr

import (
	"errors"
	"fmt"
)

// Machine-readable codes surfaced in error payloads.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeForbidden         = "FORBIDDEN"
	CodeStateBlocked      = "STATE_BLOCKED"
	CodeStepBlocked       = "STEP_BLOCKED"
	CodeNotFound          = "NOT_FOUND"
	CodeSessionOrProject  = "SESSION_OR_PROJECT_NOT_FOUND"
	CodePersistence       = "PERSISTENCE_ERROR"
	CodeInternal          = "INTERNAL_ERROR"
)

// ValidationError: bad input, the caller corrects and resubmits.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
	}
	return "validation: " + e.Message
}

func (e *ValidationError) Code() string { return CodeValidation }

// AuthorizationError: role or relationship insufficient. Never auto-retried.
// Carries enough to reconstruct the cause without leaking resource data.
type AuthorizationError struct {
	ResourceID   uint
	ActorRole    string
	Required     []string // required role(s), empty when the check was relational
	Relationship string   // e.g. "assigned_pm or assigned_spm", "" for pure role checks
	Message      string
}

func (e *AuthorizationError) Error() string {
	if e.Message != "" {
		return "forbidden: " + e.Message
	}
	return "forbidden"
}

func (e *AuthorizationError) Code() string { return CodeForbidden }

// StateError: the action is out of lifecycle order. The caller must re-fetch
// state before retrying; the transition itself is never replayed blindly.
type StateError struct {
	ResourceID uint
	Current    string
	Required   string
	Message    string
}

func (e *StateError) Error() string {
	if e.Message != "" {
		return "state: " + e.Message
	}
	return fmt.Sprintf("state: resource %d is %q, requires %q", e.ResourceID, e.Current, e.Required)
}

func (e *StateError) Code() string { return CodeStateBlocked }

// StepBlockedError: a wizard step was requested ahead of the server-derived
// next allowed step.
type StepBlockedError struct {
	Requested   int
	NextAllowed int
}

func (e *StepBlockedError) Error() string {
	return fmt.Sprintf("step %d blocked, next allowed is %d", e.Requested, e.NextAllowed)
}

func (e *StepBlockedError) Code() string { return CodeStepBlocked }

// NotFoundError: resource or session unresolved. SessionScoped marks wizard
// resolution failures, which surface under a dedicated code so the UI can
// distinguish a stale session from a deleted project.
type NotFoundError struct {
	Resource      string
	SessionScoped bool
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

func (e *NotFoundError) Code() string {
	if e.SessionScoped {
		return CodeSessionOrProject
	}
	return CodeNotFound
}

// PersistenceError: the store is unavailable or misbehaving. The only class
// eligible for transparent retry, and only by the caller of the core.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return "persistence: " + e.Op + ": " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }
func (e *PersistenceError) Code() string  { return CodePersistence }

// Coded is implemented by every error type in this package.
type Coded interface {
	error
	Code() string
}

// CodeOf extracts the machine code from err, or CodeInternal for anything
// unexpected (full detail belongs in operator logs, not the response).
func CodeOf(err error) string {
	var c Coded
	if errors.As(err, &c) {
		return c.Code()
	}
	return CodeInternal
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsForbidden(err error) bool {
	var e *AuthorizationError
	return errors.As(err, &e)
}

func IsState(err error) bool {
	var e *StateError
	return errors.As(err, &e)
}

func IsStepBlocked(err error) bool {
	var e *StepBlockedError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}
