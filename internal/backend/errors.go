package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/MuhammadAbdiel/aora-app/internal/remote"
)

// Kind classifies a facade failure.
type Kind int

const (
	// KindValidation means a required input was missing; no remote call was made.
	KindValidation Kind = iota + 1
	// KindAuth covers invalid credentials and absent or expired sessions.
	KindAuth
	// KindConflict means the resource already exists, e.g. a registered email.
	KindConflict
	// KindData covers rejected or failed document and file operations.
	KindData
	// KindUnavailable means the service could not be reached.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindConflict:
		return "conflict"
	case KindData:
		return "data"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Error is the single failure signal returned by every facade operation.
type Error struct {
	Op      string
	Kind    Kind
	Message string
	// Partial is set when a composite operation failed after some remote steps had
	// already completed and could not be undone.
	Partial bool
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a facade Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func validationError(op, message string) *Error {
	return &Error{Op: op, Kind: KindValidation, Message: message}
}

// normalize maps a remote failure onto an Error with a human-readable message. An
// Error already in the chain is copied so callers may annotate the result.
func normalize(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		cp := *existing
		return &cp
	}

	e := &Error{Op: op, Err: err}
	switch {
	case errors.Is(err, remote.ErrInvalidCredentials):
		e.Kind, e.Message = KindAuth, "Invalid credentials. Please check the email and password."
	case errors.Is(err, remote.ErrUnauthorized):
		e.Kind, e.Message = KindAuth, "You are not signed in."
	case errors.Is(err, remote.ErrConflict):
		e.Kind, e.Message = KindConflict, "A user with the same id, email, or phone already exists."
	case errors.Is(err, remote.ErrNotFound):
		e.Kind, e.Message = KindData, "The requested resource could not be found."
	case errors.Is(err, remote.ErrInvalidArgument):
		e.Kind, e.Message = KindData, fmt.Sprintf("The request was rejected: %v", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		e.Kind, e.Message = KindUnavailable, "The request was cancelled before it completed."
	case errors.Is(err, remote.ErrUnavailable):
		e.Kind, e.Message = KindUnavailable, "The service is unavailable. Please try again."
	default:
		e.Kind, e.Message = KindUnavailable, fmt.Sprintf("Something went wrong: %v", err)
	}
	return e
}
