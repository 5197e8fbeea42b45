package remote

import "errors"

var (
	// ErrUnauthorized indicates the client has no valid session for the request.
	ErrUnauthorized = errors.New("remote: unauthorized")
	// ErrInvalidCredentials indicates the email and password did not match an account.
	ErrInvalidCredentials = errors.New("remote: invalid credentials")
	// ErrNotFound indicates the addressed resource does not exist.
	ErrNotFound = errors.New("remote: not found")
	// ErrConflict indicates a resource with the same identity already exists.
	ErrConflict = errors.New("remote: already exists")
	// ErrInvalidArgument indicates the request was rejected as malformed.
	ErrInvalidArgument = errors.New("remote: invalid argument")
	// ErrUnavailable indicates the service could not be reached or failed internally.
	ErrUnavailable = errors.New("remote: service unavailable")
)
