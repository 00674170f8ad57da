package adapter

import (
	"errors"
)

var (
	// ErrNotFound is returned when a presentation or page does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrRateLimited is returned when the remote service throttles the caller.
	ErrRateLimited = errors.New("rate limited by remote service")

	// ErrUnauthorized is returned when the remote service rejects the credential.
	ErrUnauthorized = errors.New("remote service rejected credential")

	// ErrInvalidRequest is returned when a batch contains a malformed request.
	ErrInvalidRequest = errors.New("invalid request")
)
