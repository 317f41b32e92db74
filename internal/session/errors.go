package session

import "errors"

var (
	// ErrNotFound indicates the session does not exist.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidRole indicates a message role outside user/model.
	ErrInvalidRole = errors.New("invalid message role")
)
