package common

import "errors"

var (
	// repository specific errors
	ErrNotFound = errors.New("not found")

	// service specific errors
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")

	ErrInvalidToken = errors.New("invalid token")

	// ErrConflict is returned when an upsert is refused because the row
	// belongs to another owner.
	ErrConflict = errors.New("conflict")
)
