package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable marks transport failures: connection refused, timeouts,
	// 5xx responses. The record stays dirty and the coordinator retries with
	// backoff.
	ErrUnavailable = errors.New("gateway unavailable")

	// ErrUnauthorized marks rejected credentials. Not retried automatically.
	ErrUnauthorized = errors.New("unauthorized")
)

// RejectedError is a non-retryable push rejection (validation failure).
// The coordinator parks the record until an explicit retry.
type RejectedError struct {
	StatusCode int
	Reason     string
}

func (e *RejectedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("push rejected (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("push rejected (status %d): %s", e.StatusCode, e.Reason)
}

// IsRetryable reports whether the coordinator should schedule an automatic
// retry for err.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
