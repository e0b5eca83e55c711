// Package common holds errors and identifier helpers shared by the client
// and the server.
package common

import (
	"strings"

	"github.com/google/uuid"
)

const (
	// TempIDPrefix marks client-generated placeholder identifiers that have
	// not yet been accepted by the server.
	TempIDPrefix = "tmp-"

	// PermIDPrefix marks server-assigned canonical identifiers.
	PermIDPrefix = "cv-"
)

// NewTempID returns a fresh client-side placeholder id.
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}

// NewPermID returns a fresh server-assigned certificate id.
func NewPermID() string {
	return PermIDPrefix + uuid.NewString()
}

// IsTempID reports whether id belongs to the temporary id space.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}
