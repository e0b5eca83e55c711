// Package models holds the server-side persistence types. The certificate
// payload is stored opaquely as JSON; the server never interprets it beyond
// validity.
package models

import "time"

// Certificate is the canonical server copy of a certificate.
//
// ClientRef is the client-generated reference (the client's temporary id)
// supplied at creation. It is unique per user, which makes creation
// idempotent: a retried create after a lost acknowledgement resolves to the
// already-assigned permanent id instead of a duplicate row.
type Certificate struct {
	ID        string
	UserID    string
	ClientRef string
	Data      []byte
	UpdatedAt time.Time
}
