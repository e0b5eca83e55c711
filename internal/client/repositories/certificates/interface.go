package certificates

import (
	"context"
	"time"

	"github.com/certsync/certsync/internal/client/models"
)

// Repository is the local persistent store for certificate records. It is
// the only durability guarantee available while offline, so writes must be
// durable before returning.
type Repository interface {
	// Put inserts or overwrites the full record by id.
	Put(ctx context.Context, rec *models.CertificateRecord) error

	// Get returns the record by id, or common.ErrNotFound if never written.
	Get(ctx context.Context, id string) (*models.CertificateRecord, error)

	// List returns every locally known record, most recently written first.
	List(ctx context.Context) ([]*models.CertificateRecord, error)

	// ListDirty enumerates all records with local edits awaiting sync,
	// oldest first. Used to discover work after a process restart.
	ListDirty(ctx context.Context) ([]*models.CertificateRecord, error)

	// ClearDirty marks a record clean and stamps last_synced_at, but only
	// if the record has not been mutated after basedOn (the local write
	// time captured when the push started). Reports whether the clear
	// applied; false means a newer edit arrived while the push was in
	// flight and the record stays dirty.
	ClearDirty(ctx context.Context, id string, syncedAt, basedOn time.Time) (bool, error)

	// Promote atomically re-keys a record from its temporary id to the
	// server-assigned permanent id. The permanent row receives the latest
	// local data (not the payload that was pushed), attachments are
	// re-pointed, and the temporary row is removed, all in one
	// transaction. The returned record reflects the promoted state; it
	// stays dirty when the row was mutated after basedOn.
	Promote(ctx context.Context, tempID, permID string, syncedAt, basedOn time.Time) (*models.CertificateRecord, error)
}
