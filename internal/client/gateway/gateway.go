// Package gateway defines the narrow client interface to the remote system
// of record and its HTTP/JSON implementation. The sync coordinator depends
// only on the interface, so retry and backoff logic stays independent of the
// concrete transport.
package gateway

import (
	"context"
	"time"

	"github.com/certsync/certsync/internal/client/models"
)

// CreateResult is the acknowledgement of a successful create, carrying the
// server-assigned permanent id.
type CreateResult struct {
	ID        string
	CreatedAt time.Time
}

// UpdateResult is the acknowledgement of a successful upsert.
type UpdateResult struct {
	UpdatedAt time.Time
}

// Snapshot is a remote certificate state as returned by Fetch.
type Snapshot struct {
	ID        string
	Data      models.CertificateData
	UpdatedAt time.Time
}

// PresignedUpload is a one-shot URL for delivering an attachment to object
// storage.
type PresignedUpload struct {
	URL string
	Key string
}

// Client is the remote gateway consumed by the sync engine.
//
// Create is idempotent on clientRef (the record's temporary id): a retried
// create after a lost acknowledgement returns the originally assigned
// permanent id instead of creating a duplicate. Update is an idempotent
// upsert keyed by certificate id.
type Client interface {
	// Ping probes server reachability.
	Ping(ctx context.Context) error

	// Login obtains a bearer token and installs it for subsequent calls.
	Login(ctx context.Context, username, password string) error

	// Create registers a new certificate and returns its permanent id.
	Create(ctx context.Context, clientRef string, data *models.CertificateData) (*CreateResult, error)

	// Fetch returns the remote snapshot, or common.ErrNotFound.
	Fetch(ctx context.Context, id string) (*Snapshot, error)

	// Update pushes the full payload as an upsert keyed by id.
	Update(ctx context.Context, id string, data *models.CertificateData) (*UpdateResult, error)

	// PresignAttachment asks the server for a presigned PUT URL for the
	// given attachment.
	PresignAttachment(ctx context.Context, certificateID string, a *models.Attachment) (*PresignedUpload, error)

	// UploadAttachment delivers the attachment body to the presigned URL.
	UploadAttachment(ctx context.Context, upload *PresignedUpload, a *models.Attachment) error

	Close() error
}
