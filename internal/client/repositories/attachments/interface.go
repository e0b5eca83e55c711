package attachments

import (
	"context"

	"github.com/certsync/certsync/internal/client/models"
)

// Repository stores the local upload queue for certificate attachments.
type Repository interface {
	// Add queues a new attachment for upload.
	Add(ctx context.Context, a *models.Attachment) error

	// ListPending returns attachments for a certificate that have not been
	// uploaded yet.
	ListPending(ctx context.Context, certificateID string) ([]*models.Attachment, error)

	// MarkUploaded records that the attachment reached object storage.
	MarkUploaded(ctx context.Context, id string) error

	// CertificatesWithPending lists ids of certificates that still have
	// queued attachments, so the coordinator can drain queues even when
	// the owning record is already clean.
	CertificatesWithPending(ctx context.Context) ([]string, error)
}
