package certificates

import (
	"context"

	"github.com/certsync/certsync/internal/server/models"
)

type Repository interface {
	// CreateIdempotent inserts the certificate, or returns the already
	// assigned row when the same (user, clientRef) pair was created before.
	CreateIdempotent(ctx context.Context, cert *models.Certificate) (*models.Certificate, error)

	// Update replaces the payload of an existing certificate owned by the
	// user, or returns common.ErrNotFound.
	Update(ctx context.Context, cert *models.Certificate) (*models.Certificate, error)

	// Get returns the certificate owned by the user, or common.ErrNotFound.
	Get(ctx context.Context, userID, id string) (*models.Certificate, error)
}
