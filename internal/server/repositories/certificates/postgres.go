// Package certificates provides the PostgreSQL-backed canonical certificate
// store and the idempotent-create query the sync protocol depends on.
package certificates

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/certsync/certsync/internal/common"
	"github.com/certsync/certsync/internal/dbx"
	"github.com/certsync/certsync/internal/server/models"
)

// PostgresRepository implements certificate storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// CreateIdempotent inserts the certificate keyed by (user_id, client_ref).
// A retried create with the same client reference hits the unique index and
// resolves to the originally assigned id with the original row untouched, so
// a lost acknowledgement never produces a duplicate.
func (r *PostgresRepository) CreateIdempotent(ctx context.Context, cert *models.Certificate) (*models.Certificate, error) {
	query := `
		INSERT INTO certificates (id, user_id, client_ref, data, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, client_ref)
		DO UPDATE SET client_ref = EXCLUDED.client_ref
		RETURNING id, data, updated_at
	`
	out := &models.Certificate{UserID: cert.UserID, ClientRef: cert.ClientRef}
	err := r.db.QueryRowContext(ctx, query,
		cert.ID, cert.UserID, cert.ClientRef, cert.Data, cert.UpdatedAt).
		Scan(&out.ID, &out.Data, &out.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// Update replaces the payload of an existing row owned by the user.
func (r *PostgresRepository) Update(ctx context.Context, cert *models.Certificate) (*models.Certificate, error) {
	query := `
		UPDATE certificates
		SET data = $1, updated_at = $2
		WHERE id = $3 AND user_id = $4
		RETURNING id, client_ref, data, updated_at
	`
	out := &models.Certificate{UserID: cert.UserID}
	err := r.db.QueryRowContext(ctx, query,
		cert.Data, cert.UpdatedAt, cert.ID, cert.UserID).
		Scan(&out.ID, &out.ClientRef, &out.Data, &out.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID, id string) (*models.Certificate, error) {
	query := `
		SELECT id, user_id, client_ref, data, updated_at FROM certificates
		WHERE id = $1 AND user_id = $2
	`
	cert := &models.Certificate{}
	err := r.db.QueryRowContext(ctx, query, id, userID).
		Scan(&cert.ID, &cert.UserID, &cert.ClientRef, &cert.Data, &cert.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return cert, nil
}
