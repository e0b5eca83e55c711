package attachments

import (
	"context"
	"fmt"
	"time"

	"github.com/certsync/certsync/internal/client/models"
	"github.com/certsync/certsync/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Add queues an attachment for upload.
func (r *SQLiteRepository) Add(ctx context.Context, a *models.Attachment) error {
	query := `INSERT INTO attachments (id, certificate_id, path, content_type, uploaded, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.CertificateID, a.Path, a.ContentType, a.Uploaded, a.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert attachment: %w", err)
	}
	return nil
}

// ListPending returns not-yet-uploaded attachments for a certificate.
func (r *SQLiteRepository) ListPending(ctx context.Context, certificateID string) ([]*models.Attachment, error) {
	query := `SELECT id, certificate_id, path, content_type, uploaded, created_at
		FROM attachments WHERE certificate_id = ? AND uploaded = 0 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, certificateID)
	if err != nil {
		return nil, fmt.Errorf("failed to select attachments: %w", err)
	}
	defer rows.Close()

	var result []*models.Attachment
	for rows.Next() {
		var (
			a       models.Attachment
			created int64
		)
		if err := rows.Scan(&a.ID, &a.CertificateID, &a.Path, &a.ContentType, &a.Uploaded, &created); err != nil {
			return nil, err
		}
		a.CreatedAt = time.Unix(0, created)
		result = append(result, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// CertificatesWithPending returns distinct certificate ids that still own
// queued attachments.
func (r *SQLiteRepository) CertificatesWithPending(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT certificate_id FROM attachments WHERE uploaded = 0`)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending certificates: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// MarkUploaded flags an attachment as delivered to object storage.
func (r *SQLiteRepository) MarkUploaded(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE attachments SET uploaded = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark attachment uploaded: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("wrong rows affected count: %d", ra)
	}
	return nil
}
