package certificates

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/certsync/certsync/internal/client/models"
	"github.com/certsync/certsync/internal/common"
	"github.com/certsync/certsync/internal/dbx"
)

// SQLiteRepository implements Repository over a local SQLite database.
// Timestamps are stored as unix nanoseconds so the ClearDirty guard compares
// exactly what Put wrote.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a repository bound to the given database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Put upserts the full record by id.
func (r *SQLiteRepository) Put(ctx context.Context, rec *models.CertificateRecord) error {
	data, err := models.EncodeData(&rec.Data)
	if err != nil {
		return fmt.Errorf("failed to encode certificate data: %w", err)
	}

	query := `INSERT INTO certificates (id, data, dirty, updated_at, last_synced_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data,
			dirty = excluded.dirty,
			updated_at = excluded.updated_at,
			last_synced_at = excluded.last_synced_at
	`
	_, err = r.db.ExecContext(ctx, query,
		rec.ID, string(data), rec.Dirty, rec.UpdatedAt.UnixNano(), nanosOrNull(rec.LastSyncedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert certificate: %w", err)
	}
	return nil
}

// Get returns the record by id or common.ErrNotFound.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.CertificateRecord, error) {
	query := `SELECT id, data, dirty, updated_at, last_synced_at FROM certificates WHERE id = ?`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select certificate: %w", err)
	}
	return rec, nil
}

// List returns every record, most recently written first.
func (r *SQLiteRepository) List(ctx context.Context) ([]*models.CertificateRecord, error) {
	query := `SELECT id, data, dirty, updated_at, last_synced_at FROM certificates
		ORDER BY updated_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select certificates: %w", err)
	}
	defer rows.Close()

	var result []*models.CertificateRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListDirty returns all records awaiting sync, oldest local write first.
func (r *SQLiteRepository) ListDirty(ctx context.Context) ([]*models.CertificateRecord, error) {
	query := `SELECT id, data, dirty, updated_at, last_synced_at FROM certificates
		WHERE dirty = 1 ORDER BY updated_at`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select dirty certificates: %w", err)
	}
	defer rows.Close()

	var result []*models.CertificateRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ClearDirty marks the record clean unless it was mutated after basedOn.
func (r *SQLiteRepository) ClearDirty(ctx context.Context, id string, syncedAt, basedOn time.Time) (bool, error) {
	query := `UPDATE certificates SET dirty = 0, last_synced_at = ?
		WHERE id = ? AND dirty = 1 AND updated_at <= ?`
	res, err := r.db.ExecContext(ctx, query, syncedAt.UnixNano(), id, basedOn.UnixNano())
	if err != nil {
		return false, fmt.Errorf("failed to clear dirty flag: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return ra == 1, nil
}

// Promote swaps the temporary-id row for a permanent-id row in one
// transaction. Consumers can never observe a state where both or neither row
// exists.
func (r *SQLiteRepository) Promote(ctx context.Context, tempID, permID string, syncedAt, basedOn time.Time) (*models.CertificateRecord, error) {
	var promoted *models.CertificateRecord

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query := `SELECT id, data, dirty, updated_at, last_synced_at FROM certificates WHERE id = ?`
		rec, err := scanRecord(tx.QueryRowContext(ctx, query, tempID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrNotFound
			}
			return fmt.Errorf("failed to read temporary record: %w", err)
		}

		// The row stays dirty when the UI mutated it after the push that
		// earned the permanent id was captured.
		stillDirty := rec.UpdatedAt.After(basedOn)

		rec.ID = permID
		rec.Dirty = stillDirty
		rec.LastSyncedAt = syncedAt

		data, err := models.EncodeData(&rec.Data)
		if err != nil {
			return fmt.Errorf("failed to encode certificate data: %w", err)
		}

		insert := `INSERT INTO certificates (id, data, dirty, updated_at, last_synced_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET data = excluded.data,
				dirty = excluded.dirty,
				updated_at = excluded.updated_at,
				last_synced_at = excluded.last_synced_at
		`
		if _, err := tx.ExecContext(ctx, insert,
			rec.ID, string(data), rec.Dirty, rec.UpdatedAt.UnixNano(), syncedAt.UnixNano()); err != nil {
			return fmt.Errorf("failed to insert promoted record: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE attachments SET certificate_id = ? WHERE certificate_id = ?`, permID, tempID); err != nil {
			return fmt.Errorf("failed to re-point attachments: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM certificates WHERE id = ?`, tempID); err != nil {
			return fmt.Errorf("failed to remove temporary record: %w", err)
		}

		promoted = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return promoted, nil
}

func nanosOrNull(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixNano()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.CertificateRecord, error) {
	var (
		rec      models.CertificateRecord
		data     string
		updated  int64
		lastSync sql.NullInt64
	)
	if err := row.Scan(&rec.ID, &data, &rec.Dirty, &updated, &lastSync); err != nil {
		return nil, err
	}
	d, err := models.DecodeData([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode certificate data: %w", err)
	}
	rec.Data = *d
	rec.UpdatedAt = time.Unix(0, updated)
	if lastSync.Valid {
		rec.LastSyncedAt = time.Unix(0, lastSync.Int64)
	}
	return &rec, nil
}
