package certificates

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/certsync/certsync/internal/client/models"
	"github.com/certsync/certsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE certificates (
  id TEXT PRIMARY KEY,
  data TEXT NOT NULL,
  dirty INTEGER NOT NULL DEFAULT 0,
  updated_at INTEGER NOT NULL,
  last_synced_at INTEGER
);
CREATE TABLE attachments (
  id TEXT PRIMARY KEY,
  certificate_id TEXT NOT NULL,
  path TEXT NOT NULL,
  content_type TEXT NOT NULL,
  uploaded INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL
);
`)
	require.NoError(t, err)

	return db
}

func testRecord(id string, dirty bool, updatedAt time.Time) *models.CertificateRecord {
	return &models.CertificateRecord{
		ID: id,
		Data: models.CertificateData{
			Reference:  "EICR-0042",
			ClientName: "Acme Lettings",
			Circuits: []models.Circuit{
				{ID: "c1", Number: "1", Description: "Ring final, ground floor"},
			},
		},
		Dirty:     dirty,
		UpdatedAt: updatedAt,
	}
}

func TestPut_InsertAndOverwrite(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, r.Put(ctx, testRecord("tmp-a", true, now)))

	got, err := r.Get(ctx, "tmp-a")
	require.NoError(t, err)
	assert.Equal(t, "tmp-a", got.ID)
	assert.True(t, got.Dirty)
	assert.Equal(t, "EICR-0042", got.Data.Reference)
	require.Len(t, got.Data.Circuits, 1)
	assert.True(t, got.LastSyncedAt.IsZero())

	// overwrite with newer data under the same id
	rec2 := testRecord("tmp-a", true, now.Add(time.Second))
	rec2.Data.Circuits = append(rec2.Data.Circuits, models.Circuit{ID: "c2", Number: "2"})
	require.NoError(t, r.Put(ctx, rec2))

	got, err = r.Get(ctx, "tmp-a")
	require.NoError(t, err)
	assert.Len(t, got.Data.Circuits, 2)
	assert.Equal(t, now.Add(time.Second).UnixNano(), got.UpdatedAt.UnixNano())

	// exactly one row per id
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM certificates`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestGet_NotFound(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	_, err := r.Get(context.Background(), "cv-missing")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestListDirty_OrderAndFiltering(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	base := time.Now()
	require.NoError(t, r.Put(ctx, testRecord("cv-clean", false, base)))
	require.NoError(t, r.Put(ctx, testRecord("tmp-new", true, base.Add(2*time.Second))))
	require.NoError(t, r.Put(ctx, testRecord("cv-edited", true, base.Add(time.Second))))

	dirty, err := r.ListDirty(ctx)
	require.NoError(t, err)
	require.Len(t, dirty, 2)
	// oldest local write first
	assert.Equal(t, "cv-edited", dirty[0].ID)
	assert.Equal(t, "tmp-new", dirty[1].ID)
}

func TestClearDirty_AppliesWhenUnchanged(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	writeTime := time.Now()
	require.NoError(t, r.Put(ctx, testRecord("cv-1", true, writeTime)))

	syncedAt := writeTime.Add(time.Second)
	cleared, err := r.ClearDirty(ctx, "cv-1", syncedAt, writeTime)
	require.NoError(t, err)
	assert.True(t, cleared)

	got, err := r.Get(ctx, "cv-1")
	require.NoError(t, err)
	assert.False(t, got.Dirty)
	assert.Equal(t, syncedAt.UnixNano(), got.LastSyncedAt.UnixNano())
}

func TestClearDirty_RefusedAfterNewerEdit(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	pushStart := time.Now()
	require.NoError(t, r.Put(ctx, testRecord("cv-1", true, pushStart)))

	// a newer edit lands while the push is in flight
	require.NoError(t, r.Put(ctx, testRecord("cv-1", true, pushStart.Add(time.Second))))

	cleared, err := r.ClearDirty(ctx, "cv-1", pushStart.Add(2*time.Second), pushStart)
	require.NoError(t, err)
	assert.False(t, cleared, "a clean marker based on a stale payload must not apply")

	got, err := r.Get(ctx, "cv-1")
	require.NoError(t, err)
	assert.True(t, got.Dirty, "record must remain dirty for the follow-up sync")
}

func TestPromote_SwapsIDsAtomically(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	writeTime := time.Now()
	require.NoError(t, r.Put(ctx, testRecord("tmp-abc", true, writeTime)))

	_, err := db.Exec(`INSERT INTO attachments (id, certificate_id, path, content_type, uploaded, created_at)
		VALUES ('att-1', 'tmp-abc', '/photos/db1.jpg', 'image/jpeg', 0, ?)`, writeTime.UnixNano())
	require.NoError(t, err)

	syncedAt := writeTime.Add(time.Second)
	promoted, err := r.Promote(ctx, "tmp-abc", "cv-001", syncedAt, writeTime)
	require.NoError(t, err)
	assert.Equal(t, "cv-001", promoted.ID)
	assert.False(t, promoted.Dirty)

	// temporary id is gone, permanent id holds the data
	_, err = r.Get(ctx, "tmp-abc")
	require.ErrorIs(t, err, common.ErrNotFound)

	got, err := r.Get(ctx, "cv-001")
	require.NoError(t, err)
	assert.Equal(t, "EICR-0042", got.Data.Reference)
	assert.False(t, got.Dirty)
	assert.Equal(t, syncedAt.UnixNano(), got.LastSyncedAt.UnixNano())

	var attCert string
	require.NoError(t, db.QueryRow(`SELECT certificate_id FROM attachments WHERE id='att-1'`).Scan(&attCert))
	assert.Equal(t, "cv-001", attCert)
}

func TestPromote_KeepsDirtyWhenEditedDuringPush(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	pushStart := time.Now()
	require.NoError(t, r.Put(ctx, testRecord("tmp-abc", true, pushStart)))

	// concurrent edit after the create request was captured
	edited := testRecord("tmp-abc", true, pushStart.Add(time.Second))
	edited.Data.Observations = []models.Observation{{ID: "o1", Code: "C2", Description: "No RCD on sockets"}}
	require.NoError(t, r.Put(ctx, edited))

	promoted, err := r.Promote(ctx, "tmp-abc", "cv-001", pushStart.Add(2*time.Second), pushStart)
	require.NoError(t, err)
	assert.True(t, promoted.Dirty, "the newer edit must survive as dirty")

	got, err := r.Get(ctx, "cv-001")
	require.NoError(t, err)
	// the permanent row carries the latest local data, not the pushed payload
	require.Len(t, got.Data.Observations, 1)
	assert.True(t, got.Dirty)
}

func TestPromote_MissingTempRecord(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)

	_, err := r.Promote(context.Background(), "tmp-gone", "cv-001", time.Now(), time.Now())
	require.ErrorIs(t, err, common.ErrNotFound)
}
