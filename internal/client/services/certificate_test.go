package services

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/certsync/certsync/internal/client/gateway"
	"github.com/certsync/certsync/internal/client/models"
	"github.com/certsync/certsync/internal/client/repositories/attachments"
	"github.com/certsync/certsync/internal/client/repositories/certificates"
	"github.com/certsync/certsync/internal/common"
	"github.com/certsync/certsync/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

type stubNotifier struct{ notified int }

func (n *stubNotifier) Notify() { n.notified++ }

// stubGateway serves canned fetch responses; everything else is unused here.
type stubGateway struct {
	gateway.Client
	snapshot *gateway.Snapshot
	fetchErr error
}

func (g *stubGateway) Fetch(ctx context.Context, id string) (*gateway.Snapshot, error) {
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	if g.snapshot == nil {
		return nil, common.ErrNotFound
	}
	return g.snapshot, nil
}

func setupService(t *testing.T, gw gateway.Client) (CertificateService, *certificates.SQLiteRepository, *stubNotifier) {
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

	certs := certificates.NewSQLiteRepository(db)
	atts := attachments.NewSQLiteRepository(db)
	notifier := &stubNotifier{}
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))

	svc := NewCertificateService(certs, atts, gw, notifier, log, time.Second)
	return svc, certs, notifier
}

func TestCreate_TemporaryIDAndDirty(t *testing.T) {
	svc, certs, notifier := setupService(t, &stubGateway{})
	ctx := context.Background()

	rec, err := svc.Create(ctx, models.CertificateData{Reference: "EICR-0042"})
	require.NoError(t, err)
	assert.True(t, common.IsTempID(rec.ID))
	assert.True(t, rec.Dirty)
	assert.Equal(t, 1, notifier.notified)

	stored, err := certs.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, stored.Dirty)
}

func TestPersist_WriteThenNotify(t *testing.T) {
	svc, certs, notifier := setupService(t, &stubGateway{})
	ctx := context.Background()

	rec, err := svc.Create(ctx, models.CertificateData{Reference: "EICR-0042"})
	require.NoError(t, err)

	edited := rec.Data
	edited.Circuits = []models.Circuit{{ID: "c1", Number: "1"}}
	require.NoError(t, svc.Persist(ctx, rec.ID, edited))
	assert.Equal(t, 2, notifier.notified)

	stored, err := certs.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Data.Circuits, 1)
	assert.True(t, stored.Dirty)
}

func TestLoad_RemoteUnreachableFallsBackToLocal(t *testing.T) {
	gw := &stubGateway{fetchErr: gateway.ErrUnavailable}
	svc, certs, _ := setupService(t, gw)
	ctx := context.Background()

	local := &models.CertificateRecord{
		ID:        "cv-001",
		Data:      models.CertificateData{Circuits: []models.Circuit{{ID: "c1"}}},
		Dirty:     true,
		UpdatedAt: time.Now(),
	}
	require.NoError(t, certs.Put(ctx, local))

	rec, err := svc.Load(ctx, "cv-001")
	require.NoError(t, err, "a failed fetch must not fail the open")
	assert.Len(t, rec.Data.Circuits, 1)
	assert.True(t, rec.Dirty)
}

func TestLoad_MergePreservesOfflineCollections(t *testing.T) {
	gw := &stubGateway{snapshot: &gateway.Snapshot{
		ID:   "cv-001",
		Data: models.CertificateData{Reference: "EICR-0042"},
	}}
	svc, certs, notifier := setupService(t, gw)
	ctx := context.Background()

	local := &models.CertificateRecord{
		ID:        "cv-001",
		Data:      models.CertificateData{Circuits: []models.Circuit{{ID: "c1"}, {ID: "c2"}}},
		Dirty:     false,
		UpdatedAt: time.Now(),
	}
	require.NoError(t, certs.Put(ctx, local))

	rec, err := svc.Load(ctx, "cv-001")
	require.NoError(t, err)
	assert.Len(t, rec.Data.Circuits, 2, "offline circuits survive an emptier remote")
	assert.Equal(t, "EICR-0042", rec.Data.Reference)
	assert.True(t, rec.Dirty)
	assert.GreaterOrEqual(t, notifier.notified, 1, "a dirty merged baseline schedules a sync")

	// the merged state became the stored baseline
	stored, err := certs.Get(ctx, "cv-001")
	require.NoError(t, err)
	assert.Len(t, stored.Data.Circuits, 2)
	assert.Equal(t, "EICR-0042", stored.Data.Reference)
}

func TestLoad_RemoteOnly(t *testing.T) {
	gw := &stubGateway{snapshot: &gateway.Snapshot{
		ID:        "cv-001",
		Data:      models.CertificateData{Reference: "EICR-0042"},
		UpdatedAt: time.Now(),
	}}
	svc, certs, _ := setupService(t, gw)
	ctx := context.Background()

	rec, err := svc.Load(ctx, "cv-001")
	require.NoError(t, err)
	assert.False(t, rec.Dirty)

	stored, err := certs.Get(ctx, "cv-001")
	require.NoError(t, err)
	assert.Equal(t, "EICR-0042", stored.Data.Reference)
}

func TestLoad_TempIDSkipsGateway(t *testing.T) {
	// a gateway that would fail loudly if consulted
	gw := &stubGateway{fetchErr: gateway.ErrUnauthorized}
	svc, certs, _ := setupService(t, gw)
	ctx := context.Background()

	local := &models.CertificateRecord{
		ID:        "tmp-abc",
		Data:      models.CertificateData{Reference: "EICR-0042"},
		Dirty:     true,
		UpdatedAt: time.Now(),
	}
	require.NoError(t, certs.Put(ctx, local))

	rec, err := svc.Load(ctx, "tmp-abc")
	require.NoError(t, err)
	assert.Equal(t, "tmp-abc", rec.ID)
}

func TestLoad_NothingAnywhere(t *testing.T) {
	svc, _, _ := setupService(t, &stubGateway{})

	_, err := svc.Load(context.Background(), "cv-missing")
	require.ErrorIs(t, err, common.ErrNotFound)
}
