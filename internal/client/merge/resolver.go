// Package merge reconciles a freshly fetched remote certificate snapshot
// against whatever is sitting in the local store. It is a pure function
// invoked once per certificate load, unit-testable in isolation from storage
// and network.
package merge

import (
	"time"

	"github.com/certsync/certsync/internal/client/models"
)

// RemoteSnapshot is the gateway's view of a certificate, decoupled from the
// transport so the resolver stays pure.
type RemoteSnapshot struct {
	ID        string
	Data      models.CertificateData
	UpdatedAt time.Time
}

// Result is the outcome of a resolve: the record the UI should render and
// whether it should be written back to the local store as the new baseline.
type Result struct {
	// Record is the merged state. Nil only when both inputs were absent.
	Record *models.CertificateRecord

	// WriteBack is true when Record differs from what the local store
	// holds and should be persisted as the new baseline.
	WriteBack bool
}

// Resolve combines the remote snapshot (possibly nil, if the gateway was
// unreachable) with the local record (possibly nil, if never edited on this
// device).
//
// Precedence: remote is the base when both exist, but a list-valued
// sub-collection or optional section that is empty on the remote side and
// non-empty locally keeps the local value. This protects circuits and
// observations captured offline from being erased by an emptier remote
// snapshot, e.g. right after creation before the first sync completed.
//
// This is a single-editor heuristic, not a CRDT: it favors never losing
// offline work over perfect convergence.
func Resolve(remote *RemoteSnapshot, local *models.CertificateRecord) Result {
	switch {
	case remote == nil && local == nil:
		return Result{}
	case remote == nil:
		// fully offline open
		return Result{Record: local}
	case local == nil:
		rec := &models.CertificateRecord{
			ID:           remote.ID,
			Data:         remote.Data,
			Dirty:        false,
			UpdatedAt:    remote.UpdatedAt,
			LastSyncedAt: remote.UpdatedAt,
		}
		return Result{Record: rec, WriteBack: true}
	}

	merged := remote.Data
	kept := false

	if len(merged.Boards) == 0 && len(local.Data.Boards) > 0 {
		merged.Boards = local.Data.Boards
		kept = true
	}
	if len(merged.Circuits) == 0 && len(local.Data.Circuits) > 0 {
		merged.Circuits = local.Data.Circuits
		kept = true
	}
	if len(merged.Observations) == 0 && len(local.Data.Observations) > 0 {
		merged.Observations = local.Data.Observations
		kept = true
	}
	if len(merged.InspectionItems) == 0 && len(local.Data.InspectionItems) > 0 {
		merged.InspectionItems = local.Data.InspectionItems
		kept = true
	}
	if merged.Supply == nil && local.Data.Supply != nil {
		merged.Supply = local.Data.Supply
		kept = true
	}
	if merged.Installation == nil && local.Data.Installation != nil {
		merged.Installation = local.Data.Installation
		kept = true
	}
	if merged.Declaration == nil && local.Data.Declaration != nil {
		merged.Declaration = local.Data.Declaration
		kept = true
	}

	rec := &models.CertificateRecord{
		ID:   local.ID,
		Data: merged,
		// A record that still carries local-only values, or was already
		// dirty, has unsynced work and must stay dirty.
		Dirty:        kept || local.Dirty,
		UpdatedAt:    local.UpdatedAt,
		LastSyncedAt: local.LastSyncedAt,
	}
	if remote.UpdatedAt.After(rec.UpdatedAt) {
		rec.UpdatedAt = remote.UpdatedAt
	}
	return Result{Record: rec, WriteBack: true}
}
