// Package services orchestrates the local store, merge resolver, gateway and
// sync coordinator behind the entry points the capture UI calls.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/certsync/certsync/internal/client/gateway"
	"github.com/certsync/certsync/internal/client/merge"
	"github.com/certsync/certsync/internal/client/models"
	"github.com/certsync/certsync/internal/client/repositories/attachments"
	"github.com/certsync/certsync/internal/client/repositories/certificates"
	"github.com/certsync/certsync/internal/common"
	"github.com/certsync/certsync/internal/logging"
	"github.com/google/uuid"
)

// Notifier is the slice of the sync coordinator the service needs: a poke
// that a record became dirty.
type Notifier interface {
	Notify()
}

// CertificateService is the capture UI's entry point into the sync engine.
type CertificateService interface {
	// Create starts a brand new certificate under a temporary id and
	// returns the stored record. It never touches the network; the
	// coordinator promotes the id on first successful sync.
	Create(ctx context.Context, data models.CertificateData) (*models.CertificateRecord, error)

	// Persist durably writes an edit and notifies the coordinator. A
	// storage failure is returned synchronously; it is fatal to the edit.
	Persist(ctx context.Context, id string, data models.CertificateData) error

	// Load opens a certificate for editing: best-effort remote fetch,
	// local read, merge, and baseline write-back. A slow or failed fetch
	// falls back to local state and never fails the open on its own.
	Load(ctx context.Context, id string) (*models.CertificateRecord, error)

	// Attach queues a local file for upload with the certificate.
	Attach(ctx context.Context, certificateID, path, contentType string) (*models.Attachment, error)

	// List returns every locally known certificate.
	List(ctx context.Context) ([]*models.CertificateRecord, error)
}

type certificateService struct {
	certs        certificates.Repository
	atts         attachments.Repository
	gw           gateway.Client
	coordinator  Notifier
	log          logging.Logger
	fetchTimeout time.Duration
	now          func() time.Time
}

// NewCertificateService wires the service. fetchTimeout bounds the load-time
// remote fetch.
func NewCertificateService(certs certificates.Repository, atts attachments.Repository, gw gateway.Client, coordinator Notifier, log logging.Logger, fetchTimeout time.Duration) CertificateService {
	return &certificateService{
		certs:        certs,
		atts:         atts,
		gw:           gw,
		coordinator:  coordinator,
		log:          log,
		fetchTimeout: fetchTimeout,
		now:          time.Now,
	}
}

func (s *certificateService) Create(ctx context.Context, data models.CertificateData) (*models.CertificateRecord, error) {
	rec := &models.CertificateRecord{
		ID:        common.NewTempID(),
		Data:      data,
		Dirty:     true,
		UpdatedAt: s.now(),
	}
	if err := s.certs.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store new certificate: %w", err)
	}

	s.coordinator.Notify()
	return rec, nil
}

func (s *certificateService) Persist(ctx context.Context, id string, data models.CertificateData) error {
	rec := &models.CertificateRecord{
		ID:        id,
		Data:      data,
		Dirty:     true,
		UpdatedAt: s.now(),
	}

	// preserve the last-synced stamp across edits
	if existing, err := s.certs.Get(ctx, id); err == nil {
		rec.LastSyncedAt = existing.LastSyncedAt
	}

	if err := s.certs.Put(ctx, rec); err != nil {
		return fmt.Errorf("failed to persist edit: %w", err)
	}

	s.coordinator.Notify()
	return nil
}

func (s *certificateService) Load(ctx context.Context, id string) (*models.CertificateRecord, error) {
	var remote *merge.RemoteSnapshot

	// temporary ids are unknown to the gateway by definition
	if !common.IsTempID(id) {
		fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
		snap, err := s.gw.Fetch(fetchCtx, id)
		cancel()
		switch {
		case err == nil:
			remote = &merge.RemoteSnapshot{ID: snap.ID, Data: snap.Data, UpdatedAt: snap.UpdatedAt}
		case errors.Is(err, common.ErrNotFound):
			// nothing remote yet
		default:
			s.log.Warn(ctx, "remote fetch failed, opening from local store", "id", id, "error", err)
		}
	}

	local, err := s.certs.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("failed to read local record: %w", err)
		}
		local = nil
	}

	res := merge.Resolve(remote, local)
	if res.Record == nil {
		return nil, common.ErrNotFound
	}

	if res.WriteBack {
		if err := s.certs.Put(ctx, res.Record); err != nil {
			return nil, fmt.Errorf("failed to write merged baseline: %w", err)
		}
		if res.Record.Dirty {
			s.coordinator.Notify()
		}
	}

	return res.Record, nil
}

func (s *certificateService) Attach(ctx context.Context, certificateID, path, contentType string) (*models.Attachment, error) {
	if _, err := s.certs.Get(ctx, certificateID); err != nil {
		return nil, fmt.Errorf("unknown certificate %s: %w", certificateID, err)
	}

	a := &models.Attachment{
		ID:            uuid.NewString(),
		CertificateID: certificateID,
		Path:          path,
		ContentType:   contentType,
		CreatedAt:     s.now(),
	}
	if err := s.atts.Add(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to queue attachment: %w", err)
	}

	s.coordinator.Notify()
	return a, nil
}

func (s *certificateService) List(ctx context.Context) ([]*models.CertificateRecord, error) {
	return s.certs.List(ctx)
}
