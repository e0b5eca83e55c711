// Package syncer drives dirty certificate records from the local store to
// the remote gateway. The coordinator is a plain service object with its own
// lifecycle; the UI only observes it through Subscribe and pokes it through
// Notify and SyncNow.
package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/certsync/certsync/internal/client/gateway"
	"github.com/certsync/certsync/internal/client/models"
	"github.com/certsync/certsync/internal/client/repositories/attachments"
	"github.com/certsync/certsync/internal/client/repositories/certificates"
	"github.com/certsync/certsync/internal/common"
	"github.com/certsync/certsync/internal/logging"
	"github.com/sethvargo/go-retry"
)

// Config holds the coordinator's timing knobs.
type Config struct {
	// Interval is the background sync cadence.
	Interval time.Duration

	// RequestTimeout bounds each gateway call.
	RequestTimeout time.Duration

	// InitialBackoff and MaxBackoff shape the retry schedule after
	// transport failures.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns the timings used when the caller does not care.
func DefaultConfig() Config {
	return Config{
		Interval:       30 * time.Second,
		RequestTimeout: 12 * time.Second,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     2 * time.Minute,
	}
}

// Coordinator watches for dirty records and pushes them to the gateway on a
// schedule, on demand, and when connectivity returns. It enforces at most
// one in-flight push per certificate id and never clears a record that was
// edited while its push was in flight.
type Coordinator struct {
	certs certificates.Repository
	atts  attachments.Repository
	gw    gateway.Client
	log   logging.Logger
	cfg   Config
	clock Clock

	// OnPromote, when set before Start, is invoked after a temporary id is
	// promoted so the consumer can re-address itself to the permanent id.
	OnPromote func(tempID, permID string)

	notifyCh chan struct{}
	onlineCh chan bool

	mu        sync.Mutex
	inFlight  map[string]struct{}
	parked    map[string]string // record id -> rejection reason, until manual retry
	backoff   retry.Backoff     // nil while the gateway is reachable
	nextRetry time.Time

	statusMu  sync.Mutex
	status    Status
	subs      map[int]func(Status)
	nextSubID int

	cancel context.CancelFunc
	done   chan struct{}
}

// NewCoordinator wires a coordinator over the local store and the gateway.
func NewCoordinator(certs certificates.Repository, atts attachments.Repository, gw gateway.Client, log logging.Logger, cfg Config) *Coordinator {
	if cfg.Interval <= 0 {
		cfg = DefaultConfig()
	}
	return &Coordinator{
		certs:    certs,
		atts:     atts,
		gw:       gw,
		log:      log,
		cfg:      cfg,
		clock:    realClock{},
		notifyCh: make(chan struct{}, 1),
		onlineCh: make(chan bool, 1),
		inFlight: make(map[string]struct{}),
		parked:   make(map[string]string),
		subs:     make(map[int]func(Status)),
		status:   Status{State: StateIdle},
	}
}

// Start launches the background loop. Stop (or cancelling ctx) shuts it
// down; a push in flight at teardown is simply abandoned, the record stays
// dirty and the next start retries it.
func (c *Coordinator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.run(ctx)
}

// Stop terminates the background loop and waits for it to exit.
func (c *Coordinator) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

// Notify tells the coordinator that a local record became dirty. Safe to
// call from any goroutine; signals are coalesced but a signal arriving while
// a pass is running always produces a follow-up pass.
func (c *Coordinator) Notify() {
	select {
	case c.notifyCh <- struct{}{}:
	default:
	}
}

// SyncNow requests an immediate, out-of-schedule sync attempt. It also
// un-parks records that previously failed with a non-retryable rejection, so
// an explicit user retry gets a fresh push.
func (c *Coordinator) SyncNow() {
	c.mu.Lock()
	c.parked = make(map[string]string)
	c.backoff = nil
	c.nextRetry = time.Time{}
	c.mu.Unlock()

	c.Notify()
}

// SetOnline feeds the external connectivity signal. A transition to online
// triggers an immediate catch-up pass.
func (c *Coordinator) SetOnline(online bool) {
	select {
	case c.onlineCh <- online:
	default:
	}
}

// WatchOnline probes the gateway on the given interval and feeds SetOnline.
// Intended to run as a goroutine next to Start.
func (c *Coordinator) WatchOnline(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
			err := c.gw.Ping(pingCtx)
			cancel()
			c.SetOnline(err == nil)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Coordinator) run(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	// pick up records left dirty by a previous process
	c.pass(ctx, false)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.retryDue() {
				c.pass(ctx, false)
			}
		case <-c.notifyCh:
			c.pass(ctx, false)
		case online := <-c.onlineCh:
			if online {
				c.mu.Lock()
				c.backoff = nil
				c.nextRetry = time.Time{}
				c.mu.Unlock()
				c.pass(ctx, false)
			} else {
				c.publish(Status{State: StateOffline, Pending: c.pendingCount(ctx)})
			}
		}
	}
}

// retryDue reports whether the backoff window after a transport failure has
// elapsed.
func (c *Coordinator) retryDue() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextRetry.IsZero() || !c.clock.Now().Before(c.nextRetry)
}

// SyncOnce performs one full synchronous pass over the dirty records. Used
// by the one-shot CLI sync command; the background loop runs the same code.
func (c *Coordinator) SyncOnce(ctx context.Context) error {
	return c.pass(ctx, true)
}

type passOutcome struct {
	transportErr error
	rejection    string
	synced       bool
}

// pass pushes every dirty record once, then drains attachment queues.
// manual passes ignore the parked set (explicit retry).
func (c *Coordinator) pass(ctx context.Context, manual bool) error {
	dirty, err := c.certs.ListDirty(ctx)
	if err != nil {
		c.log.Error(ctx, "failed to list dirty records", "error", err)
		return err
	}

	if len(dirty) == 0 {
		owners, err := c.atts.CertificatesWithPending(ctx)
		if err != nil {
			c.log.Error(ctx, "failed to list pending attachments", "error", err)
			return err
		}
		if len(owners) == 0 {
			c.publish(Status{State: StateIdle})
			return nil
		}
	}

	c.publish(Status{State: StateSyncing, Pending: len(dirty)})

	var outcome passOutcome

	for _, rec := range dirty {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.mu.Lock()
		_, reject := c.parked[rec.ID]
		_, busy := c.inFlight[rec.ID]
		if (reject && !manual) || busy {
			c.mu.Unlock()
			continue
		}
		c.inFlight[rec.ID] = struct{}{}
		c.mu.Unlock()

		err := c.push(ctx, rec)

		c.mu.Lock()
		delete(c.inFlight, rec.ID)
		c.mu.Unlock()

		c.recordOutcome(ctx, rec.ID, err, &outcome)
		if errors.Is(err, gateway.ErrUnavailable) {
			// no point hammering the remaining records while offline
			break
		}
	}

	// attachment queues are drained after the record pushes, so uploads for
	// a just-promoted certificate see its permanent id
	if outcome.transportErr == nil {
		owners, err := c.atts.CertificatesWithPending(ctx)
		if err != nil {
			c.log.Error(ctx, "failed to list pending attachments", "error", err)
		} else {
			for _, certID := range owners {
				if common.IsTempID(certID) {
					// uploads wait for id promotion
					continue
				}
				if err := c.pushAttachments(ctx, certID); err != nil {
					c.recordOutcome(ctx, certID, err, &outcome)
					break
				}
			}
		}
	}

	c.publishOutcome(ctx, &outcome)

	// a record that was edited mid-push is still dirty: schedule a
	// follow-up pass rather than coalescing the edit away
	if outcome.transportErr == nil {
		if remaining, err := c.certs.ListDirty(ctx); err == nil && c.hasRunnable(remaining) {
			c.Notify()
		}
	}

	if outcome.transportErr != nil {
		return outcome.transportErr
	}
	return nil
}

// hasRunnable reports whether any of the records would actually be pushed on
// the next pass (i.e. not parked), so follow-up notifications cannot spin on
// permanently rejected records.
func (c *Coordinator) hasRunnable(recs []*models.CertificateRecord) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, rec := range recs {
		if _, parked := c.parked[rec.ID]; !parked {
			return true
		}
	}
	return false
}

// push sends one record to the gateway: a create for temporary ids (with id
// promotion on success), an idempotent upsert otherwise.
func (c *Coordinator) push(ctx context.Context, rec *models.CertificateRecord) error {
	// everything the gateway accepts is judged against this write time;
	// a newer local edit keeps the record dirty
	basedOn := rec.UpdatedAt

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	if common.IsTempID(rec.ID) {
		res, err := c.gw.Create(callCtx, rec.ID, &rec.Data)
		if err != nil {
			return err
		}

		promoted, err := c.certs.Promote(ctx, rec.ID, res.ID, c.clock.Now(), basedOn)
		if err != nil {
			return err
		}

		c.log.Info(ctx, "certificate promoted", "temp_id", rec.ID, "id", promoted.ID)
		if c.OnPromote != nil {
			c.OnPromote(rec.ID, promoted.ID)
		}
		return nil
	}

	if _, err := c.gw.Update(callCtx, rec.ID, &rec.Data); err != nil {
		return err
	}

	cleared, err := c.certs.ClearDirty(ctx, rec.ID, c.clock.Now(), basedOn)
	if err != nil {
		return err
	}
	if !cleared {
		c.log.Debug(ctx, "record edited during push, keeping dirty", "id", rec.ID)
	}
	return nil
}

// pushAttachments uploads every queued attachment for a certificate.
func (c *Coordinator) pushAttachments(ctx context.Context, certificateID string) error {
	pending, err := c.atts.ListPending(ctx, certificateID)
	if err != nil {
		return err
	}

	for _, a := range pending {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
		upload, err := c.gw.PresignAttachment(callCtx, certificateID, a)
		if err == nil {
			err = c.gw.UploadAttachment(callCtx, upload, a)
		}
		cancel()
		if err != nil {
			return err
		}

		if err := c.atts.MarkUploaded(ctx, a.ID); err != nil {
			return err
		}
		c.log.Info(ctx, "attachment uploaded", "id", a.ID, "certificate_id", certificateID)
	}
	return nil
}

// recordOutcome folds one push result into the pass outcome and parks
// non-retryable rejections.
func (c *Coordinator) recordOutcome(ctx context.Context, id string, err error, outcome *passOutcome) {
	switch {
	case err == nil:
		outcome.synced = true
	case gateway.IsRetryable(err):
		outcome.transportErr = err
	default:
		var rejected *gateway.RejectedError
		reason := err.Error()
		if errors.As(err, &rejected) {
			reason = rejected.Reason
		}
		c.mu.Lock()
		c.parked[id] = reason
		c.mu.Unlock()
		outcome.rejection = reason
		c.log.Warn(ctx, "push rejected", "id", id, "reason", reason)
	}
}

// publishOutcome converts the pass outcome into a status transition and, on
// transport failure, arms the backoff schedule.
func (c *Coordinator) publishOutcome(ctx context.Context, outcome *passOutcome) {
	pending := c.pendingCount(ctx)

	switch {
	case outcome.transportErr != nil:
		c.mu.Lock()
		if c.backoff == nil {
			b := retry.NewExponential(c.cfg.InitialBackoff)
			b = retry.WithCappedDuration(c.cfg.MaxBackoff, b)
			c.backoff = b
		}
		delay, _ := c.backoff.Next()
		c.nextRetry = c.clock.Now().Add(delay)
		c.mu.Unlock()

		c.log.Warn(ctx, "gateway unreachable, will retry", "delay", delay, "pending", pending)
		c.publish(Status{State: StateOffline, Pending: pending})

	case outcome.rejection != "":
		c.publish(Status{State: StateError, Pending: pending, LastError: outcome.rejection})

	case outcome.synced:
		c.mu.Lock()
		c.backoff = nil
		c.nextRetry = time.Time{}
		c.mu.Unlock()
		c.publish(Status{State: StateSuccess, Pending: pending, LastSyncedAt: c.clock.Now()})

	default:
		c.publish(Status{State: StateIdle, Pending: pending})
	}
}

func (c *Coordinator) pendingCount(ctx context.Context) int {
	dirty, err := c.certs.ListDirty(ctx)
	if err != nil {
		return 0
	}
	return len(dirty)
}
