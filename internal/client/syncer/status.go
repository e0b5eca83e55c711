package syncer

import "time"

// State is the coordinator's externally visible phase.
type State string

const (
	StateIdle    State = "idle"
	StateSyncing State = "syncing"
	StateSuccess State = "success"
	StateError   State = "error"
	StateOffline State = "offline"
)

// Status is what UI listeners receive on every transition: the phase, the
// number of dirty records still awaiting sync, the last rejection reason (if
// any), and the time of the most recent confirmed push.
type Status struct {
	State        State
	Pending      int
	LastError    string
	LastSyncedAt time.Time
}

// Subscribe registers a callback for status transitions and returns the
// matching unsubscribe function. The callback immediately receives the
// current status. Callbacks observe a monotonically non-decreasing
// LastSyncedAt; no other ordering guarantee is made.
func (c *Coordinator) Subscribe(fn func(Status)) func() {
	c.statusMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = fn
	current := c.status
	c.statusMu.Unlock()

	fn(current)

	return func() {
		c.statusMu.Lock()
		delete(c.subs, id)
		c.statusMu.Unlock()
	}
}

// publish updates the current status and fans it out to subscribers.
func (c *Coordinator) publish(s Status) {
	c.statusMu.Lock()
	// LastSyncedAt never moves backwards, whatever order pushes resolve in.
	if s.LastSyncedAt.Before(c.status.LastSyncedAt) {
		s.LastSyncedAt = c.status.LastSyncedAt
	}
	c.status = s
	listeners := make([]func(Status), 0, len(c.subs))
	for _, fn := range c.subs {
		listeners = append(listeners, fn)
	}
	c.statusMu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}

// CurrentStatus returns the last published status.
func (c *Coordinator) CurrentStatus() Status {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	return c.status
}
