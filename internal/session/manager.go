package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ragcore/ragcore/internal/config"
	"github.com/ragcore/ragcore/pkg/clock"
	"github.com/ragcore/ragcore/pkg/idgen"
)

// ErrNotFound reports that the caller's session id is unknown or has
// expired.
var ErrNotFound = errors.New("session: not found")

// lockAcquireTimeout bounds how long the sweeper (and, defensively, Acquire
// callers) wait for a session's per-ask mutex, so a session in active use
// is never destroyed mid-request and a wedged request cannot block the
// sweeper forever.
const lockAcquireTimeout = 2 * time.Second

type entry struct {
	lock   chanMutex
	record Record
}

// Manager owns session lifecycle and rolling dialog memory. Sessions
// are created lazily, identified by opaque high-entropy IDs, and destroyed
// by a background sweeper once their inactivity timeout elapses.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	cfg      *config.Store
	clock    clock.Clock
}

// NewManager constructs a Manager backed by cfg's session-timeout and
// window-size settings.
func NewManager(cfg *config.Store, clk clock.Clock) *Manager {
	return &Manager{
		sessions: make(map[string]*entry),
		cfg:      cfg,
		clock:    clk,
	}
}

// Create issues a new session with an empty history and zeroed
// clarification counter.
func (m *Manager) Create(ctx context.Context) (Record, error) {
	cfg := m.cfg.Get()
	now := m.clock.Now()
	rec := Record{
		ID:           idgen.Session(),
		CreatedAt:    now,
		LastActivity: now,
		Timeout:      time.Duration(cfg.SessionTimeoutSeconds) * time.Second,
		WindowK:      cfg.WindowK,
	}
	e := &entry{lock: newChanMutex(), record: rec}

	m.mu.Lock()
	m.sessions[rec.ID] = e
	m.mu.Unlock()

	return rec.clone(), nil
}

// SeedHistory seeds a freshly created session's rolling history from
// client-supplied turns: a one-time seed applied only at creation, never a
// merge into an existing server-side record.
func (m *Manager) SeedHistory(ctx context.Context, id string, turns []Turn) error {
	return m.mutate(ctx, id, func(r *Record) {
		for _, t := range turns {
			r.appendTurn(t)
		}
	})
}

// lockLive acquires id's per-session mutex and verifies the session has not
// expired, removing it if it has. The caller must unlock the returned entry.
func (m *Manager) lockLive(ctx context.Context, id string) (*entry, error) {
	e, ok := m.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}
	if !e.lock.lockContext(ctx, lockAcquireTimeout) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("session: acquire %q: %w", id, err)
		}
		return nil, fmt.Errorf("session: acquire %q: lock timeout", id)
	}
	if e.record.Expired(m.clock.Now()) {
		e.lock.unlock()
		m.remove(id)
		return nil, ErrNotFound
	}
	return e, nil
}

// Get looks up id, advancing last_activity to now on a hit, or returns
// ErrNotFound if the id is unknown or its inactivity timeout has elapsed.
func (m *Manager) Get(ctx context.Context, id string) (Record, error) {
	e, err := m.lockLive(ctx, id)
	if err != nil {
		return Record{}, err
	}
	defer e.lock.unlock()

	e.record.LastActivity = m.clock.Now()
	return e.record.clone(), nil
}

// Extend advances last_activity to now and returns the remaining seconds
// until the (reset) inactivity timeout, or ErrNotFound.
func (m *Manager) Extend(ctx context.Context, id string) (time.Duration, error) {
	e, err := m.lockLive(ctx, id)
	if err != nil {
		return 0, err
	}
	defer e.lock.unlock()

	e.record.LastActivity = m.clock.Now()
	return e.record.Timeout, nil
}

// End idempotently destroys the session, if present.
func (m *Manager) End(ctx context.Context, id string) {
	m.remove(id)
}

// AppendTurn appends turn to id's history, trimming to the configured
// window size.
func (m *Manager) AppendTurn(ctx context.Context, id string, turn Turn) error {
	return m.mutate(ctx, id, func(r *Record) {
		r.appendTurn(turn)
	})
}

// SetClarifyCount overwrites id's clarification counter.
func (m *Manager) SetClarifyCount(ctx context.Context, id string, count int) error {
	return m.mutate(ctx, id, func(r *Record) {
		r.ClarifyCount = count
	})
}

// IncrementClarifyCount increments id's clarification counter by one and
// returns the new value.
func (m *Manager) IncrementClarifyCount(ctx context.Context, id string) (int, error) {
	var out int
	err := m.mutate(ctx, id, func(r *Record) {
		r.ClarifyCount++
		out = r.ClarifyCount
	})
	return out, err
}

// SetPending records the question currently awaiting resolution and the
// assistant's last clarification text, if any ("" clears it).
func (m *Manager) SetPending(ctx context.Context, id string, question, clarification string) error {
	return m.mutate(ctx, id, func(r *Record) {
		r.PendingQuestion = question
		r.PendingClarification = clarification
	})
}

// SetLastRetrieval records the most recent retrieval's diagnostic snapshot.
func (m *Manager) SetLastRetrieval(ctx context.Context, id string, snap RetrievalSnapshot) error {
	return m.mutate(ctx, id, func(r *Record) {
		r.LastRetrieval = snap
	})
}

// mutate acquires id's per-ask mutex, applies fn to the live record, and
// releases the lock. Callers outside a single `ask` should prefer the
// narrower setters above; Acquire/Release below is for FSM callers that
// need to hold the lock across several of these calls.
func (m *Manager) mutate(ctx context.Context, id string, fn func(*Record)) error {
	e, err := m.lockLive(ctx, id)
	if err != nil {
		return err
	}
	defer e.lock.unlock()

	fn(&e.record)
	return nil
}

// Handle holds a session's per-ask mutex across the several mutations one
// router FSM run performs, so a whole ask is serialized per session without
// locking on every individual setter call.
type Handle struct {
	mgr *Manager
	id  string
	e   *entry
}

// Acquire locks id's session for the duration of one ask. The returned
// Handle must be released exactly once via Release.
func (m *Manager) Acquire(ctx context.Context, id string) (*Handle, error) {
	e, err := m.lockLive(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Handle{mgr: m, id: id, e: e}, nil
}

// Release unlocks the session's mutex. Safe to call once; a nil Handle is a
// no-op.
func (h *Handle) Release() {
	if h == nil {
		return
	}
	h.e.lock.unlock()
}

// Touch advances last_activity to now.
func (h *Handle) Touch() {
	h.e.record.LastActivity = h.mgr.clock.Now()
}

// Now returns the manager's clock's current time, so FSM callers stamp
// turns with the same injectable clock sessions use for TTL bookkeeping.
func (h *Handle) Now() time.Time {
	return h.mgr.clock.Now()
}

// Record returns a copy of the session's current state.
func (h *Handle) Record() Record {
	return h.e.record.clone()
}

// AppendTurn appends turn to the held session's history.
func (h *Handle) AppendTurn(turn Turn) {
	h.e.record.appendTurn(turn)
}

// SetClarifyCount overwrites the held session's clarification counter.
func (h *Handle) SetClarifyCount(count int) {
	h.e.record.ClarifyCount = count
}

// IncrementClarifyCount increments the held session's clarification counter
// and returns the new value.
func (h *Handle) IncrementClarifyCount() int {
	h.e.record.ClarifyCount++
	return h.e.record.ClarifyCount
}

// SetPending records the pending question/clarification pair.
func (h *Handle) SetPending(question, clarification string) {
	h.e.record.PendingQuestion = question
	h.e.record.PendingClarification = clarification
}

// SetLastRetrieval records the most recent retrieval diagnostic snapshot.
func (h *Handle) SetLastRetrieval(snap RetrievalSnapshot) {
	h.e.record.LastRetrieval = snap
}

func (m *Manager) lookup(id string) (*entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	return e, ok
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Count returns the number of live (not yet swept) sessions, for
// diagnostics.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
