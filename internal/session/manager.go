package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/recallkit/recall/internal/srs"
	"github.com/recallkit/recall/internal/store"
)

// Manager orchestrates review sessions. It is constructed with explicit
// dependencies; there is no package-level state.
//
// The internal mutex protects the session registry and serializes operations
// coarsely. Concurrent rating submissions against the same session are not a
// supported workload (one active session per user, enforced upstream); the
// lock only keeps the registry itself consistent.
type Manager struct {
	store  store.CardStore
	params *srs.Params

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a Manager backed by the given store.
// A nil params uses srs.DefaultParams.
func NewManager(cs store.CardStore, params *srs.Params) *Manager {
	if params == nil {
		params = srs.DefaultParams()
	}
	return &Manager{
		store:    cs,
		params:   params,
		sessions: make(map[string]*Session),
	}
}

// Start selects the user's due cards and opens a session over them.
// The queue order is deterministic: most overdue first, never-reviewed cards
// before reviewed ones on ties, card ID as the final tiebreak (the store
// guarantees this ordering). An empty queue is not an error; the session is
// returned already completed.
func (m *Manager) Start(ctx context.Context, userID string, filter store.Filter, now time.Time) (*Session, error) {
	due, err := m.store.FindDue(ctx, userID, filter, now)
	if err != nil {
		return nil, fmt.Errorf("%w: finding due cards: %v", ErrStoreUnavailable, err)
	}

	queue := make([]string, len(due))
	for i, cs := range due {
		queue[i] = cs.Card.ID
	}

	sess := &Session{
		id:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		userID:    userID,
		queue:     queue,
		applied:   make(map[string]srs.Rating),
		state:     Created,
		startedAt: now,
	}
	if len(queue) == 0 {
		sess.state = Completed
	} else {
		sess.state = Active
	}

	m.mu.Lock()
	m.sessions[sess.id] = sess
	m.mu.Unlock()

	return sess, nil
}

// SubmitRating grades the current card of the session and persists the
// scheduler's output. Only the card at the front of the queue may be rated;
// anything else fails with ErrCardNotInSession.
//
// On store failure the cursor does not advance and the rating counts as
// not-yet-applied, so the caller can retry the same submission. A retry of
// an already-applied front rating (possible after restoring a checkpoint)
// advances without re-running the scheduler.
func (m *Manager) SubmitRating(ctx context.Context, sessionID, cardID string, rating srs.Rating, now time.Time) (srs.ScheduleState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return srs.ScheduleState{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	switch sess.state {
	case Completed:
		return srs.ScheduleState{}, fmt.Errorf("%w: %s", ErrSessionClosed, sessionID)
	case Paused:
		return srs.ScheduleState{}, fmt.Errorf("%w: %s", ErrSessionPaused, sessionID)
	}

	front, ok := sess.Current()
	if !ok {
		// Queue exhausted but state not yet terminal; close it out.
		sess.state = Completed
		return srs.ScheduleState{}, fmt.Errorf("%w: %s", ErrSessionClosed, sessionID)
	}
	if cardID != front {
		return srs.ScheduleState{}, fmt.Errorf("%w: %s is not the current card", ErrCardNotInSession, cardID)
	}

	if !rating.IsValid() {
		return srs.ScheduleState{}, fmt.Errorf("%w: %d", srs.ErrInvalidRating, int(rating))
	}

	current, err := m.store.Get(ctx, cardID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return srs.ScheduleState{}, err
		}
		return srs.ScheduleState{}, fmt.Errorf("%w: loading card %s: %v", ErrStoreUnavailable, cardID, err)
	}

	if prev, applied := sess.applied[cardID]; applied && prev == rating {
		// Replay after a restore: the state is already persisted.
		m.advance(sess)
		return current.State, nil
	}

	next, err := m.params.Review(current.State, rating, now)
	if err != nil {
		return srs.ScheduleState{}, err
	}

	if err := m.store.SaveScheduleState(ctx, cardID, next); err != nil {
		return srs.ScheduleState{}, fmt.Errorf("%w: saving card %s: %v", ErrStoreUnavailable, cardID, err)
	}

	sess.applied[cardID] = rating
	m.advance(sess)

	return next, nil
}

func (m *Manager) advance(sess *Session) {
	sess.cursor++
	if sess.cursor >= len(sess.queue) {
		sess.state = Completed
	}
}

// Pause suspends an active session. Pausing a paused session is a no-op.
func (m *Manager) Pause(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if sess.state == Completed {
		return fmt.Errorf("%w: %s", ErrSessionClosed, sessionID)
	}
	sess.state = Paused
	return nil
}

// Resume reactivates a paused session. Resuming an active session is a
// no-op.
func (m *Manager) Resume(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if sess.state == Completed {
		return nil, fmt.Errorf("%w: %s", ErrSessionClosed, sessionID)
	}
	sess.state = Active
	return sess, nil
}

// Get returns a registered session by ID.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return sess, nil
}

// Stats returns a progress snapshot of the session.
func (m *Manager) Stats(sessionID string) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return Stats{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return Stats{
		Reviewed:  sess.cursor,
		Remaining: len(sess.queue) - sess.cursor,
		StartedAt: sess.startedAt,
	}, nil
}

// Snapshot returns the serializable form of the session for checkpointing.
func (m *Manager) Snapshot(sessionID string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return sess.snapshot(), nil
}

// Restore registers a session rebuilt from a checkpoint, replacing any
// session already registered under the same ID.
func (m *Manager) Restore(snap Snapshot) (*Session, error) {
	if snap.ID == "" {
		return nil, fmt.Errorf("session: snapshot has no ID")
	}
	if !snap.State.isValid() {
		return nil, fmt.Errorf("session: snapshot has invalid state %d", int(snap.State))
	}
	if snap.Cursor < 0 || snap.Cursor > len(snap.Queue) {
		return nil, fmt.Errorf("session: snapshot cursor %d out of range for queue of %d", snap.Cursor, len(snap.Queue))
	}

	queue := make([]string, len(snap.Queue))
	copy(queue, snap.Queue)
	applied := make(map[string]srs.Rating, len(snap.Applied))
	for id, r := range snap.Applied {
		applied[id] = r
	}

	sess := &Session{
		id:        snap.ID,
		userID:    snap.UserID,
		queue:     queue,
		cursor:    snap.Cursor,
		applied:   applied,
		state:     snap.State,
		startedAt: snap.StartedAt,
	}

	m.mu.Lock()
	m.sessions[sess.id] = sess
	m.mu.Unlock()

	return sess, nil
}
