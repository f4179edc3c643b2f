package session

import "errors"

// Sentinel errors for the session package. Check with errors.Is.
var (
	// ErrSessionNotFound means no session with the given ID is registered.
	ErrSessionNotFound = errors.New("session: not found")

	// ErrSessionClosed means the session has completed; no further ratings
	// or transitions are accepted.
	ErrSessionClosed = errors.New("session: already completed")

	// ErrSessionPaused means a rating was submitted against a paused
	// session; resume it first.
	ErrSessionPaused = errors.New("session: paused")

	// ErrCardNotInSession means the submitted card is not the current card
	// of the session queue.
	ErrCardNotInSession = errors.New("session: card not in session")

	// ErrStoreUnavailable wraps a failure of the persistence collaborator.
	// The rating was not applied; the caller may retry the same submission.
	ErrStoreUnavailable = errors.New("session: store unavailable")
)
