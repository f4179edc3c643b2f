// Package store persists cards and their scheduling state.
//
// The review engine depends only on the CardStore interface; the SQLite DB
// type and the in-memory Memory type both satisfy it. Both implementations
// return due cards in the same deterministic order: due date ascending, then
// last-reviewed ascending with never-reviewed cards first, then card ID.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/recallkit/recall/internal/domain"
	"github.com/recallkit/recall/internal/srs"
)

// Sentinel errors for the store package. Check with errors.Is.
var (
	ErrNotFound = errors.New("store: card not found")
)

// Filter narrows the due-card query at session start.
type Filter struct {
	DeckID string // empty matches every deck
	Limit  int    // 0 means no limit
}

// CardWithState pairs a card with its scheduling state.
type CardWithState struct {
	Card  domain.Card
	State srs.ScheduleState
}

// CardStore is the persistence boundary the review engine depends on.
//
// SaveScheduleState must be atomic per card: a failed save leaves the
// previous state intact. FindDue must reflect the latest committed state
// at call time.
type CardStore interface {
	// FindDue returns the user's cards with DueAt at or before now,
	// in deterministic review order.
	FindDue(ctx context.Context, userID string, filter Filter, now time.Time) ([]CardWithState, error)

	// Get returns the card and its state, or ErrNotFound.
	Get(ctx context.Context, cardID string) (*CardWithState, error)

	// SaveScheduleState replaces the card's scheduling state.
	// Returns ErrNotFound if the card does not exist.
	SaveScheduleState(ctx context.Context, cardID string, state srs.ScheduleState) error
}
