package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/recallkit/recall/internal/domain"
	"github.com/recallkit/recall/internal/srs"
)

// Memory is an in-memory CardStore. It is the reference implementation used
// by engine tests and is safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	cards map[string]CardWithState
}

var _ CardStore = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{cards: make(map[string]CardWithState)}
}

// InsertCard adds a card with its initial scheduling state.
func (m *Memory) InsertCard(ctx context.Context, card domain.Card, state srs.ScheduleState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.cards[card.ID]; exists {
		return fmt.Errorf("store: card %s already exists", card.ID)
	}
	m.cards[card.ID] = CardWithState{Card: card, State: state}
	return nil
}

// FindDue implements CardStore.
func (m *Memory) FindDue(ctx context.Context, userID string, filter Filter, now time.Time) ([]CardWithState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []CardWithState
	for _, cs := range m.cards {
		if cs.Card.UserID != userID {
			continue
		}
		if filter.DeckID != "" && cs.Card.DeckID != filter.DeckID {
			continue
		}
		if cs.State.Due(now) {
			due = append(due, cs)
		}
	}

	sortDue(due)

	if filter.Limit > 0 && len(due) > filter.Limit {
		due = due[:filter.Limit]
	}
	return due, nil
}

// Get implements CardStore.
func (m *Memory) Get(ctx context.Context, cardID string) (*CardWithState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cs, ok := m.cards[cardID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, cardID)
	}
	return &cs, nil
}

// SaveScheduleState implements CardStore.
func (m *Memory) SaveScheduleState(ctx context.Context, cardID string, state srs.ScheduleState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, ok := m.cards[cardID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, cardID)
	}
	cs.State = state
	m.cards[cardID] = cs
	return nil
}

// DeleteCard removes a card and its state. Returns ErrNotFound if absent.
func (m *Memory) DeleteCard(ctx context.Context, cardID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[cardID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, cardID)
	}
	delete(m.cards, cardID)
	return nil
}

// sortDue orders cards by due date ascending, then last-reviewed ascending
// with never-reviewed cards first, then card ID for a total order.
func sortDue(cards []CardWithState) {
	sort.Slice(cards, func(i, j int) bool {
		a, b := cards[i], cards[j]
		if !a.State.DueAt.Equal(b.State.DueAt) {
			return a.State.DueAt.Before(b.State.DueAt)
		}
		ar, br := a.State.LastReviewedAt, b.State.LastReviewedAt
		switch {
		case ar == nil && br != nil:
			return true
		case ar != nil && br == nil:
			return false
		case ar != nil && br != nil && !ar.Equal(*br):
			return ar.Before(*br)
		}
		return a.Card.ID < b.Card.ID
	})
}
