package domain

import "time"

// Card is a single prompt-answer-context entry owned by one user.
// Content is opaque to scheduling; only identity and ownership matter there.
type Card struct {
	ID          string
	UserID      string
	DeckID      string // empty when the card belongs to no deck
	Prompt      string
	Answer      string
	Context     string
	ContentHash string
	SourceID    int64 // import provenance; zero for manually created cards
	CreatedAt   time.Time
}

// Deck groups cards for filtering at session start.
type Deck struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt time.Time
}

// ReviewLog records a single review event for a card.
// Rating values follow the srs package grades:
// 1: Again (failure)
// 2: Hard
// 3: Good
// 4: Easy
type ReviewLog struct {
	CardID     string
	Rating     int
	ReviewedAt time.Time
}
