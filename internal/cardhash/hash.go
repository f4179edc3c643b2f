package cardhash

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/recallkit/recall/internal/domain"
)

// Normalize concatenates the card's content after cleaning each part.
// It trims whitespace, lowercases, and normalizes line endings for each field
// before joining them, so formatting-only edits do not change a card's
// identity on import.
func Normalize(card domain.Card) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	q := normalizePart(card.Prompt)
	a := normalizePart(card.Answer)
	c := normalizePart(card.Context)

	// Joined with a newline so adjacent fields cannot run together and
	// collide, e.g. "prompt" + "answer" becoming "promptanswer".
	return strings.Join([]string{q, a, c}, "\n")
}

// Hash normalizes a card's content and returns its SHA-256 hash as hex.
func Hash(card domain.Card) string {
	normalized := Normalize(card)
	hashBytes := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", hashBytes)
}
