package srs

import "errors"

// Sentinel errors for the srs package. Check with errors.Is.
var (
	// ErrInvalidRating means the caller passed a rating outside the
	// closed grade set. The input state is never mutated in this case.
	ErrInvalidRating = errors.New("srs: invalid rating")
)
