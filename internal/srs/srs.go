// Package srs implements a minimal SM-2-style spaced repetition scheduler.
//
// The scheduler is a pure transformation over a card's ScheduleState: it does
// no I/O, holds no hidden state, and is safe to call concurrently. Intervals
// are calendar days: a review scheduled N days out lands on the same
// time-of-day N civil days later, regardless of when during the day the
// rating was submitted.
package srs

import (
	"fmt"
	"math"
	"time"
)

// ScheduleState is the scheduling state attached 1:1 to a card.
type ScheduleState struct {
	RepetitionCount int        `json:"repetition_count"`
	EaseFactor      float64    `json:"ease_factor"`
	IntervalDays    int        `json:"interval_days"`
	DueAt           time.Time  `json:"due_at"`
	LastReviewedAt  *time.Time `json:"last_reviewed_at,omitempty"` // nil before first review
}

// Due reports whether the card is due at the given time.
func (s ScheduleState) Due(now time.Time) bool {
	return !s.DueAt.After(now)
}

// Params holds the tunable constants of the scheduler.
type Params struct {
	MinEase         float64 // floor for the ease factor
	MaxEase         float64 // ceiling for the ease factor
	StartEase       float64 // ease factor assigned to fresh cards
	AgainPenalty    float64 // ease decrease on failure
	HardPenalty     float64 // ease decrease on a hard success
	EasyBonus       float64 // ease increase on an easy success
	FirstInterval   int     // days after the first success following a reset
	SecondInterval  int     // days after the second consecutive success
	MaxIntervalDays int     // ceiling for computed intervals
}

// DefaultParams returns the stock SM-2 constants.
func DefaultParams() *Params {
	return &Params{
		MinEase:         1.3,
		MaxEase:         5.0,
		StartEase:       2.5,
		AgainPenalty:    0.2,
		HardPenalty:     0.15,
		EasyBonus:       0.15,
		FirstInterval:   1,
		SecondInterval:  6,
		MaxIntervalDays: 36500,
	}
}

// NewState returns the state for a freshly created card: zero interval,
// due immediately, never reviewed.
func (p *Params) NewState(now time.Time) ScheduleState {
	return ScheduleState{
		EaseFactor: p.StartEase,
		DueAt:      now,
	}
}

// Review computes the state after grading a review at the given time.
//
// Again resets the repetition count, schedules one day out, and applies the
// ease penalty. A success increments the count and schedules FirstInterval,
// then SecondInterval, then round(previous interval × ease factor) days out,
// with the ease factor nudged by the grade first. The ease factor always
// stays within [MinEase, MaxEase] and a success interval is never below one
// day. A successful review never moves the due date earlier than it already
// was, so rating a card ahead of schedule cannot pull it closer.
//
// An invalid rating returns ErrInvalidRating and the input state unchanged.
func (p *Params) Review(state ScheduleState, rating Rating, now time.Time) (ScheduleState, error) {
	if !rating.IsValid() {
		return state, fmt.Errorf("%w: %d", ErrInvalidRating, int(rating))
	}

	next := state

	ease := state.EaseFactor
	if ease == 0 {
		// State predates ease tracking; treat as fresh.
		ease = p.StartEase
	}

	if rating == Again {
		next.RepetitionCount = 0
		next.EaseFactor = p.clampEase(ease - p.AgainPenalty)
		next.IntervalDays = p.FirstInterval
		next.DueAt = now.AddDate(0, 0, p.FirstInterval)
	} else {
		switch rating {
		case Hard:
			ease -= p.HardPenalty
		case Easy:
			ease += p.EasyBonus
		}
		next.EaseFactor = p.clampEase(ease)

		next.RepetitionCount = state.RepetitionCount + 1
		switch next.RepetitionCount {
		case 1:
			next.IntervalDays = p.FirstInterval
		case 2:
			next.IntervalDays = p.SecondInterval
		default:
			next.IntervalDays = int(math.Round(float64(state.IntervalDays) * next.EaseFactor))
		}
		if next.IntervalDays < 1 {
			next.IntervalDays = 1
		}
		if next.IntervalDays > p.MaxIntervalDays {
			next.IntervalDays = p.MaxIntervalDays
		}

		next.DueAt = now.AddDate(0, 0, next.IntervalDays)
		if next.DueAt.Before(state.DueAt) {
			next.DueAt = state.DueAt
		}
	}

	reviewed := now
	next.LastReviewedAt = &reviewed

	return next, nil
}

func (p *Params) clampEase(ease float64) float64 {
	if ease < p.MinEase {
		return p.MinEase
	}
	if ease > p.MaxEase {
		return p.MaxEase
	}
	return ease
}
