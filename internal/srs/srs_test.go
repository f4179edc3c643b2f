package srs

import (
	"errors"
	"math"
	"testing"
	"time"
)

var testNow = time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)

func TestNewState(t *testing.T) {
	p := DefaultParams()
	state := p.NewState(testNow)

	if state.IntervalDays != 0 {
		t.Errorf("Expected interval 0 for a fresh card, got %d", state.IntervalDays)
	}
	if !state.Due(testNow) {
		t.Error("Expected a fresh card to be due immediately")
	}
	if state.EaseFactor != p.StartEase {
		t.Errorf("Expected ease %.2f, got %.2f", p.StartEase, state.EaseFactor)
	}
	if state.LastReviewedAt != nil {
		t.Error("Expected a fresh card to have no last review")
	}
}

func TestReviewAgain(t *testing.T) {
	p := DefaultParams()
	state := ScheduleState{
		RepetitionCount: 4,
		EaseFactor:      2.5,
		IntervalDays:    10,
		DueAt:           testNow,
	}

	next, err := p.Review(state, Again, testNow)
	if err != nil {
		t.Fatalf("Review returned an unexpected error: %v", err)
	}

	if next.RepetitionCount != 0 {
		t.Errorf("Expected repetition count reset to 0, got %d", next.RepetitionCount)
	}
	if next.IntervalDays != 1 {
		t.Errorf("Expected interval 1, got %d", next.IntervalDays)
	}
	// 2.5 - 0.2 penalty
	if math.Abs(next.EaseFactor-2.3) > 1e-9 {
		t.Errorf("Expected ease 2.3, got %.4f", next.EaseFactor)
	}
	if want := testNow.AddDate(0, 0, 1); !next.DueAt.Equal(want) {
		t.Errorf("Expected due %v, got %v", want, next.DueAt)
	}
	if next.LastReviewedAt == nil || !next.LastReviewedAt.Equal(testNow) {
		t.Errorf("Expected last reviewed at %v, got %v", testNow, next.LastReviewedAt)
	}
}

func TestReviewSuccessIntervals(t *testing.T) {
	p := DefaultParams()
	state := p.NewState(testNow)

	// Good three times on three separate due dates: 1, 6, round(6*2.5)=15.
	wantIntervals := []int{1, 6, 15}
	now := testNow
	for i, want := range wantIntervals {
		next, err := p.Review(state, Good, now)
		if err != nil {
			t.Fatalf("Review %d returned an unexpected error: %v", i+1, err)
		}
		if next.IntervalDays != want {
			t.Errorf("Review %d: expected interval %d, got %d", i+1, want, next.IntervalDays)
		}
		if next.RepetitionCount != i+1 {
			t.Errorf("Review %d: expected repetition count %d, got %d", i+1, i+1, next.RepetitionCount)
		}
		if !next.DueAt.After(now) {
			t.Errorf("Review %d: expected due after now, got %v", i+1, next.DueAt)
		}
		state = next
		now = next.DueAt
	}
}

func TestReviewEaseAdjustment(t *testing.T) {
	p := DefaultParams()
	base := ScheduleState{
		RepetitionCount: 2,
		EaseFactor:      2.5,
		IntervalDays:    6,
		DueAt:           testNow,
	}

	testCases := []struct {
		name     string
		rating   Rating
		wantEase float64
	}{
		{name: "hard decreases ease", rating: Hard, wantEase: 2.35},
		{name: "good leaves ease unchanged", rating: Good, wantEase: 2.5},
		{name: "easy increases ease", rating: Easy, wantEase: 2.65},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := p.Review(base, tc.rating, testNow)
			if err != nil {
				t.Fatalf("Review returned an unexpected error: %v", err)
			}
			if math.Abs(next.EaseFactor-tc.wantEase) > 1e-9 {
				t.Errorf("Expected ease %.2f, got %.4f", tc.wantEase, next.EaseFactor)
			}
		})
	}
}

func TestEaseFactorFloor(t *testing.T) {
	p := DefaultParams()
	state := p.NewState(testNow)
	now := testNow

	// Repeated Hard ratings must saturate at MinEase, never go below.
	for i := 0; i < 20; i++ {
		next, err := p.Review(state, Hard, now)
		if err != nil {
			t.Fatalf("Review %d returned an unexpected error: %v", i, err)
		}
		if next.EaseFactor < p.MinEase {
			t.Fatalf("Review %d: ease %.4f dropped below floor %.2f", i, next.EaseFactor, p.MinEase)
		}
		state = next
		now = next.DueAt
	}
	if math.Abs(state.EaseFactor-p.MinEase) > 1e-9 {
		t.Errorf("Expected ease to settle at floor %.2f, got %.4f", p.MinEase, state.EaseFactor)
	}
}

func TestEaseFactorCeiling(t *testing.T) {
	p := DefaultParams()
	state := p.NewState(testNow)
	now := testNow

	for i := 0; i < 30; i++ {
		next, err := p.Review(state, Easy, now)
		if err != nil {
			t.Fatalf("Review %d returned an unexpected error: %v", i, err)
		}
		if next.EaseFactor > p.MaxEase {
			t.Fatalf("Review %d: ease %.4f exceeded ceiling %.2f", i, next.EaseFactor, p.MaxEase)
		}
		state = next
		now = next.DueAt
	}
}

func TestReviewAgainAfterLongInterval(t *testing.T) {
	p := DefaultParams()
	state := ScheduleState{
		RepetitionCount: 5,
		EaseFactor:      2.5,
		IntervalDays:    10,
		DueAt:           testNow,
	}

	next, err := p.Review(state, Again, testNow)
	if err != nil {
		t.Fatalf("Review returned an unexpected error: %v", err)
	}
	if next.IntervalDays != 1 || next.RepetitionCount != 0 {
		t.Errorf("Expected reset to interval 1 count 0, got interval %d count %d",
			next.IntervalDays, next.RepetitionCount)
	}
	if math.Abs(next.EaseFactor-2.3) > 1e-9 {
		t.Errorf("Expected ease 2.3 after penalty, got %.4f", next.EaseFactor)
	}
}

func TestReviewInvalidRating(t *testing.T) {
	p := DefaultParams()
	state := ScheduleState{
		RepetitionCount: 3,
		EaseFactor:      2.2,
		IntervalDays:    4,
		DueAt:           testNow,
	}

	for _, bad := range []Rating{0, 5, -1, 99} {
		next, err := p.Review(state, bad, testNow)
		if !errors.Is(err, ErrInvalidRating) {
			t.Errorf("Rating %d: expected ErrInvalidRating, got %v", bad, err)
		}
		if next != state {
			t.Errorf("Rating %d: expected state unchanged, got %+v", bad, next)
		}
	}
}

func TestReviewIsPure(t *testing.T) {
	p := DefaultParams()
	state := ScheduleState{
		RepetitionCount: 2,
		EaseFactor:      2.1,
		IntervalDays:    6,
		DueAt:           testNow,
	}

	first, err := p.Review(state, Good, testNow)
	if err != nil {
		t.Fatalf("Review returned an unexpected error: %v", err)
	}
	second, err := p.Review(state, Good, testNow)
	if err != nil {
		t.Fatalf("Review returned an unexpected error: %v", err)
	}

	if first.RepetitionCount != second.RepetitionCount ||
		first.EaseFactor != second.EaseFactor ||
		first.IntervalDays != second.IntervalDays ||
		!first.DueAt.Equal(second.DueAt) {
		t.Errorf("Identical inputs produced different outputs:\n%+v\n%+v", first, second)
	}
}

func TestReviewDueDateMonotonic(t *testing.T) {
	p := DefaultParams()
	farDue := testNow.AddDate(0, 0, 30)
	state := ScheduleState{
		RepetitionCount: 1,
		EaseFactor:      2.5,
		IntervalDays:    30,
		DueAt:           farDue,
	}

	// Rating a card well ahead of schedule must not pull its due date earlier.
	next, err := p.Review(state, Good, testNow)
	if err != nil {
		t.Fatalf("Review returned an unexpected error: %v", err)
	}
	if next.DueAt.Before(farDue) {
		t.Errorf("Successful early review moved due date earlier: %v -> %v", farDue, next.DueAt)
	}

	// Failure is the documented exception: the card comes back in one day.
	failed, err := p.Review(state, Again, testNow)
	if err != nil {
		t.Fatalf("Review returned an unexpected error: %v", err)
	}
	if want := testNow.AddDate(0, 0, 1); !failed.DueAt.Equal(want) {
		t.Errorf("Expected failed card due %v, got %v", want, failed.DueAt)
	}
}

func TestReviewCalendarDays(t *testing.T) {
	p := DefaultParams()
	// Late-evening review: the due date keeps the time-of-day, so the card
	// lands on the same civil day offset regardless of review hour.
	evening := time.Date(2024, 3, 10, 23, 45, 0, 0, time.UTC)
	state := p.NewState(evening)

	next, err := p.Review(state, Good, evening)
	if err != nil {
		t.Fatalf("Review returned an unexpected error: %v", err)
	}
	want := time.Date(2024, 3, 11, 23, 45, 0, 0, time.UTC)
	if !next.DueAt.Equal(want) {
		t.Errorf("Expected due %v, got %v", want, next.DueAt)
	}
}

func TestReviewSuccessNeverDueNow(t *testing.T) {
	p := DefaultParams()
	state := p.NewState(testNow)

	for _, r := range []Rating{Hard, Good, Easy} {
		next, err := p.Review(state, r, testNow)
		if err != nil {
			t.Fatalf("Review(%v) returned an unexpected error: %v", r, err)
		}
		if next.IntervalDays < 1 {
			t.Errorf("Rating %v: expected interval >= 1, got %d", r, next.IntervalDays)
		}
		if !next.DueAt.After(testNow) {
			t.Errorf("Rating %v: expected due after now, got %v", r, next.DueAt)
		}
	}
}
