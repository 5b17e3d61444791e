package services

import (
	"time"

	"prepapp/internal/config"
	"prepapp/internal/models"
)

// SpacedRepetitionService implements the SM-2 scheduling update for flashcards.
// It is pure: persistence of the resulting state happens in FlashcardService.
type SpacedRepetitionService struct{}

// NewSpacedRepetitionService creates a new SpacedRepetitionService
func NewSpacedRepetitionService() *SpacedRepetitionService {
	return &SpacedRepetitionService{}
}

// ClampQuality clamps a review quality grade into the valid 0..5 range
func ClampQuality(quality int) int {
	if quality < 0 {
		return 0
	}
	if quality > 5 {
		return 5
	}
	return quality
}

// Review applies one SM-2 update to a card's scheduling state.
//
// A grade of 3 or better is a success: the interval progresses 1 day, 6 days,
// then round(interval * EF). A grade below 3 resets repetitions and schedules
// the card one minute out so it comes back within the same session. The
// easiness factor is adjusted on every review, success or failure, and never
// drops below the floor.
func (s *SpacedRepetitionService) Review(state models.ReviewState, quality int, now time.Time) models.ReviewResult {
	quality = ClampQuality(quality)

	interval := state.IntervalDays
	ef := state.EasinessFactor
	if ef == 0 {
		ef = config.InitialEasinessFactor
	}
	reps := state.RepetitionNumber

	var nextReview time.Time

	if quality >= 3 {
		switch reps {
		case 0:
			interval = 1
		case 1:
			interval = 6
		default:
			interval = int(float64(interval)*ef + 0.5)
		}
		reps++
		nextReview = now.AddDate(0, 0, interval)
	} else {
		reps = 0
		interval = 0
		nextReview = now.Add(config.FailureRescheduleDelay)
	}

	// EF' = EF + (0.1 - (5 - q) * (0.08 + (5 - q) * 0.02)), applied on both branches
	q := float64(quality)
	ef += 0.1 - (5-q)*(0.08+(5-q)*0.02)
	if ef < config.MinEasinessFactor {
		ef = config.MinEasinessFactor
	}

	return models.ReviewResult{
		ReviewState: models.ReviewState{
			IntervalDays:     interval,
			EasinessFactor:   ef,
			RepetitionNumber: reps,
		},
		NextReviewAt: nextReview,
	}
}
