package services

import (
	"testing"
	"time"

	"prepapp/internal/config"
	"prepapp/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestSpacedRepetition_FirstSuccessfulReview(t *testing.T) {
	service := NewSpacedRepetitionService()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	state := models.ReviewState{
		IntervalDays:     0,
		EasinessFactor:   config.InitialEasinessFactor,
		RepetitionNumber: 0,
	}

	result := service.Review(state, 4, now)

	assert.Equal(t, 1, result.IntervalDays)
	assert.Equal(t, 1, result.RepetitionNumber)
	assert.Equal(t, now.AddDate(0, 0, 1), result.NextReviewAt)
	// q=4: EF delta is 0.1 - 1*(0.08 + 1*0.02) = 0
	assert.InDelta(t, 2.5, result.EasinessFactor, 0.0001)
}

func TestSpacedRepetition_SecondSuccessfulReview(t *testing.T) {
	service := NewSpacedRepetitionService()
	now := time.Now()

	state := models.ReviewState{
		IntervalDays:     1,
		EasinessFactor:   2.5,
		RepetitionNumber: 1,
	}

	result := service.Review(state, 5, now)

	assert.Equal(t, 6, result.IntervalDays)
	assert.Equal(t, 2, result.RepetitionNumber)
	assert.Equal(t, now.AddDate(0, 0, 6), result.NextReviewAt)
	// q=5 is the only grade that raises EF
	assert.InDelta(t, 2.6, result.EasinessFactor, 0.0001)
}

func TestSpacedRepetition_MatureCardGrowsByEasinessFactor(t *testing.T) {
	service := NewSpacedRepetitionService()
	now := time.Now()

	state := models.ReviewState{
		IntervalDays:     6,
		EasinessFactor:   2.5,
		RepetitionNumber: 2,
	}

	result := service.Review(state, 4, now)

	// round(6 * 2.5) = 15
	assert.Equal(t, 15, result.IntervalDays)
	assert.Equal(t, 3, result.RepetitionNumber)
	assert.Equal(t, now.AddDate(0, 0, 15), result.NextReviewAt)
}

func TestSpacedRepetition_FailureResetsAndReschedulesWithinSession(t *testing.T) {
	service := NewSpacedRepetitionService()
	now := time.Now()

	state := models.ReviewState{
		IntervalDays:     15,
		EasinessFactor:   2.5,
		RepetitionNumber: 3,
	}

	result := service.Review(state, 1, now)

	assert.Equal(t, 0, result.IntervalDays)
	assert.Equal(t, 0, result.RepetitionNumber)
	assert.Equal(t, now.Add(config.FailureRescheduleDelay), result.NextReviewAt)
	// EF is penalized even on failure: 2.5 + 0.1 - 4*(0.08 + 4*0.02) = 1.96
	assert.InDelta(t, 1.96, result.EasinessFactor, 0.0001)
}

func TestSpacedRepetition_EasinessFactorNeverDropsBelowFloor(t *testing.T) {
	service := NewSpacedRepetitionService()
	now := time.Now()

	state := models.ReviewState{
		IntervalDays:     1,
		EasinessFactor:   config.MinEasinessFactor,
		RepetitionNumber: 1,
	}

	// Repeated total blackouts must not push EF under the floor
	for i := 0; i < 5; i++ {
		result := service.Review(state, 0, now)
		assert.GreaterOrEqual(t, result.EasinessFactor, config.MinEasinessFactor)
		state = result.ReviewState
	}
}

func TestSpacedRepetition_ZeroEasinessFactorDefaults(t *testing.T) {
	service := NewSpacedRepetitionService()
	now := time.Now()

	// Cards created before the scheduler ran have no EF yet
	state := models.ReviewState{}

	result := service.Review(state, 3, now)

	assert.Equal(t, 1, result.IntervalDays)
	// q=3 from the initial EF: 2.5 + 0.1 - 2*(0.08 + 2*0.02) = 2.36
	assert.InDelta(t, 2.36, result.EasinessFactor, 0.0001)
}

func TestClampQuality(t *testing.T) {
	assert.Equal(t, 0, ClampQuality(-3))
	assert.Equal(t, 0, ClampQuality(0))
	assert.Equal(t, 3, ClampQuality(3))
	assert.Equal(t, 5, ClampQuality(5))
	assert.Equal(t, 5, ClampQuality(9))
}

func TestSpacedRepetition_SuccessBoundaryGrade(t *testing.T) {
	service := NewSpacedRepetitionService()
	now := time.Now()

	state := models.ReviewState{
		IntervalDays:     6,
		EasinessFactor:   2.0,
		RepetitionNumber: 2,
	}

	// Grade 3 is the lowest passing grade
	result := service.Review(state, 3, now)
	assert.Equal(t, 12, result.IntervalDays)
	assert.Equal(t, 3, result.RepetitionNumber)

	// Grade 2 fails
	result = service.Review(state, 2, now)
	assert.Equal(t, 0, result.IntervalDays)
	assert.Equal(t, 0, result.RepetitionNumber)
}
