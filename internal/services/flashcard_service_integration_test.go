//go:build integration

package services

import (
	"context"
	"testing"
	"time"

	"prepapp/internal/config"
	"prepapp/internal/models"
	contextutils "prepapp/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlashcardFixture(t *testing.T) (*FlashcardService, *DeckService, *TrainingService, func()) {
	t.Helper()
	db := SharedTestDBSetup(t)
	decks := NewDeckService(db, testLogger())
	cards := NewFlashcardService(db, decks, NewSpacedRepetitionService(), testLogger())
	bank := NewQuestionBankService(db, testLogger())
	exposure := NewExposureService(db, testLogger())
	cfg := &config.Config{}
	training := NewTrainingService(db, bank, exposure, NewDisabledGenerator(),
		NewVarietyServiceWithLogger(cfg, testLogger()), cards, cfg, testLogger())
	return cards, decks, training, func() { db.Close() }
}

func sampleMistake(text, topic string) models.AnsweredQuestion {
	return models.AnsweredQuestion{
		QuestionText:       text,
		Options:            []string{"uno", "dos", "tres", "cuatro"},
		CorrectAnswerIndex: 2,
		UserAnswer:         0,
		Explanation:        "la tercera es la correcta",
		Topic:              topic,
	}
}

func TestFlashcardService_CreateFromMistakes(t *testing.T) {
	cards, decks, training, cleanup := newFlashcardFixture(t)
	defer cleanup()
	ctx := context.Background()

	attempt, err := training.SubmitQuizResult(ctx, "user-1", &QuizSubmission{
		Topic:          "Cardiología",
		Difficulty:     config.DifficultyIntermediate,
		Score:          0,
		TotalQuestions: 1,
	})
	require.NoError(t, err)

	created, err := cards.CreateFromMistakes(ctx, "user-1",
		[]models.AnsweredQuestion{sampleMistake("¿Fallada?", "Cardiología")},
		"Cardiología", attempt.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	deckID, err := decks.EnsureSystemDeck(ctx, "user-1", "entrenamiento")
	require.NoError(t, err)
	list, err := cards.GetDeckCards(ctx, "user-1", deckID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	card := list[0]
	assert.Equal(t, "¿Fallada?", card.Front)
	assert.Equal(t, "tres\n\n💡 la tercera es la correcta", card.Back)
	assert.Equal(t, "Cardiología", card.Topic.String)
	assert.Equal(t, attempt.AttemptID, card.SourceQuizID.String)
	assert.Zero(t, card.IntervalDays)
	assert.InDelta(t, config.InitialEasinessFactor, card.EasinessFactor, 0.0001)

	// Same mistake again: the front already exists, nothing is duplicated
	created, err = cards.CreateFromMistakes(ctx, "user-1",
		[]models.AnsweredQuestion{sampleMistake("¿Fallada?", "Cardiología")},
		"Cardiología", attempt.AttemptID)
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestFlashcardService_CardCRUD(t *testing.T) {
	cards, decks, _, cleanup := newFlashcardFixture(t)
	defer cleanup()
	ctx := context.Background()

	deck, err := decks.CreateDeck(ctx, "user-1", "Manual", nil, nil)
	require.NoError(t, err)

	card, err := cards.CreateCard(ctx, "user-1", deck.ID, "  frente  ", "  dorso  ")
	require.NoError(t, err)
	assert.Equal(t, "frente", card.Front)
	assert.Equal(t, "dorso", card.Back)
	assert.Equal(t, "Manual", card.Topic.String, "manual cards inherit the deck name as topic")

	updated, err := cards.UpdateCardContent(ctx, "user-1", card.ID, "frente 2", "dorso 2")
	require.NoError(t, err)
	assert.Equal(t, "frente 2", updated.Front)

	// Other users cannot touch the card
	_, err = cards.UpdateCardContent(ctx, "user-2", card.ID, "x", "y")
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeFlashcardNotFound, contextutils.GetErrorCode(err))

	require.NoError(t, cards.DeleteCard(ctx, "user-1", card.ID))
	err = cards.DeleteCard(ctx, "user-1", card.ID)
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeFlashcardNotFound, contextutils.GetErrorCode(err))
}

func TestFlashcardService_GetDueFlashcards(t *testing.T) {
	cards, decks, _, cleanup := newFlashcardFixture(t)
	defer cleanup()
	ctx := context.Background()

	deckA, err := decks.CreateDeck(ctx, "user-1", "A", nil, nil)
	require.NoError(t, err)
	deckB, err := decks.CreateDeck(ctx, "user-1", "B", nil, nil)
	require.NoError(t, err)

	dueA, err := cards.CreateCard(ctx, "user-1", deckA.ID, "a", "1")
	require.NoError(t, err)
	_, err = cards.CreateCard(ctx, "user-1", deckB.ID, "b", "2")
	require.NoError(t, err)
	future, err := cards.CreateCard(ctx, "user-1", deckA.ID, "c", "3")
	require.NoError(t, err)

	_, err = cards.db.ExecContext(ctx, `
		UPDATE user_flashcards SET next_review_at = NOW() + INTERVAL '3 days'
		WHERE id = $1`, future.ID)
	require.NoError(t, err)

	due, err := cards.GetDueFlashcards(ctx, "user-1", nil)
	require.NoError(t, err)
	assert.Len(t, due, 2, "future cards are not due")

	due, err = cards.GetDueFlashcards(ctx, "user-1", &deckA.ID)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, dueA.ID, due[0].ID)
}

func TestFlashcardService_ProcessReviewPersistsSchedule(t *testing.T) {
	cards, decks, _, cleanup := newFlashcardFixture(t)
	defer cleanup()
	ctx := context.Background()

	deck, err := decks.CreateDeck(ctx, "user-1", "Repaso", nil, nil)
	require.NoError(t, err)
	card, err := cards.CreateCard(ctx, "user-1", deck.ID, "frente", "dorso")
	require.NoError(t, err)

	reviewed, err := cards.ProcessReview(ctx, "user-1", card.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, reviewed.IntervalDays)
	assert.Equal(t, 1, reviewed.RepetitionNumber)
	assert.True(t, reviewed.LastReviewedAt.Valid)
	assert.True(t, reviewed.NextReviewAt.After(time.Now().Add(23*time.Hour)))

	// A failed review resets the schedule and brings the card back shortly
	failed, err := cards.ProcessReview(ctx, "user-1", card.ID, 1)
	require.NoError(t, err)
	assert.Zero(t, failed.IntervalDays)
	assert.Zero(t, failed.RepetitionNumber)
	assert.True(t, failed.NextReviewAt.Before(time.Now().Add(2*time.Minute)))
	assert.Less(t, failed.EasinessFactor, reviewed.EasinessFactor)

	// Reviewing someone else's card behaves as not-found
	_, err = cards.ProcessReview(ctx, "user-2", card.ID, 4)
	require.Error(t, err)
	assert.Equal(t, contextutils.ErrorCodeFlashcardNotFound, contextutils.GetErrorCode(err))
}
