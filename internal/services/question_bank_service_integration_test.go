//go:build integration

package services

import (
	"context"
	"testing"

	"prepapp/internal/config"
	"prepapp/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedQuestion(topic, text string) *models.Question {
	return &models.Question{
		Domain:             config.DomainMedicine,
		Target:             toNullString(ptr(config.TargetENAM)),
		Topic:              topic,
		Difficulty:         config.DifficultyIntermediate,
		QuestionText:       text,
		Options:            []string{"uno", "dos", "tres", "cuatro"},
		CorrectOptionIndex: 1,
		Explanation:        "porque sí",
	}
}

func ptr(s string) *string { return &s }

func TestQuestionBankService_UpsertIsIdempotentByHash(t *testing.T) {
	db := SharedTestDBSetup(t)
	defer db.Close()
	service := NewQuestionBankService(db, testLogger())
	ctx := context.Background()

	q := seedQuestion("Cardiología", "¿Primera pregunta?")
	ids, err := service.UpsertQuestionBatch(ctx, []*models.Question{q})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	again := seedQuestion("Cardiología", "¿Primera pregunta?")
	ids2, err := service.UpsertQuestionBatch(ctx, []*models.Question{again})
	require.NoError(t, err)
	require.Len(t, ids2, 1)
	assert.Equal(t, ids[0], ids2[0], "same content must resolve to the same row")

	var timesUsed int
	require.NoError(t, db.QueryRow(
		`SELECT times_used FROM question_bank WHERE id = $1`, ids[0]).Scan(&timesUsed))
	assert.Equal(t, 2, timesUsed, "a hash collision counts as a reuse")
}

func TestQuestionBankService_GetMatchingQuestionsFiltersAndExcludes(t *testing.T) {
	db := SharedTestDBSetup(t)
	defer db.Close()
	service := NewQuestionBankService(db, testLogger())
	ctx := context.Background()

	seeds := []*models.Question{
		seedQuestion("Cardiología", "¿Cardio uno?"),
		seedQuestion("Cardiología", "¿Cardio dos?"),
		seedQuestion("Pediatría", "¿Pediatría uno?"),
	}
	_, err := service.UpsertQuestionBatch(ctx, seeds)
	require.NoError(t, err)

	target := config.TargetENAM
	questions, err := service.GetMatchingQuestions(ctx, config.DomainMedicine, &target,
		[]string{"Cardiología"}, config.DifficultyIntermediate, nil, 10)
	require.NoError(t, err)
	assert.Len(t, questions, 2)
	for _, q := range questions {
		assert.Equal(t, "Cardiología", q.Topic)
	}

	// Excluded ids never come back
	questions, err = service.GetMatchingQuestions(ctx, config.DomainMedicine, &target,
		[]string{"Cardiología"}, config.DifficultyIntermediate, []string{seeds[0].ID}, 10)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, seeds[1].ID, questions[0].ID)

	// Wrong difficulty matches nothing
	questions, err = service.GetMatchingQuestions(ctx, config.DomainMedicine, &target,
		[]string{"Cardiología"}, config.DifficultyAdvanced, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, questions)
}

func TestQuestionBankService_GetMatchingQuestionsIncrementsUsage(t *testing.T) {
	db := SharedTestDBSetup(t)
	defer db.Close()
	service := NewQuestionBankService(db, testLogger())
	ctx := context.Background()

	q := seedQuestion("Cardiología", "¿Uso?")
	_, err := service.UpsertQuestionBatch(ctx, []*models.Question{q})
	require.NoError(t, err)

	target := config.TargetENAM
	_, err = service.GetMatchingQuestions(ctx, config.DomainMedicine, &target,
		[]string{"Cardiología"}, config.DifficultyIntermediate, nil, 10)
	require.NoError(t, err)

	var timesUsed int
	require.NoError(t, db.QueryRow(
		`SELECT times_used FROM question_bank WHERE id = $1`, q.ID).Scan(&timesUsed))
	assert.Equal(t, 2, timesUsed, "upsert sets 1, the read bumps it")
}

func TestQuestionBankService_BulkImportRefreshesContent(t *testing.T) {
	db := SharedTestDBSetup(t)
	defer db.Close()
	service := NewQuestionBankService(db, testLogger())
	ctx := context.Background()

	q := seedQuestion("Cardiología", "¿Importada?")
	count, err := service.BulkImportQuestions(ctx, []*models.Question{q})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Re-importing the same content with a corrected explanation wins
	fixed := seedQuestion("Cardiología", "¿Importada?")
	fixed.Explanation = "explicación corregida"
	count, err = service.BulkImportQuestions(ctx, []*models.Question{fixed})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, q.ID, fixed.ID)

	var explanation string
	require.NoError(t, db.QueryRow(
		`SELECT explanation FROM question_bank WHERE id = $1`, q.ID).Scan(&explanation))
	assert.Equal(t, "explicación corregida", explanation)
}

func TestQuestionBankService_SampleNegativeContext(t *testing.T) {
	db := SharedTestDBSetup(t)
	defer db.Close()
	service := NewQuestionBankService(db, testLogger())
	ctx := context.Background()

	_, err := service.UpsertQuestionBatch(ctx, []*models.Question{
		seedQuestion("Cardiología", "¿Contexto uno?"),
		seedQuestion("Cardiología", "¿Contexto dos?"),
	})
	require.NoError(t, err)

	target := config.TargetENAM
	texts, err := service.SampleNegativeContext(ctx, config.DomainMedicine, &target,
		[]string{"Cardiología"}, 1)
	require.NoError(t, err)
	require.Len(t, texts, 1)
	assert.Contains(t, []string{"¿Contexto uno?", "¿Contexto dos?"}, texts[0])
}
