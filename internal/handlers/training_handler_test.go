package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"prepapp/internal/config"
	"prepapp/internal/middleware"
	"prepapp/internal/models"
	"prepapp/internal/services"
	contextutils "prepapp/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doRequest(t *testing.T, router http.Handler, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(middleware.UserIDHeader, userID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestTrainingRoutes_RequireUserHeader(t *testing.T) {
	router := newTestRouter(nil, nil, nil)

	w := doRequest(t, router, http.MethodPost, "/v1/training/questions", "", `{"count": 5}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(contextutils.ErrorCodeUnauthorized), resp["code"])
}

func TestTrainingHandler_GetQuestions(t *testing.T) {
	var gotUserID string
	var gotReq *services.QuestionBatchRequest
	training := &stubTrainingService{
		getQuestionsFn: func(_ context.Context, userID string, req *services.QuestionBatchRequest) (*models.QuestionBatch, error) {
			gotUserID = userID
			gotReq = req
			return &models.QuestionBatch{
				Questions: []models.Question{{ID: "q1", Topic: "Cardiología", Options: []string{"a", "b", "c", "d"}}},
				Source:    config.SourceBank,
				Topic:     "Cardiología",
			}, nil
		},
	}
	router := newTestRouter(training, nil, nil)

	w := doRequest(t, router, http.MethodPost, "/v1/training/questions", "user-1",
		`{"target": "ENAM", "areas": ["Cardiología"], "difficulty": "Intermedio", "count": 5}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", gotUserID)
	require.NotNil(t, gotReq)
	assert.Equal(t, 5, gotReq.Count)

	var batch models.QuestionBatch
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &batch))
	assert.Equal(t, config.SourceBank, batch.Source)
	require.Len(t, batch.Questions, 1)
	assert.Equal(t, "q1", batch.Questions[0].ID)
}

func TestTrainingHandler_GetQuestionsValidatesBody(t *testing.T) {
	router := newTestRouter(nil, nil, nil)

	// Missing count
	w := doRequest(t, router, http.MethodPost, "/v1/training/questions", "user-1", `{"target": "ENAM"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Count below minimum
	w = doRequest(t, router, http.MethodPost, "/v1/training/questions", "user-1", `{"count": 0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrainingHandler_GetQuestionsInsufficientBank(t *testing.T) {
	training := &stubTrainingService{
		getQuestionsFn: func(context.Context, string, *services.QuestionBatchRequest) (*models.QuestionBatch, error) {
			return nil, &services.InsufficientBankError{Available: 4, Requested: 100}
		},
	}
	router := newTestRouter(training, nil, nil)

	w := doRequest(t, router, http.MethodPost, "/v1/training/questions", "user-1", `{"count": 100}`)

	require.Equal(t, http.StatusConflict, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INSUFFICIENT_QUESTION_BANK", resp["code"])
	assert.Equal(t, float64(4), resp["available"])
	assert.Equal(t, float64(100), resp["requested"])
}

func TestTrainingHandler_SubmitResult(t *testing.T) {
	var gotSubmission *services.QuizSubmission
	training := &stubTrainingService{
		submitResultFn: func(_ context.Context, _ string, submission *services.QuizSubmission) (*services.QuizSubmissionResult, error) {
			gotSubmission = submission
			return &services.QuizSubmissionResult{AttemptID: "attempt-1", FlashcardsCreated: 2}, nil
		},
	}
	router := newTestRouter(training, nil, nil)

	body := `{
		"topic": "Cardiología",
		"target": "ENAM",
		"difficulty": "Intermedio",
		"score": 1,
		"totalQuestions": 2,
		"createFlashcards": true,
		"questions": [
			{"question_id": "q1", "question": "¿Uno?", "options": ["a", "b"], "correctAnswerIndex": 0, "userAnswer": 0, "explanation": "porque a", "topic": "Cardiología"},
			{"question": "¿Dos?", "options": ["a", "b"], "correctAnswerIndex": 1, "userAnswer": 0}
		]
	}`
	w := doRequest(t, router, http.MethodPost, "/v1/training/results", "user-1", body)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, gotSubmission)
	assert.True(t, gotSubmission.CreateFlashcards)
	require.Len(t, gotSubmission.Questions, 2)

	// Every submitted field must survive the conversion into the model form
	first := gotSubmission.Questions[0]
	assert.Equal(t, "q1", first.QuestionID)
	assert.Equal(t, "¿Uno?", first.QuestionText)
	assert.Equal(t, []string{"a", "b"}, first.Options)
	assert.Equal(t, 0, first.CorrectAnswerIndex)
	assert.Equal(t, 0, first.UserAnswer)
	assert.Equal(t, "porque a", first.Explanation)
	assert.Equal(t, "Cardiología", first.Topic)
	assert.True(t, first.IsCorrect())

	assert.Equal(t, 1, gotSubmission.Questions[1].CorrectAnswerIndex)
	assert.False(t, gotSubmission.Questions[1].IsCorrect())

	var resp services.QuizSubmissionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "attempt-1", resp.AttemptID)
	assert.Equal(t, 2, resp.FlashcardsCreated)
}

func TestTrainingHandler_SubmitResultRejectsOutOfRangeAnswer(t *testing.T) {
	router := newTestRouter(nil, nil, nil)

	body := `{
		"topic": "Cardiología",
		"score": 0,
		"totalQuestions": 1,
		"questions": [
			{"question": "¿Uno?", "options": ["a", "b"], "correctAnswerIndex": 5, "userAnswer": 0}
		]
	}`
	w := doRequest(t, router, http.MethodPost, "/v1/training/results", "user-1", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrainingHandler_GetEvolution(t *testing.T) {
	var gotContext string
	var gotTarget *string
	training := &stubTrainingService{
		getEvolutionFn: func(_ context.Context, _ string, contextName string, target *string) ([]models.EvolutionPoint, error) {
			gotContext = contextName
			gotTarget = target
			return []models.EvolutionPoint{{AttemptID: "a1", Score: 15, TotalQuestions: 20, Score20: 15}}, nil
		},
	}
	router := newTestRouter(training, nil, nil)

	w := doRequest(t, router, http.MethodGet, "/v1/training/evolution?context=MEDICINA&target=ENAM", "user-1", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MEDICINA", gotContext)
	require.NotNil(t, gotTarget)
	assert.Equal(t, "ENAM", *gotTarget)

	var resp struct {
		Evolution []models.EvolutionPoint `json:"evolution"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Evolution, 1)
	assert.Equal(t, "a1", resp.Evolution[0].AttemptID)
}

func TestTrainingHandler_ServiceErrorsMapToStatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"generator unavailable", contextutils.ErrGeneratorUnavailable, http.StatusServiceUnavailable},
		{"generator bad response", contextutils.ErrGeneratorResponseInvalid, http.StatusBadGateway},
		{"internal error", contextutils.ErrInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			training := &stubTrainingService{
				getQuestionsFn: func(context.Context, string, *services.QuestionBatchRequest) (*models.QuestionBatch, error) {
					return nil, tt.err
				},
			}
			router := newTestRouter(training, nil, nil)
			w := doRequest(t, router, http.MethodPost, "/v1/training/questions", "user-1", `{"count": 5}`)
			assert.Equal(t, tt.expected, w.Code)
		})
	}
}
