package handlers

import (
	"net/http"

	"prepapp/internal/config"
	"prepapp/internal/middleware"
	"prepapp/internal/models"
	"prepapp/internal/observability"
	"prepapp/internal/services"
	contextutils "prepapp/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// TrainingHandler handles training batch delivery, quiz submission and
// score evolution requests
type TrainingHandler struct {
	trainingService services.TrainingServiceInterface
	cfg             *config.Config
	logger          *observability.Logger
}

// NewTrainingHandler creates a new TrainingHandler
func NewTrainingHandler(trainingService services.TrainingServiceInterface, cfg *config.Config, logger *observability.Logger) *TrainingHandler {
	return &TrainingHandler{
		trainingService: trainingService,
		cfg:             cfg,
		logger:          logger,
	}
}

type trainingQuestionsRequest struct {
	Target     string   `json:"target"`
	Areas      []string `json:"areas"`
	Difficulty string   `json:"difficulty"`
	Count      int      `json:"count" binding:"required,min=1"`
}

// GetQuestions serves a training batch for the authenticated user
func (h *TrainingHandler) GetQuestions(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_training_questions")
	defer observability.FinishSpan(span, nil)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}
	span.SetAttributes(observability.AttributeUserID(userID))

	var req trainingQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", nil, err.Error())
		return
	}

	span.SetAttributes(
		observability.AttributeTarget(req.Target),
		observability.AttributeCount(req.Count),
	)

	batch, err := h.trainingService.GetQuestions(ctx, userID, &services.QuestionBatchRequest{
		Target:     req.Target,
		Areas:      req.Areas,
		Difficulty: req.Difficulty,
		Count:      req.Count,
	})
	if err != nil {
		h.logger.Error(ctx, "Failed to build training batch", err, map[string]interface{}{
			"user_id": userID,
			"target":  req.Target,
			"count":   req.Count,
		})
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(
		observability.AttributeSource(batch.Source),
		attribute.Int("questions.delivered", len(batch.Questions)),
	)
	c.JSON(http.StatusOK, batch)
}

type quizSubmissionRequest struct {
	Topic            string                       `json:"topic" binding:"required"`
	Target           string                       `json:"target"`
	Difficulty       string                       `json:"difficulty"`
	Areas            []string                     `json:"areas"`
	Score            int                          `json:"score" binding:"min=0"`
	TotalQuestions   int                          `json:"totalQuestions" binding:"required,min=1"`
	Questions        []submittedQuestion          `json:"questions"`
	CreateFlashcards bool                         `json:"createFlashcards"`
}

type submittedQuestion struct {
	QuestionID         string   `json:"question_id"`
	QuestionText       string   `json:"question" binding:"required"`
	Options            []string `json:"options" binding:"required,min=2"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
	UserAnswer         int      `json:"userAnswer"`
	Explanation        string   `json:"explanation"`
	Topic              string   `json:"topic"`
}

// toAnsweredQuestion converts a submitted question into its model form
func toAnsweredQuestion(q *submittedQuestion) models.AnsweredQuestion {
	return models.AnsweredQuestion{
		QuestionID:         q.QuestionID,
		QuestionText:       q.QuestionText,
		Options:            q.Options,
		CorrectAnswerIndex: q.CorrectAnswerIndex,
		UserAnswer:         q.UserAnswer,
		Explanation:        q.Explanation,
		Topic:              q.Topic,
	}
}

// SubmitResult records a finished quiz for the authenticated user
func (h *TrainingHandler) SubmitResult(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "submit_quiz_result")
	defer observability.FinishSpan(span, nil)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}
	span.SetAttributes(observability.AttributeUserID(userID))

	var req quizSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", nil, err.Error())
		return
	}

	submission := &services.QuizSubmission{
		Topic:            req.Topic,
		Target:           req.Target,
		Difficulty:       req.Difficulty,
		Areas:            req.Areas,
		Score:            req.Score,
		TotalQuestions:   req.TotalQuestions,
		CreateFlashcards: req.CreateFlashcards,
	}
	for i := range req.Questions {
		q := &req.Questions[i]
		if q.CorrectAnswerIndex < 0 || q.CorrectAnswerIndex >= len(q.Options) ||
			q.UserAnswer < 0 || q.UserAnswer >= len(q.Options) {
			HandleAppError(c, contextutils.WrapErrorf(contextutils.ErrInvalidAnswerIndex,
				"answer index out of range for question %d", i))
			return
		}
		submission.Questions = append(submission.Questions, toAnsweredQuestion(q))
	}

	result, err := h.trainingService.SubmitQuizResult(ctx, userID, submission)
	if err != nil {
		h.logger.Error(ctx, "Failed to submit quiz result", err, map[string]interface{}{
			"user_id": userID,
			"topic":   req.Topic,
		})
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("flashcards.created", result.FlashcardsCreated))
	c.JSON(http.StatusCreated, result)
}

// GetEvolution returns the authenticated user's recent score progression
func (h *TrainingHandler) GetEvolution(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_quiz_evolution")
	defer observability.FinishSpan(span, nil)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}
	span.SetAttributes(observability.AttributeUserID(userID))

	contextName := c.Query("context")
	var target *string
	if t := c.Query("target"); t != "" {
		target = &t
	}

	points, err := h.trainingService.GetQuizEvolution(ctx, userID, contextName, target)
	if err != nil {
		h.logger.Error(ctx, "Failed to get quiz evolution", err, map[string]interface{}{
			"user_id": userID,
			"context": contextName,
		})
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"evolution": points})
}
