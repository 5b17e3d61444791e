package handlers

import (
	"net/http"

	"prepapp/internal/config"
	"prepapp/internal/middleware"
	"prepapp/internal/observability"
	"prepapp/internal/services"
	contextutils "prepapp/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// FlashcardHandler handles flashcard review HTTP requests
type FlashcardHandler struct {
	flashcardService services.FlashcardServiceInterface
	cfg              *config.Config
	logger           *observability.Logger
}

// NewFlashcardHandler creates a new FlashcardHandler
func NewFlashcardHandler(flashcardService services.FlashcardServiceInterface, cfg *config.Config, logger *observability.Logger) *FlashcardHandler {
	return &FlashcardHandler{
		flashcardService: flashcardService,
		cfg:              cfg,
		logger:           logger,
	}
}

// GetDueCards returns the cards due for review, optionally scoped to ?deck_id
func (h *FlashcardHandler) GetDueCards(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_due_cards")
	defer observability.FinishSpan(span, nil)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}
	span.SetAttributes(observability.AttributeUserID(userID))

	var deckID *string
	if d := c.Query("deck_id"); d != "" {
		deckID = &d
	}

	cards, err := h.flashcardService.GetDueFlashcards(ctx, userID, deckID)
	if err != nil {
		h.logger.Error(ctx, "Failed to get due flashcards", err, map[string]interface{}{"user_id": userID})
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(observability.AttributeCount(len(cards)))
	c.JSON(http.StatusOK, gin.H{"cards": cards})
}

type updateCardRequest struct {
	Front string `json:"front" binding:"required"`
	Back  string `json:"back" binding:"required"`
}

// UpdateCard edits a card's content
func (h *FlashcardHandler) UpdateCard(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "update_card")
	defer observability.FinishSpan(span, nil)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}
	cardID := c.Param("id")
	span.SetAttributes(
		observability.AttributeUserID(userID),
		attribute.String("flashcard.id", cardID),
	)

	var req updateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", nil, err.Error())
		return
	}

	card, err := h.flashcardService.UpdateCardContent(ctx, userID, cardID, req.Front, req.Back)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, card)
}

// DeleteCard removes a card
func (h *FlashcardHandler) DeleteCard(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "delete_card")
	defer observability.FinishSpan(span, nil)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}
	cardID := c.Param("id")
	span.SetAttributes(
		observability.AttributeUserID(userID),
		attribute.String("flashcard.id", cardID),
	)

	if err := h.flashcardService.DeleteCard(ctx, userID, cardID); err != nil {
		HandleAppError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type reviewCardRequest struct {
	Quality *int `json:"quality" binding:"required"`
}

// ReviewCard grades a card and returns its updated schedule
func (h *FlashcardHandler) ReviewCard(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "review_card")
	defer observability.FinishSpan(span, nil)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}
	cardID := c.Param("id")
	span.SetAttributes(
		observability.AttributeUserID(userID),
		attribute.String("flashcard.id", cardID),
	)

	var req reviewCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", nil, err.Error())
		return
	}

	card, err := h.flashcardService.ProcessReview(ctx, userID, cardID, *req.Quality)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("review.quality", services.ClampQuality(*req.Quality)))
	c.JSON(http.StatusOK, card)
}
