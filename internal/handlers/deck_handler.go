package handlers

import (
	"net/http"

	"prepapp/internal/config"
	"prepapp/internal/middleware"
	"prepapp/internal/observability"
	"prepapp/internal/services"
	contextutils "prepapp/internal/utils"

	"github.com/gin-gonic/gin"
)

// DeckHandler handles deck hierarchy HTTP requests
type DeckHandler struct {
	deckService      services.DeckServiceInterface
	flashcardService services.FlashcardServiceInterface
	cfg              *config.Config
	logger           *observability.Logger
}

// NewDeckHandler creates a new DeckHandler
func NewDeckHandler(deckService services.DeckServiceInterface, flashcardService services.FlashcardServiceInterface, cfg *config.Config, logger *observability.Logger) *DeckHandler {
	return &DeckHandler{
		deckService:      deckService,
		flashcardService: flashcardService,
		cfg:              cfg,
		logger:           logger,
	}
}

// ListDecks lists the user's root decks, or the children of ?parent_id
func (h *DeckHandler) ListDecks(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "list_decks")
	defer observability.FinishSpan(span, nil)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}
	span.SetAttributes(observability.AttributeUserID(userID))

	var parentID *string
	if p := c.Query("parent_id"); p != "" {
		parentID = &p
	}

	decks, err := h.deckService.ListDecks(ctx, userID, parentID)
	if err != nil {
		h.logger.Error(ctx, "Failed to list decks", err, map[string]interface{}{"user_id": userID})
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"decks": decks})
}

// GetDeck returns one deck with its aggregates
func (h *DeckHandler) GetDeck(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_deck")
	defer observability.FinishSpan(span, nil)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}
	deckID := c.Param("id")
	span.SetAttributes(
		observability.AttributeUserID(userID),
		observability.AttributeDeckID(deckID),
	)

	deck, err := h.deckService.GetDeck(ctx, userID, deckID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, deck)
}

type createDeckRequest struct {
	Name     string  `json:"name" binding:"required"`
	Icon     *string `json:"icon"`
	ParentID *string `json:"parent_id"`
}

// CreateDeck creates a user deck, optionally nested under a parent
func (h *DeckHandler) CreateDeck(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "create_deck")
	defer observability.FinishSpan(span, nil)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}
	span.SetAttributes(observability.AttributeUserID(userID))

	var req createDeckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", nil, err.Error())
		return
	}

	deck, err := h.deckService.CreateDeck(ctx, userID, req.Name, req.Icon, req.ParentID)
	if err != nil {
		h.logger.Error(ctx, "Failed to create deck", err, map[string]interface{}{
			"user_id": userID,
			"name":    req.Name,
		})
		HandleAppError(c, err)
		return
	}

	span.SetAttributes(observability.AttributeDeckID(deck.ID))
	c.JSON(http.StatusCreated, deck)
}

type updateDeckRequest struct {
	Name *string `json:"name"`
	Icon *string `json:"icon"`
}

// UpdateDeck renames a deck or changes its icon
func (h *DeckHandler) UpdateDeck(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "update_deck")
	defer observability.FinishSpan(span, nil)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}
	deckID := c.Param("id")
	span.SetAttributes(
		observability.AttributeUserID(userID),
		observability.AttributeDeckID(deckID),
	)

	var req updateDeckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", nil, err.Error())
		return
	}

	deck, err := h.deckService.UpdateDeck(ctx, userID, deckID, &services.DeckUpdate{
		Name: req.Name,
		Icon: req.Icon,
	})
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, deck)
}

// DeleteDeck removes a deck and its whole subtree
func (h *DeckHandler) DeleteDeck(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "delete_deck")
	defer observability.FinishSpan(span, nil)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}
	deckID := c.Param("id")
	span.SetAttributes(
		observability.AttributeUserID(userID),
		observability.AttributeDeckID(deckID),
	)

	if err := h.deckService.DeleteDeck(ctx, userID, deckID); err != nil {
		HandleAppError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetDeckCards lists the cards in a deck, newest first
func (h *DeckHandler) GetDeckCards(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_deck_cards")
	defer observability.FinishSpan(span, nil)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}
	deckID := c.Param("id")
	span.SetAttributes(
		observability.AttributeUserID(userID),
		observability.AttributeDeckID(deckID),
	)

	cards, err := h.flashcardService.GetDeckCards(ctx, userID, deckID)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cards": cards})
}

type createCardRequest struct {
	Front string `json:"front" binding:"required"`
	Back  string `json:"back" binding:"required"`
}

// CreateCard creates a manual flashcard in a deck
func (h *DeckHandler) CreateCard(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "create_card")
	defer observability.FinishSpan(span, nil)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}
	deckID := c.Param("id")
	span.SetAttributes(
		observability.AttributeUserID(userID),
		observability.AttributeDeckID(deckID),
	)

	var req createCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleValidationError(c, "request body", nil, err.Error())
		return
	}

	card, err := h.flashcardService.CreateCard(ctx, userID, deckID, req.Front, req.Back)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, card)
}
