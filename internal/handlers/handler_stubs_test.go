package handlers

import (
	"context"

	"prepapp/internal/config"
	"prepapp/internal/models"
	"prepapp/internal/observability"
	"prepapp/internal/services"

	"github.com/gin-gonic/gin"
)

// Hand-written service stubs for handler tests. Each method delegates to an
// optional function field so individual tests only wire what they exercise.

func newTestRouter(training services.TrainingServiceInterface, decks services.DeckServiceInterface, cards services.FlashcardServiceInterface) *gin.Engine {
	cfg := &config.Config{}
	cfg.Server.CORSOrigins = []string{"http://localhost:3000"}
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	if training == nil {
		training = &stubTrainingService{}
	}
	if decks == nil {
		decks = &stubDeckService{}
	}
	if cards == nil {
		cards = &stubFlashcardService{}
	}
	return NewRouter(cfg, training, decks, cards, logger)
}

type stubTrainingService struct {
	getQuestionsFn func(ctx context.Context, userID string, req *services.QuestionBatchRequest) (*models.QuestionBatch, error)
	submitResultFn func(ctx context.Context, userID string, submission *services.QuizSubmission) (*services.QuizSubmissionResult, error)
	getEvolutionFn func(ctx context.Context, userID, contextName string, target *string) ([]models.EvolutionPoint, error)
}

func (s *stubTrainingService) GetQuestions(ctx context.Context, userID string, req *services.QuestionBatchRequest) (*models.QuestionBatch, error) {
	if s.getQuestionsFn != nil {
		return s.getQuestionsFn(ctx, userID, req)
	}
	return &models.QuestionBatch{}, nil
}

func (s *stubTrainingService) SubmitQuizResult(ctx context.Context, userID string, submission *services.QuizSubmission) (*services.QuizSubmissionResult, error) {
	if s.submitResultFn != nil {
		return s.submitResultFn(ctx, userID, submission)
	}
	return &services.QuizSubmissionResult{}, nil
}

func (s *stubTrainingService) GetQuizEvolution(ctx context.Context, userID, contextName string, target *string) ([]models.EvolutionPoint, error) {
	if s.getEvolutionFn != nil {
		return s.getEvolutionFn(ctx, userID, contextName, target)
	}
	return nil, nil
}

type stubDeckService struct {
	listDecksFn        func(ctx context.Context, userID string, parentID *string) ([]models.DeckWithStats, error)
	getDeckFn          func(ctx context.Context, userID, deckID string) (*models.DeckWithStats, error)
	createDeckFn       func(ctx context.Context, userID, name string, icon, parentID *string) (*models.Deck, error)
	updateDeckFn       func(ctx context.Context, userID, deckID string, update *services.DeckUpdate) (*models.Deck, error)
	deleteDeckFn       func(ctx context.Context, userID, deckID string) error
	ensureSystemDeckFn func(ctx context.Context, userID, moduleTag string) (string, error)
}

func (s *stubDeckService) ListDecks(ctx context.Context, userID string, parentID *string) ([]models.DeckWithStats, error) {
	if s.listDecksFn != nil {
		return s.listDecksFn(ctx, userID, parentID)
	}
	return nil, nil
}

func (s *stubDeckService) GetDeck(ctx context.Context, userID, deckID string) (*models.DeckWithStats, error) {
	if s.getDeckFn != nil {
		return s.getDeckFn(ctx, userID, deckID)
	}
	return &models.DeckWithStats{}, nil
}

func (s *stubDeckService) CreateDeck(ctx context.Context, userID, name string, icon, parentID *string) (*models.Deck, error) {
	if s.createDeckFn != nil {
		return s.createDeckFn(ctx, userID, name, icon, parentID)
	}
	return &models.Deck{}, nil
}

func (s *stubDeckService) UpdateDeck(ctx context.Context, userID, deckID string, update *services.DeckUpdate) (*models.Deck, error) {
	if s.updateDeckFn != nil {
		return s.updateDeckFn(ctx, userID, deckID, update)
	}
	return &models.Deck{}, nil
}

func (s *stubDeckService) DeleteDeck(ctx context.Context, userID, deckID string) error {
	if s.deleteDeckFn != nil {
		return s.deleteDeckFn(ctx, userID, deckID)
	}
	return nil
}

func (s *stubDeckService) EnsureSystemDeck(ctx context.Context, userID, moduleTag string) (string, error) {
	if s.ensureSystemDeckFn != nil {
		return s.ensureSystemDeckFn(ctx, userID, moduleTag)
	}
	return "", nil
}

type stubFlashcardService struct {
	createFromMistakesFn func(ctx context.Context, userID string, mistakes []models.AnsweredQuestion, topic, attemptID string) (int, error)
	getDeckCardsFn       func(ctx context.Context, userID, deckID string) ([]models.Flashcard, error)
	createCardFn         func(ctx context.Context, userID, deckID, front, back string) (*models.Flashcard, error)
	updateCardContentFn  func(ctx context.Context, userID, cardID, front, back string) (*models.Flashcard, error)
	deleteCardFn         func(ctx context.Context, userID, cardID string) error
	getDueFlashcardsFn   func(ctx context.Context, userID string, deckID *string) ([]models.Flashcard, error)
	processReviewFn      func(ctx context.Context, userID, cardID string, quality int) (*models.Flashcard, error)
}

func (s *stubFlashcardService) CreateFromMistakes(ctx context.Context, userID string, mistakes []models.AnsweredQuestion, topic, attemptID string) (int, error) {
	if s.createFromMistakesFn != nil {
		return s.createFromMistakesFn(ctx, userID, mistakes, topic, attemptID)
	}
	return 0, nil
}

func (s *stubFlashcardService) GetDeckCards(ctx context.Context, userID, deckID string) ([]models.Flashcard, error) {
	if s.getDeckCardsFn != nil {
		return s.getDeckCardsFn(ctx, userID, deckID)
	}
	return nil, nil
}

func (s *stubFlashcardService) CreateCard(ctx context.Context, userID, deckID, front, back string) (*models.Flashcard, error) {
	if s.createCardFn != nil {
		return s.createCardFn(ctx, userID, deckID, front, back)
	}
	return &models.Flashcard{}, nil
}

func (s *stubFlashcardService) UpdateCardContent(ctx context.Context, userID, cardID, front, back string) (*models.Flashcard, error) {
	if s.updateCardContentFn != nil {
		return s.updateCardContentFn(ctx, userID, cardID, front, back)
	}
	return &models.Flashcard{}, nil
}

func (s *stubFlashcardService) DeleteCard(ctx context.Context, userID, cardID string) error {
	if s.deleteCardFn != nil {
		return s.deleteCardFn(ctx, userID, cardID)
	}
	return nil
}

func (s *stubFlashcardService) GetDueFlashcards(ctx context.Context, userID string, deckID *string) ([]models.Flashcard, error) {
	if s.getDueFlashcardsFn != nil {
		return s.getDueFlashcardsFn(ctx, userID, deckID)
	}
	return nil, nil
}

func (s *stubFlashcardService) ProcessReview(ctx context.Context, userID, cardID string, quality int) (*models.Flashcard, error) {
	if s.processReviewFn != nil {
		return s.processReviewFn(ctx, userID, cardID, quality)
	}
	return &models.Flashcard{}, nil
}
