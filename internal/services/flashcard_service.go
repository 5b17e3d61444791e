package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"prepapp/internal/config"
	"prepapp/internal/models"
	"prepapp/internal/observability"
	contextutils "prepapp/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// FlashcardServiceInterface defines flashcard lifecycle and review operations.
type FlashcardServiceInterface interface {
	CreateFromMistakes(ctx context.Context, userID string, mistakes []models.AnsweredQuestion, topic, attemptID string) (int, error)
	GetDeckCards(ctx context.Context, userID, deckID string) ([]models.Flashcard, error)
	CreateCard(ctx context.Context, userID, deckID, front, back string) (*models.Flashcard, error)
	UpdateCardContent(ctx context.Context, userID, cardID, front, back string) (*models.Flashcard, error)
	DeleteCard(ctx context.Context, userID, cardID string) error
	GetDueFlashcards(ctx context.Context, userID string, deckID *string) ([]models.Flashcard, error)
	ProcessReview(ctx context.Context, userID, cardID string, quality int) (*models.Flashcard, error)
}

// FlashcardService manages flashcards and drives their SM-2 review schedule.
type FlashcardService struct {
	db        *sql.DB
	decks     DeckServiceInterface
	scheduler *SpacedRepetitionService
	logger    *observability.Logger
}

// NewFlashcardService creates a new FlashcardService
func NewFlashcardService(db *sql.DB, decks DeckServiceInterface, scheduler *SpacedRepetitionService, logger *observability.Logger) *FlashcardService {
	return &FlashcardService{
		db:        db,
		decks:     decks,
		scheduler: scheduler,
		logger:    logger,
	}
}

const flashcardSelectFields = `id, user_id, deck_id, front_content, back_content, topic,
	interval_days, easiness_factor, repetition_number, next_review_at, last_reviewed_at,
	source_quiz_id, created_at`

func scanFlashcard(scan func(dest ...interface{}) error, f *models.Flashcard) error {
	return scan(
		&f.ID, &f.UserID, &f.DeckID, &f.Front, &f.Back, &f.Topic,
		&f.IntervalDays, &f.EasinessFactor, &f.RepetitionNumber, &f.NextReviewAt, &f.LastReviewedAt,
		&f.SourceQuizID, &f.CreatedAt,
	)
}

// CreateFromMistakes turns the wrong answers of a quiz into flashcards in the
// user's system review deck. Cards whose front already exists in the deck are
// skipped, so re-submitting the same quiz does not duplicate them.
func (s *FlashcardService) CreateFromMistakes(ctx context.Context, userID string, mistakes []models.AnsweredQuestion, topic, attemptID string) (result0 int, err error) {
	ctx, span := observability.TraceFlashcardFunction(ctx, "CreateFromMistakes",
		observability.AttributeUserID(userID),
		observability.AttributeTopic(topic),
		attribute.Int("mistakes.count", len(mistakes)),
	)
	defer observability.FinishSpan(span, &err)

	if len(mistakes) == 0 {
		return 0, nil
	}

	deckID, err := s.decks.EnsureSystemDeck(ctx, userID, "entrenamiento")
	if err != nil {
		return 0, err
	}

	existing, err := s.existingFronts(ctx, deckID)
	if err != nil {
		return 0, err
	}

	created := 0
	for i := range mistakes {
		q := &mistakes[i]
		front := strings.TrimSpace(q.QuestionText)
		if front == "" {
			continue
		}
		if _, dup := existing[front]; dup {
			continue
		}

		correct := ""
		if q.CorrectAnswerIndex >= 0 && q.CorrectAnswerIndex < len(q.Options) {
			correct = q.Options[q.CorrectAnswerIndex]
		}
		back := correct
		if q.Explanation != "" {
			back += "\n\n💡 " + q.Explanation
		}

		cardTopic := q.Topic
		if cardTopic == "" {
			cardTopic = topic
		}

		_, insertErr := s.db.ExecContext(ctx, `
			INSERT INTO user_flashcards
				(user_id, deck_id, front_content, back_content, topic, source_quiz_id,
				 interval_days, easiness_factor, repetition_number, next_review_at)
			VALUES ($1, $2, $3, $4, $5, $6, 0, $7, 0, NOW())`,
			userID, deckID, front, back, cardTopic, attemptID, config.InitialEasinessFactor)
		if insertErr != nil {
			s.logger.Warn(ctx, "Failed to create flashcard from mistake, skipping", map[string]interface{}{
				"error": insertErr.Error(),
				"topic": cardTopic,
			})
			continue
		}
		existing[front] = struct{}{}
		created++
	}

	span.SetAttributes(attribute.Int("flashcards.created", created))
	return created, nil
}

// existingFronts returns the trimmed fronts already present in a deck
func (s *FlashcardService) existingFronts(ctx context.Context, deckID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT front_content FROM user_flashcards WHERE deck_id = $1`, deckID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query existing flashcards")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	fronts := make(map[string]struct{})
	for rows.Next() {
		var front string
		if scanErr := rows.Scan(&front); scanErr != nil {
			return nil, contextutils.WrapError(scanErr, "failed to scan flashcard front")
		}
		fronts[strings.TrimSpace(front)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate flashcard rows")
	}
	return fronts, nil
}

// GetDeckCards returns every card in a deck, newest first, scoped to the owner
func (s *FlashcardService) GetDeckCards(ctx context.Context, userID, deckID string) (result0 []models.Flashcard, err error) {
	ctx, span := observability.TraceFlashcardFunction(ctx, "GetDeckCards",
		observability.AttributeUserID(userID),
		observability.AttributeDeckID(deckID),
	)
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+flashcardSelectFields+`
		FROM user_flashcards
		WHERE user_id = $1 AND deck_id = $2
		ORDER BY created_at DESC`,
		userID, deckID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query deck cards")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	cards, err := collectFlashcards(rows)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(observability.AttributeCount(len(cards)))
	return cards, nil
}

// CreateCard creates a manual flashcard in a deck the user owns. New cards
// start unscheduled and due immediately.
func (s *FlashcardService) CreateCard(ctx context.Context, userID, deckID, front, back string) (result0 *models.Flashcard, err error) {
	ctx, span := observability.TraceFlashcardFunction(ctx, "CreateCard",
		observability.AttributeUserID(userID),
		observability.AttributeDeckID(deckID),
	)
	defer observability.FinishSpan(span, &err)

	front = strings.TrimSpace(front)
	back = strings.TrimSpace(back)
	if front == "" || back == "" {
		return nil, contextutils.WrapErrorf(contextutils.ErrMissingRequired, "flashcard front and back are required")
	}

	// Manual cards inherit the deck name as topic so review stats still
	// group sensibly.
	var deckName string
	err = s.db.QueryRowContext(ctx,
		`SELECT name FROM decks WHERE id = $1 AND user_id = $2`,
		deckID, userID).Scan(&deckName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.WrapErrorf(contextutils.ErrDeckNotFound, "deck %s not found", deckID)
		}
		return nil, contextutils.WrapError(err, "failed to look up deck")
	}
	topic := deckName
	if strings.TrimSpace(topic) == "" {
		topic = "GENERAL"
	}

	var f models.Flashcard
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO user_flashcards
			(user_id, deck_id, front_content, back_content, topic,
			 interval_days, easiness_factor, repetition_number, next_review_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, 0, NOW())
		RETURNING `+flashcardSelectFields,
		userID, deckID, front, back, topic, config.InitialEasinessFactor)
	if err := scanFlashcard(row.Scan, &f); err != nil {
		return nil, contextutils.WrapError(err, "failed to create flashcard")
	}

	span.SetAttributes(attribute.String("flashcard.id", f.ID))
	return &f, nil
}

// UpdateCardContent edits a card's front and back, scoped to the owner
func (s *FlashcardService) UpdateCardContent(ctx context.Context, userID, cardID, front, back string) (result0 *models.Flashcard, err error) {
	ctx, span := observability.TraceFlashcardFunction(ctx, "UpdateCardContent",
		observability.AttributeUserID(userID),
		attribute.String("flashcard.id", cardID),
	)
	defer observability.FinishSpan(span, &err)

	front = strings.TrimSpace(front)
	back = strings.TrimSpace(back)
	if front == "" || back == "" {
		return nil, contextutils.WrapErrorf(contextutils.ErrMissingRequired, "flashcard front and back are required")
	}

	var f models.Flashcard
	row := s.db.QueryRowContext(ctx, `
		UPDATE user_flashcards
		SET front_content = $3, back_content = $4
		WHERE id = $1 AND user_id = $2
		RETURNING `+flashcardSelectFields,
		cardID, userID, front, back)
	if err := scanFlashcard(row.Scan, &f); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.WrapErrorf(contextutils.ErrFlashcardNotFound, "flashcard %s not found", cardID)
		}
		return nil, contextutils.WrapError(err, "failed to update flashcard")
	}
	return &f, nil
}

// DeleteCard removes a card, scoped to the owner
func (s *FlashcardService) DeleteCard(ctx context.Context, userID, cardID string) (err error) {
	ctx, span := observability.TraceFlashcardFunction(ctx, "DeleteCard",
		observability.AttributeUserID(userID),
		attribute.String("flashcard.id", cardID),
	)
	defer observability.FinishSpan(span, &err)

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_flashcards WHERE id = $1 AND user_id = $2`,
		cardID, userID)
	if err != nil {
		return contextutils.WrapError(err, "failed to delete flashcard")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to read delete result")
	}
	if affected == 0 {
		return contextutils.WrapErrorf(contextutils.ErrFlashcardNotFound, "flashcard %s not found", cardID)
	}
	return nil
}

// GetDueFlashcards returns the cards due for review right now, most overdue
// first, optionally restricted to one deck.
func (s *FlashcardService) GetDueFlashcards(ctx context.Context, userID string, deckID *string) (result0 []models.Flashcard, err error) {
	ctx, span := observability.TraceFlashcardFunction(ctx, "GetDueFlashcards",
		observability.AttributeUserID(userID),
		attribute.Bool("deck_filtered", deckID != nil),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT ` + flashcardSelectFields + `
		FROM user_flashcards
		WHERE user_id = $1 AND next_review_at <= NOW()`
	args := []interface{}{userID}
	if deckID != nil {
		query += ` AND deck_id = $2`
		args = append(args, *deckID)
	}
	query += `
		ORDER BY next_review_at ASC
		LIMIT ` + placeholder(len(args)+1)
	args = append(args, config.DueFlashcardsLimit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query due flashcards")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	cards, err := collectFlashcards(rows)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(observability.AttributeCount(len(cards)))
	return cards, nil
}

// ProcessReview grades a card and persists its updated SM-2 schedule
func (s *FlashcardService) ProcessReview(ctx context.Context, userID, cardID string, quality int) (result0 *models.Flashcard, err error) {
	ctx, span := observability.TraceFlashcardFunction(ctx, "ProcessReview",
		observability.AttributeUserID(userID),
		attribute.String("flashcard.id", cardID),
		attribute.Int("review.quality", ClampQuality(quality)),
	)
	defer observability.FinishSpan(span, &err)

	var state models.ReviewState
	err = s.db.QueryRowContext(ctx, `
		SELECT interval_days, easiness_factor, repetition_number
		FROM user_flashcards
		WHERE id = $1 AND user_id = $2`,
		cardID, userID).Scan(&state.IntervalDays, &state.EasinessFactor, &state.RepetitionNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.WrapErrorf(contextutils.ErrFlashcardNotFound, "flashcard %s not found", cardID)
		}
		return nil, contextutils.WrapError(err, "failed to load flashcard state")
	}

	updated := s.scheduler.Review(state, quality, time.Now())

	var f models.Flashcard
	row := s.db.QueryRowContext(ctx, `
		UPDATE user_flashcards
		SET interval_days = $3,
		    easiness_factor = $4,
		    repetition_number = $5,
		    next_review_at = $6,
		    last_reviewed_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING `+flashcardSelectFields,
		cardID, userID, updated.IntervalDays, updated.EasinessFactor,
		updated.RepetitionNumber, updated.NextReviewAt)
	if err := scanFlashcard(row.Scan, &f); err != nil {
		return nil, contextutils.WrapError(err, "failed to persist review")
	}

	span.SetAttributes(
		attribute.Int("review.interval_days", updated.IntervalDays),
		attribute.Float64("review.easiness_factor", updated.EasinessFactor),
	)
	return &f, nil
}

func collectFlashcards(rows *sql.Rows) ([]models.Flashcard, error) {
	var cards []models.Flashcard
	for rows.Next() {
		var f models.Flashcard
		if err := scanFlashcard(rows.Scan, &f); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan flashcard")
		}
		cards = append(cards, f)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate flashcard rows")
	}
	return cards, nil
}
