package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"prepapp/internal/config"
	"prepapp/internal/models"
	"prepapp/internal/observability"
	contextutils "prepapp/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// DeckUpdate carries the editable deck fields. Nil fields are left untouched.
type DeckUpdate struct {
	Name *string `json:"name"`
	Icon *string `json:"icon"`
}

// DeckServiceInterface defines deck hierarchy management operations.
type DeckServiceInterface interface {
	ListDecks(ctx context.Context, userID string, parentID *string) ([]models.DeckWithStats, error)
	GetDeck(ctx context.Context, userID, deckID string) (*models.DeckWithStats, error)
	CreateDeck(ctx context.Context, userID, name string, icon, parentID *string) (*models.Deck, error)
	UpdateDeck(ctx context.Context, userID, deckID string, update *DeckUpdate) (*models.Deck, error)
	DeleteDeck(ctx context.Context, userID, deckID string) error
	EnsureSystemDeck(ctx context.Context, userID, moduleTag string) (string, error)
}

// DeckService manages the user's deck tree and the listing aggregates
// (card counts, due counts, mastery) decorating each deck.
type DeckService struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewDeckService creates a new DeckService
func NewDeckService(db *sql.DB, logger *observability.Logger) *DeckService {
	return &DeckService{db: db, logger: logger}
}

// deckStatsQuery lists decks at one level of the tree with their aggregates.
// Mastery counts cards whose interval has grown past the maturity threshold.
const deckStatsQuery = `
	SELECT
		d.id, d.user_id, d.name, d.deck_type, d.source_module, d.icon, d.parent_id, d.created_at,
		COUNT(uf.id) AS total_cards,
		COUNT(uf.id) FILTER (WHERE uf.next_review_at <= NOW()) AS due_cards,
		(SELECT COUNT(*) FROM decks c WHERE c.parent_id = d.id) AS child_count,
		COALESCE(ROUND((COUNT(uf.id) FILTER (WHERE uf.interval_days > $2)::numeric
			/ NULLIF(COUNT(uf.id), 0)) * 100), 0) AS mastery_percent
	FROM decks d
	LEFT JOIN user_flashcards uf ON uf.deck_id = d.id
	WHERE d.user_id = $1`

// ListDecks returns the decks at one level of the hierarchy: the roots when
// parentID is nil, otherwise the children of that deck.
func (s *DeckService) ListDecks(ctx context.Context, userID string, parentID *string) (result0 []models.DeckWithStats, err error) {
	ctx, span := observability.TraceDeckFunction(ctx, "ListDecks",
		observability.AttributeUserID(userID),
		attribute.Bool("root_level", parentID == nil),
	)
	defer observability.FinishSpan(span, &err)

	query := deckStatsQuery
	args := []interface{}{userID, config.MatureIntervalDays}
	if parentID == nil {
		query += ` AND d.parent_id IS NULL`
	} else {
		query += ` AND d.parent_id = $3`
		args = append(args, *parentID)
	}
	query += `
	GROUP BY d.id
	ORDER BY d.created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query decks")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var decks []models.DeckWithStats
	for rows.Next() {
		var d models.DeckWithStats
		if scanErr := scanDeckWithStats(rows.Scan, &d); scanErr != nil {
			return nil, contextutils.WrapError(scanErr, "failed to scan deck")
		}
		decks = append(decks, d)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate deck rows")
	}

	span.SetAttributes(observability.AttributeCount(len(decks)))
	return decks, nil
}

// GetDeck returns one deck with its aggregates, scoped to the owner
func (s *DeckService) GetDeck(ctx context.Context, userID, deckID string) (result0 *models.DeckWithStats, err error) {
	ctx, span := observability.TraceDeckFunction(ctx, "GetDeck",
		observability.AttributeUserID(userID),
		observability.AttributeDeckID(deckID),
	)
	defer observability.FinishSpan(span, &err)

	query := deckStatsQuery + ` AND d.id = $3
	GROUP BY d.id`

	var d models.DeckWithStats
	row := s.db.QueryRowContext(ctx, query, userID, config.MatureIntervalDays, deckID)
	if err := scanDeckWithStats(row.Scan, &d); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.WrapErrorf(contextutils.ErrDeckNotFound, "deck %s not found", deckID)
		}
		return nil, contextutils.WrapError(err, "failed to get deck")
	}
	return &d, nil
}

func scanDeckWithStats(scan func(dest ...interface{}) error, d *models.DeckWithStats) error {
	return scan(
		&d.ID, &d.UserID, &d.Name, &d.DeckType, &d.SourceModule, &d.Icon, &d.ParentID, &d.CreatedAt,
		&d.TotalCards, &d.DueCards, &d.ChildCount, &d.MasteryPercent,
	)
}

// CreateDeck creates a user deck, optionally nested under a parent deck the
// same user owns.
func (s *DeckService) CreateDeck(ctx context.Context, userID, name string, icon, parentID *string) (result0 *models.Deck, err error) {
	ctx, span := observability.TraceDeckFunction(ctx, "CreateDeck",
		observability.AttributeUserID(userID),
		attribute.Bool("nested", parentID != nil),
	)
	defer observability.FinishSpan(span, &err)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, contextutils.WrapErrorf(contextutils.ErrMissingRequired, "deck name is required")
	}

	if parentID != nil {
		var exists bool
		err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM decks WHERE id = $1 AND user_id = $2)`,
			*parentID, userID).Scan(&exists)
		if err != nil {
			return nil, contextutils.WrapError(err, "failed to check parent deck")
		}
		if !exists {
			return nil, contextutils.WrapErrorf(contextutils.ErrDeckNotFound, "parent deck %s not found", *parentID)
		}
	}

	var d models.Deck
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO decks (user_id, name, deck_type, icon, parent_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, name, deck_type, source_module, icon, parent_id, created_at`,
		userID, name, config.DeckTypeUser, toNullString(icon), toNullString(parentID),
	).Scan(&d.ID, &d.UserID, &d.Name, &d.DeckType, &d.SourceModule, &d.Icon, &d.ParentID, &d.CreatedAt)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to create deck")
	}

	span.SetAttributes(observability.AttributeDeckID(d.ID))
	return &d, nil
}

// UpdateDeck renames a deck or changes its icon, scoped to the owner
func (s *DeckService) UpdateDeck(ctx context.Context, userID, deckID string, update *DeckUpdate) (result0 *models.Deck, err error) {
	ctx, span := observability.TraceDeckFunction(ctx, "UpdateDeck",
		observability.AttributeUserID(userID),
		observability.AttributeDeckID(deckID),
	)
	defer observability.FinishSpan(span, &err)

	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "deck name cannot be empty")
	}

	var d models.Deck
	err = s.db.QueryRowContext(ctx, `
		UPDATE decks
		SET name = COALESCE($3, name),
		    icon = COALESCE($4, icon)
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, name, deck_type, source_module, icon, parent_id, created_at`,
		deckID, userID, toNullString(update.Name), toNullString(update.Icon),
	).Scan(&d.ID, &d.UserID, &d.Name, &d.DeckType, &d.SourceModule, &d.Icon, &d.ParentID, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.WrapErrorf(contextutils.ErrDeckNotFound, "deck %s not found", deckID)
		}
		return nil, contextutils.WrapError(err, "failed to update deck")
	}
	return &d, nil
}

// DeleteDeck removes a deck and its whole subtree. Cards go with their decks
// through the ON DELETE CASCADE on user_flashcards.deck_id; the decks
// themselves are deleted deepest-first so no child ever outlives its parent.
func (s *DeckService) DeleteDeck(ctx context.Context, userID, deckID string) (err error) {
	ctx, span := observability.TraceDeckFunction(ctx, "DeleteDeck",
		observability.AttributeUserID(userID),
		observability.AttributeDeckID(deckID),
	)
	defer observability.FinishSpan(span, &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return contextutils.WrapError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Warn(ctx, "Failed to rollback transaction", map[string]interface{}{"error": rbErr.Error()})
			}
		}
	}()

	rows, err := tx.QueryContext(ctx, `
		WITH RECURSIVE subtree AS (
			SELECT id, 0 AS depth
			FROM decks
			WHERE id = $1 AND user_id = $2
			UNION ALL
			SELECT d.id, s.depth + 1
			FROM decks d
			JOIN subtree s ON d.parent_id = s.id
		)
		SELECT id FROM subtree ORDER BY depth DESC`,
		deckID, userID)
	if err != nil {
		return contextutils.WrapError(err, "failed to resolve deck subtree")
	}

	var ids []string
	for rows.Next() {
		var id string
		if scanErr := rows.Scan(&id); scanErr != nil {
			if closeErr := rows.Close(); closeErr != nil {
				s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
			}
			return contextutils.WrapError(scanErr, "failed to scan deck id")
		}
		ids = append(ids, id)
	}
	if closeErr := rows.Close(); closeErr != nil {
		s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
	}
	if err = rows.Err(); err != nil {
		return contextutils.WrapError(err, "failed to iterate subtree rows")
	}

	if len(ids) == 0 {
		err = contextutils.WrapErrorf(contextutils.ErrDeckNotFound, "deck %s not found", deckID)
		return err
	}

	for _, id := range ids {
		if _, execErr := tx.ExecContext(ctx, `DELETE FROM decks WHERE id = $1`, id); execErr != nil {
			err = contextutils.WrapError(execErr, "failed to delete deck")
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return contextutils.WrapError(err, "failed to commit deck deletion")
	}

	span.SetAttributes(attribute.Int("decks.deleted", len(ids)))
	return nil
}

// EnsureSystemDeck returns the id of the user's system deck for a feature
// module, creating it on first use. System decks are looked up by their
// source module so renaming one does not spawn a duplicate.
func (s *DeckService) EnsureSystemDeck(ctx context.Context, userID, moduleTag string) (result0 string, err error) {
	ctx, span := observability.TraceDeckFunction(ctx, "EnsureSystemDeck",
		observability.AttributeUserID(userID),
		attribute.String("deck.source_module", moduleTag),
	)
	defer observability.FinishSpan(span, &err)

	var deckID string
	err = s.db.QueryRowContext(ctx, `
		SELECT id FROM decks
		WHERE user_id = $1 AND deck_type = $2 AND source_module = $3`,
		userID, config.DeckTypeSystem, moduleTag).Scan(&deckID)
	if err == nil {
		return deckID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", contextutils.WrapError(err, "failed to look up system deck")
	}

	name := "Repaso " + titleCase(moduleTag)
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO decks (user_id, name, deck_type, source_module)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		userID, name, config.DeckTypeSystem, moduleTag).Scan(&deckID)
	if err != nil {
		return "", contextutils.WrapError(err, "failed to create system deck")
	}

	s.logger.Info(ctx, "Created system deck", map[string]interface{}{
		"deck_id":       deckID,
		"source_module": moduleTag,
	})
	span.SetAttributes(observability.AttributeDeckID(deckID))
	return deckID, nil
}

// titleCase uppercases the first letter of each space-separated word
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
