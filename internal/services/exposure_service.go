package services

import (
	"context"
	"database/sql"
	"time"

	"prepapp/internal/observability"
	contextutils "prepapp/internal/utils"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
)

// ExposureServiceInterface defines the interface for per-user exposure tracking.
type ExposureServiceInterface interface {
	RecentlySeen(ctx context.Context, userID string, window time.Duration) ([]string, error)
	MarkSeen(ctx context.Context, userID string, questionIDs []string) error
}

// ExposureService records which questions a user has been shown, so the same
// question is not served twice within the exposure window.
type ExposureService struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewExposureService creates a new ExposureService
func NewExposureService(db *sql.DB, logger *observability.Logger) *ExposureService {
	return &ExposureService{db: db, logger: logger}
}

// RecentlySeen returns the ids of questions the user saw inside the sliding
// window ending now. Rows older than the window stay in history but no longer
// block delivery.
func (s *ExposureService) RecentlySeen(ctx context.Context, userID string, window time.Duration) (result0 []string, err error) {
	ctx, span := observability.TraceExposureFunction(ctx, "RecentlySeen",
		observability.AttributeUserID(userID),
		attribute.String("window", window.String()),
	)
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT question_id
		FROM user_question_history
		WHERE user_id = $1 AND seen_at > NOW() - $2::interval`,
		userID, window.String())
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query question history")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var ids []string
	for rows.Next() {
		var id string
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, contextutils.WrapError(scanErr, "failed to scan question id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate history rows")
	}

	span.SetAttributes(attribute.Int("seen.count", len(ids)))
	return ids, nil
}

// MarkSeen records that the user saw the given questions. Marking the same
// question again refreshes seen_at and bumps the counter instead of failing,
// so the call is idempotent with respect to duplicates in or across batches.
func (s *ExposureService) MarkSeen(ctx context.Context, userID string, questionIDs []string) (err error) {
	ctx, span := observability.TraceExposureFunction(ctx, "MarkSeen",
		observability.AttributeUserID(userID),
		observability.AttributeCount(len(questionIDs)),
	)
	defer observability.FinishSpan(span, &err)

	if userID == "" || len(questionIDs) == 0 {
		return nil
	}

	// Dedup ids in memory so a single batch cannot conflict with itself
	unique := make([]string, 0, len(questionIDs))
	seen := make(map[string]struct{}, len(questionIDs))
	for _, id := range questionIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_question_history (user_id, question_id)
		SELECT $1, unnest($2::uuid[])
		ON CONFLICT (user_id, question_id)
		DO UPDATE SET
			seen_at = CURRENT_TIMESTAMP,
			times_seen = user_question_history.times_seen + 1`,
		userID, pq.Array(unique))
	if err != nil {
		return contextutils.WrapError(err, "failed to mark questions as seen")
	}

	return nil
}
