package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"prepapp/internal/models"
	"prepapp/internal/observability"
	contextutils "prepapp/internal/utils"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
)

// QuestionBankServiceInterface defines the interface for question bank operations.
// This allows for easier mocking in tests.
type QuestionBankServiceInterface interface {
	GetMatchingQuestions(ctx context.Context, domain string, target *string, topics []string, difficulty string, excludeIDs []string, limit int) ([]models.Question, error)
	UpsertQuestionBatch(ctx context.Context, questions []*models.Question) ([]string, error)
	BulkImportQuestions(ctx context.Context, questions []*models.Question) (int, error)
	SampleNegativeContext(ctx context.Context, domain string, target *string, topics []string, limit int) ([]string, error)
	DB() *sql.DB
}

// QuestionBankService provides storage for the shared question bank.
type QuestionBankService struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewQuestionBankService creates a new QuestionBankService
func NewQuestionBankService(db *sql.DB, logger *observability.Logger) *QuestionBankService {
	return &QuestionBankService{db: db, logger: logger}
}

// DB returns the underlying database handle
func (s *QuestionBankService) DB() *sql.DB {
	return s.db
}

const bankSelectFields = `id, domain, target, topic, difficulty, question_text, options, correct_option_index, explanation, image_url, question_hash, times_used, created_at`

// scanQuestion scans one question_bank row
func scanQuestion(scan func(dest ...interface{}) error) (result0 *models.Question, err error) {
	q := &models.Question{}
	var optionsJSON []byte

	err = scan(
		&q.ID,
		&q.Domain,
		&q.Target,
		&q.Topic,
		&q.Difficulty,
		&q.QuestionText,
		&optionsJSON,
		&q.CorrectOptionIndex,
		&q.Explanation,
		&q.ImageURL,
		&q.QuestionHash,
		&q.TimesUsed,
		&q.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(optionsJSON, &q.Options); err != nil {
		return nil, contextutils.WrapError(err, "failed to unmarshal question options")
	}

	return q, nil
}

// GetMatchingQuestions returns up to limit random bank questions matching the
// filters, excluding the given ids. A nil target matches any stored target.
// The usage counter of returned questions is incremented best-effort: a
// failure there is logged, never surfaced.
func (s *QuestionBankService) GetMatchingQuestions(ctx context.Context, domain string, target *string, topics []string, difficulty string, excludeIDs []string, limit int) (result0 []models.Question, err error) {
	ctx, span := observability.TraceBankFunction(ctx, "GetMatchingQuestions",
		observability.AttributeDomain(domain),
		observability.AttributeDifficulty(difficulty),
		observability.AttributeLimit(limit),
		attribute.Int("exclude.count", len(excludeIDs)),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT ` + bankSelectFields + `
		FROM question_bank
		WHERE topic = ANY($1)
		AND domain = $2
		AND ($3::text IS NULL OR target = $3)
		AND difficulty = $4`
	args := []interface{}{pq.Array(topics), domain, toNullString(target), difficulty}

	if len(excludeIDs) > 0 {
		query += ` AND id <> ALL($5::uuid[])`
		args = append(args, pq.Array(excludeIDs))
	}
	query += ` ORDER BY RANDOM() LIMIT ` + placeholder(len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query question bank")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var questions []models.Question
	for rows.Next() {
		q, scanErr := scanQuestion(rows.Scan)
		if scanErr != nil {
			return nil, contextutils.WrapError(scanErr, "failed to scan question")
		}
		questions = append(questions, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate question rows")
	}

	span.SetAttributes(attribute.Int("questions.found", len(questions)))

	if len(questions) > 0 {
		ids := make([]string, len(questions))
		for i := range questions {
			ids[i] = questions[i].ID
		}
		if _, updateErr := s.db.ExecContext(ctx,
			`UPDATE question_bank SET times_used = times_used + 1 WHERE id = ANY($1::uuid[])`,
			pq.Array(ids)); updateErr != nil {
			s.logger.Warn(ctx, "Failed to increment times_used", map[string]interface{}{"error": updateErr.Error()})
		}
	}

	return questions, nil
}

// UpsertQuestionBatch inserts questions keyed by their content hash. A hash
// collision counts as a reuse: the existing row's usage counter is bumped and
// its id returned instead of a new one. Each question's ID field is filled in
// from the database. A failure on one question is logged and skipped so the
// rest of the batch still lands.
func (s *QuestionBankService) UpsertQuestionBatch(ctx context.Context, questions []*models.Question) (result0 []string, err error) {
	ctx, span := observability.TraceBankFunction(ctx, "UpsertQuestionBatch",
		observability.AttributeCount(len(questions)),
	)
	defer observability.FinishSpan(span, &err)

	if len(questions) == 0 {
		return nil, nil
	}

	query := `
		INSERT INTO question_bank (topic, domain, target, difficulty, question_text, options, correct_option_index, explanation, question_hash, times_used)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
		ON CONFLICT (question_hash) DO UPDATE SET times_used = question_bank.times_used + 1
		RETURNING id`

	ids := make([]string, 0, len(questions))
	for _, q := range questions {
		q.ComputeHash()

		optionsJSON, marshalErr := json.Marshal(q.Options)
		if marshalErr != nil {
			s.logger.Error(ctx, "Failed to marshal question options", marshalErr)
			continue
		}

		var id string
		scanErr := s.db.QueryRowContext(ctx, query,
			q.Topic, q.Domain, q.Target, q.Difficulty, q.QuestionText,
			optionsJSON, q.CorrectOptionIndex, q.Explanation, q.QuestionHash,
		).Scan(&id)
		if scanErr != nil {
			s.logger.Error(ctx, "Failed to upsert question", scanErr, map[string]interface{}{
				"topic": q.Topic,
				"hash":  q.QuestionHash,
			})
			continue
		}

		q.ID = id
		ids = append(ids, id)
	}

	span.SetAttributes(attribute.Int("questions.upserted", len(ids)))
	return ids, nil
}

// BulkImportQuestions loads a seed batch inside one transaction. Unlike
// UpsertQuestionBatch, a hash collision here refreshes the stored content
// fields with the incoming ones, so re-importing a corrected file wins.
func (s *QuestionBankService) BulkImportQuestions(ctx context.Context, questions []*models.Question) (result0 int, err error) {
	ctx, span := observability.TraceBankFunction(ctx, "BulkImportQuestions",
		observability.AttributeCount(len(questions)),
	)
	defer observability.FinishSpan(span, &err)

	if len(questions) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, contextutils.WrapError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				s.logger.Error(ctx, "Failed to rollback bulk import", rbErr)
			}
		}
	}()

	query := `
		INSERT INTO question_bank (domain, target, topic, difficulty, question_text, options, correct_option_index, explanation, image_url, question_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (question_hash) DO UPDATE SET
			target = EXCLUDED.target,
			image_url = EXCLUDED.image_url,
			explanation = EXCLUDED.explanation,
			options = EXCLUDED.options
		RETURNING id`

	inserted := 0
	for _, q := range questions {
		q.ComputeHash()

		optionsJSON, marshalErr := json.Marshal(q.Options)
		if marshalErr != nil {
			err = contextutils.WrapError(marshalErr, "failed to marshal question options")
			return 0, err
		}

		var id string
		if err = tx.QueryRowContext(ctx, query,
			q.Domain, q.Target, q.Topic, q.Difficulty, q.QuestionText,
			optionsJSON, q.CorrectOptionIndex, q.Explanation, q.ImageURL, q.QuestionHash,
		).Scan(&id); err != nil {
			err = contextutils.WrapErrorf(err, "failed to import question with hash %s", q.QuestionHash)
			return 0, err
		}
		q.ID = id
		inserted++
	}

	if err = tx.Commit(); err != nil {
		err = contextutils.WrapError(err, "failed to commit bulk import")
		return 0, err
	}

	span.SetAttributes(attribute.Int("questions.imported", inserted))
	return inserted, nil
}

// SampleNegativeContext returns up to limit random existing question texts
// matching the filters, used as negative examples for the generator.
func (s *QuestionBankService) SampleNegativeContext(ctx context.Context, domain string, target *string, topics []string, limit int) (result0 []string, err error) {
	ctx, span := observability.TraceBankFunction(ctx, "SampleNegativeContext",
		observability.AttributeDomain(domain),
		observability.AttributeLimit(limit),
	)
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT question_text
		FROM question_bank
		WHERE domain = $1
		AND ($2::text IS NULL OR target = $2)
		AND topic = ANY($3)
		ORDER BY RANDOM()
		LIMIT $4`,
		domain, toNullString(target), pq.Array(topics), limit)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to sample negative context")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var texts []string
	for rows.Next() {
		var text string
		if scanErr := rows.Scan(&text); scanErr != nil {
			return nil, contextutils.WrapError(scanErr, "failed to scan question text")
		}
		texts = append(texts, text)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate context rows")
	}

	span.SetAttributes(attribute.Int("context.sampled", len(texts)))
	return texts, nil
}

// toNullString converts an optional string into its sql representation
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// placeholder renders a positional parameter like $5
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}
