package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"math/rand"
	"regexp"
	"strings"

	"prepapp/internal/config"
	"prepapp/internal/models"
	"prepapp/internal/observability"
	contextutils "prepapp/internal/utils"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
)

// QuestionBatchRequest describes a training batch request from a caller
type QuestionBatchRequest struct {
	Target     string   `json:"target"`
	Areas      []string `json:"areas"`
	Difficulty string   `json:"difficulty"`
	Count      int      `json:"count"`
}

// QuizSubmission is a finished quiz posted for recording
type QuizSubmission struct {
	Topic            string                    `json:"topic"`
	Target           string                    `json:"target"`
	Difficulty       string                    `json:"difficulty"`
	Areas            []string                  `json:"areas"`
	Score            int                       `json:"score"`
	TotalQuestions   int                       `json:"totalQuestions"`
	Questions        []models.AnsweredQuestion `json:"questions"`
	CreateFlashcards bool                      `json:"createFlashcards"`
}

// QuizSubmissionResult reports the stored attempt and any cards created from it
type QuizSubmissionResult struct {
	AttemptID         string `json:"attemptId"`
	FlashcardsCreated int    `json:"flashcardsCreated"`
}

// TrainingServiceInterface defines the hybrid retrieval and quiz recording operations.
type TrainingServiceInterface interface {
	GetQuestions(ctx context.Context, userID string, req *QuestionBatchRequest) (*models.QuestionBatch, error)
	SubmitQuizResult(ctx context.Context, userID string, submission *QuizSubmission) (*QuizSubmissionResult, error)
	GetQuizEvolution(ctx context.Context, userID, contextName string, target *string) ([]models.EvolutionPoint, error)
}

// TrainingService orchestrates question delivery: bank first, generator for
// the shortfall, everything delivered marked as seen.
type TrainingService struct {
	db         *sql.DB
	bank       QuestionBankServiceInterface
	exposure   ExposureServiceInterface
	generator  QuestionGeneratorInterface
	variety    *VarietyService
	flashcards FlashcardServiceInterface
	logger     *observability.Logger
	cfg        *config.Config
}

// NewTrainingService creates a new TrainingService
func NewTrainingService(
	db *sql.DB,
	bank QuestionBankServiceInterface,
	exposure ExposureServiceInterface,
	generator QuestionGeneratorInterface,
	variety *VarietyService,
	flashcards FlashcardServiceInterface,
	cfg *config.Config,
	logger *observability.Logger,
) *TrainingService {
	return &TrainingService{
		db:         db,
		bank:       bank,
		exposure:   exposure,
		generator:  generator,
		variety:    variety,
		flashcards: flashcards,
		cfg:        cfg,
		logger:     logger,
	}
}

// GetQuestions serves a training batch. The bank is always tried first; only
// the shortfall is generated, and in exam mode (count at or above the hard
// cap) generation is disabled entirely.
func (s *TrainingService) GetQuestions(ctx context.Context, userID string, req *QuestionBatchRequest) (result0 *models.QuestionBatch, err error) {
	ctx, span := observability.TraceTrainingFunction(ctx, "GetQuestions",
		observability.AttributeUserID(userID),
		observability.AttributeTarget(req.Target),
		observability.AttributeDifficulty(req.Difficulty),
		observability.AttributeCount(req.Count),
	)
	defer observability.FinishSpan(span, &err)

	target := req.Target
	areas := append([]string(nil), req.Areas...)
	difficulty := req.Difficulty
	count := req.Count

	if len(areas) == 0 {
		areas = []string{"Medicina General"}
	}

	// The caller-facing target doubles as the domain selector: the trivia
	// arena uses its own domain and no exam target.
	domain := config.DomainMedicine
	var dbTarget *string
	if target == config.DomainGeneralTrivia {
		domain = config.DomainGeneralTrivia
	} else {
		dbTarget = &target
	}

	hardCap := count >= config.HardCapThreshold
	if hardCap {
		// Exam mode pins the official difficulty regardless of what the
		// caller asked for.
		difficulty = config.OfficialDifficultyForTarget(target)
		s.logger.Info(ctx, "Exam mode: applying official difficulty", map[string]interface{}{
			"target":     target,
			"difficulty": difficulty,
		})
	}

	// A generic single area rotates to a concrete topic so the bank grows
	// evenly instead of piling onto one catch-all bucket.
	if len(areas) == 1 && s.variety.IsGenericArea(areas[0]) {
		areas[0] = s.variety.PickRotationTopic(ctx)
	}

	// Trivia topics arrive as free-form phrases; canonicalize them so
	// rephrasings of the same subject land on the same bank rows.
	if domain == config.DomainGeneralTrivia {
		for i := range areas {
			areas[i] = NormalizeTopic(areas[i])
		}
	}

	span.SetAttributes(
		observability.AttributeTopic(areas[0]),
		attribute.Bool("exam_mode", hardCap),
	)

	seenIDs, err := s.exposure.RecentlySeen(ctx, userID, config.ExposureWindow)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to load recently seen questions")
	}

	bankQuestions, err := s.bank.GetMatchingQuestions(ctx, domain, dbTarget, areas, difficulty, seenIDs, count)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query question bank")
	}

	for i := range bankQuestions {
		shuffleQuestionOptions(&bankQuestions[i])
	}

	if len(bankQuestions) >= count {
		delivered := bankQuestions[:count]
		if err := s.markDelivered(ctx, userID, delivered); err != nil {
			return nil, err
		}
		span.SetAttributes(observability.AttributeSource(config.SourceBank))
		return &models.QuestionBatch{Questions: delivered, Source: config.SourceBank, Topic: areas[0]}, nil
	}

	if hardCap {
		if len(bankQuestions) < config.MinViableBankSize {
			return nil, &InsufficientBankError{Available: len(bankQuestions), Requested: count}
		}
		// Partial exam batch: deliver what the bank has rather than
		// generating a hundred questions in one shot.
		s.logger.Warn(ctx, "Exam mode: bank short, serving partial batch", map[string]interface{}{
			"available": len(bankQuestions),
			"requested": count,
		})
		if err := s.markDelivered(ctx, userID, bankQuestions); err != nil {
			return nil, err
		}
		span.SetAttributes(observability.AttributeSource(config.SourceBank))
		return &models.QuestionBatch{Questions: bankQuestions, Source: config.SourceBank, Topic: areas[0]}, nil
	}

	needed := count - len(bankQuestions)
	generated := s.generateShortfall(ctx, domain, dbTarget, areas, difficulty, needed)
	if len(generated) == 0 {
		// Degrade to whatever the bank produced rather than failing the batch
		if err := s.markDelivered(ctx, userID, bankQuestions); err != nil {
			return nil, err
		}
		span.SetAttributes(observability.AttributeSource(config.SourceBank))
		return &models.QuestionBatch{Questions: bankQuestions, Source: config.SourceBank, Topic: areas[0]}, nil
	}

	newQuestions := make([]*models.Question, 0, len(generated))
	for i := range generated {
		q := s.sanitizeGeneratedQuestion(&generated[i], target, domain, dbTarget, areas[0], difficulty)
		newQuestions = append(newQuestions, q)
	}

	if _, err := s.bank.UpsertQuestionBatch(ctx, newQuestions); err != nil {
		return nil, contextutils.WrapError(err, "failed to store generated questions")
	}

	// Drop generated questions that hashed onto rows already in this batch
	bankIDs := make(map[string]struct{}, len(bankQuestions))
	for i := range bankQuestions {
		bankIDs[bankQuestions[i].ID] = struct{}{}
	}

	combined := append([]models.Question(nil), bankQuestions...)
	for _, q := range newQuestions {
		if q.ID == "" {
			continue
		}
		if _, dup := bankIDs[q.ID]; dup {
			continue
		}
		bankIDs[q.ID] = struct{}{}
		combined = append(combined, *q)
	}
	if len(combined) > count {
		combined = combined[:count]
	}

	if err := s.markDelivered(ctx, userID, combined); err != nil {
		return nil, err
	}

	span.SetAttributes(
		observability.AttributeSource(config.SourceHybrid),
		attribute.Int("questions.generated", len(newQuestions)),
	)
	return &models.QuestionBatch{Questions: combined, Source: config.SourceHybrid, Topic: areas[0]}, nil
}

// generateShortfall asks the generator for the questions the bank could not
// supply. Any failure is logged and swallowed: the caller degrades to
// bank-only.
func (s *TrainingService) generateShortfall(ctx context.Context, domain string, dbTarget *string, areas []string, difficulty string, needed int) []models.GeneratedQuestion {
	negative, err := s.bank.SampleNegativeContext(ctx, domain, dbTarget, areas, config.DedupContextSize)
	if err != nil {
		s.logger.Warn(ctx, "Failed to sample dedup context, generating without it", map[string]interface{}{"error": err.Error()})
		negative = nil
	}

	genReq := &models.GenerationRequest{
		Domain:           domain,
		Areas:            areas,
		Difficulty:       difficulty,
		Count:            needed,
		NegativeExamples: negative,
		FocusDirective:   s.variety.PickFocusDirective(ctx),
	}
	if dbTarget != nil {
		genReq.Target = *dbTarget
	}

	generated, err := s.generator.GenerateQuestions(ctx, genReq)
	if err != nil {
		s.logger.Error(ctx, "Generator failed, degrading to bank-only batch", err, map[string]interface{}{
			"domain":     domain,
			"difficulty": difficulty,
		})
		return nil
	}
	return generated
}

// markDelivered records every delivered question in the user's exposure history
func (s *TrainingService) markDelivered(ctx context.Context, userID string, questions []models.Question) error {
	if len(questions) == 0 {
		return nil
	}
	ids := make([]string, 0, len(questions))
	for i := range questions {
		if questions[i].ID != "" {
			ids = append(ids, questions[i].ID)
		}
	}
	if err := s.exposure.MarkSeen(ctx, userID, ids); err != nil {
		return contextutils.WrapError(err, "failed to mark questions as seen")
	}
	return nil
}

var optionPrefixPattern = regexp.MustCompile(`^\s*[A-Ea-e][\)\.\-]+\s*`)

// sanitizeGeneratedQuestion turns raw generator output into a storable
// question: enumeration prefixes stripped, exact option count enforced for the
// target, options shuffled, topic defaulted.
func (s *TrainingService) sanitizeGeneratedQuestion(gq *models.GeneratedQuestion, target, domain string, dbTarget *string, defaultTopic, difficulty string) *models.Question {
	options := make([]string, 0, len(gq.Options))
	for _, opt := range gq.Options {
		options = append(options, optionPrefixPattern.ReplaceAllString(opt, ""))
	}
	correct := gq.CorrectAnswerIndex

	wanted := config.OptionCountForTarget(target)
	if len(options) > wanted {
		// Keep the correct option inside the kept window by relocating it
		// to the last kept slot before truncating.
		if correct >= wanted {
			options[wanted-1] = options[correct]
			correct = wanted - 1
		}
		options = options[:wanted]
	}
	for len(options) < wanted {
		options = append(options, config.FillerOption)
	}
	if correct < 0 || correct >= len(options) {
		correct = 0
	}

	q := &models.Question{
		Domain:             domain,
		Topic:              strings.TrimSpace(gq.Topic),
		Difficulty:         difficulty,
		QuestionText:       gq.QuestionText,
		Options:            options,
		CorrectOptionIndex: correct,
		Explanation:        gq.Explanation,
	}
	if dbTarget != nil {
		q.Target = sql.NullString{String: *dbTarget, Valid: true}
	}
	if q.Topic == "" {
		q.Topic = defaultTopic
	}

	shuffleQuestionOptions(q)
	return q
}

// shuffleQuestionOptions shuffles a question's options in place, keeping the
// correct index pointing at the right text
func shuffleQuestionOptions(q *models.Question) {
	if len(q.Options) == 0 {
		return
	}

	type mapped struct {
		text    string
		correct bool
	}
	options := make([]mapped, len(q.Options))
	for i, opt := range q.Options {
		options[i] = mapped{text: opt, correct: i == q.CorrectOptionIndex}
	}

	for i := len(options) - 1; i > 0; i-- {
		j := rand.Intn(i + 1)
		options[i], options[j] = options[j], options[i]
	}

	for i, opt := range options {
		q.Options[i] = opt.text
		if opt.correct {
			q.CorrectOptionIndex = i
		}
	}
}

// SubmitQuizResult records a finished quiz: per-area stats, weak points, and
// optionally flashcards created from the wrong answers.
func (s *TrainingService) SubmitQuizResult(ctx context.Context, userID string, submission *QuizSubmission) (result0 *QuizSubmissionResult, err error) {
	ctx, span := observability.TraceTrainingFunction(ctx, "SubmitQuizResult",
		observability.AttributeUserID(userID),
		observability.AttributeTopic(submission.Topic),
		attribute.Int("score", submission.Score),
		attribute.Int("total", submission.TotalQuestions),
	)
	defer observability.FinishSpan(span, &err)

	allowedAreas := submission.Areas
	if len(allowedAreas) == 0 {
		allowedAreas = []string{submission.Topic}
	}

	areaStats := make(map[string]models.AreaStat)
	for i := range submission.Questions {
		q := &submission.Questions[i]
		topic := sanitizeAreaTopic(q.Topic, submission.Topic, allowedAreas)

		stat := areaStats[topic]
		stat.Total++
		if q.IsCorrect() {
			stat.Correct++
		}
		areaStats[topic] = stat
	}

	// Weak points stay coarse for now: a non-perfect run flags the quiz topic
	var weakPoints []string
	if submission.Score < submission.TotalQuestions {
		weakPoints = []string{submission.Topic}
	}

	statsJSON, err := json.Marshal(areaStats)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to marshal area stats")
	}

	var target sql.NullString
	if submission.Target != "" {
		target = sql.NullString{String: submission.Target, Valid: true}
	}

	var attemptID string
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO quiz_history (user_id, topic, difficulty, score, total_questions, weak_points, area_stats, target)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		userID, submission.Topic, submission.Difficulty, submission.Score,
		submission.TotalQuestions, pq.Array(weakPoints), statsJSON, target,
	).Scan(&attemptID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to save quiz history")
	}

	result := &QuizSubmissionResult{AttemptID: attemptID}

	if submission.CreateFlashcards {
		var mistakes []models.AnsweredQuestion
		for i := range submission.Questions {
			if !submission.Questions[i].IsCorrect() {
				mistakes = append(mistakes, submission.Questions[i])
			}
		}
		if len(mistakes) > 0 {
			created, cardErr := s.flashcards.CreateFromMistakes(ctx, userID, mistakes, submission.Topic, attemptID)
			if cardErr != nil {
				err = contextutils.WrapError(cardErr, "failed to create flashcards from mistakes")
				return nil, err
			}
			result.FlashcardsCreated = created
		}
	}

	span.SetAttributes(attribute.Int("flashcards.created", result.FlashcardsCreated))
	return result, nil
}

// sanitizeAreaTopic folds a free-form question topic back onto one of the
// areas the user actually selected, so generators inventing combined topics
// like "Pediatría, Neonatología" cannot fragment the stats.
func sanitizeAreaTopic(topic, quizTopic string, allowedAreas []string) string {
	if topic == "" {
		topic = quizTopic
	}
	if topic == "" {
		topic = "General"
	}

	if len(allowedAreas) > 0 {
		lower := strings.ToLower(topic)
		for _, area := range allowedAreas {
			if strings.Contains(lower, strings.ToLower(area)) {
				return area
			}
		}
		return allowedAreas[0]
	}

	if idx := strings.Index(topic, ","); idx != -1 {
		return strings.TrimSpace(topic[:idx])
	}
	return topic
}

// GetQuizEvolution returns the user's last attempts for a context, oldest
// first, with the score projected onto the 0-20 scale.
func (s *TrainingService) GetQuizEvolution(ctx context.Context, userID, contextName string, target *string) (result0 []models.EvolutionPoint, err error) {
	ctx, span := observability.TraceTrainingFunction(ctx, "GetQuizEvolution",
		observability.AttributeUserID(userID),
		attribute.String("context", contextName),
	)
	defer observability.FinishSpan(span, &err)

	filter := ""
	args := []interface{}{userID}

	switch {
	case contextName == "MEDICINA":
		if target != nil {
			filter = `AND (target = $2 OR (target IS NULL AND difficulty = $2))`
			args = append(args, *target)
		} else {
			filter = `AND difficulty IN ('ENAM', 'PRE-INTERNADO', 'RESIDENTADO', 'Básico', 'Intermedio', 'Avanzado')`
		}
	case contextName != "":
		filter = `AND topic ILIKE $2`
		args = append(args, "%"+contextName+"%")
	}

	query := `
		SELECT id, score, total_questions, created_at
		FROM (
			SELECT id, score, total_questions, created_at
			FROM quiz_history
			WHERE user_id = $1 ` + filter + `
			ORDER BY created_at DESC
			LIMIT 10
		) recent
		ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query quiz evolution")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var points []models.EvolutionPoint
	for rows.Next() {
		var p models.EvolutionPoint
		if scanErr := rows.Scan(&p.AttemptID, &p.Score, &p.TotalQuestions, &p.CreatedAt); scanErr != nil {
			return nil, contextutils.WrapError(scanErr, "failed to scan evolution point")
		}
		if p.TotalQuestions > 0 {
			p.Score20 = float64(p.Score) / float64(p.TotalQuestions) * 20
		}
		p.DateLabel = p.CreatedAt.Format("02/01")
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate evolution rows")
	}

	span.SetAttributes(attribute.Int("points.count", len(points)))
	return points, nil
}
