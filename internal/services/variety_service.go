package services

import (
	"context"
	"math/rand"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"prepapp/internal/config"
	"prepapp/internal/observability"
)

// VarietyService picks the variety elements that keep consecutive generation
// calls from converging: the rotation topic substituted for a generic area
// request, and the focus directive steering each generator call.
type VarietyService struct {
	cfg    *config.Config
	logger *observability.Logger
}

// NewVarietyServiceWithLogger creates a new VarietyService with logger
func NewVarietyServiceWithLogger(cfg *config.Config, logger *observability.Logger) *VarietyService {
	return &VarietyService{
		cfg:    cfg,
		logger: logger,
	}
}

// IsGenericArea reports whether an area name is a placeholder that should be
// replaced by a rotation topic rather than queried literally.
func (vs *VarietyService) IsGenericArea(area string) bool {
	area = strings.TrimSpace(area)
	if area == "" {
		return true
	}
	upper := strings.ToUpper(area)
	for _, generic := range config.GenericAreaNames {
		if upper == generic {
			return true
		}
	}
	return false
}

// PickRotationTopic selects a random topic from the rotation pool
func (vs *VarietyService) PickRotationTopic(ctx context.Context) string {
	topics := vs.cfg.RotationTopics()
	topic := topics[rand.Intn(len(topics))]

	_, span := observability.TraceVarietyFunction(ctx, "pick_rotation_topic",
		observability.AttributeTopic(topic),
		attribute.Int("variety.pool_size", len(topics)),
	)
	defer span.End()

	vs.logger.Debug(ctx, "Rotation topic selected for generic area", map[string]interface{}{
		"topic": topic,
	})
	return topic
}

// PickFocusDirective selects a random focus directive for a generation call
func (vs *VarietyService) PickFocusDirective(ctx context.Context) string {
	directives := vs.cfg.FocusDirectives()
	directive := directives[rand.Intn(len(directives))]

	_, span := observability.TraceVarietyFunction(ctx, "pick_focus_directive",
		attribute.String("variety.focus", directive),
		attribute.Int("variety.pool_size", len(directives)),
	)
	defer span.End()

	return directive
}

var (
	topicStopWords   = regexp.MustCompile(`\b(DE|LA|EL|LOS|LAS|UN|UNA|SOBRE|QUIERO|EXAMEN|TEST|PREGUNTAS)\b`)
	topicNonAlnum    = regexp.MustCompile(`[^A-Z0-9 ]`)
	topicMultiSpace  = regexp.MustCompile(`\s+`)
	topicAccentsRepl = strings.NewReplacer(
		"Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U", "Ü", "U", "Ñ", "N",
	)
)

// NormalizeTopic canonicalizes a free-form topic so near-identical phrasings
// land on the same bank rows ("Historia de Roma" -> "HISTORIA ROMA").
func NormalizeTopic(input string) string {
	if strings.TrimSpace(input) == "" {
		return "GENERAL"
	}

	normalized := strings.ToUpper(input)
	normalized = topicAccentsRepl.Replace(normalized)
	normalized = topicNonAlnum.ReplaceAllString(normalized, "")
	normalized = topicStopWords.ReplaceAllString(normalized, "")
	normalized = strings.TrimSpace(normalized)
	normalized = topicMultiSpace.ReplaceAllString(normalized, " ")

	if normalized == "" {
		return "GENERAL"
	}
	return normalized
}
