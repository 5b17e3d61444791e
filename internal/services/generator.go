package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"prepapp/internal/config"
	"prepapp/internal/models"
	"prepapp/internal/observability"
	contextutils "prepapp/internal/utils"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

// QuestionGeneratorInterface defines the external question generator collaborator.
// The orchestrator only depends on this; the concrete transport lives here.
type QuestionGeneratorInterface interface {
	GenerateQuestions(ctx context.Context, req *models.GenerationRequest) ([]models.GeneratedQuestion, error)
}

// generatedBatchSchema validates the shape of a generator response before any
// question from it is trusted. Content checks (option counts, index bounds)
// happen later during sanitization; this only rejects structurally broken output.
const generatedBatchSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["question", "options", "correctAnswerIndex"],
		"properties": {
			"question": {"type": "string", "minLength": 1},
			"options": {"type": "array", "items": {"type": "string"}, "minItems": 2},
			"correctAnswerIndex": {"type": "integer", "minimum": 0},
			"explanation": {"type": "string"},
			"topic": {"type": "string"}
		}
	}
}`

// HTTPGenerator calls an external generation endpoint over HTTP.
type HTTPGenerator struct {
	cfg    config.GeneratorConfig
	client *http.Client
	schema *gojsonschema.Schema
	logger *observability.Logger
}

// NewHTTPGenerator creates a new HTTPGenerator from configuration
func NewHTTPGenerator(cfg config.GeneratorConfig, logger *observability.Logger) (result0 *HTTPGenerator, err error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(generatedBatchSchema))
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to compile generator response schema")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.GeneratorRequestTimeout
	}

	logger.Info(context.Background(), "Configured question generator", map[string]interface{}{
		"url":     cfg.URL,
		"api_key": contextutils.MaskAPIKey(cfg.APIKey),
		"timeout": timeout.String(),
	})

	return &HTTPGenerator{
		cfg: cfg,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		schema: schema,
		logger: logger,
	}, nil
}

// GenerateQuestions posts a generation request and returns the validated batch.
// Malformed output is an error, never a partial result: the caller decides
// whether to degrade to bank-only or fail the whole request.
func (g *HTTPGenerator) GenerateQuestions(ctx context.Context, req *models.GenerationRequest) (result0 []models.GeneratedQuestion, err error) {
	ctx, span := observability.TraceGeneratorFunction(ctx, "GenerateQuestions",
		observability.AttributeDomain(req.Domain),
		observability.AttributeDifficulty(req.Difficulty),
		observability.AttributeCount(req.Count),
		attribute.Int("negative_examples.count", len(req.NegativeExamples)),
	)
	defer observability.FinishSpan(span, &err)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to marshal generation request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to build generation request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}
	for k, v := range g.cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrGeneratorUnavailable, "generator request failed: %v", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			g.logger.Warn(ctx, "Failed to close generator response body", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to read generator response")
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, contextutils.WrapErrorf(contextutils.ErrGeneratorRequestFailed, "generator returned status %d", resp.StatusCode)
	}

	return g.parseBatch(ctx, respBody)
}

// parseBatch validates and decodes a generator payload
func (g *HTTPGenerator) parseBatch(ctx context.Context, payload []byte) (result0 []models.GeneratedQuestion, err error) {
	cleaned := stripCodeFences(string(payload))

	validation, err := g.schema.Validate(gojsonschema.NewStringLoader(cleaned))
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrGeneratorResponseInvalid, "generator response is not valid JSON: %v", err)
	}
	if !validation.Valid() {
		details := make([]string, 0, len(validation.Errors()))
		for _, resultErr := range validation.Errors() {
			details = append(details, resultErr.String())
		}
		g.logger.Warn(ctx, "Generator response failed schema validation", map[string]interface{}{
			"errors": strings.Join(details, "; "),
		})
		return nil, contextutils.WrapErrorf(contextutils.ErrGeneratorResponseInvalid, "generator response failed validation: %s", strings.Join(details, "; "))
	}

	var questions []models.GeneratedQuestion
	if err := json.Unmarshal([]byte(cleaned), &questions); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrGeneratorResponseInvalid, "failed to decode generator response: %v", err)
	}

	return questions, nil
}

// DisabledGenerator stands in when no generator endpoint is configured.
// Every call reports the generator as unavailable, which callers treat as a
// signal to degrade to bank-only delivery.
type DisabledGenerator struct{}

// NewDisabledGenerator creates a new DisabledGenerator
func NewDisabledGenerator() *DisabledGenerator {
	return &DisabledGenerator{}
}

// GenerateQuestions always fails with a generator unavailable error
func (g *DisabledGenerator) GenerateQuestions(_ context.Context, _ *models.GenerationRequest) ([]models.GeneratedQuestion, error) {
	return nil, contextutils.WrapErrorf(contextutils.ErrGeneratorUnavailable, "question generation is disabled")
}

// stripCodeFences tolerates generators that wrap their JSON in markdown fences
func stripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
