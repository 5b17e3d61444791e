package observability

import (
	"context"
	"fmt"

	"prepapp/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var globalTracer trace.Tracer

// InitGlobalTracer initializes the global tracer for the application.
func InitGlobalTracer() {
	globalTracer = otel.Tracer("prepapp")
}

// GetGlobalTracer returns the global tracer instance for the application.
func GetGlobalTracer() trace.Tracer {
	if globalTracer == nil {
		// Fallback to default tracer if not initialized
		globalTracer = otel.Tracer("prepapp")
	}
	return globalTracer
}

// TraceFunction starts a new span with a descriptive name for the given service and function.
func TraceFunction(ctx context.Context, serviceName, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := GetGlobalTracer()
	spanName := fmt.Sprintf("%s.%s", serviceName, functionName)
	return tracer.Start(ctx, spanName, trace.WithAttributes(attributes...))
}

// TraceFunctionWithErrorHandling starts a new span and automatically adds error attributes if the function panics or returns an error.
func TraceFunctionWithErrorHandling(ctx context.Context, serviceName, functionName string, fn func() error, attributes ...attribute.KeyValue) error {
	_, span := TraceFunction(ctx, serviceName, functionName, attributes...)
	defer func() {
		if err := recover(); err != nil {
			span.SetAttributes(
				attribute.Bool("error", true),
				attribute.String("error.type", "panic"),
				attribute.String("error.message", fmt.Sprintf("%v", err)),
			)
			span.End()
			panic(err) // re-panic
		}
	}()

	err := fn()
	if err != nil {
		span.SetAttributes(
			attribute.Bool("error", true),
			attribute.String("error.message", err.Error()),
		)
	}
	span.End()
	return err
}

// TraceBankFunction starts a new span for a question bank service function.
func TraceBankFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "bank", functionName, attributes...)
}

// TraceExposureFunction starts a new span for an exposure service function.
func TraceExposureFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "exposure", functionName, attributes...)
}

// TraceTrainingFunction starts a new span for a training service function.
func TraceTrainingFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "training", functionName, attributes...)
}

// TraceDeckFunction starts a new span for a deck service function.
func TraceDeckFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "deck", functionName, attributes...)
}

// TraceFlashcardFunction starts a new span for a flashcard service function.
func TraceFlashcardFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "flashcard", functionName, attributes...)
}

// TraceGeneratorFunction starts a new span for a generator client function.
func TraceGeneratorFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "generator", functionName, attributes...)
}

// TraceVarietyFunction starts a new span for a variety service function.
func TraceVarietyFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "variety", functionName, attributes...)
}

// TraceHandlerFunction starts a new span for a handler function.
func TraceHandlerFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "handler", functionName, attributes...)
}

// TraceDatabaseFunction starts a new span for a database function.
func TraceDatabaseFunction(ctx context.Context, functionName string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return TraceFunction(ctx, "database", functionName, attributes...)
}

// AttributeQuestion returns a tracing attribute for a question's ID.
func AttributeQuestion(q *models.Question) attribute.KeyValue {
	return attribute.String("question.id", q.ID)
}

// AttributeQuestionID returns a tracing attribute for a question ID.
func AttributeQuestionID(id string) attribute.KeyValue {
	return attribute.String("question.id", id)
}

// AttributeUserID returns a tracing attribute for a user ID.
func AttributeUserID(id string) attribute.KeyValue {
	return attribute.String("user.id", id)
}

// AttributeDomain returns a tracing attribute for a content domain.
func AttributeDomain(domain string) attribute.KeyValue {
	return attribute.String("domain", domain)
}

// AttributeTarget returns a tracing attribute for an exam target.
func AttributeTarget(target string) attribute.KeyValue {
	return attribute.String("target", target)
}

// AttributeTopic returns a tracing attribute for a topic.
func AttributeTopic(topic string) attribute.KeyValue {
	return attribute.String("topic", topic)
}

// AttributeDifficulty returns a tracing attribute for a difficulty.
func AttributeDifficulty(difficulty string) attribute.KeyValue {
	return attribute.String("difficulty", difficulty)
}

// AttributeLimit returns a tracing attribute for a limit value.
func AttributeLimit(limit int) attribute.KeyValue {
	return attribute.Int("limit", limit)
}

// AttributeDeckID returns a tracing attribute for a deck ID.
func AttributeDeckID(id string) attribute.KeyValue {
	return attribute.String("deck.id", id)
}

// AttributeSource returns a tracing attribute for a batch source (BANK or HYBRID).
func AttributeSource(source string) attribute.KeyValue {
	return attribute.String("source", source)
}

// AttributeCount returns a tracing attribute for a count value.
func AttributeCount(count int) attribute.KeyValue {
	return attribute.Int("count", count)
}
