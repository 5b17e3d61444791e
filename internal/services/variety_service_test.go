package services

import (
	"context"
	"testing"

	"prepapp/internal/config"
	"prepapp/internal/observability"

	"github.com/stretchr/testify/assert"
)

func newTestVarietyService(cfg *config.Config) *VarietyService {
	return NewVarietyServiceWithLogger(cfg, observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false}))
}

func TestVarietyService_IsGenericArea(t *testing.T) {
	service := newTestVarietyService(&config.Config{})

	assert.True(t, service.IsGenericArea(""))
	assert.True(t, service.IsGenericArea("  "))
	assert.True(t, service.IsGenericArea("GENERAL"))
	assert.True(t, service.IsGenericArea("general"))
	assert.True(t, service.IsGenericArea("Medicina General"))
	assert.True(t, service.IsGenericArea("  medicina general  "))

	assert.False(t, service.IsGenericArea("Cardiología"))
	assert.False(t, service.IsGenericArea("Pediatría"))
}

func TestVarietyService_PickRotationTopicUsesConfiguredPool(t *testing.T) {
	cfg := &config.Config{
		Variety: &config.VarietyConfig{
			RotationTopics: []string{"Cardiología", "Neurología"},
		},
	}
	service := newTestVarietyService(cfg)

	for i := 0; i < 20; i++ {
		topic := service.PickRotationTopic(context.Background())
		assert.Contains(t, cfg.Variety.RotationTopics, topic)
	}
}

func TestVarietyService_PickRotationTopicFallsBackToDefaults(t *testing.T) {
	service := newTestVarietyService(&config.Config{})

	topic := service.PickRotationTopic(context.Background())
	assert.Contains(t, config.DefaultRotationTopics, topic)
}

func TestVarietyService_PickFocusDirective(t *testing.T) {
	service := newTestVarietyService(&config.Config{})

	directive := service.PickFocusDirective(context.Background())
	assert.Contains(t, config.DefaultFocusDirectives, directive)
}

func TestNormalizeTopic(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty input", "", "GENERAL"},
		{"whitespace only", "   ", "GENERAL"},
		{"uppercases", "historia", "HISTORIA"},
		{"strips accents", "Cardiología", "CARDIOLOGIA"},
		{"removes stop words", "Historia de Roma", "HISTORIA ROMA"},
		{"removes request phrasing", "quiero un examen sobre la Revolución Francesa", "REVOLUCION FRANCESA"},
		{"strips punctuation", "¿Física cuántica?", "FISICA CUANTICA"},
		{"collapses spaces", "  historia   del   Perú ", "HISTORIA DEL PERU"},
		{"only stop words", "de la el", "GENERAL"},
		{"keeps digits", "Guerra Mundial 2", "GUERRA MUNDIAL 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeTopic(tt.input))
		})
	}
}
