package config

import "time"

// Timeout constants
const (
	// HTTP timeouts
	DefaultHTTPTimeout      = 60 * time.Second
	GeneratorRequestTimeout = 3 * time.Minute
	ServerShutdownTimeout   = 30 * time.Second

	// Database timeouts
	DatabaseConnMaxLifetime = 5 * time.Minute
)

// Retrieval policy constants
const (
	// ExposureWindow is the sliding window during which a delivered question
	// is excluded from a user's next batches.
	ExposureWindow = 24 * time.Hour

	// HardCapThreshold is the batch size at or above which generation is
	// disabled and the batch must come entirely from the bank (exam mode).
	HardCapThreshold = 100

	// MinViableBankSize is the minimum number of bank matches required to
	// serve a hard-cap batch at all.
	MinViableBankSize = 10

	// DedupContextSize is how many existing question texts are sampled as
	// negative examples for the generator.
	DedupContextSize = 15
)

// Spaced repetition policy constants
const (
	// DueFlashcardsLimit caps a single review session batch.
	DueFlashcardsLimit = 50

	// MatureIntervalDays is the interval above which a card counts as mastered.
	MatureIntervalDays = 21

	// InitialEasinessFactor is the SM-2 starting easiness for new cards.
	InitialEasinessFactor = 2.5

	// MinEasinessFactor is the SM-2 easiness floor.
	MinEasinessFactor = 1.3

	// FailureRescheduleDelay is how soon a failed card comes back.
	FailureRescheduleDelay = 1 * time.Minute
)

// Content domains
const (
	DomainMedicine      = "medicine"
	DomainGeneralTrivia = "GENERAL_TRIVIA"
)

// Exam targets
const (
	TargetENAM          = "ENAM"
	TargetPreInternship = "PRE-INTERNADO"
	TargetResidency     = "RESIDENTADO"
)

// Difficulty levels
const (
	DifficultyBasic        = "Básico"
	DifficultyIntermediate = "Intermedio"
	DifficultyAdvanced     = "Avanzado"
)

// Batch sources
const (
	SourceBank   = "BANK"
	SourceHybrid = "HYBRID"
)

// Deck types
const (
	DeckTypeSystem = "SYSTEM"
	DeckTypeUser   = "USER"
)

// GenericAreaNames are the area names that trigger topic rotation instead of
// being queried literally.
var GenericAreaNames = []string{"MEDICINA GENERAL", "GENERAL"}

// DefaultRotationTopics is the pool a generic area request rotates over.
var DefaultRotationTopics = []string{
	"CARDIOLOGIA",
	"PEDIATRIA",
	"GINECOLOGIA",
	"NEUROLOGIA",
	"DERMATOLOGIA",
	"TRAUMATOLOGIA",
	"SALUD PUBLICA",
	"NEFROLOGIA",
	"GASTROENTEROLOGIA",
}

// DefaultFocusDirectives steer each generation call toward a different angle
// of the requested topic so consecutive batches do not converge.
var DefaultFocusDirectives = []string{
	"Etiología y Fisiopatología",
	"Diagnóstico Inicial y Criterios",
	"Exámenes Auxiliares (Gold Standard)",
	"Tratamiento de Primera Línea",
	"Manejo de Complicaciones",
	"Factores de Riesgo y Prevención",
}

// FillerOption pads a generated question that arrived with too few options.
const FillerOption = "Opción extra"

// OptionCountForTarget returns how many options a question must carry for the
// given exam target.
func OptionCountForTarget(target string) int {
	if target == TargetResidency {
		return 5
	}
	return 4
}

// OfficialDifficultyForTarget returns the difficulty an exam-mode batch is
// pinned to for the given target.
func OfficialDifficultyForTarget(target string) string {
	if target == TargetResidency {
		return DifficultyAdvanced
	}
	return DifficultyIntermediate
}
