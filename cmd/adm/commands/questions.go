package commands

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"prepapp/internal/models"
	"prepapp/internal/observability"
	"prepapp/internal/services"
	contextutils "prepapp/internal/utils"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// importedQuestion is the wire shape of one question in an import file.
// Nullable columns are pointers so YAML/JSON omission maps to NULL.
type importedQuestion struct {
	Domain             string   `json:"domain" yaml:"domain"`
	Target             *string  `json:"target" yaml:"target"`
	Topic              string   `json:"topic" yaml:"topic"`
	Difficulty         string   `json:"difficulty" yaml:"difficulty"`
	QuestionText       string   `json:"question" yaml:"question" validate:"required"`
	Options            []string `json:"options" yaml:"options" validate:"min=2,dive,required"`
	CorrectOptionIndex int      `json:"correctAnswerIndex" yaml:"correct_option_index" validate:"min=0"`
	Explanation        string   `json:"explanation" yaml:"explanation"`
	ImageURL           *string  `json:"image_url" yaml:"image_url" validate:"omitempty,url"`
}

// QuestionCommands returns the question bank management commands
func QuestionCommands(bankService services.QuestionBankServiceInterface, logger *observability.Logger, db *sql.DB) *cobra.Command {
	questionsCmd := &cobra.Command{
		Use:   "questions",
		Short: "Question bank management commands",
		Long: `Question bank management commands for the prep platform.

Available commands:
  import    - Import questions from a YAML or JSON file`,
	}

	questionsCmd.AddCommand(importCmd(bankService, logger, db))

	return questionsCmd
}

// importCmd returns the import command
func importCmd(bankService services.QuestionBankServiceInterface, logger *observability.Logger, db *sql.DB) *cobra.Command {
	var defaultDomain string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import questions from a YAML or JSON file",
		Long: `Import questions from a YAML or JSON file into the question bank.

Questions are matched by content hash: re-importing a file updates the
mutable columns of existing questions instead of duplicating them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runImport(bankService, logger, db, args[0], defaultDomain)
		},
	}

	cmd.Flags().StringVar(&defaultDomain, "domain", "medicine", "Domain assigned to questions that do not specify one")

	return cmd
}

func runImport(bankService services.QuestionBankServiceInterface, logger *observability.Logger, db *sql.DB, path, defaultDomain string) error {
	ctx := context.Background()

	logger.Info(ctx, "Diagnostic info", map[string]interface{}{"config_file": os.Getenv("PREPAPP_CONFIG_FILE"), "database": getDatabaseInfo(db)})

	data, err := os.ReadFile(path)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to read import file %s", path)
	}

	imported, err := parseImportFile(path, data)
	if err != nil {
		return err
	}
	if len(imported) == 0 {
		logger.Warn(ctx, "Import file contains no questions", map[string]interface{}{"file": path})
		return nil
	}

	questions := make([]*models.Question, 0, len(imported))
	for i := range imported {
		q, convErr := toModelQuestion(&imported[i], defaultDomain)
		if convErr != nil {
			return contextutils.WrapErrorf(convErr, "invalid question at index %d", i)
		}
		questions = append(questions, q)
	}

	count, err := bankService.BulkImportQuestions(ctx, questions)
	if err != nil {
		logger.Error(ctx, "Question import failed", err, map[string]interface{}{"file": path})
		return contextutils.WrapErrorf(err, "import failed")
	}

	logger.Info(ctx, "Questions imported successfully", map[string]interface{}{
		"file":     path,
		"imported": count,
	})
	return nil
}

// parseImportFile decodes the file by extension, defaulting to YAML
func parseImportFile(path string, data []byte) ([]importedQuestion, error) {
	var imported []importedQuestion

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &imported); err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to parse JSON import file")
		}
	default:
		if err := yaml.Unmarshal(data, &imported); err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to parse YAML import file")
		}
	}

	return imported, nil
}

func toModelQuestion(iq *importedQuestion, defaultDomain string) (*models.Question, error) {
	if err := contextutils.ValidateStruct(iq); err != nil {
		return nil, err
	}
	if strings.TrimSpace(iq.QuestionText) == "" {
		return nil, contextutils.WrapErrorf(contextutils.ErrMissingRequired, "question text is required")
	}
	if iq.CorrectOptionIndex >= len(iq.Options) {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidAnswerIndex, "correct option index %d out of range", iq.CorrectOptionIndex)
	}

	domain := iq.Domain
	if domain == "" {
		domain = defaultDomain
	}
	topic := strings.TrimSpace(iq.Topic)
	if topic == "" {
		topic = "GENERAL"
	}

	q := &models.Question{
		Domain:             domain,
		Topic:              topic,
		Difficulty:         iq.Difficulty,
		QuestionText:       iq.QuestionText,
		Options:            iq.Options,
		CorrectOptionIndex: iq.CorrectOptionIndex,
		Explanation:        iq.Explanation,
	}
	if iq.Target != nil && *iq.Target != "" {
		q.Target = sql.NullString{String: *iq.Target, Valid: true}
	}
	if iq.ImageURL != nil && *iq.ImageURL != "" {
		q.ImageURL = sql.NullString{String: *iq.ImageURL, Valid: true}
	}

	return q, nil
}
