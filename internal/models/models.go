// Package models defines data structures used throughout the prep platform backend.
package models

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Question represents a stored multiple-choice question in the bank
type Question struct {
	ID                 string         `json:"id" yaml:"id"`
	Domain             string         `json:"domain" yaml:"domain"`
	Target             sql.NullString `json:"target" yaml:"target"`
	Topic              string         `json:"topic" yaml:"topic"`
	Difficulty         string         `json:"difficulty" yaml:"difficulty"`
	QuestionText       string         `json:"question" yaml:"question"`
	Options            []string       `json:"options" yaml:"options"`
	CorrectOptionIndex int            `json:"correctAnswerIndex" yaml:"correct_option_index"`
	Explanation        string         `json:"explanation" yaml:"explanation"`
	ImageURL           sql.NullString `json:"image_url" yaml:"image_url"`
	QuestionHash       string         `json:"-" yaml:"-"`
	TimesUsed          int            `json:"-" yaml:"-"`
	CreatedAt          time.Time      `json:"created_at" yaml:"created_at"`
}

// MarshalJSON customizes JSON marshaling for Question to handle sql.Null types properly
func (q Question) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID                 string    `json:"id"`
		Domain             string    `json:"domain"`
		Target             *string   `json:"target"`
		Topic              string    `json:"topic"`
		Difficulty         string    `json:"difficulty"`
		QuestionText       string    `json:"question"`
		Options            []string  `json:"options"`
		CorrectOptionIndex int       `json:"correctAnswerIndex"`
		Explanation        string    `json:"explanation"`
		ImageURL           *string   `json:"image_url,omitempty"`
		CreatedAt          time.Time `json:"created_at"`
	}{
		ID:                 q.ID,
		Domain:             q.Domain,
		Target:             nullStringToPointer(q.Target),
		Topic:              q.Topic,
		Difficulty:         q.Difficulty,
		QuestionText:       q.QuestionText,
		Options:            q.Options,
		CorrectOptionIndex: q.CorrectOptionIndex,
		Explanation:        q.Explanation,
		ImageURL:           nullStringToPointer(q.ImageURL),
		CreatedAt:          q.CreatedAt,
	})
}

// ContentHash computes the dedup hash for a question's identity.
// The hash covers topic, text and the serialized options so the same text
// with different distractors counts as a different question.
func ContentHash(topic, questionText string, options []string) string {
	serialized, err := json.Marshal(options)
	if err != nil {
		serialized = []byte("[]")
	}
	raw := fmt.Sprintf("%s-%s-%s", topic, questionText, serialized)
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ComputeHash fills in the question's content hash from its current fields
func (q *Question) ComputeHash() string {
	q.QuestionHash = ContentHash(q.Topic, q.QuestionText, q.Options)
	return q.QuestionHash
}

// GeneratedQuestion is the wire shape the external generator returns
type GeneratedQuestion struct {
	QuestionText       string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
	Explanation        string   `json:"explanation"`
	Topic              string   `json:"topic"`
}

// GenerationRequest describes a single call to the external generator
type GenerationRequest struct {
	Domain           string   `json:"domain"`
	Target           string   `json:"target,omitempty"`
	Areas            []string `json:"areas"`
	Difficulty       string   `json:"difficulty"`
	Count            int      `json:"count"`
	NegativeExamples []string `json:"negative_examples,omitempty"`
	FocusDirective   string   `json:"focus_directive,omitempty"`
}

// QuestionBatch is the result of a hybrid retrieval: the delivered questions,
// where they came from (BANK or HYBRID) and the resolved primary topic.
type QuestionBatch struct {
	Questions []Question `json:"questions"`
	Source    string     `json:"source"`
	Topic     string     `json:"topic"`
}

// Deck represents a flashcard deck, optionally nested under a parent deck
type Deck struct {
	ID           string         `json:"id" yaml:"id"`
	UserID       string         `json:"user_id" yaml:"user_id"`
	Name         string         `json:"name" yaml:"name"`
	DeckType     string         `json:"deck_type" yaml:"deck_type"`
	SourceModule sql.NullString `json:"source_module" yaml:"source_module"`
	Icon         sql.NullString `json:"icon" yaml:"icon"`
	ParentID     sql.NullString `json:"parent_id" yaml:"parent_id"`
	CreatedAt    time.Time      `json:"created_at" yaml:"created_at"`
}

// MarshalJSON customizes JSON marshaling for Deck to handle sql.Null types properly
func (d Deck) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID           string    `json:"id"`
		UserID       string    `json:"user_id"`
		Name         string    `json:"name"`
		DeckType     string    `json:"deck_type"`
		SourceModule *string   `json:"source_module"`
		Icon         *string   `json:"icon"`
		ParentID     *string   `json:"parent_id"`
		CreatedAt    time.Time `json:"created_at"`
	}{
		ID:           d.ID,
		UserID:       d.UserID,
		Name:         d.Name,
		DeckType:     d.DeckType,
		SourceModule: nullStringToPointer(d.SourceModule),
		Icon:         nullStringToPointer(d.Icon),
		ParentID:     nullStringToPointer(d.ParentID),
		CreatedAt:    d.CreatedAt,
	})
}

// DeckWithStats is a deck decorated with listing aggregates
type DeckWithStats struct {
	Deck
	TotalCards     int     `json:"total_cards"`
	DueCards       int     `json:"due_cards"`
	ChildCount     int     `json:"child_count"`
	MasteryPercent float64 `json:"mastery_percent"`
}

// MarshalJSON flattens the embedded deck and its aggregates into one object
func (d DeckWithStats) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID             string    `json:"id"`
		UserID         string    `json:"user_id"`
		Name           string    `json:"name"`
		DeckType       string    `json:"deck_type"`
		SourceModule   *string   `json:"source_module"`
		Icon           *string   `json:"icon"`
		ParentID       *string   `json:"parent_id"`
		CreatedAt      time.Time `json:"created_at"`
		TotalCards     int       `json:"total_cards"`
		DueCards       int       `json:"due_cards"`
		ChildCount     int       `json:"child_count"`
		MasteryPercent float64   `json:"mastery_percent"`
	}{
		ID:             d.ID,
		UserID:         d.UserID,
		Name:           d.Name,
		DeckType:       d.DeckType,
		SourceModule:   nullStringToPointer(d.SourceModule),
		Icon:           nullStringToPointer(d.Icon),
		ParentID:       nullStringToPointer(d.ParentID),
		CreatedAt:      d.CreatedAt,
		TotalCards:     d.TotalCards,
		DueCards:       d.DueCards,
		ChildCount:     d.ChildCount,
		MasteryPercent: d.MasteryPercent,
	})
}

// Flashcard represents a spaced-repetition card owned by a user
type Flashcard struct {
	ID               string         `json:"id" yaml:"id"`
	UserID           string         `json:"user_id" yaml:"user_id"`
	DeckID           string         `json:"deck_id" yaml:"deck_id"`
	Front            string         `json:"front" yaml:"front"`
	Back             string         `json:"back" yaml:"back"`
	Topic            sql.NullString `json:"topic" yaml:"topic"`
	IntervalDays     int            `json:"interval_days" yaml:"interval_days"`
	EasinessFactor   float64        `json:"easiness_factor" yaml:"easiness_factor"`
	RepetitionNumber int            `json:"repetition_number" yaml:"repetition_number"`
	NextReviewAt     time.Time      `json:"next_review_at" yaml:"next_review_at"`
	LastReviewedAt   sql.NullTime   `json:"last_reviewed_at" yaml:"last_reviewed_at"`
	SourceQuizID     sql.NullString `json:"source_quiz_id" yaml:"source_quiz_id"`
	CreatedAt        time.Time      `json:"created_at" yaml:"created_at"`
}

// MarshalJSON customizes JSON marshaling for Flashcard to handle sql.Null types properly
func (f Flashcard) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID               string     `json:"id"`
		UserID           string     `json:"user_id"`
		DeckID           string     `json:"deck_id"`
		Front            string     `json:"front"`
		Back             string     `json:"back"`
		Topic            *string    `json:"topic"`
		IntervalDays     int        `json:"interval_days"`
		EasinessFactor   float64    `json:"easiness_factor"`
		RepetitionNumber int        `json:"repetition_number"`
		NextReviewAt     time.Time  `json:"next_review_at"`
		LastReviewedAt   *time.Time `json:"last_reviewed_at"`
		SourceQuizID     *string    `json:"source_quiz_id"`
		CreatedAt        time.Time  `json:"created_at"`
	}{
		ID:               f.ID,
		UserID:           f.UserID,
		DeckID:           f.DeckID,
		Front:            f.Front,
		Back:             f.Back,
		Topic:            nullStringToPointer(f.Topic),
		IntervalDays:     f.IntervalDays,
		EasinessFactor:   f.EasinessFactor,
		RepetitionNumber: f.RepetitionNumber,
		NextReviewAt:     f.NextReviewAt,
		LastReviewedAt:   nullTimeToPointer(f.LastReviewedAt),
		SourceQuizID:     nullStringToPointer(f.SourceQuizID),
		CreatedAt:        f.CreatedAt,
	})
}

// ReviewState is the scheduling state of a card fed into the SM-2 update
type ReviewState struct {
	IntervalDays     int     `json:"interval_days"`
	EasinessFactor   float64 `json:"easiness_factor"`
	RepetitionNumber int     `json:"repetition_number"`
}

// ReviewResult is the updated scheduling state plus the concrete next due time
type ReviewResult struct {
	ReviewState
	NextReviewAt time.Time `json:"next_review_at"`
}

// AreaStat aggregates per-area performance inside a quiz attempt
type AreaStat struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// AnsweredQuestion is one question of a submitted quiz result
type AnsweredQuestion struct {
	QuestionID         string   `json:"question_id,omitempty"`
	QuestionText       string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
	UserAnswer         int      `json:"userAnswer"`
	Explanation        string   `json:"explanation,omitempty"`
	Topic              string   `json:"topic,omitempty"`
}

// IsCorrect reports whether the user picked the right option
func (a *AnsweredQuestion) IsCorrect() bool {
	return a.UserAnswer == a.CorrectAnswerIndex
}

// QuizAttempt represents a finished quiz recorded in history
type QuizAttempt struct {
	ID             string              `json:"id" yaml:"id"`
	UserID         string              `json:"user_id" yaml:"user_id"`
	Topic          string              `json:"topic" yaml:"topic"`
	Target         sql.NullString      `json:"target" yaml:"target"`
	Difficulty     string              `json:"difficulty" yaml:"difficulty"`
	Score          int                 `json:"score" yaml:"score"`
	TotalQuestions int                 `json:"total_questions" yaml:"total_questions"`
	WeakPoints     []string            `json:"weak_points" yaml:"weak_points"`
	AreaStats      map[string]AreaStat `json:"area_stats" yaml:"area_stats"`
	CreatedAt      time.Time           `json:"created_at" yaml:"created_at"`
}

// MarshalJSON customizes JSON marshaling for QuizAttempt to handle sql.Null types properly
func (a QuizAttempt) MarshalJSON() (result0 []byte, err error) {
	return json.Marshal(&struct {
		ID             string              `json:"id"`
		UserID         string              `json:"user_id"`
		Topic          string              `json:"topic"`
		Target         *string             `json:"target"`
		Difficulty     string              `json:"difficulty"`
		Score          int                 `json:"score"`
		TotalQuestions int                 `json:"total_questions"`
		WeakPoints     []string            `json:"weak_points"`
		AreaStats      map[string]AreaStat `json:"area_stats"`
		CreatedAt      time.Time           `json:"created_at"`
	}{
		ID:             a.ID,
		UserID:         a.UserID,
		Topic:          a.Topic,
		Target:         nullStringToPointer(a.Target),
		Difficulty:     a.Difficulty,
		Score:          a.Score,
		TotalQuestions: a.TotalQuestions,
		WeakPoints:     a.WeakPoints,
		AreaStats:      a.AreaStats,
		CreatedAt:      a.CreatedAt,
	})
}

// EvolutionPoint is one attempt in the score evolution series.
// Score20 projects the raw score onto the 0-20 grading scale used by the
// Peruvian medical exams.
type EvolutionPoint struct {
	AttemptID      string    `json:"attempt_id"`
	DateLabel      string    `json:"date_label"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	Score20        float64   `json:"score_20"`
	CreatedAt      time.Time `json:"created_at"`
}

// Helper functions for converting sql.Null types to pointers
func nullStringToPointer(ns sql.NullString) *string {
	if ns.Valid {
		return &ns.String
	}
	return nil
}

func nullTimeToPointer(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}
