package models

import (
	"time"

	"github.com/google/uuid"
)

// RelatedQuestionsMode selects how follow-up questions are produced
type RelatedQuestionsMode string

const (
	RelatedQuestionsLLM      RelatedQuestionsMode = "llm"
	RelatedQuestionsTemplate RelatedQuestionsMode = "template"
	RelatedQuestionsDisabled RelatedQuestionsMode = "disabled"
)

const (
	// MinRelatedQuestions is the smallest allowed question count
	MinRelatedQuestions = 1
	// MaxRelatedQuestions is the largest allowed question count
	MaxRelatedQuestions = 5
	// DefaultRelatedQuestions is used when an assistant does not specify a count
	DefaultRelatedQuestions = 3
)

// RelatedQuestionsConfig controls follow-up question generation for an assistant
type RelatedQuestionsConfig struct {
	Enabled bool                 `json:"enabled"`
	Mode    RelatedQuestionsMode `json:"mode" validate:"omitempty,related_mode"`
	Count   int                  `json:"count" validate:"omitempty,min=1,max=5"`
}

// Active reports whether the config can produce any questions.
// A disabled mode and Enabled=false are equivalent.
func (c RelatedQuestionsConfig) Active() bool {
	return c.Enabled && c.Mode != RelatedQuestionsDisabled && c.Mode != ""
}

// EffectiveCount clamps Count into [MinRelatedQuestions, MaxRelatedQuestions]
func (c RelatedQuestionsConfig) EffectiveCount() int {
	switch {
	case c.Count <= 0:
		return DefaultRelatedQuestions
	case c.Count > MaxRelatedQuestions:
		return MaxRelatedQuestions
	default:
		return c.Count
	}
}

// AssistantConfig is the snapshot of an assistant used to drive a conversation
type AssistantConfig struct {
	ID               uuid.UUID              `json:"id"`
	UserID           uuid.UUID              `json:"user_id"`
	Name             string                 `json:"name"`
	SystemPrompt     string                 `json:"system_prompt"`
	Model            string                 `json:"model"`
	Temperature      float64                `json:"temperature" validate:"min=0,max=2"`
	MaxTokens        int                    `json:"max_tokens" validate:"min=0"`
	IsPublic         bool                   `json:"is_public"`
	RelatedQuestions RelatedQuestionsConfig `json:"related_questions"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}
