package related

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/benvon/assistant-chat/internal/models"
	"github.com/benvon/assistant-chat/internal/services/ai"
	"go.uber.org/zap"
)

const (
	// MaxQuestionRunes drops model lines longer than this
	MaxQuestionRunes = 50
	// DefaultLLMTimeout bounds the question-generation call
	DefaultLLMTimeout = 20 * time.Second

	llmTemperature = 0.8
	llmMaxTokens   = 300
)

const systemInstruction = `You suggest follow-up questions for a chat.
Write exactly %d short follow-up questions (at most 30 characters each) the user might ask next.
Cover different angles: underlying principle, practical application, comparison, extension.
Use the same language as the user. Output one question per line with no numbering, bullets or extra text.`

// Generator produces follow-up questions after an exchange
type Generator struct {
	client    ai.ModelClient
	templates Templates
	model     string
	timeout   time.Duration
	logger    *zap.Logger
	shuffle   func([]string)
}

// Option configures a Generator
type Option func(*Generator)

// WithTemplates replaces the built-in keyword templates
func WithTemplates(t Templates) Option {
	return func(g *Generator) {
		if len(t.Keywords) > 0 || len(t.General) > 0 {
			g.templates = t
		}
	}
}

// WithModel sets the model used in llm mode. Empty uses the client's default.
func WithModel(model string) Option {
	return func(g *Generator) { g.model = model }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGenerator creates a generator. client may be nil when llm mode is never used.
func NewGenerator(client ai.ModelClient, opts ...Option) *Generator {
	g := &Generator{
		client:    client,
		templates: DefaultTemplates(),
		timeout:   DefaultLLMTimeout,
		logger:    zap.NewNop(),
		shuffle:   shuffleStrings,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns at most cfg.EffectiveCount() questions for the exchange.
// It never fails: llm-mode errors fall back to templates.
func (g *Generator) Generate(ctx context.Context, userText, assistantText string, cfg models.RelatedQuestionsConfig) []string {
	if !cfg.Active() {
		return nil
	}
	count := cfg.EffectiveCount()

	switch cfg.Mode {
	case models.RelatedQuestionsLLM:
		questions, err := g.fromModel(ctx, userText, assistantText, count)
		if err == nil {
			return questions
		}
		g.logger.Warn("related_questions_llm_failed",
			zap.Error(err),
			zap.String("fallback", string(models.RelatedQuestionsTemplate)),
			zap.String("user_id", ai.ExtractUserID(ctx)),
		)
		return g.templates.pick(userText, count, g.shuffle)
	case models.RelatedQuestionsTemplate:
		return g.templates.pick(userText, count, g.shuffle)
	default:
		return nil
	}
}

func (g *Generator) fromModel(ctx context.Context, userText, assistantText string, count int) ([]string, error) {
	if g.client == nil {
		return nil, fmt.Errorf("no model client configured")
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	turns := []ai.Turn{
		{Role: models.RoleSystem, Content: fmt.Sprintf(systemInstruction, count)},
		{Role: models.RoleUser, Content: fmt.Sprintf("User: %s\n\nAssistant: %s", userText, assistantText)},
	}

	resp, err := g.client.Complete(ctx, turns, ai.GenerationParams{
		Model:       g.model,
		Temperature: llmTemperature,
		MaxTokens:   llmMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate related questions: %w", err)
	}

	questions := ParseQuestions(resp.Text, count)
	if len(questions) == 0 {
		return nil, fmt.Errorf("model returned no usable questions")
	}
	return questions, nil
}

// ParseQuestions splits a model response into at most count questions,
// dropping blank lines and lines longer than MaxQuestionRunes.
func ParseQuestions(text string, count int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		q := strings.TrimSpace(line)
		if q == "" || utf8.RuneCountInString(q) > MaxQuestionRunes {
			continue
		}
		out = append(out, q)
		if len(out) == count {
			break
		}
	}
	return out
}
