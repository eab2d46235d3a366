package ai

import (
	"context"

	"github.com/benvon/assistant-chat/internal/models"
)

// ModelClient is the interface for language-model providers
type ModelClient interface {
	// Complete returns the whole completion for the given turns
	Complete(ctx context.Context, turns []Turn, params GenerationParams) (*Completion, error)

	// CompleteStream returns text fragments in production order. The fragment
	// channel is closed when the completion ends; a failure is delivered on the
	// error channel (at most once) before both channels close.
	CompleteStream(ctx context.Context, turns []Turn, params GenerationParams) (<-chan string, <-chan error)
}

// Turn is one role-tagged entry of a prompt
type Turn struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
}

// GenerationParams are the per-call generation settings
type GenerationParams struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Usage reports token accounting when the provider returns it
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Completion is a non-streaming model result
type Completion struct {
	Text  string `json:"text"`
	Usage *Usage `json:"usage,omitempty"`
}

// ClientFactory creates a model client from provider config
type ClientFactory func(config map[string]string) (ModelClient, error)

// ProviderRegistry stores available model providers
type ProviderRegistry struct {
	providers map[string]ClientFactory
}

// NewProviderRegistry creates a new provider registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]ClientFactory),
	}
}

// Register registers a provider factory
func (r *ProviderRegistry) Register(name string, factory ClientFactory) {
	r.providers[name] = factory
}

// GetClient gets a client by provider name
func (r *ProviderRegistry) GetClient(name string, config map[string]string) (ModelClient, error) {
	factory, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}

	return factory(config)
}

// ErrProviderNotFound is returned when a provider is not found
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return "AI provider not found: " + e.Name
}

// EstimateTokenCount provides a rough token estimate (~4 bytes per token)
func EstimateTokenCount(text string) int {
	if len(text) == 0 {
		return 0
	}
	return len(text) / 4
}
