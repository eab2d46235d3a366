package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/benvon/assistant-chat/internal/models"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout bounds non-streaming calls
	DefaultTimeout = 60 * time.Second
	// DefaultStreamTimeout bounds a whole streamed completion
	DefaultStreamTimeout = 5 * time.Minute

	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = "no choices in response"
)

// OpenAIClient implements ModelClient using OpenAI's chat completions API
type OpenAIClient struct {
	client    openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(apiKey string, model string) *OpenAIClient {
	return NewOpenAIClientWithLogger(apiKey, DefaultOpenAIBaseURL, model, nil, false)
}

// NewOpenAIClientWithLogger creates a new OpenAI client with logger support
func NewOpenAIClientWithLogger(apiKey string, baseURL string, model string, logger *zap.Logger, debugMode bool) *OpenAIClient {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// No client-wide timeout: it would cut long streams. Calls are bounded per request instead.
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(&http.Client{}),
	)

	return &OpenAIClient{
		client:    client,
		model:     model,
		logger:    logger,
		debugMode: debugMode,
	}
}

func (c *OpenAIClient) buildRequest(turns []Turn, params GenerationParams) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case models.RoleSystem:
			messages = append(messages, openai.SystemMessage(t.Content))
		case models.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(t.Content))
		default:
			messages = append(messages, openai.UserMessage(t.Content))
		}
	}

	model := params.Model
	if model == "" {
		model = c.model
	}

	req := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(model),
		Messages:    messages,
		Temperature: openai.Float(params.Temperature),
	}
	if params.MaxTokens > 0 {
		req.MaxTokens = openai.Int(int64(params.MaxTokens))
	}
	return req
}

func (c *OpenAIClient) logRequest(ctx context.Context, operation string, req openai.ChatCompletionNewParams, turns []Turn) {
	if !c.debugMode {
		return
	}
	c.logger.Debug("llm_api_request",
		zap.String("operation", operation),
		zap.String("model", string(req.Model)),
		zap.Int("message_count", len(turns)),
		zap.Strings("message_previews", turnPreviews(turns)),
		zap.String("user_id", ExtractUserID(ctx)),
		zap.String("conversation_id", ExtractConversationID(ctx)),
		zap.String("request_id", ExtractRequestID(ctx)),
	)
}

func wrapProviderError(operation string, err error) error {
	if apiErr := ExtractAPIError(err); apiErr != nil {
		return fmt.Errorf("failed to %s: %w", operation, apiErr)
	}
	return fmt.Errorf("failed to %s: %w", operation, err)
}

// Complete returns a single non-streaming completion
func (c *OpenAIClient) Complete(ctx context.Context, turns []Turn, params GenerationParams) (*Completion, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	req := c.buildRequest(turns, params)
	c.logRequest(ctx, "complete", req, turns)

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, req)
	latency := time.Since(start)
	if err != nil {
		if c.debugMode {
			c.logger.Debug("llm_api_error",
				zap.String("operation", "complete"),
				zap.String("model", string(req.Model)),
				zap.Error(err),
				zap.String("request_id", ExtractRequestID(ctx)),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		return nil, wrapProviderError("complete", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New(ErrNoChoicesInResponse)
	}

	content := resp.Choices[0].Message.Content
	if c.debugMode {
		c.logger.Debug("llm_api_response",
			zap.String("operation", "complete"),
			zap.String("model", string(req.Model)),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", replyPreview(content)),
			zap.String("request_id", ExtractRequestID(ctx)),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}

	return &Completion{
		Text: content,
		Usage: &Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}

// CompleteStream streams a completion fragment by fragment
func (c *OpenAIClient) CompleteStream(ctx context.Context, turns []Turn, params GenerationParams) (<-chan string, <-chan error) {
	contentChan := make(chan string)
	errorChan := make(chan error, 1)

	req := c.buildRequest(turns, params)
	c.logRequest(ctx, "complete_stream", req, turns)

	go func() {
		defer close(contentChan)
		defer close(errorChan)

		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, DefaultStreamTimeout)
			defer cancel()
		}

		start := time.Now()
		stream := c.client.Chat.Completions.NewStreaming(ctx, req)
		defer func() {
			_ = stream.Close()
		}()

		fragments := 0
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case contentChan <- delta:
				fragments++
			case <-ctx.Done():
				errorChan <- ctx.Err()
				return
			}
		}

		if err := stream.Err(); err != nil {
			if c.debugMode {
				c.logger.Debug("llm_api_error",
					zap.String("operation", "complete_stream"),
					zap.String("model", string(req.Model)),
					zap.Error(err),
					zap.Int("fragments_sent", fragments),
					zap.Int64("latency_ms", time.Since(start).Milliseconds()),
				)
			}
			errorChan <- wrapProviderError("stream completion", err)
			return
		}

		if c.debugMode {
			c.logger.Debug("llm_api_stream_done",
				zap.String("operation", "complete_stream"),
				zap.String("model", string(req.Model)),
				zap.Int("fragments_sent", fragments),
				zap.Int64("latency_ms", time.Since(start).Milliseconds()),
			)
		}
	}()

	return contentChan, errorChan
}

// RegisterOpenAI registers the OpenAI client with the registry
func RegisterOpenAI(registry *ProviderRegistry, logger *zap.Logger, debugMode bool) {
	registry.Register("openai", func(config map[string]string) (ModelClient, error) {
		apiKey, ok := config["api_key"]
		if !ok || apiKey == "" {
			return nil, fmt.Errorf("openai api_key is required")
		}

		return NewOpenAIClientWithLogger(apiKey, config["base_url"], config["model"], logger, debugMode), nil
	})
}
