package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/benvon/assistant-chat/internal/models"
	"github.com/benvon/assistant-chat/internal/services/chat"
	"github.com/benvon/assistant-chat/internal/services/ai"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// streamDone terminates a successful NDJSON stream
const streamDone = "[DONE]"

// ChatService is the conversation engine behind the chat endpoints
type ChatService interface {
	StreamTurn(ctx context.Context, conversationID, userID uuid.UUID, content string) (*chat.Stream, error)
	EditAndRegenerate(ctx context.Context, conversationID, userID, messageID uuid.UUID, content string) (*chat.Stream, error)
	SavePartial(ctx context.Context, conversationID, userID uuid.UUID, content string) (*models.Message, error)
}

// ChatHandler serves streamed turns, edits and partial saves
type ChatHandler struct {
	chat   ChatService
	logger *zap.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(service ChatService, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{chat: service, logger: logger}
}

// RegisterStreamRoutes registers the streaming routes. The router must not buffer
// responses, so it should carry no timeout middleware.
func (h *ChatHandler) RegisterStreamRoutes(r *mux.Router) {
	r.HandleFunc("/{id}/messages", h.SendMessage).Methods("POST")
	r.HandleFunc("/{id}/messages/{messageId}", h.EditMessage).Methods("PUT")
}

// RegisterRoutes registers the non-streaming chat routes
func (h *ChatHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/{id}/messages/partial", h.SavePartial).Methods("POST")
}

// SendMessageRequest is the body of a new turn or an edit
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=32000"`
}

// SavePartialRequest carries the text observed before a stream was cancelled
type SavePartialRequest struct {
	Content string `json:"content" validate:"max=32000"`
}

// SendMessage streams the reply to a new user turn as NDJSON
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	convID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req SendMessageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	stream, err := h.chat.StreamTurn(r.Context(), convID, user.ID, req.Content)
	h.serveStream(w, r, stream, err)
}

// EditMessage replaces a user turn, drops everything after it and streams a new reply
func (h *ChatHandler) EditMessage(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	convID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	messageID, ok := pathUUID(w, r, "messageId")
	if !ok {
		return
	}
	var req SendMessageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	stream, err := h.chat.EditAndRegenerate(r.Context(), convID, user.ID, messageID, req.Content)
	h.serveStream(w, r, stream, err)
}

// SavePartial persists the assistant text a client saw before it stopped the stream
func (h *ChatHandler) SavePartial(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	convID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req SavePartialRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	msg, err := h.chat.SavePartial(r.Context(), convID, user.ID, req.Content)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if msg == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

// serveStream writes a turn as NDJSON. Failures seen before the first event
// become ordinary HTTP errors; later ones end the stream with an error line.
func (h *ChatHandler) serveStream(w http.ResponseWriter, r *http.Request, stream *chat.Stream, err error) {
	if err != nil {
		respondServiceError(w, err)
		return
	}

	ctx := r.Context()
	events := stream.Events()
	first, ok := <-events
	if !ok {
		if err := stream.Err(); err != nil {
			if ctx.Err() == nil {
				h.logStreamError(ctx, err)
				respondServiceError(w, err)
			}
			return
		}
	}

	header := w.Header()
	header.Set("Content-Type", "application/x-ndjson")
	header.Set("Cache-Control", "no-cache")
	header.Set("X-Accel-Buffering", "no")
	if stream.UserMessage != nil {
		header.Set("X-User-Message-ID", stream.UserMessage.ID.String())
	}
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)
	broken := false
	write := func(v any) {
		if broken {
			return
		}
		if err := enc.Encode(v); err != nil {
			broken = true
			return
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			broken = true
		}
	}

	if ok {
		write(first)
	}
	// Keep draining after a broken write so the producer can exit
	for ev := range events {
		write(ev)
	}

	if err := stream.Err(); err != nil {
		if ctx.Err() != nil {
			return
		}
		h.logStreamError(ctx, err)
		write(map[string]string{"error": streamErrorMessage(err)})
		return
	}

	if !broken {
		if _, err := w.Write([]byte(streamDone + "\n")); err == nil {
			_ = rc.Flush()
		}
	}
}

func (h *ChatHandler) logStreamError(ctx context.Context, err error) {
	h.logger.Warn("chat_stream_error",
		zap.String("request_id", ai.ExtractRequestID(ctx)),
		zap.Error(err),
	)
}

func streamErrorMessage(err error) string {
	var providerErr *chat.ProviderError
	if errors.As(err, &providerErr) {
		if ai.IsRateLimitError(providerErr) {
			return "The model provider is rate limiting requests"
		}
		return "The model provider failed to respond"
	}
	return "Failed to complete the response"
}
