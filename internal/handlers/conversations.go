package handlers

import (
	"errors"
	"net/http"

	"github.com/benvon/assistant-chat/internal/database"
	"github.com/benvon/assistant-chat/internal/models"
	"github.com/benvon/assistant-chat/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// ConversationHandler handles conversation and assistant listing requests
type ConversationHandler struct {
	conversations database.ConversationStore
	assistants    database.AssistantStore
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(conversations database.ConversationStore, assistants database.AssistantStore) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, assistants: assistants}
}

// RegisterRoutes registers conversation routes.
// The router should already have the /conversations prefix.
func (h *ConversationHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.CreateConversation).Methods("POST")
	r.HandleFunc("/{id}", h.GetConversation).Methods("GET")
	r.HandleFunc("/{id}", h.DeleteConversation).Methods("DELETE")
}

// RegisterAssistantRoutes registers assistant routes under an /assistants prefix
func (h *ConversationHandler) RegisterAssistantRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListAssistants).Methods("GET")
}

// CreateConversationRequest represents a create conversation request
type CreateConversationRequest struct {
	AssistantID uuid.UUID `json:"assistant_id" validate:"required"`
	Title       *string   `json:"title,omitempty" validate:"omitempty,max=200"`
}

// CreateConversation starts an empty conversation with an assistant the user can see
func (h *ConversationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	var req CreateConversationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	ctx := r.Context()
	assistant, err := h.assistants.GetAssistant(ctx, req.AssistantID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Assistant not found")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load assistant")
		return
	}
	if assistant.UserID != user.ID && !assistant.IsPublic {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Assistant not found")
		return
	}

	conv := &models.Conversation{UserID: user.ID, AssistantID: assistant.ID}
	if req.Title != nil {
		if title := validation.SanitizeText(*req.Title); title != "" {
			conv.Title = &title
		}
	}
	if err := h.conversations.CreateConversation(ctx, conv); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create conversation")
		return
	}
	conv.Assistant = *assistant

	respondJSON(w, http.StatusCreated, conv)
}

// GetConversation returns a conversation with its ordered messages
func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	conv, err := h.conversations.FindConversation(r.Context(), id, user.ID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Conversation not found")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve conversation")
		return
	}

	respondJSON(w, http.StatusOK, conv)
}

// DeleteConversation deletes a conversation and its messages
func (h *ConversationHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.conversations.DeleteConversation(r.Context(), id, user.ID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Conversation not found")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to delete conversation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListAssistants lists the user's own assistants followed by public ones
func (h *ConversationHandler) ListAssistants(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	assistants, err := h.assistants.ListAssistants(r.Context(), user.ID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to list assistants")
		return
	}
	if assistants == nil {
		assistants = []*models.AssistantConfig{}
	}

	respondJSON(w, http.StatusOK, assistants)
}
