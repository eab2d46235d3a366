package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	logpkg "github.com/benvon/assistant-chat/internal/logger"
	"github.com/benvon/assistant-chat/internal/middleware"
	"github.com/benvon/assistant-chat/internal/models"
	"github.com/benvon/assistant-chat/internal/services/ai"
	"github.com/benvon/assistant-chat/internal/services/chat"
	"github.com/benvon/assistant-chat/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

const maxClientMessageLength = 200

// sanitizeErrorMessage keeps client-facing messages short and printable
func sanitizeErrorMessage(message string) string {
	return logpkg.SanitizeString(message, maxClientMessageLength)
}

// respondJSONError sends an error JSON response with sanitized error messages
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   sanitizeErrorMessage(message),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// respondServiceError maps chat and store errors onto HTTP statuses
func respondServiceError(w http.ResponseWriter, err error) {
	var providerErr *chat.ProviderError
	switch {
	case errors.Is(err, chat.ErrNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", "Conversation or message not found")
	case errors.Is(err, chat.ErrInvalidOperation):
		respondJSONError(w, http.StatusConflict, "Conflict", "Only user messages can be edited")
	case errors.Is(err, chat.ErrEmptyContent):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.As(err, &providerErr):
		respondProviderError(w, providerErr)
	default:
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Request failed")
	}
}

func respondProviderError(w http.ResponseWriter, err *chat.ProviderError) {
	apiErr := ai.ExtractAPIError(err)
	switch {
	case apiErr != nil && apiErr.RateLimited():
		if apiErr.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(apiErr.RetryAfter.Seconds())))
		}
		respondJSONError(w, http.StatusTooManyRequests, "Too Many Requests", "The model provider is rate limiting requests")
	case apiErr != nil && apiErr.QuotaExhausted():
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "The model provider quota is exhausted")
	default:
		respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "The model provider failed to respond")
	}
}

// requireUser returns the authenticated user or writes a 401
func requireUser(w http.ResponseWriter, r *http.Request) *models.User {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
	}
	return user
}

// pathUUID parses a UUID route variable or writes a 400
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// decodeAndValidate decodes a JSON body into v and runs struct validation
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return false
	}
	if err := validation.Validate.Struct(v); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Validation Error", validation.Describe(err))
		return false
	}
	return true
}
