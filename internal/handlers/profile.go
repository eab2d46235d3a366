package handlers

import (
	"errors"
	"net/http"

	"github.com/benvon/assistant-chat/internal/database"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ProfileHandler exposes the caller's inferred profile
type ProfileHandler struct {
	profiles database.ProfileStore
	logger   *zap.Logger
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profiles database.ProfileStore, logger *zap.Logger) *ProfileHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileHandler{profiles: profiles, logger: logger}
}

// RegisterRoutes registers profile and identity routes on the /api/v1 router
func (h *ProfileHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/profile", h.GetProfile).Methods("GET")
	r.HandleFunc("/profile", h.DeleteProfile).Methods("DELETE")
	r.HandleFunc("/auth/me", h.GetMe).Methods("GET")
}

// GetProfile returns the stored profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	p, err := h.profiles.GetProfile(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "No profile has been built yet")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve profile")
		return
	}

	respondJSON(w, http.StatusOK, p)
}

// DeleteProfile clears everything inferred about the user
func (h *ProfileHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	if err := h.profiles.DeleteProfile(r.Context(), user.ID); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to delete profile")
		return
	}
	h.logger.Info("profile_cleared", zap.String("user_id", user.ID.String()))

	w.WriteHeader(http.StatusNoContent)
}

// GetMe returns current user information
func (h *ProfileHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	respondJSON(w, http.StatusOK, user)
}
