package models

import (
	"time"

	"github.com/google/uuid"
)

// Identity is what an access token (or the dev-mode shortcut) says about the caller
type Identity struct {
	Subject   string
	Email     string
	Name      string
	Issuer    string
	Audience  string
	ExpiresAt time.Time
}

// User is the local account an identity maps to. Conversations and profiles hang off ID.
type User struct {
	ID          uuid.UUID `json:"id"`
	Subject     string    `json:"subject"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}
