package database

import (
	"context"

	"github.com/benvon/assistant-chat/internal/models"
	"github.com/google/uuid"
)

// ConversationStore defines the conversation and message operations used by the chat services.
// FindConversation returns ErrNotFound when the conversation is absent or owned by someone else.
type ConversationStore interface {
	FindConversation(ctx context.Context, id, ownerID uuid.UUID) (*models.Conversation, error)
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	DeleteConversation(ctx context.Context, id, ownerID uuid.UUID) error
	CreateMessage(ctx context.Context, conversationID uuid.UUID, role models.Role, content string, extras models.MessageExtras) (*models.Message, error)
	UpdateMessage(ctx context.Context, id uuid.UUID, patch models.MessagePatch) error
	DeleteMessages(ctx context.Context, ids []uuid.UUID) error
	UpdateConversation(ctx context.Context, id uuid.UUID, patch models.ConversationPatch) error
}

// AssistantStore defines assistant configuration operations
type AssistantStore interface {
	GetAssistant(ctx context.Context, id uuid.UUID) (*models.AssistantConfig, error)
	ListAssistants(ctx context.Context, userID uuid.UUID) ([]*models.AssistantConfig, error)
	UpsertAssistant(ctx context.Context, a *models.AssistantConfig) error
}

// ProfileStore defines user profile persistence. GetProfile returns ErrNotFound when absent.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error)
	SaveProfile(ctx context.Context, profile *models.UserProfile) error
	DeleteProfile(ctx context.Context, userID uuid.UUID) error
}

// UserStore resolves authenticated subjects to local users
type UserStore interface {
	EnsureUser(ctx context.Context, id models.Identity) (*models.User, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// Ensure concrete types implement the interfaces
var (
	_ ConversationStore = (*ConversationRepository)(nil)
	_ AssistantStore    = (*AssistantRepository)(nil)
	_ ProfileStore      = (*ProfileRepository)(nil)
	_ ProfileStore      = (*CachedProfileStore)(nil)
	_ ConversationStore = (*MemoryStore)(nil)
	_ AssistantStore    = (*MemoryStore)(nil)
	_ ProfileStore      = (*MemoryStore)(nil)
	_ UserStore         = (*MemoryStore)(nil)
	_ UserStore         = (*UserRepository)(nil)
)
