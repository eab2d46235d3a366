package models

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Conversation is a chat thread owned by a single user
type Conversation struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	AssistantID uuid.UUID       `json:"assistant_id"`
	Title       *string         `json:"title,omitempty"`
	Assistant   AssistantConfig `json:"assistant"`
	Messages    []*Message      `json:"messages,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Message is one role-tagged turn of a conversation
type Message struct {
	ID               uuid.UUID `json:"id"`
	ConversationID   uuid.UUID `json:"conversation_id"`
	Role             Role      `json:"role"`
	Content          string    `json:"content"`
	TokenCount       *int      `json:"token_count,omitempty"`
	RelatedQuestions []string  `json:"related_questions,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// MessageExtras carries the optional fields set when a message is created
type MessageExtras struct {
	TokenCount       *int
	RelatedQuestions []string
}

// MessagePatch is a partial update to a message. Nil fields are left untouched.
type MessagePatch struct {
	Content          *string
	TokenCount       *int
	RelatedQuestions []string
}

// ConversationPatch is a partial update to a conversation. UpdatedAt is always advanced.
type ConversationPatch struct {
	Title *string
}

// IndexOfMessage returns the position of the message with id in the conversation history, or -1
func (c *Conversation) IndexOfMessage(id uuid.UUID) int {
	for i, m := range c.Messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// HasAssistantTurn reports whether any assistant message exists in the history
func (c *Conversation) HasAssistantTurn() bool {
	for _, m := range c.Messages {
		if m.Role == RoleAssistant {
			return true
		}
	}
	return false
}
