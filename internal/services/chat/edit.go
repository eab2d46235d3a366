package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/benvon/assistant-chat/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EditAndRegenerate replaces a user turn's content, drops every later message
// and streams a new reply. The truncation cannot be undone.
func (o *Orchestrator) EditAndRegenerate(ctx context.Context, conversationID, userID, messageID uuid.UUID, content string) (*Stream, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	conv, err := o.load(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	idx := conv.IndexOfMessage(messageID)
	if idx < 0 {
		return nil, fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	target := conv.Messages[idx]
	if target.Role != models.RoleUser {
		return nil, fmt.Errorf("cannot edit %s message %s: %w", target.Role, messageID, ErrInvalidOperation)
	}

	later := make([]uuid.UUID, 0, len(conv.Messages)-idx-1)
	for _, m := range conv.Messages[idx+1:] {
		later = append(later, m.ID)
	}
	if err := o.store.DeleteMessages(ctx, later); err != nil {
		return nil, fmt.Errorf("failed to truncate conversation: %w", err)
	}

	if err := o.store.UpdateMessage(ctx, target.ID, models.MessagePatch{Content: &content}); err != nil {
		return nil, fmt.Errorf("failed to update message: %w", err)
	}
	target.Content = content

	history := conv.Messages[:idx]
	o.logger.Info("conversation_truncated",
		zap.String("conversation_id", conv.ID.String()),
		zap.String("message_id", messageID.String()),
		zap.Int("deleted_messages", len(later)),
	)

	firstExchange := true
	for _, m := range history {
		if m.Role == models.RoleAssistant {
			firstExchange = false
			break
		}
	}

	return o.start(ctx, turnPlan{
		conv:     conv,
		userID:   userID,
		history:  history,
		userMsg:  target,
		content:  content,
		setTitle: firstExchange,
		edited:   true,
	}), nil
}
