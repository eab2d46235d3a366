package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/assistant-chat/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// bumpUpdatedAt keeps updated_at strictly increasing even when two writes land in the same clock tick
const bumpUpdatedAt = `GREATEST(now(), updated_at + interval '1 microsecond')`

// ConversationRepository handles conversation and message database operations
type ConversationRepository struct {
	db *DB
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// FindConversation loads a conversation with its assistant snapshot and ordered messages
func (r *ConversationRepository) FindConversation(ctx context.Context, id, ownerID uuid.UUID) (*models.Conversation, error) {
	conv := &models.Conversation{}
	var title sql.NullString
	var relatedJSON []byte

	query := `
		SELECT c.id, c.user_id, c.assistant_id, c.title, c.created_at, c.updated_at,
		       a.id, a.user_id, a.name, a.system_prompt, a.model, a.temperature, a.max_tokens,
		       a.is_public, a.related_questions, a.created_at, a.updated_at
		FROM conversations c
		JOIN assistants a ON a.id = c.assistant_id
		WHERE c.id = $1 AND c.user_id = $2
	`

	a := &conv.Assistant
	err := r.db.QueryRowContext(ctx, query, id, ownerID).Scan(
		&conv.ID,
		&conv.UserID,
		&conv.AssistantID,
		&title,
		&conv.CreatedAt,
		&conv.UpdatedAt,
		&a.ID,
		&a.UserID,
		&a.Name,
		&a.SystemPrompt,
		&a.Model,
		&a.Temperature,
		&a.MaxTokens,
		&a.IsPublic,
		&relatedJSON,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, notFoundOr(err, "failed to get conversation")
	}

	if title.Valid {
		conv.Title = &title.String
	}
	if len(relatedJSON) > 0 {
		if err := json.Unmarshal(relatedJSON, &a.RelatedQuestions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal related questions config: %w", err)
		}
	}

	messages, err := r.listMessages(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	conv.Messages = messages

	return conv, nil
}

func (r *ConversationRepository) listMessages(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error) {
	query := `
		SELECT id, conversation_id, role, content, token_count, related_questions, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at, seq
	`

	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m := &models.Message{}
		var tokenCount sql.NullInt64
		var relatedJSON []byte

		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &tokenCount, &relatedJSON, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if tokenCount.Valid {
			n := int(tokenCount.Int64)
			m.TokenCount = &n
		}
		if len(relatedJSON) > 0 {
			if err := json.Unmarshal(relatedJSON, &m.RelatedQuestions); err != nil {
				return nil, fmt.Errorf("failed to unmarshal related questions: %w", err)
			}
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// CreateConversation inserts a new conversation
func (r *ConversationRepository) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if conv.ID == uuid.Nil {
		conv.ID = uuid.New()
	}

	query := `
		INSERT INTO conversations (id, user_id, assistant_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		conv.ID,
		conv.UserID,
		conv.AssistantID,
		conv.Title,
		time.Now(),
	).Scan(&conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	return nil
}

// DeleteConversation removes a conversation and, by cascade, its messages
func (r *ConversationRepository) DeleteConversation(ctx context.Context, id, ownerID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}

	return nil
}

// CreateMessage appends a message and advances the conversation's updated_at in one transaction
func (r *ConversationRepository) CreateMessage(ctx context.Context, conversationID uuid.UUID, role models.Role, content string, extras models.MessageExtras) (*models.Message, error) {
	m := &models.Message{
		ID:               uuid.New(),
		ConversationID:   conversationID,
		Role:             role,
		Content:          content,
		TokenCount:       extras.TokenCount,
		RelatedQuestions: extras.RelatedQuestions,
	}

	relatedJSON, err := marshalQuestions(extras.RelatedQuestions)
	if err != nil {
		return nil, err
	}

	err = r.db.WithTx(ctx, func(tx *sql.Tx) error {
		insert := `
			INSERT INTO messages (id, conversation_id, role, content, token_count, related_questions, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, clock_timestamp())
			RETURNING created_at
		`
		if err := tx.QueryRowContext(ctx, insert,
			m.ID,
			m.ConversationID,
			m.Role,
			m.Content,
			m.TokenCount,
			relatedJSON,
		).Scan(&m.CreatedAt); err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}

		result, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = `+bumpUpdatedAt+` WHERE id = $1`, conversationID)
		if err != nil {
			return fmt.Errorf("failed to touch conversation: %w", err)
		}
		if n, err := result.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return m, nil
}

// UpdateMessage applies a partial update to a message
func (r *ConversationRepository) UpdateMessage(ctx context.Context, id uuid.UUID, patch models.MessagePatch) error {
	sets := make([]string, 0, 3)
	args := []any{id}

	if patch.Content != nil {
		args = append(args, *patch.Content)
		sets = append(sets, fmt.Sprintf("content = $%d", len(args)))
	}
	if patch.TokenCount != nil {
		args = append(args, *patch.TokenCount)
		sets = append(sets, fmt.Sprintf("token_count = $%d", len(args)))
	}
	if patch.RelatedQuestions != nil {
		relatedJSON, err := marshalQuestions(patch.RelatedQuestions)
		if err != nil {
			return err
		}
		args = append(args, relatedJSON)
		sets = append(sets, fmt.Sprintf("related_questions = $%d", len(args)))
	}
	if len(sets) == 0 {
		return nil
	}

	query := "UPDATE messages SET " + strings.Join(sets, ", ") + " WHERE id = $1"
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("message %s: %w", id, ErrNotFound)
	}

	return nil
}

// DeleteMessages removes the given messages
func (r *ConversationRepository) DeleteMessages(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ANY($1::uuid[])`, pq.Array(strIDs)); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}

	return nil
}

// UpdateConversation applies a partial update and always advances updated_at
func (r *ConversationRepository) UpdateConversation(ctx context.Context, id uuid.UUID, patch models.ConversationPatch) error {
	query := `UPDATE conversations SET updated_at = ` + bumpUpdatedAt + `, title = COALESCE($2, title) WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, patch.Title)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}

	return nil
}

func marshalQuestions(questions []string) ([]byte, error) {
	if questions == nil {
		return nil, nil
	}
	b, err := json.Marshal(questions)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal related questions: %w", err)
	}
	return b, nil
}
