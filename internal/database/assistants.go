package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/benvon/assistant-chat/internal/models"
	"github.com/google/uuid"
)

// AssistantRepository handles assistant configuration database operations
type AssistantRepository struct {
	db *DB
}

// NewAssistantRepository creates a new assistant repository
func NewAssistantRepository(db *DB) *AssistantRepository {
	return &AssistantRepository{db: db}
}

const assistantColumns = `id, user_id, name, system_prompt, model, temperature, max_tokens, is_public, related_questions, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssistant(row rowScanner) (*models.AssistantConfig, error) {
	a := &models.AssistantConfig{}
	var relatedJSON []byte
	if err := row.Scan(
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
	); err != nil {
		return nil, err
	}
	if len(relatedJSON) > 0 {
		if err := json.Unmarshal(relatedJSON, &a.RelatedQuestions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal related questions config: %w", err)
		}
	}
	return a, nil
}

// GetAssistant retrieves an assistant by ID
func (r *AssistantRepository) GetAssistant(ctx context.Context, id uuid.UUID) (*models.AssistantConfig, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+assistantColumns+` FROM assistants WHERE id = $1`, id)
	a, err := scanAssistant(row)
	if err != nil {
		return nil, notFoundOr(err, "failed to get assistant %s", id)
	}
	return a, nil
}

// ListAssistants returns the user's own assistants followed by public ones
func (r *AssistantRepository) ListAssistants(ctx context.Context, userID uuid.UUID) ([]*models.AssistantConfig, error) {
	query := `
		SELECT ` + assistantColumns + `
		FROM assistants
		WHERE user_id = $1 OR is_public
		ORDER BY (user_id = $1) DESC, name
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assistants: %w", err)
	}
	defer rows.Close()

	var out []*models.AssistantConfig
	for rows.Next() {
		a, err := scanAssistant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assistant: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assistants: %w", err)
	}

	return out, nil
}

// UpsertAssistant creates the assistant or replaces its configuration
func (r *AssistantRepository) UpsertAssistant(ctx context.Context, a *models.AssistantConfig) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	relatedJSON, err := json.Marshal(a.RelatedQuestions)
	if err != nil {
		return fmt.Errorf("failed to marshal related questions config: %w", err)
	}

	query := `
		INSERT INTO assistants (id, user_id, name, system_prompt, model, temperature, max_tokens, is_public, related_questions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			system_prompt = EXCLUDED.system_prompt,
			model = EXCLUDED.model,
			temperature = EXCLUDED.temperature,
			max_tokens = EXCLUDED.max_tokens,
			is_public = EXCLUDED.is_public,
			related_questions = EXCLUDED.related_questions,
			updated_at = now()
		RETURNING created_at, updated_at
	`

	err = r.db.QueryRowContext(ctx, query,
		a.ID,
		a.UserID,
		a.Name,
		a.SystemPrompt,
		a.Model,
		a.Temperature,
		a.MaxTokens,
		a.IsPublic,
		relatedJSON,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert assistant: %w", err)
	}

	return nil
}
