package database

import (
	"context"
	"fmt"

	"github.com/benvon/assistant-chat/internal/models"
	"github.com/google/uuid"
)

// UserRepository maps token subjects to local users
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// EnsureUser upserts the user for id.Subject. Email and display name follow the
// latest token; an empty value keeps the stored one.
func (r *UserRepository) EnsureUser(ctx context.Context, id models.Identity) (*models.User, error) {
	query := `
		INSERT INTO users (id, subject, email, display_name, created_at, last_seen_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (subject) DO UPDATE SET
			email = COALESCE(NULLIF(EXCLUDED.email, ''), users.email),
			display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), users.display_name),
			last_seen_at = now()
		RETURNING id, subject, email, display_name, created_at, last_seen_at
	`

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, uuid.New(), id.Subject, id.Email, id.Name).Scan(
		&user.ID,
		&user.Subject,
		&user.Email,
		&user.DisplayName,
		&user.CreatedAt,
		&user.LastSeenAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return user, nil
}

// GetUser retrieves a user by local ID
func (r *UserRepository) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, subject, email, display_name, created_at, last_seen_at
		FROM users WHERE id = $1
	`, userID).Scan(
		&user.ID,
		&user.Subject,
		&user.Email,
		&user.DisplayName,
		&user.CreatedAt,
		&user.LastSeenAt,
	)
	if err != nil {
		return nil, notFoundOr(err, "failed to get user")
	}
	return user, nil
}
