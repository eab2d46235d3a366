package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/benvon/assistant-chat/internal/models"
	"github.com/google/uuid"
)

// ProfileRepository persists user profiles as a JSONB document per user
type ProfileRepository struct {
	db *DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetProfile retrieves a user's profile
func (r *ProfileRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	query := `SELECT data, analysis_count, last_updated FROM user_profiles WHERE user_id = $1`

	p := &models.UserProfile{UserID: userID}
	var data []byte
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&data, &p.AnalysisCount, &p.LastUpdated); err != nil {
		return nil, notFoundOr(err, "failed to get profile")
	}
	if err := json.Unmarshal(data, &p.ProfileAnalysis); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}

	return p, nil
}

// SaveProfile creates or replaces a user's profile
func (r *ProfileRepository) SaveProfile(ctx context.Context, profile *models.UserProfile) error {
	data, err := json.Marshal(profile.ProfileAnalysis)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	query := `
		INSERT INTO user_profiles (user_id, data, analysis_count, last_updated)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			data = EXCLUDED.data,
			analysis_count = EXCLUDED.analysis_count,
			last_updated = EXCLUDED.last_updated
	`

	if _, err := r.db.ExecContext(ctx, query, profile.UserID, data, profile.AnalysisCount, profile.LastUpdated); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	return nil
}

// DeleteProfile removes a user's profile. Deleting an absent profile is not an error.
func (r *ProfileRepository) DeleteProfile(ctx context.Context, userID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_profiles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return nil
}
