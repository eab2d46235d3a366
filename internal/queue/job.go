package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeProfileAnalysis analyzes one exchange and merges the result into the user's profile
	JobTypeProfileAnalysis JobType = "profile_analysis"
)

// DefaultJobTTL is how long a profile analysis stays worth running
const DefaultJobTTL = time.Hour

// JobMessage is one role-tagged turn carried by a job
type JobMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Job represents a job in the queue
type Job struct {
	ID             uuid.UUID      `json:"id"`
	Type           JobType        `json:"type"`
	UserID         uuid.UUID      `json:"user_id"`
	ConversationID *uuid.UUID     `json:"conversation_id,omitempty"`
	Messages       []JobMessage   `json:"messages,omitempty"`
	NotAfter       *time.Time     `json:"not_after,omitempty"` // nil = no expiration
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// NewJob creates a new job that expires after DefaultJobTTL
func NewJob(jobType JobType, userID uuid.UUID, conversationID *uuid.UUID) *Job {
	now := time.Now()
	notAfter := now.Add(DefaultJobTTL)
	return &Job{
		ID:             uuid.New(),
		Type:           jobType,
		UserID:         userID,
		ConversationID: conversationID,
		NotAfter:       &notAfter,
		Metadata:       make(map[string]any),
		CreatedAt:      now,
	}
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}
	return time.Now().After(*j.NotAfter)
}
