package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/assistant-chat/internal/database"
	"github.com/benvon/assistant-chat/internal/models"
	"github.com/benvon/assistant-chat/internal/services/ai"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	analysisTemperature = 0.2
	analysisMaxTokens   = 800
)

const analysisInstruction = `You analyze chat messages written by one user and infer a profile of that user.
Reply with ONLY a JSON object, no prose, using exactly these keys:
{"profession": string, "interests": [string], "expertise": [string], "personality": [string],
 "goals": [string], "context": string, "communicationStyle": string,
 "knowledgeLevel": "beginner" | "intermediate" | "expert", "recentTopics": [string], "confidence": number between 0 and 1}
Leave a key empty or omit it when the messages give no evidence for it. Do not repeat the existing profile unless the messages confirm it.`

// Analyzer runs one profile analysis. Implementations never return errors to the caller.
type Analyzer interface {
	AnalyzeAndMerge(ctx context.Context, userID uuid.UUID, turns []ai.Turn)
}

// Enricher derives a profile from user messages and merges it into the stored profile
type Enricher struct {
	store  database.ProfileStore
	client ai.ModelClient
	model  string
	logger *zap.Logger
	now    func() time.Time
}

// NewEnricher creates a new profile enricher. model may be empty to use the client's default.
func NewEnricher(store database.ProfileStore, client ai.ModelClient, model string, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{
		store:  store,
		client: client,
		model:  model,
		logger: logger,
		now:    time.Now,
	}
}

// AnalyzeAndMerge analyzes the user-authored turns and merges the result.
// Failures are logged and dropped.
func (e *Enricher) AnalyzeAndMerge(ctx context.Context, userID uuid.UUID, turns []ai.Turn) {
	ctx, span := otel.Tracer("assistant-chat/profile").Start(ctx, "profile.analyze_and_merge")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("profile_analysis_panic",
				zap.String("user_hash", ai.HashUserID(userID.String())),
				zap.Any("panic", r),
			)
		}
	}()

	start := time.Now()
	updated, err := e.analyze(ctx, userID, turns)
	if err != nil {
		span.RecordError(err)
		e.logger.Warn("profile_analysis_failed",
			zap.String("user_hash", ai.HashUserID(userID.String())),
			zap.String("request_id", ai.ExtractRequestID(ctx)),
			zap.Error(err),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
		)
		return
	}
	if updated == nil {
		return
	}

	span.SetAttributes(attribute.Int("profile.analysis_count", updated.AnalysisCount))
	e.logger.Info("profile_analysis_completed",
		zap.String("user_hash", ai.HashUserID(userID.String())),
		zap.Int("analysis_count", updated.AnalysisCount),
		zap.Bool("has_profession", updated.HasProfession()),
		zap.Int64("latency_ms", time.Since(start).Milliseconds()),
	)
}

// analyze returns the saved profile, or nil when there was nothing to analyze
func (e *Enricher) analyze(ctx context.Context, userID uuid.UUID, turns []ai.Turn) (*models.UserProfile, error) {
	text := UserText(turns)
	if text == "" {
		return nil, nil
	}

	existing, err := e.store.GetProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("failed to load profile: %w", err)
		}
		existing = nil
	}

	prompt, err := buildAnalysisPrompt(existing, text)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Complete(ctx, prompt, ai.GenerationParams{
		Model:       e.model,
		Temperature: analysisTemperature,
		MaxTokens:   analysisMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run profile analysis: %w", err)
	}

	analysis, err := ParseAnalysis(resp.Text)
	if err != nil {
		return nil, err
	}

	merged := Merge(existing, userID, analysis, e.now())
	if err := e.store.SaveProfile(ctx, merged); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	return merged, nil
}

// UserText joins the user-authored turns, newline separated, trimmed
func UserText(turns []ai.Turn) string {
	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		if t.Role != models.RoleUser {
			continue
		}
		if s := strings.TrimSpace(t.Content); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func buildAnalysisPrompt(existing *models.UserProfile, userText string) ([]ai.Turn, error) {
	var b strings.Builder
	if existing != nil {
		current, err := json.Marshal(existing.ProfileAnalysis)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal existing profile: %w", err)
		}
		b.WriteString("Existing profile:\n")
		b.Write(current)
		b.WriteString("\n\n")
	}
	b.WriteString("User messages:\n")
	b.WriteString(userText)

	return []ai.Turn{
		{Role: models.RoleSystem, Content: analysisInstruction},
		{Role: models.RoleUser, Content: b.String()},
	}, nil
}

var _ Analyzer = (*Enricher)(nil)
