package commands

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/benvon/assistant-chat/internal/config"
	"github.com/benvon/assistant-chat/internal/database"
	"github.com/benvon/assistant-chat/internal/models"
	"github.com/google/uuid"
)

func TestRelatedFlagsConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		flags       relatedFlags
		wantErr     bool
		wantEnabled bool
		wantMode    models.RelatedQuestionsMode
	}{
		{name: "template", flags: relatedFlags{mode: "template", count: 3}, wantEnabled: true, wantMode: models.RelatedQuestionsTemplate},
		{name: "llm mixed case", flags: relatedFlags{mode: " LLM ", count: 5}, wantEnabled: true, wantMode: models.RelatedQuestionsLLM},
		{name: "disabled", flags: relatedFlags{mode: "disabled", count: 1}, wantEnabled: false, wantMode: models.RelatedQuestionsDisabled},
		{name: "unknown mode", flags: relatedFlags{mode: "random", count: 3}, wantErr: true},
		{name: "count too high", flags: relatedFlags{mode: "llm", count: 6}, wantErr: true},
		{name: "count negative", flags: relatedFlags{mode: "llm", count: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := tt.flags.config()
			if (err != nil) != tt.wantErr {
				t.Fatalf("config() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if cfg.Enabled != tt.wantEnabled || cfg.Mode != tt.wantMode {
				t.Errorf("config() = %+v", cfg)
			}
		})
	}
}

func TestSetRelated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := database.NewMemoryStore()
	a := &models.AssistantConfig{Name: "Helper", IsPublic: true}
	if err := store.UpsertAssistant(ctx, a); err != nil {
		t.Fatalf("UpsertAssistant: %v", err)
	}

	var out bytes.Buffer
	rq := models.RelatedQuestionsConfig{Enabled: true, Mode: models.RelatedQuestionsLLM, Count: 4}
	if err := setRelated(ctx, store, a.ID, rq, &out); err != nil {
		t.Fatalf("setRelated: %v", err)
	}

	got, err := store.GetAssistant(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAssistant: %v", err)
	}
	if got.RelatedQuestions != rq {
		t.Errorf("RelatedQuestions = %+v, want %+v", got.RelatedQuestions, rq)
	}
	if !strings.Contains(out.String(), "llm x4") {
		t.Errorf("output = %q", out.String())
	}

	err = setRelated(ctx, store, uuid.New(), rq, &out)
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("unknown assistant error = %v, want ErrNotFound", err)
	}
}

func TestPrintAssistants(t *testing.T) {
	t.Parallel()

	var empty bytes.Buffer
	printAssistants(&empty, nil)
	if !strings.Contains(empty.String(), "No assistants") {
		t.Errorf("empty output = %q", empty.String())
	}

	var out bytes.Buffer
	printAssistants(&out, []*models.AssistantConfig{{
		ID:               uuid.New(),
		Name:             "Helper",
		IsPublic:         true,
		RelatedQuestions: models.RelatedQuestionsConfig{Enabled: false, Mode: models.RelatedQuestionsTemplate},
	}})
	for _, want := range []string{"Helper", "public", "disabled"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q: %q", want, out.String())
		}
	}
}

func TestProfileActions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := database.NewMemoryStore()
	userID := uuid.New()

	var out bytes.Buffer
	if err := showProfile(ctx, store, userID, &out); err != nil {
		t.Fatalf("showProfile on missing profile: %v", err)
	}
	if !strings.Contains(out.String(), "No profile") {
		t.Errorf("output = %q", out.String())
	}

	if err := store.SaveProfile(ctx, &models.UserProfile{UserID: userID, ProfileAnalysis: models.ProfileAnalysis{Profession: "engineer"}}); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	out.Reset()
	if err := showProfile(ctx, store, userID, &out); err != nil {
		t.Fatalf("showProfile: %v", err)
	}
	if !strings.Contains(out.String(), "engineer") {
		t.Errorf("output = %q", out.String())
	}

	out.Reset()
	if err := clearProfile(ctx, store, userID, &out); err != nil {
		t.Fatalf("clearProfile: %v", err)
	}
	if _, err := store.GetProfile(ctx, userID); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("profile still present after clear: %v", err)
	}
}

func TestDependencyChecks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  config.Config
		want []string
	}{
		{
			name: "memory only",
			cfg:  config.Config{StoreDriver: config.StoreDriverMemory},
			want: nil,
		},
		{
			name: "everything",
			cfg: config.Config{
				StoreDriver: config.StoreDriverPostgres,
				RedisURL:    "redis://localhost:6379",
				RabbitMQURL: "amqp://localhost",
				AuthJWKSURL: "https://issuer.example/jwks",
			},
			want: []string{"database", "redis", "rabbitmq", "jwks"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := tt.cfg
			checks := dependencyChecks(&cfg)
			var got []string
			for _, c := range checks {
				got = append(got, c.name)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("checks = %v, want %v", got, tt.want)
			}
		})
	}
}
