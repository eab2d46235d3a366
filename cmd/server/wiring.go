package main

import (
	"context"
	"fmt"

	"github.com/benvon/assistant-chat/internal/config"
	"github.com/benvon/assistant-chat/internal/database"
	"github.com/benvon/assistant-chat/internal/handlers"
	"github.com/benvon/assistant-chat/internal/models"
	"github.com/benvon/assistant-chat/internal/services/ai"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// stores groups the persistence layer chosen by STORE_DRIVER
type stores struct {
	conversations database.ConversationStore
	assistants    database.AssistantStore
	profiles      database.ProfileStore
	users         database.UserStore
	checks        map[string]handlers.CheckFunc
	closers       []func() error
}

func (s *stores) close(logger *zap.Logger) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logger.Warn("failed_to_close_store", zap.Error(err))
		}
	}
}

func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	s := &stores{checks: make(map[string]handlers.CheckFunc)}

	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		mem := database.NewMemoryStore()
		if err := seedDefaultAssistant(ctx, mem, cfg.AIModel); err != nil {
			return nil, err
		}
		s.conversations, s.assistants, s.profiles, s.users = mem, mem, mem, mem
		logger.Warn("using_memory_store", zap.String("reason", "data is lost on restart"))
	default:
		db, err := database.New(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			s.close(logger)
			return nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
		logger.Info("connected_to_database")

		s.conversations = database.NewConversationRepository(db)
		s.assistants = database.NewAssistantRepository(db)
		s.profiles = database.NewProfileRepository(db)
		s.users = database.NewUserRepository(db)
		s.checks["database"] = db.PingContext
	}

	if cfg.RedisURL != "" {
		client, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			s.close(logger)
			return nil, err
		}
		s.closers = append(s.closers, client.Close)
		cached := database.NewCachedProfileStore(s.profiles, client, 0, logger)
		s.profiles = cached
		s.checks["redis"] = cached.Ping
		logger.Info("connected_to_redis")
	}

	return s, nil
}

// seedDefaultAssistant gives an empty memory store one public assistant to talk to
func seedDefaultAssistant(ctx context.Context, store database.AssistantStore, model string) error {
	a := &models.AssistantConfig{
		ID:           uuid.New(),
		Name:         "Assistant",
		SystemPrompt: "You are a helpful assistant.",
		Model:        model,
		Temperature:  0.7,
		IsPublic:     true,
		RelatedQuestions: models.RelatedQuestionsConfig{
			Enabled: true,
			Mode:    models.RelatedQuestionsTemplate,
			Count:   models.DefaultRelatedQuestions,
		},
	}
	if err := store.UpsertAssistant(ctx, a); err != nil {
		return fmt.Errorf("failed to seed default assistant: %w", err)
	}
	return nil
}

// newModelClient builds the configured provider client
func newModelClient(cfg *config.Config, logger *zap.Logger, debugMode bool) (ai.ModelClient, error) {
	providerType := cfg.AIProvider
	if providerType == "" {
		providerType = "openai"
	}

	registry := ai.NewProviderRegistry()
	ai.RegisterOpenAI(registry, logger, debugMode)

	return registry.GetClient(providerType, map[string]string{
		"api_key":  cfg.OpenAIKey,
		"model":    cfg.AIModel,
		"base_url": cfg.AIBaseURL,
	})
}
