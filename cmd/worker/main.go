package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/benvon/assistant-chat/internal/config"
	"github.com/benvon/assistant-chat/internal/database"
	"github.com/benvon/assistant-chat/internal/logger"
	"github.com/benvon/assistant-chat/internal/queue"
	"github.com/benvon/assistant-chat/internal/services/ai"
	"github.com/benvon/assistant-chat/internal/services/profile"
	"github.com/benvon/assistant-chat/internal/telemetry"
	"github.com/benvon/assistant-chat/internal/workers"
	"go.uber.org/zap"
)

const (
	dlqInterval  = time.Hour
	dlqRetention = 24 * time.Hour
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.New(telemetry.WorkerServiceName, debugMode, false)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.String("ai_provider", cfg.AIProvider),
		zap.String("ai_model", cfg.AIModel),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
	)

	// Profiles must be shared with the API, so the in-process store is useless here
	if cfg.StoreDriver != config.StoreDriverPostgres {
		zapLogger.Fatal("worker_requires_postgres", zap.String("store_driver", cfg.StoreDriver))
	}
	if !cfg.UsesQueue() {
		zapLogger.Fatal("worker_requires_rabbitmq")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, _ := telemetry.Setup(ctx, cfg.Tracing(telemetry.WorkerServiceName), zapLogger)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
		}
	}()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	var profiles database.ProfileStore = database.NewProfileRepository(db)
	if cfg.RedisURL != "" {
		// Writes go through the cache so the API never serves a stale profile
		client, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
		}
		defer func() {
			if err := client.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		profiles = database.NewCachedProfileStore(profiles, client, 0, zapLogger)
		zapLogger.Info("connected_to_redis")
	}

	registry := ai.NewProviderRegistry()
	ai.RegisterOpenAI(registry, zapLogger, debugMode)
	providerType := cfg.AIProvider
	if providerType == "" {
		providerType = "openai"
	}
	client, err := registry.GetClient(providerType, map[string]string{
		"api_key":  cfg.OpenAIKey,
		"model":    cfg.AIModel,
		"base_url": cfg.AIBaseURL,
	})
	if err != nil {
		zapLogger.Fatal("failed_to_create_model_client", zap.Error(err))
	}

	jobQueue, err := queue.DialWithRetry(ctx, cfg.RabbitMQURL, queue.DefaultDialAttempts, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()

	enricher := profile.NewEnricher(profiles, client, cfg.AIModel, zapLogger)
	analyzer := workers.NewProfileAnalyzer(enricher, cfg.EnrichmentTimeout, zapLogger)

	msgs, errs, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("failed_to_start_consuming", zap.Error(err))
	}

	// One consumer loop per prefetched delivery keeps the channel saturated
	var wg sync.WaitGroup
	for i := 0; i < cfg.RabbitMQPrefetch; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			analyzer.Run(ctx, msgs, errs)
		}()
	}

	dlqGC := queue.NewGarbageCollector(jobQueue, dlqInterval, dlqRetention, zapLogger)
	go func() {
		if err := dlqGC.Start(ctx); err != nil && err != context.Canceled {
			zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
		}
	}()

	zapLogger.Info("worker_started",
		zap.Int("consumers", cfg.RabbitMQPrefetch),
		zap.Duration("dlq_interval", dlqInterval),
		zap.Duration("dlq_retention", dlqRetention),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zapLogger.Info("worker_shutting_down")
	cancel()
	wg.Wait()

	zapLogger.Info("worker_stopped")
}
