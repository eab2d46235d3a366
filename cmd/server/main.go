package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/assistant-chat/internal/config"
	"github.com/benvon/assistant-chat/internal/handlers"
	"github.com/benvon/assistant-chat/internal/logger"
	"github.com/benvon/assistant-chat/internal/middleware"
	"github.com/benvon/assistant-chat/internal/queue"
	"github.com/benvon/assistant-chat/internal/services/chat"
	"github.com/benvon/assistant-chat/internal/services/oidc"
	"github.com/benvon/assistant-chat/internal/services/profile"
	"github.com/benvon/assistant-chat/internal/services/related"
	"github.com/benvon/assistant-chat/internal/telemetry"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

const requestTimeout = 30 * time.Second

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.New(telemetry.ServerServiceName, debugMode, false)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("store_driver", cfg.StoreDriver),
		zap.String("ai_provider", cfg.AIProvider),
		zap.String("ai_model", cfg.AIModel),
		zap.Bool("queue_enabled", cfg.UsesQueue()),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	shutdownTracer, tracing := telemetry.Setup(rootCtx, cfg.Tracing(telemetry.ServerServiceName), zapLogger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
		}
	}()

	st, err := openStores(rootCtx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_open_stores", zap.Error(err))
	}
	defer st.close(zapLogger)

	client, err := newModelClient(cfg, zapLogger, debugMode)
	if err != nil {
		zapLogger.Fatal("failed_to_create_model_client", zap.Error(err))
	}

	phrases, err := chat.LoadPhrases(cfg.PhrasesFile)
	if err != nil {
		zapLogger.Fatal("failed_to_load_phrases", zap.String("path", cfg.PhrasesFile), zap.Error(err))
	}

	generator := related.NewGenerator(client,
		related.WithTemplates(phrases.Templates),
		related.WithModel(cfg.AIModel),
		related.WithLogger(zapLogger),
	)

	// Enrichment runs in the worker binary when a queue is configured
	var scheduler profile.Scheduler
	if cfg.UsesQueue() {
		jobQueue, err := queue.DialWithRetry(rootCtx, cfg.RabbitMQURL, queue.DefaultDialAttempts, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
		}
		defer func() {
			if err := jobQueue.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
		st.checks["rabbitmq"] = jobQueue.HealthCheck
		scheduler = profile.NewQueueScheduler(jobQueue, zapLogger)
	} else {
		enricher := profile.NewEnricher(st.profiles, client, cfg.AIModel, zapLogger)
		local := profile.NewLocalScheduler(enricher, cfg.EnrichmentWorkers, cfg.EnrichmentTimeout, zapLogger)
		defer local.Close()
		scheduler = local
		zapLogger.Info("local_enrichment_enabled",
			zap.Int("workers", cfg.EnrichmentWorkers),
			zap.Duration("timeout", cfg.EnrichmentTimeout),
		)
	}

	orchestrator, err := chat.NewOrchestrator(chat.Deps{
		Store:     st.conversations,
		Profiles:  st.profiles,
		Client:    client,
		Related:   generator,
		Scheduler: scheduler,
		Phrases:   phrases,
		Logger:    zapLogger,
	})
	if err != nil {
		zapLogger.Fatal("failed_to_create_orchestrator", zap.Error(err))
	}

	var verifier middleware.TokenVerifier
	if cfg.AuthJWKSURL != "" {
		verifier = oidc.NewVerifier(oidc.NewJWKSManager(oidc.DefaultJWKSTTL), cfg.AuthJWKSURL, cfg.AuthIssuer, cfg.AuthAudience)
	} else {
		zapLogger.Warn("auth_dev_mode_enabled", zap.String("dev_user", cfg.AuthDevUser))
	}

	chatHandler := handlers.NewChatHandler(orchestrator, zapLogger)
	conversationHandler := handlers.NewConversationHandler(st.conversations, st.assistants)
	profileHandler := handlers.NewProfileHandler(st.profiles, zapLogger)
	healthChecker := handlers.NewHealthChecker(st.checks)

	r := mux.NewRouter()

	// gorilla/mux runs middleware in registration order, first registered is outermost
	if tracing {
		r.Use(otelmux.Middleware(telemetry.ServerServiceName))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", versionInfo).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Auth(verifier, st.users, cfg.AuthDevUser, zapLogger))

	// Streamed replies outlive any fixed request deadline
	streamRouter := api.PathPrefix("/conversations").Subrouter()
	chatHandler.RegisterStreamRoutes(streamRouter)

	conversationsRouter := api.PathPrefix("/conversations").Subrouter()
	conversationsRouter.Use(middleware.Timeout(requestTimeout))
	conversationHandler.RegisterRoutes(conversationsRouter)
	chatHandler.RegisterRoutes(conversationsRouter)

	assistantsRouter := api.PathPrefix("/assistants").Subrouter()
	assistantsRouter.Use(middleware.Timeout(requestTimeout))
	conversationHandler.RegisterAssistantRoutes(assistantsRouter)

	userRouter := api.NewRoute().Subrouter()
	userRouter.Use(middleware.Timeout(requestTimeout))
	profileHandler.RegisterRoutes(userRouter)

	srv := &http.Server{
		Addr: ":" + cfg.ServerPort,
		// CORS wraps the router so preflights are answered before route matching
		Handler:     middleware.CORS(cfg.FrontendURL)(r),
		ReadTimeout: 15 * time.Second,
		// No write deadline: streamed replies are bounded by the client and the model instead
		WriteTimeout:   0,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	rootCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

func versionInfo(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"version":%q,"timestamp":%q}`, telemetry.Version, time.Now().UTC().Format(time.RFC3339))
}
