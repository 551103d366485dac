// Labchat - chat web application with a credential-store command layer
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lromero/labchat/internal/api"
	"github.com/lromero/labchat/internal/chat"
	"github.com/lromero/labchat/internal/commands"
	"github.com/lromero/labchat/internal/config"
	"github.com/lromero/labchat/internal/identity"
	"github.com/lromero/labchat/internal/middleware"
	"github.com/lromero/labchat/internal/store"
	"github.com/lromero/labchat/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())
	if cfg.AdminPasswordDefaulted {
		slog.Warn("ADMIN_PASSWORD not set, using the default admin secret; set it in production")
	}

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Gemini client (optional): without an API key the chat still serves
	// credential commands, and model turns get a fixed notice.
	var model chat.Model
	if cfg.GoogleAPIKey != "" {
		gemini, err := chat.NewGemini(context.Background(), cfg.GoogleAPIKey, cfg.GeminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini client", "error", err)
			os.Exit(1)
		}
		model = gemini
		slog.Info("Gemini client initialized", "model", cfg.GeminiModel)
	} else {
		slog.Info("AI features disabled (GOOGLE_API_KEY not set)")
	}

	conversationLogger, err := chat.NewConversationLogger(chat.ConversationLogConfig{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer conversationLogger.Close()

	// Initialize services.
	manager := chat.NewManager(cfg.AdminPassword, cfg.AdminSessionTTL)
	interpreter := commands.New(repo)
	svc := chat.NewService(manager, interpreter, model, conversationLogger, cfg.UploadMaxBytes, logger)

	// Initialize handlers.
	baseHandler := api.NewHandler(svc)
	limiter := api.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	chatHandler := api.NewChatHandler(baseHandler, limiter, cfg.MaxRequestBodySize)
	wsHandler := api.NewWSHandler(svc, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	corsOrigins := []string{"*"}
	if cfg.FrontendURL != "" {
		corsOrigins = []string{cfg.FrontendURL}
	}
	r.Use(middleware.CORS(corsOrigins))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	// API routes.
	chatHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Create server. WriteTimeout stays 0 so websocket pushes are not cut off.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start the conversation sweeper.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager.StartSweeper(ctx, cfg.ConversationTTL)
	slog.Info("Conversation sweeper started", "ttl", cfg.ConversationTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
