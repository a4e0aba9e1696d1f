package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wingman/internal/config"
	"wingman/internal/generation"
	"wingman/internal/handlers"
	"wingman/internal/integrations/slack"
	"wingman/internal/logging"
	"wingman/internal/memory"
	"wingman/internal/metrics"
	"wingman/internal/middleware"
	"wingman/internal/rag"
	"wingman/internal/storage"
	"wingman/internal/vectorindex"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func connectDatabase(databaseURL string) *sql.DB {
	for {
		db, err := sql.Open("postgres", databaseURL)
		if err != nil {
			slog.Error("Failed to open database connection, retrying in 30s", "error", err)
			time.Sleep(30 * time.Second)
			continue
		}

		if err := db.Ping(); err != nil {
			slog.Error("Failed to ping database, retrying in 30s", "error", err)
			db.Close()
			time.Sleep(30 * time.Second)
			continue
		}

		return db
	}
}

func initSchemas(gateway *vectorindex.Gateway, memoryStore *memory.Store, documents *storage.PostgresDocumentStore, messageLog *slack.MessageLog) {
	for {
		if err := gateway.InitSchema(); err != nil {
			slog.Error("Failed to initialize vector index schema, retrying in 30s", "error", err)
			time.Sleep(30 * time.Second)
			continue
		}
		if err := memoryStore.InitSchema(); err != nil {
			slog.Error("Failed to initialize conversation memory schema, retrying in 30s", "error", err)
			time.Sleep(30 * time.Second)
			continue
		}
		if err := documents.InitSchema(); err != nil {
			slog.Error("Failed to initialize documents schema, retrying in 30s", "error", err)
			time.Sleep(30 * time.Second)
			continue
		}
		if err := messageLog.InitSchema(); err != nil {
			slog.Error("Failed to initialize Slack message log schema, retrying in 30s", "error", err)
			time.Sleep(30 * time.Second)
			continue
		}
		return
	}
}

func main() {
	logging.SetupLogger()

	slog.Info("Starting Wingman", slog.String("version", "1.0.0"))

	var cfg *config.Config
	for {
		cfg = config.Load()
		if err := cfg.Validate(); err != nil {
			slog.Error("Invalid configuration, retrying in 30s", "error", err)
			time.Sleep(30 * time.Second)
			continue
		}
		break
	}

	db := connectDatabase(cfg.DatabaseURL)
	defer db.Close()

	embedder := vectorindex.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
	gateway := vectorindex.NewGateway(db, embedder)
	memoryStore := memory.NewStore(db)
	documents := storage.NewPostgresDocumentStore(db)
	messageLog := slack.NewMessageLog(db)

	initSchemas(gateway, memoryStore, documents, messageLog)

	generator := generation.NewClient(cfg.OpenAIAPIKey, cfg.CompletionModel)
	pipeline := rag.NewOrchestrator(gateway, memoryStore, generator, rag.Options{
		ChunkSize:           cfg.ChunkSize,
		ChunkOverlap:        cfg.ChunkOverlap,
		RetrievalTopK:       cfg.RetrievalTopK,
		Temperature:         cfg.Temperature,
		MaxTokens:           cfg.MaxTokens,
		MemoryWindowTurns:   cfg.MemoryWindowTurns,
		ConversationTimeout: time.Duration(cfg.ConversationTimeoutMinutes) * time.Minute,
	})

	slackHandler := slack.NewHandler(cfg.SlackBotToken, cfg.SlackSigningSecret, pipeline, messageLog)
	askHandler := handlers.NewAskHandler(pipeline)
	documentsHandler := handlers.NewDocumentsHandler(documents, pipeline)
	threadHandler := handlers.NewThreadHandler(messageLog, pipeline)

	slog.Info("All services initialized successfully")

	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware)
	router.Use(middleware.MetricsMiddleware)

	apiRouter := router.PathPrefix("/api").Subrouter()
	apiRouter.Use(middleware.APIRateLimitMiddleware())
	apiRouter.HandleFunc("/ask", askHandler.HandleAsk).Methods("POST")
	apiRouter.HandleFunc("/documents", documentsHandler.HandleStore).Methods("POST")
	apiRouter.HandleFunc("/documents", documentsHandler.HandleList).Methods("GET")
	apiRouter.HandleFunc("/index/thread", threadHandler.HandleIndexThread).Methods("POST")

	slackRouter := router.PathPrefix("/slack").Subrouter()
	slackRouter.Use(middleware.WebhookRateLimitMiddleware())
	slackRouter.HandleFunc("/events", slackHandler.HandleEvents).Methods("POST")
	slackRouter.HandleFunc("/commands", slackHandler.HandleCommand).Methods("POST")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		count, err := gateway.Count(r.Context())
		if err != nil {
			http.Error(w, "Not Ready", http.StatusServiceUnavailable)
			return
		}
		metrics.IndexedRecords.Set(float64(count))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Ready"))
	}).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("Server starting", slog.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited gracefully")
}
