package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	pkgvalidator "github.com/coach-sidekick/coach-sidekick-api/pkg/validator"

	"github.com/coach-sidekick/coach-sidekick-api/internal/adapter/handler"
	"github.com/coach-sidekick/coach-sidekick-api/internal/adapter/repository"
	"github.com/coach-sidekick/coach-sidekick-api/internal/infrastructure/cache"
	"github.com/coach-sidekick/coach-sidekick-api/internal/infrastructure/database"
	"github.com/coach-sidekick/coach-sidekick-api/internal/infrastructure/storage"
	"github.com/coach-sidekick/coach-sidekick-api/internal/session"
	"github.com/coach-sidekick/coach-sidekick-api/internal/usecase/pipeline"
	pkgai "github.com/coach-sidekick/coach-sidekick-api/pkg/ai"
	"github.com/coach-sidekick/coach-sidekick-api/pkg/config"
	"github.com/coach-sidekick/coach-sidekick-api/pkg/recall"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize Echo instance
	e := echo.New()

	// Register validator for request validation
	e.Validator = pkgvalidator.New()

	// Configure Echo
	e.HideBanner = true
	e.HidePort = false

	// Custom logger format
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} | ${status} | ${method} ${uri} | ${latency_human}\n",
	}))

	// Recover from panics
	e.Use(middleware.Recover())

	// CORS middleware
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))

	// Initialize dependencies
	log.Println("🔧 Initializing dependencies...")

	// Initialize Database
	log.Println("📦 Connecting to database...")
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize Redis for analysis snapshots; fall back to the in-memory
	// store so a missing Redis never blocks ingestion.
	log.Println("📦 Connecting to Redis...")
	var snapshotCache cache.Store
	redisStore, err := cache.NewRedisStore(cfg)
	if err != nil {
		logger.Warn("redis unavailable, using in-memory cache", zap.Error(err))
		snapshotCache = cache.NewMemoryStore()
	} else {
		defer redisStore.Close()
		snapshotCache = redisStore
	}

	// Initialize repositories
	log.Println("⚙️  Initializing repositories...")
	transcriptRepo := repository.NewTranscriptRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)
	summaryRepo := repository.NewSummaryRepository(db)

	// Initialize AI components
	log.Println("🤖 Initializing AI components...")
	openaiClient := pkgai.NewOpenAIClient(&cfg.OpenAI)
	coachService := pkgai.NewCoachingService(openaiClient)

	// Initialize the session registry and ingestion pipeline
	log.Println("🧵 Initializing ingestion pipeline...")
	store := session.NewStore(logger)
	fanout := pipeline.NewAnalysisFanout(analysisRepo, snapshotCache, cfg.Pipeline.AnalysisCacheTTL, logger)
	pipe := pipeline.New(store, transcriptRepo, coachService, fanout, pipeline.Config{
		SaveThreshold:  cfg.Pipeline.SaveThreshold,
		AnalysisFloor:  cfg.Pipeline.AnalysisFloor,
		AnalysisMinNew: cfg.Pipeline.AnalysisMinNew,
		CallTimeout:    cfg.Pipeline.CallTimeout,
	}, logger)

	// Initialize the Recall bot controller
	var bots pipeline.BotController
	if cfg.Recall.APIKey != "" {
		log.Println("🤝 Initializing Recall client...")
		bots = recall.NewClient(&cfg.Recall)
	} else {
		log.Println("⚠️  RECALL_API_KEY not set; sessions must be started with an existing bot id")
	}

	// Initialize the transcript archive (best effort)
	var archive pipeline.TranscriptArchiver
	var archiveBrowser handler.ArchiveBrowser
	minioClient, err := storage.NewMinIOClient(&cfg.Storage)
	if err != nil {
		logger.Warn("object storage unavailable, transcript archiving disabled", zap.Error(err))
	} else {
		archive = minioClient
		archiveBrowser = minioClient
	}

	lifecycle := pipeline.NewLifecycle(store, pipe.Saver(), coachService, bots, summaryRepo, archive, logger)

	// Setup router with handlers
	log.Println("🛣️  Setting up routes...")
	webhookHandler := handler.NewWebhook(pipe, cfg.Recall.WebhookSecret, cfg.Pipeline.VerifyWebhookHMAC, logger)
	records := handler.Records{
		Transcripts: transcriptRepo,
		Analyses:    analysisRepo,
		Summaries:   summaryRepo,
	}
	sessionHandler := handler.NewSession(store, pipe, lifecycle, fanout, records, archiveBrowser, cfg.Pipeline.SuggestionWindow, logger)

	router := handler.NewRouter(cfg, webhookHandler, sessionHandler)
	router.Setup(e)

	// Start server
	go func() {
		addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
		log.Printf("🚀 Starting server on %s", addr)
		log.Printf("📝 Environment: %s", cfg.Server.Environment)
		log.Printf("🔗 Health check: http://%s/health", addr)

		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	// Wait for in-flight background saves and analyses before exiting.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Pipeline.DrainTimeout)
	defer drainCancel()
	if err := pipe.Drain(drainCtx); err != nil {
		logger.Warn("background work did not drain before shutdown", zap.Error(err))
	}

	log.Println("✅ Server stopped gracefully")
}
