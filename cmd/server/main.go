// Package main is the entry point for the lexvault service
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

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexvault/lexvault/internal/api"
	"github.com/lexvault/lexvault/internal/auth"
	"github.com/lexvault/lexvault/internal/config"
	"github.com/lexvault/lexvault/internal/embedding"
	"github.com/lexvault/lexvault/internal/gemini"
	"github.com/lexvault/lexvault/internal/ingest"
	"github.com/lexvault/lexvault/internal/middleware"
	"github.com/lexvault/lexvault/internal/observability"
	"github.com/lexvault/lexvault/internal/processor"
	"github.com/lexvault/lexvault/internal/repository"
	"github.com/lexvault/lexvault/internal/retrieval"
	"github.com/lexvault/lexvault/internal/tools"
)

var (
	// Version information (set via ldflags during build)
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("lexvault\nVersion: %s\nBuild Time: %s\nGit Commit: %s\n",
			version, buildTime, gitCommit)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewStandardLoggerWithLevel("lexvault", cfg.Service.LogLevel)
	logger.Info("Starting lexvault", map[string]interface{}{
		"version":    version,
		"build_time": buildTime,
		"git_commit": gitCommit,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	db, err := connectDatabase(ctx, cfg.Database, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	redisClient := connectRedis(ctx, cfg.Redis, logger)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error("Failed to close redis connection", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}()
	}

	geminiClient, err := gemini.NewClient(cfg.Gemini, logger.WithPrefix("gemini"))
	if err != nil {
		log.Fatalf("Failed to create Gemini client: %v", err)
	}

	// Repositories
	users := repository.NewUserRepository(db)
	documents := repository.NewDocumentRepository(db)
	chunks := repository.NewChunkRepository(db)
	conversations := repository.NewConversationRepository(db)

	// Ingestion pipeline
	chunker := processor.NewChunker(cfg.Processing.MaxChunkSize, cfg.Processing.ChunkOverlap)
	embedder := embedding.NewRetryingEmbedder(geminiClient, embedding.RetryPolicy{
		MaxAttempts:  cfg.Processing.RetryAttempts,
		InitialDelay: cfg.Processing.RetryDelay,
		Multiplier:   2.0,
	}, logger.WithPrefix("embedding"))
	pipeline := ingest.NewPipeline(chunker, embedder, chunks, documents,
		cfg.Processing.EmbedBatchSize, logger.WithPrefix("ingest"))

	// Retrieval and tools
	assembler := retrieval.NewContextAssembler(embedder, chunks, documents, logger.WithPrefix("retrieval"))
	toolRunner := tools.NewRunner(assembler, geminiClient,
		cfg.Retrieval.MatchCount, cfg.Retrieval.ToolMatchCount, cfg.Retrieval.CitationMaxLength)

	// Auth
	tokens := auth.NewTokenManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, cfg.Auth.TokenTTL)

	// Stuck document janitor
	janitor := ingest.NewJanitor(documents, cfg.Janitor.Schedule,
		cfg.Janitor.ProcessingDeadline, logger.WithPrefix("janitor"))
	if err := janitor.Start(); err != nil {
		log.Fatalf("Failed to start janitor: %v", err)
	}

	apiServer := startAPIServer(cfg, apiDeps{
		users:         users,
		documents:     documents,
		conversations: conversations,
		pipeline:      pipeline,
		assembler:     assembler,
		geminiClient:  geminiClient,
		toolRunner:    toolRunner,
		tokens:        tokens,
		redisClient:   redisClient,
	}, logger)

	healthServer := startHealthServer(cfg, db, logger)

	sig := <-sigChan
	logger.Info("Received shutdown signal", map[string]interface{}{
		"signal": sig.String(),
	})

	logger.Info("Starting graceful shutdown", nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
	defer shutdownCancel()

	janitor.Stop()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown API server", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown health server", map[string]interface{}{
			"error": err.Error(),
		})
	}

	cancel()
	logger.Info("Shutdown complete", nil)
}

// connectDatabase establishes a database connection with retry logic
func connectDatabase(ctx context.Context, cfg config.DatabaseConfig, logger observability.Logger) (*sqlx.DB, error) {
	maxRetries := 10
	baseDelay := 1 * time.Second

	logger.Info("Connecting to database", map[string]interface{}{
		"host":     cfg.Host,
		"database": cfg.Database,
	})

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
		if err == nil {
			db.SetMaxOpenConns(cfg.MaxConns)
			db.SetMaxIdleConns(cfg.MaxIdleConns)
			logger.Info("Database connection established", nil)
			return db, nil
		}
		lastErr = err

		if i < maxRetries-1 {
			delay := baseDelay * (1 << uint(i))
			if delay > 30*time.Second {
				delay = 30 * time.Second
			}

			logger.Warn("Database connection failed, retrying...", map[string]interface{}{
				"attempt":      i + 1,
				"max_attempts": maxRetries,
				"delay":        delay.String(),
				"error":        err.Error(),
			})

			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, lastErr)
}

// connectRedis connects to Redis for shared rate limiting. A failed
// connection is not fatal; the limiter falls back to in process counting.
func connectRedis(ctx context.Context, cfg config.RedisConfig, logger observability.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Address,
		Password:    cfg.Password,
		DB:          cfg.Database,
		DialTimeout: cfg.DialTimeout,
		PoolSize:    cfg.PoolSize,
	})

	pingCtx, pingCancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer pingCancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis unavailable, rate limiting falls back to local counters", map[string]interface{}{
			"address": cfg.Address,
			"error":   err.Error(),
		})
	} else {
		logger.Info("Redis connection established", map[string]interface{}{
			"address": cfg.Address,
		})
	}

	return client
}

type apiDeps struct {
	users         *repository.UserRepository
	documents     *repository.DocumentRepository
	conversations *repository.ConversationRepository
	pipeline      *ingest.Pipeline
	assembler     *retrieval.ContextAssembler
	geminiClient  *gemini.Client
	toolRunner    *tools.Runner
	tokens        *auth.TokenManager
	redisClient   *redis.Client
}

// startAPIServer starts the HTTP API server
func startAPIServer(cfg *config.Config, deps apiDeps, logger observability.Logger) *http.Server {
	if cfg.Service.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	authMw := middleware.NewAuthMiddleware(deps.tokens)
	limiter := middleware.NewRateLimiter(deps.redisClient, cfg.RateLimiting.Window, logger.WithPrefix("ratelimit"))

	authHandler := api.NewAuthHandler(deps.users, deps.tokens, logger.WithPrefix("auth"))
	documentHandler := api.NewDocumentHandler(deps.documents, deps.pipeline,
		cfg.Processing.MaxUploadBytes, logger.WithPrefix("documents"))
	chatHandler := api.NewChatHandler(deps.conversations, deps.assembler, deps.geminiClient,
		cfg.Retrieval.MatchCount, cfg.Retrieval.CitationMaxLength, cfg.Retrieval.HistoryLimit,
		logger.WithPrefix("chat"))
	toolHandler := api.NewToolHandler(deps.toolRunner, logger.WithPrefix("tools"))

	noLimit := func(c *gin.Context) { c.Next() }
	uploadLimit, chatLimit, toolLimit := noLimit, noLimit, noLimit
	if cfg.RateLimiting.Enabled {
		uploadLimit = limiter.Limit("upload", cfg.RateLimiting.UploadPerMin)
		chatLimit = limiter.Limit("chat", cfg.RateLimiting.ChatPerMin)
		toolLimit = limiter.Limit("tool", cfg.RateLimiting.ToolPerMin)
	}

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/signup", authHandler.Signup)
		v1.POST("/auth/login", authHandler.Login)

		protected := v1.Group("")
		protected.Use(authMw.RequireUser())
		{
			protected.GET("/auth/me", authHandler.Me)

			protected.POST("/documents", uploadLimit, documentHandler.Upload)
			protected.GET("/documents", documentHandler.List)
			protected.GET("/documents/:id", documentHandler.Get)
			protected.DELETE("/documents/:id", documentHandler.Delete)

			protected.POST("/chat", chatLimit, chatHandler.Chat)
			protected.GET("/conversations", chatHandler.ListConversations)
			protected.GET("/conversations/:id/messages", chatHandler.GetMessages)
			protected.DELETE("/conversations/:id", chatHandler.DeleteConversation)

			toolGroup := protected.Group("/tools")
			toolGroup.Use(toolLimit)
			{
				toolGroup.POST("/clause-analyzer", toolHandler.ClauseAnalyzer)
				toolGroup.POST("/compliance-checker", toolHandler.ComplianceChecker)
				toolGroup.POST("/precedent-finder", toolHandler.PrecedentFinder)
				toolGroup.POST("/negotiation-coach", toolHandler.NegotiationCoach)
			}
		}
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Service.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting API server", map[string]interface{}{
			"port": cfg.Service.Port,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("API server error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	return server
}

// startHealthServer starts the health check and metrics endpoint
func startHealthServer(cfg *config.Config, db *sqlx.DB, logger observability.Logger) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, "unhealthy: %v", err)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "healthy")
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, "not ready: %v", err)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "ready")
	})

	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Service.MetricsPort),
		Handler: mux,
	}

	go func() {
		logger.Info("Starting health and metrics server", map[string]interface{}{
			"port": cfg.Service.MetricsPort,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Health server error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	return server
}
