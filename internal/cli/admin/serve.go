package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/andino-labs/policychat/internal/api/handlers"
	"github.com/andino-labs/policychat/internal/api/middleware"
	"github.com/andino-labs/policychat/internal/config"
	"github.com/andino-labs/policychat/internal/database"
	"github.com/andino-labs/policychat/internal/jobs"
	"github.com/andino-labs/policychat/internal/openai"
	"github.com/andino-labs/policychat/internal/pdfextract"
	"github.com/andino-labs/policychat/internal/repository"
	"github.com/andino-labs/policychat/internal/server"
	"github.com/andino-labs/policychat/internal/service"
	"github.com/andino-labs/policychat/internal/storage"
	"github.com/andino-labs/policychat/internal/telemetry"
	"github.com/andino-labs/policychat/internal/tokencache"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the policychat API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	if !cfg.HasOpenAI() {
		return fmt.Errorf("OPENAI_API_KEY is required: chat and indexing cannot run without an embedding provider")
	}
	if !cfg.HasS3() {
		return fmt.Errorf("S3 storage is not configured: S3_ENDPOINT, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required")
	}

	pool, err := database.NewPool(ctx, database.PoolConfig{
		DSN:      cfg.DatabaseURL,
		MaxConns: cfg.DatabaseMaxConns,
		MinConns: cfg.DatabaseMinConns,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	log.Println("connected to redis")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)

	kbRepo := repository.NewKnowledgeBaseRepository(pool)
	docRepo := repository.NewDocumentRepository(pool)
	embeddingRepo := repository.NewDocumentEmbeddingRepository(pool)
	chatRepo := repository.NewChatSessionRepository(pool)
	jobRepo := repository.NewIndexJobRepository(pool)

	tokenCache := tokencache.NewCache(redisClient, time.Duration(cfg.TokenTTLSeconds)*time.Second)

	aiClient := openai.NewClientWithConfig(openai.Config{
		APIKey:    cfg.OpenAIAPIKey,
		ChatModel: cfg.ChatModel,
	})
	extractor := pdfextract.NewExtractor()

	indexerSvc := service.NewIndexerService(embeddingRepo, docRepo, jobRepo, aiClient, cfg.ChunkMaxChars)
	retrievalSvc := service.NewRetrievalService(embeddingRepo, docRepo, aiClient, service.RetrievalConfig{
		Threshold: cfg.RetrievalThreshold,
		TopK:      cfg.RetrievalTopK,
	}, nil)

	authSvc := service.NewAuthService(tokenCache)
	docSvc := service.NewDocumentService(docRepo, kbRepo, s3Client, extractor, indexerSvc, aiClient)
	kbSvc := service.NewKnowledgeBaseService(kbRepo, docSvc)
	chatSvc := service.NewChatService(chatRepo, retrievalSvc, aiClient)

	indexProcessor := jobs.NewIndexWorker(jobRepo, indexerSvc.WithoutRetryQueue())
	indexWorker := jobs.NewWorker(indexProcessor, 10*time.Second)
	go indexWorker.Start(ctx)
	log.Println("index worker started")

	routerCfg := server.RouterConfig{
		AuthValidator:        authSvc,
		ChatRateLimiter:      middleware.NewRateLimiter(cfg.ChatRateRPS, cfg.ChatRateBurst),
		AuthHandler:          handlers.NewAuthHandler(authSvc),
		ChatHandler:          handlers.NewChatHandler(chatSvc),
		DocumentHandler:      handlers.NewDocumentHandler(docSvc),
		KnowledgeBaseHandler: handlers.NewKnowledgeBaseHandler(kbSvc),
		UtilitiesHandler:     handlers.NewUtilitiesHandler(extractor),
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	indexWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(databaseURL string) error {
	// golang-migrate needs a database/sql handle
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
