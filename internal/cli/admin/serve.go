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
	"github.com/spf13/cobra"
	"github.com/vantor-labs/vantor/internal/api/handlers"
	"github.com/vantor-labs/vantor/internal/config"
	"github.com/vantor-labs/vantor/internal/database"
	"github.com/vantor-labs/vantor/internal/domain"
	"github.com/vantor-labs/vantor/internal/gemini"
	"github.com/vantor-labs/vantor/internal/jobs"
	"github.com/vantor-labs/vantor/internal/openai"
	"github.com/vantor-labs/vantor/internal/repository"
	"github.com/vantor-labs/vantor/internal/server"
	"github.com/vantor-labs/vantor/internal/service"
	"github.com/vantor-labs/vantor/internal/storage"
	"github.com/vantor-labs/vantor/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the vantor API server on the specified port",
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

	if cfg.SentryDSN != "" {
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
			DSN:              cfg.SentryDSN,
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

	pool, err := database.NewPool(ctx, cfg.DatabaseURL, database.PoolConfig{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	workspaceRepo := repository.NewWorkspaceRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)
	knowledgeRepo := repository.NewKnowledgeRepository(pool)
	chunkRepo := repository.NewKnowledgeChunkRepository(pool)
	chatbotRepo := repository.NewChatbotRepository(pool)
	leadRepo := repository.NewLeadRepository(pool)
	ingestJobRepo := repository.NewIngestJobRepository(pool)

	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(workspaceRepo, apiKeyRepo, uuidGen)

	if cfg.InitWorkspaceName != "" {
		if err := bootstrapInitialWorkspace(ctx, cfg, workspaceRepo, authSvc); err != nil {
			return fmt.Errorf("failed to bootstrap initial workspace: %w", err)
		}
	}

	var documents service.DocumentStore
	if cfg.HasS3() {
		s3Config := storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		}
		s3Client, err := storage.NewS3Client(ctx, s3Config)
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		documents = s3Client
	}

	var geminiClient *gemini.Client
	if cfg.HasGemini() {
		geminiClient, err = gemini.NewClient(ctx, gemini.Config{APIKey: cfg.GeminiAPIKey})
		if err != nil {
			return fmt.Errorf("failed to create gemini client: %w", err)
		}
	}

	var embedder service.EmbeddingClient
	switch cfg.EmbeddingProvider {
	case "openai":
		if cfg.HasOpenAI() {
			embedder = openai.NewClient(cfg.OpenAIAPIKey)
		}
	default:
		if geminiClient != nil {
			embedder = geminiClient
		}
	}

	limiter := service.NewRateLimiter(cfg.RateLimit, cfg.RateLimitWindow)

	var ragSvc *service.RagService
	var ingestWorker *jobs.Worker
	if embedder != nil {
		ragSvc = service.NewRagService(chunkRepo, embedder, limiter, service.RagConfig{})
		processor := jobs.NewIngestWorker(ingestJobRepo, knowledgeRepo, ragSvc)
		ingestWorker = jobs.NewWorker(processor, cfg.IngestPollInterval)
		go ingestWorker.Start(ctx)
		log.Println("ingest worker started")
	} else {
		log.Println("no embedding provider configured: ingestion and retrieval disabled")
	}

	knowledgeSvc := service.NewKnowledgeService(knowledgeRepo, ingestJobRepo, &chunkDeleterAdapter{repo: chunkRepo}, documents)
	chatbotSvc := service.NewChatbotService(chatbotRepo)
	leadSvc := service.NewLeadService(leadRepo)

	webhooks := service.NewWebhookExecutor(&http.Client{Timeout: 10 * time.Second})

	var chatStreamer handlers.ChatStreamer
	if geminiClient != nil && ragSvc != nil {
		chatStreamer = service.NewChatService(geminiClient, ragSvc, limiter, webhooks, leadSvc)
	} else {
		chatStreamer = &noopChatStreamer{}
	}

	routerCfg := server.RouterConfig{
		AuthValidator:    authSvc,
		KnowledgeHandler: handlers.NewKnowledgeHandler(knowledgeSvc),
		ChatbotHandler:   handlers.NewChatbotHandler(chatbotSvc),
		LeadHandler:      handlers.NewLeadHandler(leadSvc),
		ChatHandler:      handlers.NewChatHandler(chatbotSvc, chatStreamer),
		StatusHandler:    handlers.NewStatusHandler(limiter),
		AuthHandler:      handlers.NewAuthHandler(authSvc),
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

	if ingestWorker != nil {
		ingestWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

type chunkDeleterAdapter struct {
	repo *repository.KnowledgeChunkRepository
}

func (a *chunkDeleterAdapter) DeleteForItem(ctx context.Context, knowledgeItemID string) error {
	return a.repo.DeleteChunksForItem(ctx, knowledgeItemID)
}

type noopChatStreamer struct{}

func (s *noopChatStreamer) StreamMessage(ctx context.Context, input service.StreamInput, emit service.EmitFunc) error {
	return fmt.Errorf("chat not configured: GEMINI_API_KEY required")
}

func bootstrapInitialWorkspace(ctx context.Context, cfg *config.Config, workspaceRepo *repository.WorkspaceRepository, authSvc *service.AuthService) error {
	workspace, err := workspaceRepo.GetByName(ctx, cfg.InitWorkspaceName)
	if err != nil && err != domain.ErrWorkspaceNotFound {
		return fmt.Errorf("failed to check existing workspace: %w", err)
	}

	if workspace == nil {
		workspace, err = authSvc.CreateWorkspace(ctx, cfg.InitWorkspaceName)
		if err != nil {
			return fmt.Errorf("failed to create workspace: %w", err)
		}
		log.Printf("bootstrap: created workspace '%s' (id: %s)", workspace.Name, workspace.ID)
	} else {
		log.Printf("bootstrap: workspace '%s' already exists (id: %s)", workspace.Name, workspace.ID)
	}

	if cfg.InitAPIKey != "" {
		if !service.IsValidAPIToken(cfg.InitAPIKey) {
			return fmt.Errorf("invalid VANTOR_INIT_API_KEY format (expected 'vnt_<64 hex chars>')")
		}

		existingKey, err := authSvc.GetAPIKeyByHash(ctx, cfg.InitAPIKey)
		if err == nil && existingKey != nil {
			log.Printf("bootstrap: API key already exists (id: %s)", existingKey.ID)
			return nil
		}

		if err := authSvc.CreateAPIKeyWithToken(ctx, workspace.ID, "bootstrap", cfg.InitAPIKey); err != nil {
			return fmt.Errorf("failed to create API key: %w", err)
		}
		log.Printf("bootstrap: created API key")
	}

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
