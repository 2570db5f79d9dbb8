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
	"github.com/helioscope-ai/helioscope/internal/api/handlers"
	"github.com/helioscope-ai/helioscope/internal/config"
	"github.com/helioscope-ai/helioscope/internal/database"
	"github.com/helioscope-ai/helioscope/internal/index"
	"github.com/helioscope-ai/helioscope/internal/jobs"
	"github.com/helioscope-ai/helioscope/internal/openai"
	"github.com/helioscope-ai/helioscope/internal/pinecone"
	"github.com/helioscope-ai/helioscope/internal/repository"
	"github.com/helioscope-ai/helioscope/internal/server"
	"github.com/helioscope-ai/helioscope/internal/service"
	"github.com/helioscope-ai/helioscope/internal/telemetry"
	_ "github.com/jackc/pgx/v5/stdlib"
	openaiapi "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the helioscope API server on the specified port",
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

	if !cfg.HasOpenAI() {
		return fmt.Errorf("OPENAI_API_KEY is required to serve: embedding and chat need it")
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

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
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

	paperRepo := repository.NewPaperRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	conversationRepo := repository.NewConversationRepository(pool)
	embeddingJobRepo := repository.NewEmbeddingJobRepository(pool)
	searchLogRepo := repository.NewSearchLogRepository(pool)

	llm := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		EmbeddingModel:      openaiapi.EmbeddingModel(cfg.EmbeddingModel),
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		ChatModel:           cfg.ChatModel,
	})

	var remoteStore *pinecone.ChunkStore
	if cfg.HasPinecone() {
		pc := pinecone.New(pinecone.Config{
			IndexHost:  cfg.PineconeIndexHost,
			APIKey:     cfg.PineconeAPIKey,
			Namespace:  cfg.PineconeNamespace,
			Dimensions: cfg.EmbeddingDimensions,
			BatchSize:  cfg.UpsertBatchSize,
		})
		if err := pc.Connect(ctx); err != nil {
			log.Printf("pinecone unreachable, remote vector search disabled: %v", err)
		} else {
			remoteStore = pinecone.NewChunkStore(pc)
			log.Println("connected to pinecone index")
		}
	}

	var localIndex service.LocalIndexSearcher
	if loaded, err := index.Load(cfg.IndexPath, cfg.IndexMetadataPath); err != nil {
		log.Printf("local index not loaded, vector search falls back to the chunk table: %v", err)
	} else {
		localIndex = loaded
		log.Printf("local index loaded: %d vectors", loaded.Len())
	}

	chunker := service.NewChunker(service.ChunkConfig{
		MinTokens:         cfg.ChunkMinTokens,
		MaxTokens:         cfg.ChunkMaxTokens,
		Overlap:           cfg.ChunkOverlap,
		SourceField:       cfg.ChunkSourceField,
		PreserveSentences: cfg.PreserveSentences,
	})

	var upserter service.ChunkUpserter
	var remoteSearcher service.RemoteIndexSearcher
	if remoteStore != nil {
		upserter = remoteStore
		remoteSearcher = remoteStore
	}

	embeddingSvc := service.NewEmbeddingService(llm, paperRepo, chunkRepo, upserter, chunker, service.EmbeddingConfig{
		Model:     cfg.EmbeddingModel,
		BatchSize: cfg.EmbeddingBatchSize,
		Normalize: true,
	})

	embeddingProcessor := jobs.NewEmbeddingWorker(embeddingJobRepo, embeddingSvc)
	embeddingWorker := jobs.NewWorker(embeddingProcessor, 10*time.Second)
	go embeddingWorker.Start(ctx)
	log.Println("embedding worker started")

	extractor := service.NewHTTPTextExtractor(0)
	paperSvc := service.NewPaperService(paperRepo, embeddingJobRepo, extractor).
		WithTxRunner(repository.NewTxRunner(pool))

	searchSvc := service.NewSearchService(paperRepo, localIndex, remoteSearcher, embeddingSvc, service.NewAuthorRepair()).
		WithVectorFallback(chunkRepo).
		WithSearchLog(searchLogRepo)

	conversationSvc := service.NewConversationService(conversationRepo)
	gate := service.NewGuardrailService(llm, cfg.GuardrailTimeout)
	ragSvc := service.NewRAGService(gate, searchSvc, conversationSvc, llm, service.RAGConfig{
		MaxTokens:   cfg.ChatMaxTokens,
		Temperature: cfg.ChatTemperature,
		Timeout:     cfg.ChatTimeout,
	})

	routerCfg := server.RouterConfig{
		PaperHandler:  handlers.NewPaperHandler(paperSvc),
		SearchHandler: handlers.NewSearchHandler(searchSvc),
		ChatHandler:   handlers.NewChatHandler(ragSvc, conversationSvc),
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

	embeddingWorker.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	// Create postgres driver instance
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Create migrate instance with file source
	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// Run migrations
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Get migration version and status
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
