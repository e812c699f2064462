// Command jeex runs the documentation-pipeline API server: tenant auth,
// project CRUD, the four-stage agent workflow, SSE progress streaming,
// and document export, all behind a single HTTP process.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/joho/godotenv"

	"github.com/itechmeat/jeex/pkg/agent"
	"github.com/itechmeat/jeex/pkg/api"
	"github.com/itechmeat/jeex/pkg/auth"
	"github.com/itechmeat/jeex/pkg/blacklist"
	"github.com/itechmeat/jeex/pkg/cleanup"
	"github.com/itechmeat/jeex/pkg/config"
	"github.com/itechmeat/jeex/pkg/database"
	"github.com/itechmeat/jeex/pkg/docrepo"
	"github.com/itechmeat/jeex/pkg/embedding"
	"github.com/itechmeat/jeex/pkg/execrepo"
	"github.com/itechmeat/jeex/pkg/export"
	"github.com/itechmeat/jeex/pkg/kv"
	"github.com/itechmeat/jeex/pkg/llm"
	"github.com/itechmeat/jeex/pkg/orchestrator"
	"github.com/itechmeat/jeex/pkg/projectrepo"
	"github.com/itechmeat/jeex/pkg/quality"
	"github.com/itechmeat/jeex/pkg/queue"
	"github.com/itechmeat/jeex/pkg/ratelimit"
	"github.com/itechmeat/jeex/pkg/streaming"
	"github.com/itechmeat/jeex/pkg/vectorstore"
	"github.com/itechmeat/jeex/pkg/workflow"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("warning: could not load %s: %v", envPath, err)
		log.Printf("continuing with existing environment variables")
	} else {
		log.Printf("loaded environment from %s", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	podID := getEnv("POD_ID", hostnameOrDefault())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("starting jeex (pod %s)", podID)
	log.Printf("config directory: %s", *configDir)

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("failed to initialize configuration: %v", err)
	}

	dbCfg, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("failed to load database config: %v", err)
	}

	db, err := database.NewClient(ctx, dbCfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("error closing database client: %v", err)
		}
	}()
	log.Println("connected to PostgreSQL (pgvector) and applied migrations")

	redisClient, err := kv.New(ctx, kv.Config{
		Addr:     cfg.Redis.Addr,
		Password: os.Getenv(cfg.Redis.PasswordEnv),
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Printf("error closing redis client: %v", err)
		}
	}()
	log.Println("connected to Redis")

	secret := []byte(os.Getenv(cfg.Auth.JWTSecretEnv))
	if len(secret) == 0 {
		log.Fatalf("missing JWT signing secret: set %s", cfg.Auth.JWTSecretEnv)
	}

	bl := blacklist.New(redisClient)
	limiter := ratelimit.New(redisClient)
	authSvc := auth.New(db.DB, bl, cfg.Auth, secret)

	projects := projectrepo.New(db.DB)
	documents := docrepo.New(db.DB)
	executions := execrepo.New(db.DB)
	vectors := vectorstore.New(db.DB)

	llmManager := registerLLMProviders(ctx, cfg)

	embedder := newEmbedder(ctx, cfg)

	hub := streaming.NewHub(redisClient)
	scopes := streaming.NewScopeRegistry()
	progressPublisher := streaming.NewProgressPublisher(hub, scopes)
	completionPublisher := streaming.NewCompletionPublisher(hub)

	orch := &orchestrator.Orchestrator{
		Factory:       agent.NewFactory(),
		PromptBuilder: agent.NewTemplatePromptBuilder("English"),
		LLMClient:     llm.NewClientAdapter(llmManager, cfg.Defaults.LLMProvider),
		Documents:     documents.AsDocumentWriter(),
		Quality:       quality.NewController(),
		Vectors:       vectors,
		Embedder:      embedder,
		Executions:    executions,
		Publisher:     progressPublisher,
		ContextLimit:  cfg.Defaults.MaxRetrievalChunks,
	}

	engine := &workflow.Engine{
		Executor:         orch,
		Preconditions:    executions,
		Completion:       completionPublisher,
		DefaultTechStack: cfg.Defaults.TechnologyStack,
		InterStagePause:  cfg.Defaults.InterStagePause,
	}

	exportSvc := export.New(db.DB, documents, cfg.Export)
	workerPool := queue.NewWorkerPool(podID, exportSvc, cfg.Queue)
	if err := workerPool.Start(ctx); err != nil {
		log.Fatalf("failed to start export worker pool: %v", err)
	}
	defer workerPool.Stop()

	cleanupSvc := cleanup.NewService(cfg.Retention, exportSvc)
	cleanupSvc.Start(ctx)
	defer cleanupSvc.Stop()

	server := api.NewServer(cfg, db, authSvc, projects, documents, executions,
		orch, engine, hub, scopes, exportSvc, limiter)

	log.Printf("HTTP server listening on :%s", httpPort)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(":" + httpPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Println("shutdown signal received, draining in-flight requests")
	case err := <-errCh:
		log.Fatalf("HTTP server failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("error during HTTP server shutdown: %v", err)
	}
	log.Println("jeex stopped")
}

func hostnameOrDefault() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "jeex-local"
	}
	return name
}

// registerLLMProviders builds pkg/llm.Manager from every entry in the
// merged provider registry (built-ins plus llm-providers.yaml overrides),
// skipping any provider whose required credential env var is unset — per
// §4.7.4, "providers with missing credentials are not registered."
func registerLLMProviders(ctx context.Context, cfg *config.Config) *llm.Manager {
	manager := llm.NewManager()
	breakerCfg := llm.DefaultBreakerConfig()

	for name, p := range cfg.LLMProviderRegistry.GetAll() {
		isDefault := name == cfg.Defaults.LLMProvider
		switch p.Type {
		case config.LLMProviderAnthropic:
			apiKey := os.Getenv(p.APIKeyEnv)
			if apiKey == "" {
				slog.Warn("skipping anthropic provider: API key not set", "env", p.APIKeyEnv)
				continue
			}
			manager.Register(llm.NewAnthropicProvider(apiKey, p.Model), breakerCfg, isDefault)

		case config.LLMProviderBedrock:
			region := os.Getenv(p.RegionEnv)
			if region == "" {
				slog.Warn("skipping bedrock provider: region not set", "env", p.RegionEnv)
				continue
			}
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
			if err != nil {
				slog.Warn("skipping bedrock provider: failed to load AWS config", "error", err)
				continue
			}
			manager.Register(llm.NewBedrockProvider(bedrockruntime.NewFromConfig(awsCfg), p.Model), breakerCfg, isDefault)

		case config.LLMProviderHTTP:
			apiKey := os.Getenv(p.APIKeyEnv)
			if p.BaseURL == "" {
				slog.Warn("skipping http provider: base_url not set", "provider", name)
				continue
			}
			manager.Register(llm.NewHTTPProvider(p.BaseURL, apiKey, p.Model), breakerCfg, isDefault)

		default:
			slog.Warn("skipping unknown LLM provider type", "provider", name, "type", p.Type)
		}
	}

	return manager
}

// newEmbedder prefers AWS Bedrock's Titan embeddings when AWS_REGION is
// configured; otherwise it falls back to the deterministic hash embedder
// so the retrieval pipeline still runs end to end without live AWS
// credentials (development, CI, and most test environments).
func newEmbedder(ctx context.Context, _ *config.Config) embedding.Embedder {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		slog.Info("AWS_REGION not set, using hash embedder (non-semantic, deterministic)")
		return embedding.NewHashEmbedder()
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		slog.Warn("failed to load AWS config for embeddings, falling back to hash embedder", "error", err)
		return embedding.NewHashEmbedder()
	}

	return embedding.NewBedrockEmbedder(bedrockruntime.NewFromConfig(awsCfg), "")
}
