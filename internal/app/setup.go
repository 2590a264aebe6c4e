package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	coreapi "github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mrady9280/asfoor/db"
	"github.com/mrady9280/asfoor/internal/agent"
	"github.com/mrady9280/asfoor/internal/api"
	"github.com/mrady9280/asfoor/internal/chat"
	"github.com/mrady9280/asfoor/internal/config"
	"github.com/mrady9280/asfoor/internal/index"
	"github.com/mrady9280/asfoor/internal/ingest"
	"github.com/mrady9280/asfoor/internal/memory"
	"github.com/mrady9280/asfoor/internal/observability"
	"github.com/mrady9280/asfoor/internal/workflow"
)

// Setup initializes the full application from a validated config.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if retErr != nil {
			if err := a.Close(ctx); err != nil {
				logger.Warn("cleanup after setup failure", "error", err)
			}
		}
	}()

	// Tracing hooks into Genkit's tracer provider and must be registered
	// before genkit.Init.
	otelShutdown, err := observability.Setup(ctx, cfg.OTLP, logger)
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}
	a.otelShutdown = otelShutdown

	pool, err := providePool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	a.Genkit = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))

	embedder := provideEmbedder(a.Genkit, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}

	idx, err := index.New(index.NewPGQuerier(pool), embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("creating index store: %w", err)
	}
	if err := idx.EnsureReady(ctx); err != nil {
		return nil, fmt.Errorf("preparing index schema: %w", err)
	}
	a.Index = idx

	extractor, err := memory.NewLLMExtractor(a.Genkit, cfg.FullChatModel())
	if err != nil {
		return nil, fmt.Errorf("creating memory extractor: %w", err)
	}
	mem, err := memory.NewStore(cfg.MemoryDir, extractor, logger)
	if err != nil {
		return nil, fmt.Errorf("creating memory store: %w", err)
	}
	a.Memory = mem

	factory, err := agent.NewFactory(agent.FactoryConfig{
		Genkit:   a.Genkit,
		Config:   cfg,
		Searcher: idx,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating agent factory: %w", err)
	}
	a.Factory = factory

	wf, err := workflow.NewChatWorkflow(
		factory.Classifier(),
		factory.ImageAgent(),
		workflow.ChatBuilderFunc(func(contextInstructions string) (workflow.Runner, error) {
			return factory.ChatAgent(contextInstructions)
		}),
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("building workflow: %w", err)
	}

	chatSvc, err := chat.NewService(chat.Config{
		Workflow:      wf,
		Memory:        mem,
		DefaultUserID: cfg.DefaultUserID,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating chat service: %w", err)
	}
	a.Chat = chatSvc

	ingestSvc, err := ingest.NewService(ingest.Config{
		Summarizer:  factory.Summarizer(),
		Index:       idx,
		Concurrency: cfg.IngestConcurrency,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating ingest service: %w", err)
	}
	a.Ingest = ingestSvc

	server, err := api.NewServer(api.Config{
		Chat:          chatSvc,
		Ingest:        ingestSvc,
		Ready:         pool.Ping,
		DocPath:       cfg.DocPath,
		IngestPattern: cfg.IngestPattern,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating http server: %w", err)
	}
	a.Server = server

	return a, nil
}

// providePool runs migrations, then opens and pings the connection pool.
func providePool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// provideEmbedder resolves the configured embedder. The mock provider is
// how tests and offline runs get a working pipeline without credentials.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	if cfg.Provider == "mock" {
		provider, name, _ := strings.Cut(cfg.FullEmbedderModel(), "/")
		return genkit.LookupEmbedder(g, coreapi.NewName(provider, name))
	}
	return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
}
