package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ikolomin/siterag/internal/config"
	"github.com/ikolomin/siterag/internal/core/ports"
	"github.com/ikolomin/siterag/internal/core/usecase"
	"github.com/ikolomin/siterag/internal/infrastructure/chunking"
	"github.com/ikolomin/siterag/internal/infrastructure/embedding"
	"github.com/ikolomin/siterag/internal/infrastructure/fetch"
	"github.com/ikolomin/siterag/internal/infrastructure/llm"
	"github.com/ikolomin/siterag/internal/infrastructure/queue/nats"
	"github.com/ikolomin/siterag/internal/infrastructure/repository/postgres"
	"github.com/ikolomin/siterag/internal/infrastructure/resilience"
	"github.com/ikolomin/siterag/internal/infrastructure/vector/qdrant"
)

// App wires the shared object graph for both binaries. The API process uses
// ChatUC/CaptureUC/Index; the worker uses Queue and ProcessUC.
type App struct {
	Config config.Config

	Queue     *nats.Queue
	ChatUC    ports.ChatService
	CaptureUC *usecase.CaptureUseCase
	ProcessUC ports.CaptureProcessor
	Index     ports.PassageIndex

	retriever *usecase.ContextRetriever
	chatUC    *usecase.ChatUseCase
	closeFn   func()
}

// SetChatObserver attaches a metrics sink to the answer pipeline. Called by
// the API binary once its prometheus registry exists.
func (a *App) SetChatObserver(observer ports.ChatObserver) {
	a.retriever.SetObserver(observer)
	a.chatUC.SetObserver(observer)
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	groundings := postgres.NewGroundingRepository(db)
	kv := postgres.NewKVRepository(db)
	jobs := postgres.NewCaptureRepository(db)

	executor := resilience.NewExecutor(resilience.DefaultConfig(), logger)
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	var embedder ports.Embedder
	switch cfg.EmbeddingProvider {
	case "ollama":
		embedder = embedding.NewOllamaEmbedder(cfg.OllamaURL, cfg.EmbeddingModel)
	default:
		embedder = embedding.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
	}

	index := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, embedder)

	resolver := llm.NewResolver(llm.Credentials{
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		GoogleAPIKey:    cfg.GoogleAPIKey,
		FireworksAPIKey: cfg.FireworksAPIKey,
		OllamaURL:       cfg.OllamaURL,
	})

	fetcher := fetch.NewFetcher()
	crawler := fetch.NewCrawler(cfg.CrawlMaxPages, cfg.CrawlMaxDepth, logger)
	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)

	expander := usecase.NewQueryExpander(resolver)
	retriever := usecase.NewContextRetriever(index, expander, logger)
	chatUC := usecase.NewChatUseCase(
		resolver, retriever, groundings, kv, fetcher,
		cfg.SystemPrompt, cfg.MaxContextDocuments, logger,
	)
	captureUC := usecase.NewCaptureUseCase(jobs, queue)
	processUC := usecase.NewProcessCaptureUseCase(jobs, fetcher, crawler, chunker, embedder, index, logger)

	return &App{
		Config: cfg,

		Queue:     queue,
		ChatUC:    chatUC,
		CaptureUC: captureUC,
		ProcessUC: processUC,
		Index:     index,

		retriever: retriever,
		chatUC:    chatUC,
		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
