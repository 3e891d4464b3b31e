package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ikolomin/siterag/internal/core/domain"
	"github.com/ikolomin/siterag/internal/core/ports"
)

// ChatUseCase drives one question turn end to end: derive the URL scope,
// retrieve grounding passages, memoize them for later turns, assemble the
// prompt and stream the model's answer back to the caller.
type ChatUseCase struct {
	resolver   ports.ModelResolver
	retriever  *ContextRetriever
	groundings ports.GroundingStore
	kv         ports.KVStore
	fetcher    ports.PageFetcher

	systemTemplate string
	maxDocuments   int
	observer       ports.ChatObserver
	logger         *slog.Logger
}

func NewChatUseCase(
	resolver ports.ModelResolver,
	retriever *ContextRetriever,
	groundings ports.GroundingStore,
	kv ports.KVStore,
	fetcher ports.PageFetcher,
	systemTemplate string,
	maxDocuments int,
	logger *slog.Logger,
) *ChatUseCase {
	if maxDocuments <= 0 {
		maxDocuments = defaultMaxDocuments
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatUseCase{
		resolver:       resolver,
		retriever:      retriever,
		groundings:     groundings,
		kv:             kv,
		fetcher:        fetcher,
		systemTemplate: systemTemplate,
		maxDocuments:   maxDocuments,
		logger:         logger,
	}
}

// SetObserver attaches the pipeline metrics sink. Safe to leave unset.
func (uc *ChatUseCase) SetObserver(observer ports.ChatObserver) {
	uc.observer = observer
}

// Stream answers the latest user message of req. The returned channel closes
// when generation finishes; a chunk with Err set terminates the stream.
// Cancelling ctx aborts the in-flight provider request.
func (uc *ChatUseCase) Stream(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamChunk, error) {
	if len(req.Messages) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat", fmt.Errorf("messages are required"))
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != domain.RoleUser || last.Content == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat", fmt.Errorf("last message must be a user message with text"))
	}
	if req.CurrentURL == "" {
		return nil, domain.WrapError(domain.ErrNoActiveScope, "chat", fmt.Errorf("no active tab URL"))
	}
	if req.SessionID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat", fmt.Errorf("session_id is required"))
	}

	client, err := uc.resolver.Resolve(req.Model)
	if err != nil {
		return nil, err
	}

	if req.ContextStuff {
		return uc.streamContextStuffed(ctx, client, req)
	}

	scope, err := domain.ScopeFromURL(req.CurrentURL, req.QueryMode)
	if err != nil {
		return nil, err
	}

	maxDocuments := req.MaxDocuments
	if maxDocuments <= 0 {
		maxDocuments = uc.maxDocuments
	}
	passages, err := uc.retriever.Retrieve(ctx, last.Content, scope, req.RetrievalMode, req.Model, maxDocuments)
	if err != nil {
		return nil, err
	}
	uc.logger.Info("retrieved passages",
		"session_id", req.SessionID,
		"count", len(passages),
		"scope", scope.Prefix,
		"retrieval_mode", string(req.RetrievalMode),
	)

	passagesText := domain.JoinPassageContents(passages, "\n")
	systemPrompt := RenderSystemPrompt(uc.systemTemplate, passagesText)

	// Prior groundings are read before this turn's record is appended, so the
	// current turn is grounded only through the system prompt.
	prior, err := uc.groundings.Get(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load turn groundings: %w", err)
	}
	if err := uc.groundings.Append(ctx, req.SessionID, len(req.Messages), passagesText); err != nil {
		return nil, fmt.Errorf("record turn grounding: %w", err)
	}

	if uc.observer != nil {
		injected, missed := groundingCoverage(req.Messages, prior)
		uc.observer.ObserveGroundingInjection(injected, missed)
	}

	messages := AssemblePrompt(req.Messages, systemPrompt, prior, uc.logger)
	return client.Stream(ctx, messages)
}

// streamContextStuffed skips retrieval entirely and grounds the whole
// conversation with the raw page text, cached per URL in the durable store.
func (uc *ChatUseCase) streamContextStuffed(ctx context.Context, client ports.ModelClient, req domain.ChatRequest) (<-chan domain.StreamChunk, error) {
	key := "systemPrompt-" + req.CurrentURL

	systemPrompt, found, err := uc.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load stuffed prompt: %w", err)
	}
	if !found {
		page, err := uc.fetcher.Fetch(ctx, req.CurrentURL)
		if err != nil {
			return nil, fmt.Errorf("fetch page for context stuffing: %w", err)
		}
		systemPrompt = RenderSystemPrompt(uc.systemTemplate, page.Text)
		if err := uc.kv.Put(ctx, key, systemPrompt); err != nil {
			return nil, fmt.Errorf("cache stuffed prompt: %w", err)
		}
	}

	messages := make([]domain.Message, 0, len(req.Messages)+1)
	messages = append(messages, domain.Message{Role: domain.RoleSystem, Content: systemPrompt})
	messages = append(messages, req.Messages...)
	return client.Stream(ctx, messages)
}
