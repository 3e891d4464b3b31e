package ports

import (
	"context"
	"time"

	"github.com/ikolomin/siterag/internal/core/domain"
)

// GenerateOptions carries per-call sampling knobs. A nil Temperature means
// "omit the parameter entirely", which reasoning-tuned models require.
type GenerateOptions struct {
	Temperature *float64
}

// StructuredSchema constrains a one-shot generation call to a JSON shape.
type StructuredSchema struct {
	Name   string
	Schema []byte
}

// ModelClient is a resolved text-generation backend.
type ModelClient interface {
	GenerateStructured(ctx context.Context, messages []domain.Message, schema StructuredSchema, opts GenerateOptions) ([]byte, error)
	Stream(ctx context.Context, messages []domain.Message) (<-chan domain.StreamChunk, error)
}

// ModelResolver maps a model identifier to a provider-backed client.
type ModelResolver interface {
	Resolve(modelID string) (ModelClient, error)
}

// ChatObserver receives measurements from the answer pipeline. Implementations
// must be safe for concurrent use; a nil observer disables recording.
type ChatObserver interface {
	ObserveRetrieval(mode string, passageCount int, duration time.Duration)
	ObserveExpansion(queryCount int, err error)
	ObserveGroundingInjection(injected, missed int)
}

// PassageSearcher performs similarity search over indexed passages,
// restricted to a URL-derived scope.
type PassageSearcher interface {
	Search(ctx context.Context, query string, scope domain.QueryScope, limit int) ([]domain.Passage, error)
}

// PassageIndex writes and deletes indexed passages.
type PassageIndex interface {
	IndexPassages(ctx context.Context, page domain.CapturedPage, chunks []string, vectors [][]float32) error
	ClearURLs(ctx context.Context, urls []string) error
	LastIndexedAt(ctx context.Context, url string) (time.Time, error)
}

// Embedder builds vectors for passage chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits extracted page text into indexable passages.
type Chunker interface {
	Split(text string) []string
}

// GroundingStore durably records which passages grounded each conversation
// turn. Append is atomic per call; ordering is the caller's responsibility.
type GroundingStore interface {
	Get(ctx context.Context, sessionID string) ([]domain.TurnGrounding, error)
	Append(ctx context.Context, sessionID string, turnIndex int, passagesText string) error
}

// KVStore is durable key/value storage, used for the per-URL cached
// context-stuffed system prompt.
type KVStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
}

// PageFetcher retrieves one page and extracts its readable text.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (*domain.CapturedPage, error)
}

// SiteCrawler walks same-origin links starting from a page.
type SiteCrawler interface {
	Crawl(ctx context.Context, startURL string, allowBackwardLinks bool) ([]domain.CapturedPage, error)
}

// CaptureStore persists capture job state.
type CaptureStore interface {
	Create(ctx context.Context, job *domain.CaptureJob) error
	GetByID(ctx context.Context, id string) (*domain.CaptureJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.CaptureStatus, errMessage string) error
	UpdateCounts(ctx context.Context, id string, pages, passages int) error
}

// CaptureQueue publishes/consumes capture job events.
type CaptureQueue interface {
	PublishCaptureRequested(ctx context.Context, jobID string) error
	SubscribeCaptureRequested(ctx context.Context, handler func(context.Context, string) error) error
}
