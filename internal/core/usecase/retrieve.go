package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ikolomin/siterag/internal/core/domain"
	"github.com/ikolomin/siterag/internal/core/ports"
)

const (
	defaultMaxDocuments = 100
	minPerQueryLimit    = 5
)

type queryExpander interface {
	Expand(ctx context.Context, question, modelID string) ([]string, error)
}

// ContextRetriever fetches the passages that ground one answer, either with a
// single similarity search or by fanning the question out into several
// expanded queries.
type ContextRetriever struct {
	searcher ports.PassageSearcher
	expander queryExpander
	observer ports.ChatObserver
	logger   *slog.Logger
}

func NewContextRetriever(searcher ports.PassageSearcher, expander queryExpander, logger *slog.Logger) *ContextRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextRetriever{
		searcher: searcher,
		expander: expander,
		logger:   logger,
	}
}

// SetObserver attaches the pipeline metrics sink. Safe to leave unset.
func (r *ContextRetriever) SetObserver(observer ports.ChatObserver) {
	r.observer = observer
}

// Retrieve returns ranked, deduplicated passages for the question, restricted
// to scope. maxDocuments <= 0 falls back to the default budget. Search
// failures propagate unchanged; nothing here retries.
func (r *ContextRetriever) Retrieve(
	ctx context.Context,
	question string,
	scope domain.QueryScope,
	mode domain.RetrievalMode,
	modelID string,
	maxDocuments int,
) ([]domain.Passage, error) {
	if scope.Prefix == "" {
		return nil, domain.WrapError(domain.ErrNoActiveScope, "retrieve", fmt.Errorf("empty scope"))
	}
	if maxDocuments <= 0 {
		maxDocuments = defaultMaxDocuments
	}

	start := time.Now()
	var (
		passages []domain.Passage
		err      error
	)
	if mode != domain.RetrievalModeMulti {
		passages, err = r.searcher.Search(ctx, question, scope, maxDocuments)
	} else {
		passages, err = r.retrieveMulti(ctx, question, scope, modelID, maxDocuments)
	}
	if err != nil {
		return nil, err
	}
	if r.observer != nil {
		r.observer.ObserveRetrieval(string(mode), len(passages), time.Since(start))
	}
	return passages, nil
}

func (r *ContextRetriever) retrieveMulti(
	ctx context.Context,
	question string,
	scope domain.QueryScope,
	modelID string,
	maxDocuments int,
) ([]domain.Passage, error) {
	generated, err := r.expander.Expand(ctx, question, modelID)
	if r.observer != nil {
		r.observer.ObserveExpansion(len(generated), err)
	}
	if err != nil {
		return nil, err
	}

	// The original question always searches first, verbatim.
	queries := append([]string{question}, generated...)
	perQueryLimit := perQueryLimit(maxDocuments, len(queries))
	r.logger.Debug("multi_query_retrieval",
		"queries", len(queries),
		"per_query_limit", perQueryLimit,
	)

	collected := make([]domain.Passage, 0, perQueryLimit*len(queries))
	for _, query := range queries {
		passages, err := r.searcher.Search(ctx, query, scope, perQueryLimit)
		if err != nil {
			return nil, err
		}
		collected = append(collected, passages...)
	}

	return domain.DedupePassages(collected), nil
}

// perQueryLimit splits the overall document budget evenly across queries,
// never dropping below minPerQueryLimit, rounding up.
func perQueryLimit(maxDocuments, querySetSize int) int {
	if querySetSize <= 0 {
		querySetSize = 1
	}
	share := float64(maxDocuments) / float64(querySetSize)
	if share < minPerQueryLimit {
		share = minPerQueryLimit
	}
	return int(math.Ceil(share))
}
