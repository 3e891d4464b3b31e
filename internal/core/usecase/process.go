package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ikolomin/siterag/internal/core/domain"
	"github.com/ikolomin/siterag/internal/core/ports"
)

// ProcessCaptureUseCase runs the ingestion pipeline for one capture job:
// fetch page(s), chunk the readable text, embed, index.
type ProcessCaptureUseCase struct {
	jobs     ports.CaptureStore
	fetcher  ports.PageFetcher
	crawler  ports.SiteCrawler
	chunker  ports.Chunker
	embedder ports.Embedder
	index    ports.PassageIndex
	logger   *slog.Logger
}

func NewProcessCaptureUseCase(
	jobs ports.CaptureStore,
	fetcher ports.PageFetcher,
	crawler ports.SiteCrawler,
	chunker ports.Chunker,
	embedder ports.Embedder,
	index ports.PassageIndex,
	logger *slog.Logger,
) *ProcessCaptureUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessCaptureUseCase{
		jobs:     jobs,
		fetcher:  fetcher,
		crawler:  crawler,
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		logger:   logger,
	}
}

func (uc *ProcessCaptureUseCase) ProcessByID(ctx context.Context, jobID string) error {
	if err := uc.jobs.UpdateStatus(ctx, jobID, domain.CaptureStatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	pages, passages, err := uc.processPipeline(ctx, jobID)
	if err != nil {
		if failErr := uc.jobs.UpdateStatus(ctx, jobID, domain.CaptureStatusFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.jobs.UpdateCounts(ctx, jobID, pages, passages); err != nil {
		return fmt.Errorf("persist capture counts: %w", err)
	}
	if err := uc.jobs.UpdateStatus(ctx, jobID, domain.CaptureStatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessCaptureUseCase) processPipeline(ctx context.Context, jobID string) (int, int, error) {
	job, err := uc.jobs.GetByID(ctx, jobID)
	if err != nil {
		return 0, 0, fmt.Errorf("load capture job: %w", err)
	}

	pages, err := uc.collectPages(ctx, job)
	if err != nil {
		return 0, 0, err
	}
	if len(pages) == 0 {
		return 0, 0, fmt.Errorf("no pages captured for %s", job.URL)
	}

	if job.ClearExisting {
		urls := make([]string, 0, len(pages))
		for _, page := range pages {
			urls = append(urls, page.URL)
		}
		if err := uc.index.ClearURLs(ctx, urls); err != nil {
			return 0, 0, fmt.Errorf("clear existing passages: %w", err)
		}
	}

	totalPassages := 0
	for _, page := range pages {
		chunks := uc.chunker.Split(page.Text)
		if len(chunks) == 0 {
			uc.logger.Warn("page produced no chunks", "url", page.URL)
			continue
		}
		vectors, err := uc.embedder.Embed(ctx, chunks)
		if err != nil {
			return 0, 0, fmt.Errorf("embed chunks: %w", err)
		}
		if len(vectors) != len(chunks) {
			return 0, 0, fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(vectors))
		}
		if err := uc.index.IndexPassages(ctx, page, chunks, vectors); err != nil {
			return 0, 0, fmt.Errorf("index passages: %w", err)
		}
		totalPassages += len(chunks)
	}

	uc.logger.Info("capture processed",
		"job_id", job.ID,
		"url", job.URL,
		"mode", string(job.Mode),
		"pages", len(pages),
		"passages", totalPassages,
	)
	return len(pages), totalPassages, nil
}

func (uc *ProcessCaptureUseCase) collectPages(ctx context.Context, job *domain.CaptureJob) ([]domain.CapturedPage, error) {
	if job.Mode == domain.CaptureModeCrawl {
		pages, err := uc.crawler.Crawl(ctx, job.URL, job.AllowBackwardLinks)
		if err != nil {
			return nil, fmt.Errorf("crawl site: %w", err)
		}
		return pages, nil
	}

	page, err := uc.fetcher.Fetch(ctx, job.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	return []domain.CapturedPage{*page}, nil
}
