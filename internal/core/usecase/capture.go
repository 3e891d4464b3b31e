package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ikolomin/siterag/internal/core/domain"
	"github.com/ikolomin/siterag/internal/core/ports"
)

// CaptureUseCase accepts capture requests and hands them to the worker over
// the queue.
type CaptureUseCase struct {
	jobs  ports.CaptureStore
	queue ports.CaptureQueue
}

func NewCaptureUseCase(jobs ports.CaptureStore, queue ports.CaptureQueue) *CaptureUseCase {
	return &CaptureUseCase{
		jobs:  jobs,
		queue: queue,
	}
}

func (uc *CaptureUseCase) Request(ctx context.Context, job domain.CaptureJob) (*domain.CaptureJob, error) {
	if strings.TrimSpace(job.URL) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "capture request", fmt.Errorf("url is required"))
	}
	if job.Mode != domain.CaptureModeScrape && job.Mode != domain.CaptureModeCrawl {
		return nil, domain.WrapError(domain.ErrInvalidInput, "capture request", fmt.Errorf("mode must be %q or %q", domain.CaptureModeScrape, domain.CaptureModeCrawl))
	}

	now := time.Now().UTC()
	job.ID = uuid.NewString()
	job.Status = domain.CaptureStatusPending
	job.CreatedAt = now
	job.UpdatedAt = now

	if err := uc.jobs.Create(ctx, &job); err != nil {
		return nil, fmt.Errorf("create capture job: %w", err)
	}
	if err := uc.queue.PublishCaptureRequested(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("publish capture event: %w", err)
	}
	return &job, nil
}

func (uc *CaptureUseCase) GetByID(ctx context.Context, id string) (*domain.CaptureJob, error) {
	return uc.jobs.GetByID(ctx, id)
}
