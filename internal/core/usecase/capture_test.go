package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/ikolomin/siterag/internal/core/domain"
)

type fakeCaptureStore struct {
	jobs     map[string]*domain.CaptureJob
	statuses []domain.CaptureStatus
	counts   [][2]int
}

func newFakeCaptureStore() *fakeCaptureStore {
	return &fakeCaptureStore{jobs: map[string]*domain.CaptureJob{}}
}

func (f *fakeCaptureStore) Create(_ context.Context, job *domain.CaptureJob) error {
	clone := *job
	f.jobs[job.ID] = &clone
	return nil
}

func (f *fakeCaptureStore) GetByID(_ context.Context, id string) (*domain.CaptureJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get capture job", errors.New("missing"))
	}
	clone := *job
	return &clone, nil
}

func (f *fakeCaptureStore) UpdateStatus(_ context.Context, id string, status domain.CaptureStatus, errMessage string) error {
	f.statuses = append(f.statuses, status)
	if job, ok := f.jobs[id]; ok {
		job.Status = status
		job.Error = errMessage
	}
	return nil
}

func (f *fakeCaptureStore) UpdateCounts(_ context.Context, id string, pages, passages int) error {
	f.counts = append(f.counts, [2]int{pages, passages})
	if job, ok := f.jobs[id]; ok {
		job.PagesIndexed = pages
		job.PassagesIndexed = passages
	}
	return nil
}

type fakeCaptureQueue struct {
	published []string
	err       error
}

func (f *fakeCaptureQueue) PublishCaptureRequested(_ context.Context, jobID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, jobID)
	return nil
}

func (f *fakeCaptureQueue) SubscribeCaptureRequested(context.Context, func(context.Context, string) error) error {
	return nil
}

func TestCaptureRequestValidation(t *testing.T) {
	uc := NewCaptureUseCase(newFakeCaptureStore(), &fakeCaptureQueue{})

	_, err := uc.Request(context.Background(), domain.CaptureJob{Mode: domain.CaptureModeScrape})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("empty url: expected invalid-input, got %v", err)
	}

	_, err = uc.Request(context.Background(), domain.CaptureJob{URL: "https://example.com", Mode: "mirror"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("bad mode: expected invalid-input, got %v", err)
	}
}

func TestCaptureRequestCreatesPendingJobAndPublishes(t *testing.T) {
	store := newFakeCaptureStore()
	queue := &fakeCaptureQueue{}
	uc := NewCaptureUseCase(store, queue)

	job, err := uc.Request(context.Background(), domain.CaptureJob{
		URL:  "https://example.com/docs",
		Mode: domain.CaptureModeCrawl,
	})
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if job.ID == "" || job.Status != domain.CaptureStatusPending {
		t.Fatalf("unexpected job: %+v", job)
	}
	if len(queue.published) != 1 || queue.published[0] != job.ID {
		t.Fatalf("expected publish of %q, got %v", job.ID, queue.published)
	}
	if _, ok := store.jobs[job.ID]; !ok {
		t.Fatalf("job not persisted")
	}
}

func TestCaptureRequestPublishFailurePropagates(t *testing.T) {
	uc := NewCaptureUseCase(newFakeCaptureStore(), &fakeCaptureQueue{err: errors.New("nats down")})

	_, err := uc.Request(context.Background(), domain.CaptureJob{
		URL:  "https://example.com",
		Mode: domain.CaptureModeScrape,
	})
	if err == nil {
		t.Fatalf("expected error")
	}
}
