package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ikolomin/siterag/internal/core/domain"
)

type fakeCrawler struct {
	pages []domain.CapturedPage
	err   error
	calls int
}

func (f *fakeCrawler) Crawl(_ context.Context, _ string, _ bool) ([]domain.CapturedPage, error) {
	f.calls++
	return f.pages, f.err
}

type fakeChunker struct{}

func (fakeChunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return strings.Fields(text)
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	return []float32{0}, f.err
}

type fakeIndex struct {
	indexed map[string]int
	cleared []string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{indexed: map[string]int{}}
}

func (f *fakeIndex) IndexPassages(_ context.Context, page domain.CapturedPage, chunks []string, vectors [][]float32) error {
	f.indexed[page.URL] = len(chunks)
	return nil
}

func (f *fakeIndex) ClearURLs(_ context.Context, urls []string) error {
	f.cleared = append(f.cleared, urls...)
	return nil
}

func (f *fakeIndex) LastIndexedAt(context.Context, string) (time.Time, error) {
	return time.Time{}, nil
}

func newProcessFixture(store *fakeCaptureStore, fetcher *fakePageFetcher, crawler *fakeCrawler, index *fakeIndex) *ProcessCaptureUseCase {
	return NewProcessCaptureUseCase(store, fetcher, crawler, fakeChunker{}, &fakeEmbedder{}, index, discardLogger())
}

func TestProcessScrapeJobIndexesSinglePage(t *testing.T) {
	store := newFakeCaptureStore()
	store.jobs["job-1"] = &domain.CaptureJob{
		ID:   "job-1",
		URL:  "https://example.com/docs",
		Mode: domain.CaptureModeScrape,
	}
	fetcher := &fakePageFetcher{page: &domain.CapturedPage{
		URL:  "https://example.com/docs",
		Text: "three word page",
	}}
	crawler := &fakeCrawler{}
	index := newFakeIndex()

	uc := newProcessFixture(store, fetcher, crawler, index)
	if err := uc.ProcessByID(context.Background(), "job-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}

	if crawler.calls != 0 {
		t.Fatalf("scrape job must not crawl")
	}
	if index.indexed["https://example.com/docs"] != 3 {
		t.Fatalf("indexed chunks = %d, want 3", index.indexed["https://example.com/docs"])
	}
	if got := store.jobs["job-1"].Status; got != domain.CaptureStatusReady {
		t.Fatalf("status = %q, want ready", got)
	}
	if store.counts[0] != [2]int{1, 3} {
		t.Fatalf("counts = %v, want [1 3]", store.counts[0])
	}
}

func TestProcessCrawlJobClearsExistingFirst(t *testing.T) {
	store := newFakeCaptureStore()
	store.jobs["job-2"] = &domain.CaptureJob{
		ID:            "job-2",
		URL:           "https://example.com/docs",
		Mode:          domain.CaptureModeCrawl,
		ClearExisting: true,
	}
	crawler := &fakeCrawler{pages: []domain.CapturedPage{
		{URL: "https://example.com/docs", Text: "one two"},
		{URL: "https://example.com/docs/setup", Text: "three four five"},
	}}
	index := newFakeIndex()

	uc := newProcessFixture(store, &fakePageFetcher{}, crawler, index)
	if err := uc.ProcessByID(context.Background(), "job-2"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}

	if len(index.cleared) != 2 {
		t.Fatalf("cleared %d urls, want 2", len(index.cleared))
	}
	if store.counts[0] != [2]int{2, 5} {
		t.Fatalf("counts = %v, want [2 5]", store.counts[0])
	}
}

func TestProcessFailureMarksJobFailed(t *testing.T) {
	store := newFakeCaptureStore()
	store.jobs["job-3"] = &domain.CaptureJob{
		ID:   "job-3",
		URL:  "https://example.com/docs",
		Mode: domain.CaptureModeScrape,
	}
	fetcher := &fakePageFetcher{err: errors.New("connection refused")}

	uc := newProcessFixture(store, fetcher, &fakeCrawler{}, newFakeIndex())
	if err := uc.ProcessByID(context.Background(), "job-3"); err == nil {
		t.Fatalf("expected error")
	}

	job := store.jobs["job-3"]
	if job.Status != domain.CaptureStatusFailed {
		t.Fatalf("status = %q, want failed", job.Status)
	}
	if !strings.Contains(job.Error, "connection refused") {
		t.Fatalf("error message not recorded: %q", job.Error)
	}
}

func TestProcessMissingJobFails(t *testing.T) {
	store := newFakeCaptureStore()
	uc := newProcessFixture(store, &fakePageFetcher{}, &fakeCrawler{}, newFakeIndex())

	if err := uc.ProcessByID(context.Background(), "nope"); err == nil {
		t.Fatalf("expected error")
	}
	last := store.statuses[len(store.statuses)-1]
	if last != domain.CaptureStatusFailed {
		t.Fatalf("last status = %q, want failed", last)
	}
}
