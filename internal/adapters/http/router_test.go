package httpadapter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ikolomin/siterag/internal/core/domain"
)

type fakeChatService struct {
	req    domain.ChatRequest
	chunks []domain.StreamChunk
	err    error
}

func (f *fakeChatService) Stream(_ context.Context, req domain.ChatRequest) (<-chan domain.StreamChunk, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	out := make(chan domain.StreamChunk, len(f.chunks))
	for _, chunk := range f.chunks {
		out <- chunk
	}
	close(out)
	return out, nil
}

type fakeCaptureService struct {
	created *domain.CaptureJob
	err     error
}

func (f *fakeCaptureService) Request(_ context.Context, job domain.CaptureJob) (*domain.CaptureJob, error) {
	if f.err != nil {
		return nil, f.err
	}
	job.ID = "cap-1"
	job.Status = domain.CaptureStatusPending
	f.created = &job
	return &job, nil
}

func (f *fakeCaptureService) GetByID(_ context.Context, id string) (*domain.CaptureJob, error) {
	if f.created == nil || f.created.ID != id {
		return nil, domain.WrapError(domain.ErrNotFound, "get capture job", errors.New("missing"))
	}
	return f.created, nil
}

type fakePassageIndex struct {
	cleared     []string
	lastIndexed time.Time
	lastErr     error
}

func (f *fakePassageIndex) IndexPassages(context.Context, domain.CapturedPage, []string, [][]float32) error {
	return nil
}

func (f *fakePassageIndex) ClearURLs(_ context.Context, urls []string) error {
	f.cleared = urls
	return nil
}

func (f *fakePassageIndex) LastIndexedAt(context.Context, string) (time.Time, error) {
	if f.lastErr != nil {
		return time.Time{}, f.lastErr
	}
	return f.lastIndexed, nil
}

func newTestRouter(chat *fakeChatService, capture *fakeCaptureService, index *fakePassageIndex) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(chat, capture, capture, index, nil, logger).Handler()
}

func TestChatStreamWritesSSE(t *testing.T) {
	chat := &fakeChatService{chunks: []domain.StreamChunk{
		{Text: "The answer "},
		{Text: "is 42."},
	}}
	handler := newTestRouter(chat, &fakeCaptureService{}, &fakePassageIndex{})

	body := `{"session_id":"s-1","model":"gpt-4o","current_url":"https://example.com/docs",` +
		`"retrieval_mode":"multi","messages":[{"role":"user","content":"what is the answer?"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	got := rec.Body.String()
	if !strings.Contains(got, `data: {"delta":"The answer "}`) {
		t.Fatalf("missing first delta in %q", got)
	}
	if !strings.HasSuffix(got, "data: [DONE]\n\n") {
		t.Fatalf("missing DONE terminator in %q", got)
	}
	if chat.req.RetrievalMode != domain.RetrievalModeMulti {
		t.Fatalf("retrieval mode = %q", chat.req.RetrievalMode)
	}
}

func TestChatStreamRejectsUnknownModel(t *testing.T) {
	chat := &fakeChatService{err: domain.WrapError(domain.ErrUnknownModel, "resolve model", errors.New("nope"))}
	handler := newTestRouter(chat, &fakeCaptureService{}, &fakePassageIndex{})

	body := `{"session_id":"s-1","model":"bogus","current_url":"https://example.com",` +
		`"messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestChatStreamSurfacesMidStreamError(t *testing.T) {
	chat := &fakeChatService{chunks: []domain.StreamChunk{
		{Text: "partial"},
		{Err: errors.New("provider reset")},
	}}
	handler := newTestRouter(chat, &fakeCaptureService{}, &fakePassageIndex{})

	body := `{"session_id":"s-1","model":"gpt-4o","current_url":"https://example.com",` +
		`"messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	got := rec.Body.String()
	if !strings.Contains(got, `"delta":"partial"`) {
		t.Fatalf("missing partial delta in %q", got)
	}
	if !strings.Contains(got, `"error":"provider reset"`) {
		t.Fatalf("missing error event in %q", got)
	}
	if strings.Contains(got, "[DONE]") {
		t.Fatalf("errored stream must not terminate with DONE: %q", got)
	}
}

func TestCreateAndGetCapture(t *testing.T) {
	capture := &fakeCaptureService{}
	handler := newTestRouter(&fakeChatService{}, capture, &fakePassageIndex{})

	body := `{"url":"https://example.com/docs","mode":"crawl","clear_existing":true}`
	req := httptest.NewRequest(http.MethodPost, "/v1/captures", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if capture.created == nil || capture.created.Mode != domain.CaptureModeCrawl {
		t.Fatalf("unexpected created job: %+v", capture.created)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/captures/cap-1", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/captures/unknown", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing job status = %d, want 404", rec.Code)
	}
}

func TestLastIndexedRequiresURL(t *testing.T) {
	handler := newTestRouter(&fakeChatService{}, &fakeCaptureService{}, &fakePassageIndex{})

	req := httptest.NewRequest(http.MethodGet, "/v1/last-indexed", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestLastIndexedReturnsTimestamp(t *testing.T) {
	indexedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	handler := newTestRouter(&fakeChatService{}, &fakeCaptureService{}, &fakePassageIndex{lastIndexed: indexedAt})

	req := httptest.NewRequest(http.MethodGet, "/v1/last-indexed?url=https%3A%2F%2Fexample.com%2Fdocs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "2026-03-01T12:00:00Z") {
		t.Fatalf("missing timestamp in %q", rec.Body.String())
	}
}

func TestDeleteDocumentsClearsURLs(t *testing.T) {
	index := &fakePassageIndex{}
	handler := newTestRouter(&fakeChatService{}, &fakeCaptureService{}, index)

	body := `{"urls":["https://example.com/a","https://example.com/b"]}`
	req := httptest.NewRequest(http.MethodDelete, "/v1/documents", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(index.cleared) != 2 {
		t.Fatalf("cleared %d urls, want 2", len(index.cleared))
	}
}
