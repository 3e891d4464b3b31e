package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ikolomin/siterag/internal/core/domain"
	"github.com/ikolomin/siterag/internal/core/ports"
	"github.com/ikolomin/siterag/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	chat    ports.ChatService
	capture ports.CaptureRequester
	jobs    ports.CaptureReader
	index   ports.PassageIndex

	httpMetrics *metrics.HTTPServerMetrics
	logger      *slog.Logger
}

func NewRouter(
	chat ports.ChatService,
	capture ports.CaptureRequester,
	jobs ports.CaptureReader,
	index ports.PassageIndex,
	httpMetrics *metrics.HTTPServerMetrics,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		chat:        chat,
		capture:     capture,
		jobs:        jobs,
		index:       index,
		httpMetrics: httpMetrics,
		logger:      logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/chat", rt.chatStream)
	mux.HandleFunc("/v1/captures", rt.createCapture)
	mux.HandleFunc("/v1/captures/", rt.getCaptureByID)
	mux.HandleFunc("/v1/last-indexed", rt.lastIndexed)
	mux.HandleFunc("/v1/documents", rt.deleteDocuments)
	if rt.httpMetrics != nil {
		mux.Handle("/metrics", rt.httpMetrics.Handler())
	}

	var handler http.Handler = mux
	if rt.httpMetrics != nil {
		handler = rt.httpMetrics.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(rt.logger, handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type chatRequestBody struct {
	SessionID     string           `json:"session_id"`
	Messages      []domain.Message `json:"messages"`
	CurrentURL    string           `json:"current_url"`
	QueryMode     string           `json:"query_mode"`
	RetrievalMode string           `json:"retrieval_mode"`
	Model         string           `json:"model"`
	ContextStuff  bool             `json:"context_stuff"`
	MaxDocuments  int              `json:"max_documents"`
}

func (rt *Router) chatStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var body chatRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	req := domain.ChatRequest{
		SessionID:     body.SessionID,
		Messages:      body.Messages,
		CurrentURL:    body.CurrentURL,
		QueryMode:     queryModeFromString(body.QueryMode),
		RetrievalMode: retrievalModeFromString(body.RetrievalMode),
		Model:         body.Model,
		ContextStuff:  body.ContextStuff,
		MaxDocuments:  body.MaxDocuments,
	}

	chunks, err := rt.chat.Stream(r.Context(), req)
	if err != nil {
		rt.recordChatStream(req, "rejected")
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	if err := streamSSE(w, chunks); err != nil {
		rt.recordChatStream(req, "aborted")
		rt.logger.Warn("chat stream aborted",
			"request_id", requestIDFromContext(r.Context()),
			"session_id", req.SessionID,
			"error", err,
		)
		return
	}
	rt.recordChatStream(req, "completed")
}

func (rt *Router) recordChatStream(req domain.ChatRequest, status string) {
	if rt.httpMetrics == nil {
		return
	}
	mode := string(req.RetrievalMode)
	if req.ContextStuff {
		mode = "context_stuff"
	}
	rt.httpMetrics.RecordChatStream(serviceName, mode, status)
}

type createCaptureBody struct {
	URL                string `json:"url"`
	Mode               string `json:"mode"`
	AllowBackwardLinks bool   `json:"allow_backward_links"`
	ClearExisting      bool   `json:"clear_existing"`
}

func (rt *Router) createCapture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var body createCaptureBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	job, err := rt.capture.Request(r.Context(), domain.CaptureJob{
		URL:                strings.TrimSpace(body.URL),
		Mode:               domain.CaptureMode(body.Mode),
		AllowBackwardLinks: body.AllowBackwardLinks,
		ClearExisting:      body.ClearExisting,
	})
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (rt *Router) getCaptureByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/captures/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "capture id is required"})
		return
	}

	job, err := rt.jobs.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (rt *Router) lastIndexed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	pageURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if pageURL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "url query parameter is required"})
		return
	}

	indexedAt, err := rt.index.LastIndexedAt(r.Context(), pageURL)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"url":        pageURL,
		"indexed_at": indexedAt.UTC().Format(time.RFC3339),
	})
}

type deleteDocumentsBody struct {
	URLs []string `json:"urls"`
}

func (rt *Router) deleteDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var body deleteDocumentsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(body.URLs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "urls are required"})
		return
	}

	if err := rt.index.ClearURLs(r.Context(), body.URLs); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted_urls": len(body.URLs)})
}

func queryModeFromString(mode string) domain.QueryMode {
	if mode == string(domain.QueryModeSite) {
		return domain.QueryModeSite
	}
	return domain.QueryModePage
}

func retrievalModeFromString(mode string) domain.RetrievalMode {
	if mode == string(domain.RetrievalModeMulti) {
		return domain.RetrievalModeMulti
	}
	return domain.RetrievalModeSingle
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
