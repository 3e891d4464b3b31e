package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ikolomin/siterag/internal/core/domain"
	"github.com/ikolomin/siterag/internal/core/ports"
)

// Store indexes passage chunks in a qdrant collection and answers
// scope-filtered similarity searches. Query text is embedded here so callers
// treat the store as an opaque text-in, passages-out search service.
type Store struct {
	baseURL    string
	collection string
	embedder   ports.Embedder
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string, embedder ports.Embedder) *Store {
	return &Store{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		embedder:   embedder,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *Store) Search(ctx context.Context, query string, scope domain.QueryScope, limit int) ([]domain.Passage, error) {
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	reqBody := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"filter": map[string]any{
			"must": []map[string]any{
				{
					"key": "url",
					"match": map[string]any{
						"text": scope.Prefix,
					},
				},
			},
		},
	}

	var searchResp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, fmt.Sprintf("/collections/%s/points/search", s.collection), reqBody, &searchResp, "search"); err != nil {
		return nil, err
	}

	out := make([]domain.Passage, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.Passage{
			ID:      fmt.Sprintf("%v", r.ID),
			Content: getStringPayload(r.Payload, "text"),
			URL:     getStringPayload(r.Payload, "url"),
			Score:   r.Score,
		})
	}
	return out, nil
}

func (s *Store) IndexPassages(ctx context.Context, page domain.CapturedPage, chunks []string, vectors [][]float32) error {
	if len(chunks) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch")
	}

	if err := s.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	indexedAt := time.Now().UTC().Format(time.RFC3339)
	points := make([]point, 0, len(chunks))
	for i := range chunks {
		points = append(points, point{
			ID:     uuid.NewString(),
			Vector: vectors[i],
			Payload: map[string]any{
				"url":        page.URL,
				"title":      page.Title,
				"text":       chunks[i],
				"indexed_at": indexedAt,
			},
		})
	}

	var upsertResp struct{}
	path := fmt.Sprintf("/collections/%s/points?wait=true", s.collection)
	if err := s.putJSON(ctx, path, map[string]any{"points": points}, &upsertResp, "upsert"); err != nil {
		return err
	}
	return nil
}

// ClearURLs deletes every passage whose stored URL matches one of the given
// URLs exactly.
func (s *Store) ClearURLs(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}

	should := make([]map[string]any, 0, len(urls))
	for _, u := range urls {
		should = append(should, map[string]any{
			"key": "url",
			"match": map[string]any{
				"value": u,
			},
		})
	}

	reqBody := map[string]any{
		"filter": map[string]any{
			"should": should,
		},
	}

	var deleteResp struct{}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", s.collection)
	if err := s.postJSON(ctx, path, reqBody, &deleteResp, "delete"); err != nil {
		return err
	}
	return nil
}

// LastIndexedAt returns the newest indexed_at recorded for a URL, or the
// zero time with ErrNotFound when nothing is indexed for it.
func (s *Store) LastIndexedAt(ctx context.Context, pageURL string) (time.Time, error) {
	reqBody := map[string]any{
		"limit":        256,
		"with_payload": []string{"indexed_at"},
		"filter": map[string]any{
			"must": []map[string]any{
				{
					"key": "url",
					"match": map[string]any{
						"value": pageURL,
					},
				},
			},
		},
	}

	var scrollResp struct {
		Result struct {
			Points []struct {
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, fmt.Sprintf("/collections/%s/points/scroll", s.collection), reqBody, &scrollResp, "scroll"); err != nil {
		return time.Time{}, err
	}

	var newest time.Time
	for _, p := range scrollResp.Result.Points {
		raw := getStringPayload(p.Payload, "indexed_at")
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			continue
		}
		if ts.After(newest) {
			newest = ts
		}
	}
	if newest.IsZero() {
		return time.Time{}, domain.WrapError(domain.ErrNotFound, "last indexed", fmt.Errorf("no passages indexed for %s", pageURL))
	}
	return newest, nil
}

func (s *Store) ensureCollection(ctx context.Context, vectorSize int) error {
	s.ensureMu.Lock()
	if s.ensuredCollection && s.ensuredVectorSize == vectorSize {
		s.ensureMu.Unlock()
		return nil
	}
	s.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", s.baseURL, s.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create collection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant ensure collection request: %w", err)
	}
	defer resp.Body.Close()

	// 200/201 for create, 409 if it already exists.
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusConflict {
		return fmt.Errorf("qdrant ensure collection status: %s", resp.Status)
	}

	// Scope filtering needs a text index over the url payload field.
	indexBody := map[string]any{
		"field_name":   "url",
		"field_schema": "text",
	}
	var indexResp struct{}
	if err := s.putJSON(ctx, fmt.Sprintf("/collections/%s/index", s.collection), indexBody, &indexResp, "create index"); err != nil {
		return err
	}

	s.ensureMu.Lock()
	s.ensuredCollection = true
	s.ensuredVectorSize = vectorSize
	s.ensureMu.Unlock()
	return nil
}

func (s *Store) postJSON(ctx context.Context, path string, payload, out any, operation string) error {
	return s.doJSON(ctx, http.MethodPost, path, payload, out, operation)
}

func (s *Store) putJSON(ctx context.Context, path string, payload, out any, operation string) error {
	return s.doJSON(ctx, http.MethodPut, path, payload, out, operation)
}

func (s *Store) doJSON(ctx context.Context, method, path string, payload, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("qdrant %s status: %s: %s", operation, resp.Status, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func getStringPayload(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}
