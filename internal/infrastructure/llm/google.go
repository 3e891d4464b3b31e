package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ikolomin/siterag/internal/core/domain"
	"github.com/ikolomin/siterag/internal/core/ports"
)

const googleAPIBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

type googleClient struct {
	apiKey     string
	modelID    string
	baseURL    string
	httpClient *http.Client
}

func newGoogleClient(apiKey, modelID string) *googleClient {
	return &googleClient{
		apiKey:     apiKey,
		modelID:    modelID,
		baseURL:    googleAPIBaseURL,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature      *float64        `json:"temperature,omitempty"`
	ResponseMIMEType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content *geminiContent `json:"content"`
	} `json:"candidates"`
}

func (c *googleClient) GenerateStructured(
	ctx context.Context,
	messages []domain.Message,
	schema ports.StructuredSchema,
	opts ports.GenerateOptions,
) ([]byte, error) {
	reqBody := buildGeminiRequest(messages)
	reqBody.GenerationConfig = &geminiGenerationConfig{
		Temperature:      opts.Temperature,
		ResponseMIMEType: "application/json",
		ResponseSchema:   stripSchemaKeywords(schema.Schema),
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", c.baseURL, c.modelID, c.apiKey)
	resp, err := c.post(ctx, url, reqBody)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}
	text := geminiText(decoded)
	if text == "" {
		return nil, fmt.Errorf("gemini response contains no text candidate")
	}
	return []byte(text), nil
}

func (c *googleClient) Stream(ctx context.Context, messages []domain.Message) (<-chan domain.StreamChunk, error) {
	reqBody := buildGeminiRequest(messages)
	reqBody.GenerationConfig = &geminiGenerationConfig{
		Temperature: answerTemperatureFor(c.modelID),
	}

	url := fmt.Sprintf("%s/%s:streamGenerateContent?alt=sse&key=%s", c.baseURL, c.modelID, c.apiKey)
	resp, err := c.post(ctx, url, reqBody)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.StreamChunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var decoded geminiResponse
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &decoded); err != nil {
				continue
			}
			text := geminiText(decoded)
			if text == "" {
				continue
			}
			select {
			case out <- domain.StreamChunk{Text: text}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			emitStreamError(ctx, out, fmt.Errorf("read gemini stream: %w", err))
		}
	}()
	return out, nil
}

func (c *googleClient) post(ctx context.Context, url string, reqBody geminiRequest) (*http.Response, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal gemini request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("gemini status: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

func buildGeminiRequest(messages []domain.Message) geminiRequest {
	var systemParts []geminiPart
	contents := make([]geminiContent, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case domain.RoleSystem:
			systemParts = append(systemParts, geminiPart{Text: msg.Content})
		case domain.RoleAssistant:
			contents = append(contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: msg.Content}}})
		default:
			contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: msg.Content}}})
		}
	}

	req := geminiRequest{Contents: contents}
	if len(systemParts) > 0 {
		req.SystemInstruction = &geminiContent{Parts: systemParts}
	}
	return req
}

func geminiText(resp geminiResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String()
}

// stripSchemaKeywords removes JSON-schema keywords the Gemini API rejects
// (additionalProperties and friends) while keeping the structural core.
func stripSchemaKeywords(schema []byte) json.RawMessage {
	var node map[string]any
	if err := json.Unmarshal(schema, &node); err != nil {
		return json.RawMessage(schema)
	}
	stripKeywords(node)
	cleaned, err := json.Marshal(node)
	if err != nil {
		return json.RawMessage(schema)
	}
	return cleaned
}

func stripKeywords(node map[string]any) {
	delete(node, "additionalProperties")
	delete(node, "$schema")
	for _, v := range node {
		switch child := v.(type) {
		case map[string]any:
			stripKeywords(child)
		case []any:
			for _, item := range child {
				if m, ok := item.(map[string]any); ok {
					stripKeywords(m)
				}
			}
		}
	}
}
