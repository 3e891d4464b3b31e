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

const (
	anthropicMessagesURL = "https://api.anthropic.com/v1/messages"
	anthropicVersion     = "2023-06-01"
	anthropicMaxTokens   = 4096
)

type anthropicClient struct {
	apiKey      string
	modelID     string
	messagesURL string
	httpClient  *http.Client
}

func newAnthropicClient(apiKey, modelID string) *anthropicClient {
	return &anthropicClient{
		apiKey:      apiKey,
		modelID:     modelID,
		messagesURL: anthropicMessagesURL,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
	}
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Stream      bool               `json:"stream,omitempty"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	ToolChoice  *anthropicToolUse  `json:"tool_choice,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicTool struct {
	Name        string          `json:"name"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type anthropicToolUse struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// GenerateStructured forces the schema with a single mandatory tool call and
// returns the tool input as the structured payload.
func (c *anthropicClient) GenerateStructured(
	ctx context.Context,
	messages []domain.Message,
	schema ports.StructuredSchema,
	opts ports.GenerateOptions,
) ([]byte, error) {
	system, turns := splitAnthropicMessages(messages)
	reqBody := anthropicRequest{
		Model:       c.modelID,
		MaxTokens:   anthropicMaxTokens,
		Temperature: opts.Temperature,
		System:      system,
		Messages:    turns,
		Tools: []anthropicTool{{
			Name:        schema.Name,
			InputSchema: json.RawMessage(schema.Schema),
		}},
		ToolChoice: &anthropicToolUse{Type: "tool", Name: schema.Name},
	}

	resp, err := c.post(ctx, reqBody)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded struct {
		Content []struct {
			Type  string          `json:"type"`
			Input json.RawMessage `json:"input"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode anthropic response: %w", err)
	}
	for _, block := range decoded.Content {
		if block.Type == "tool_use" {
			return block.Input, nil
		}
	}
	return nil, fmt.Errorf("anthropic response contains no tool_use block")
}

func (c *anthropicClient) Stream(ctx context.Context, messages []domain.Message) (<-chan domain.StreamChunk, error) {
	system, turns := splitAnthropicMessages(messages)
	reqBody := anthropicRequest{
		Model:       c.modelID,
		MaxTokens:   anthropicMaxTokens,
		Temperature: answerTemperatureFor(c.modelID),
		System:      system,
		Messages:    turns,
		Stream:      true,
	}

	resp, err := c.post(ctx, reqBody)
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
			var event struct {
				Type  string `json:"type"`
				Delta struct {
					Type string `json:"type"`
					Text string `json:"text"`
				} `json:"delta"`
			}
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
				continue
			}
			if event.Type != "content_block_delta" || event.Delta.Type != "text_delta" {
				continue
			}
			select {
			case out <- domain.StreamChunk{Text: event.Delta.Text}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			emitStreamError(ctx, out, fmt.Errorf("read anthropic stream: %w", err))
		}
	}()
	return out, nil
}

func (c *anthropicClient) post(ctx context.Context, reqBody anthropicRequest) (*http.Response, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal anthropic request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messagesURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create anthropic request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic request: %w", err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("anthropic status: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

// splitAnthropicMessages separates the leading system prompt from the
// conversation turns; the Messages API carries it in a dedicated field.
func splitAnthropicMessages(messages []domain.Message) (string, []anthropicMessage) {
	var system string
	turns := make([]anthropicMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == domain.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue
		}
		turns = append(turns, anthropicMessage{Role: msg.Role, Content: msg.Content})
	}
	return system, turns
}
