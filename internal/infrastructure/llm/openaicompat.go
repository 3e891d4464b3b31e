package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ikolomin/siterag/internal/core/domain"
	"github.com/ikolomin/siterag/internal/core/ports"
)

const fireworksBaseURL = "https://api.fireworks.ai/inference/v1"

func ollamaOpenAIBaseURL(ollamaURL string) string {
	if ollamaURL == "" {
		ollamaURL = "http://localhost:11434"
	}
	return strings.TrimRight(ollamaURL, "/") + "/v1"
}

// openAICompatClient serves every provider family that speaks the OpenAI
// chat-completions protocol: OpenAI itself, Fireworks and a local Ollama.
type openAICompatClient struct {
	client  *openai.Client
	modelID string
}

func newOpenAICompatClient(apiKey, baseURL, modelID string) *openAICompatClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &openAICompatClient{
		client:  openai.NewClientWithConfig(cfg),
		modelID: modelID,
	}
}

func (c *openAICompatClient) GenerateStructured(
	ctx context.Context,
	messages []domain.Message,
	schema ports.StructuredSchema,
	opts ports.GenerateOptions,
) ([]byte, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.modelID,
		Messages: toOpenAIMessages(messages, c.modelID),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schema.Name,
				Schema: json.RawMessage(schema.Schema),
				Strict: true,
			},
		},
	}
	applyTemperature(&req, c.modelID, opts)

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: empty choices")
	}
	return []byte(resp.Choices[0].Message.Content), nil
}

func (c *openAICompatClient) Stream(ctx context.Context, messages []domain.Message) (<-chan domain.StreamChunk, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.modelID,
		Messages: toOpenAIMessages(messages, c.modelID),
		Stream:   true,
	}
	if t := answerTemperatureFor(c.modelID); t != nil {
		req.Temperature = encodeTemperature(*t)
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("open completion stream: %w", err)
	}

	out := make(chan domain.StreamChunk)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				emitStreamError(ctx, out, err)
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case out <- domain.StreamChunk{Text: delta}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// emitStreamError delivers a terminal error unless the consumer is already
// gone.
func emitStreamError(ctx context.Context, out chan<- domain.StreamChunk, err error) {
	select {
	case out <- domain.StreamChunk{Err: err}:
	case <-ctx.Done():
	}
}

func toOpenAIMessages(messages []domain.Message, modelID string) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := msg.Role
		// Reasoning-tuned variants reject system messages; deliver the
		// instructions as an initial user message instead.
		if role == domain.RoleSystem && !supportsSystemRole(modelID) {
			role = domain.RoleUser
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	return out
}

func applyTemperature(req *openai.ChatCompletionRequest, modelID string, opts ports.GenerateOptions) {
	if opts.Temperature == nil || !supportsTemperature(modelID) {
		return
	}
	req.Temperature = encodeTemperature(*opts.Temperature)
}

// encodeTemperature maps a requested temperature onto the request field. The
// encoder drops a zero value, so the smallest non-zero float stands in for an
// explicit zero, as the client library documents.
func encodeTemperature(t float64) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}
