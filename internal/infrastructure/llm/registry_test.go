package llm

import (
	"testing"

	"github.com/ikolomin/siterag/internal/core/domain"
)

func TestResolveUnknownModel(t *testing.T) {
	r := NewResolver(Credentials{OpenAIAPIKey: "sk-test"})
	_, err := r.Resolve("made-up-model")
	if !domain.IsKind(err, domain.ErrUnknownModel) {
		t.Fatalf("expected unknown-model error, got %v", err)
	}
}

func TestResolveMissingKey(t *testing.T) {
	r := NewResolver(Credentials{})
	for _, modelID := range []string{"gpt-4o", "claude-3-5-sonnet-latest", "gemini-2.0-flash-exp", "accounts/fireworks/models/deepseek-v3"} {
		_, err := r.Resolve(modelID)
		if !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Errorf("%s: expected invalid-input error, got %v", modelID, err)
		}
	}
}

func TestResolveOllamaNeedsNoKey(t *testing.T) {
	r := NewResolver(Credentials{OllamaURL: "http://localhost:11434"})
	client, err := r.Resolve("ollama-llama3.3")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if client == nil {
		t.Fatalf("expected client")
	}
}

func TestResolveKnownFamilies(t *testing.T) {
	r := NewResolver(Credentials{
		OpenAIAPIKey:    "sk-a",
		AnthropicAPIKey: "sk-b",
		GoogleAPIKey:    "sk-c",
		FireworksAPIKey: "sk-d",
		OllamaURL:       "http://localhost:11434",
	})
	for modelID := range modelCatalog {
		if _, err := r.Resolve(modelID); err != nil {
			t.Errorf("%s: unexpected error %v", modelID, err)
		}
	}
}

func TestReasoningModelCapabilities(t *testing.T) {
	for _, modelID := range []string{"o1", "o1-mini", "o3-mini"} {
		if supportsTemperature(modelID) {
			t.Errorf("%s must omit temperature", modelID)
		}
		if supportsSystemRole(modelID) {
			t.Errorf("%s must downgrade system messages", modelID)
		}
	}
	for _, modelID := range []string{"gpt-4o", "gpt-4o-mini", "ollama-llama3.3"} {
		if !supportsTemperature(modelID) {
			t.Errorf("%s should accept temperature", modelID)
		}
		if !supportsSystemRole(modelID) {
			t.Errorf("%s should accept system messages", modelID)
		}
	}
}

func TestOllamaModelName(t *testing.T) {
	if got := ollamaModelName("ollama-llama3.3"); got != "llama3.3" {
		t.Fatalf("ollamaModelName = %q", got)
	}
}
