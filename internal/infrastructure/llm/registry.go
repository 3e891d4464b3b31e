package llm

import (
	"fmt"
	"strings"

	"github.com/ikolomin/siterag/internal/core/domain"
	"github.com/ikolomin/siterag/internal/core/ports"
)

type ProviderFamily string

const (
	FamilyOpenAI    ProviderFamily = "openai"
	FamilyAnthropic ProviderFamily = "anthropic"
	FamilyGoogle    ProviderFamily = "google-genai"
	FamilyFireworks ProviderFamily = "fireworks"
	FamilyOllama    ProviderFamily = "ollama"
)

// modelCatalog is the static mapping from model identifier to provider
// family. Resolution fails for anything outside it.
var modelCatalog = map[string]ProviderFamily{
	// OpenAI models
	"gpt-4o":      FamilyOpenAI,
	"gpt-4o-mini": FamilyOpenAI,
	"o1":          FamilyOpenAI,
	"o1-mini":     FamilyOpenAI,
	"o3-mini":     FamilyOpenAI,
	// Anthropic models
	"claude-3-5-sonnet-latest":  FamilyAnthropic,
	"claude-3-5-haiku-20241022": FamilyAnthropic,
	// Gemini models
	"gemini-2.0-flash-exp":                FamilyGoogle,
	"gemini-2.0-flash-thinking-exp-01-21": FamilyGoogle,
	// Fireworks models
	"accounts/fireworks/models/llama-v3p3-70b-instruct": FamilyFireworks,
	"accounts/fireworks/models/deepseek-v3":             FamilyFireworks,
	"accounts/fireworks/models/deepseek-r1":             FamilyFireworks,
	// Ollama models
	"ollama-llama3.3": FamilyOllama,
}

// Credentials carries one API key per remote provider family. Ollama is
// local and needs none.
type Credentials struct {
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GoogleAPIKey    string
	FireworksAPIKey string
	OllamaURL       string
}

// Resolver maps model identifiers to callable provider clients. The catalog
// is validated once at construction, not per call.
type Resolver struct {
	creds Credentials
}

func NewResolver(creds Credentials) *Resolver {
	return &Resolver{creds: creds}
}

func (r *Resolver) Resolve(modelID string) (ports.ModelClient, error) {
	family, ok := modelCatalog[modelID]
	if !ok {
		return nil, domain.WrapError(domain.ErrUnknownModel, "resolve model", fmt.Errorf("%q is not in the model catalog", modelID))
	}

	switch family {
	case FamilyOpenAI:
		if r.creds.OpenAIAPIKey == "" {
			return nil, missingKeyError(family)
		}
		return newOpenAICompatClient(r.creds.OpenAIAPIKey, "", modelID), nil
	case FamilyFireworks:
		if r.creds.FireworksAPIKey == "" {
			return nil, missingKeyError(family)
		}
		return newOpenAICompatClient(r.creds.FireworksAPIKey, fireworksBaseURL, modelID), nil
	case FamilyOllama:
		// Local provider, no credential required.
		return newOpenAICompatClient("ollama", ollamaOpenAIBaseURL(r.creds.OllamaURL), ollamaModelName(modelID)), nil
	case FamilyAnthropic:
		if r.creds.AnthropicAPIKey == "" {
			return nil, missingKeyError(family)
		}
		return newAnthropicClient(r.creds.AnthropicAPIKey, modelID), nil
	case FamilyGoogle:
		if r.creds.GoogleAPIKey == "" {
			return nil, missingKeyError(family)
		}
		return newGoogleClient(r.creds.GoogleAPIKey, modelID), nil
	default:
		return nil, domain.WrapError(domain.ErrUnknownModel, "resolve model", fmt.Errorf("unmapped provider family %q", family))
	}
}

func missingKeyError(family ProviderFamily) error {
	return domain.WrapError(domain.ErrInvalidInput, "resolve model", fmt.Errorf("no API key configured for provider %s", family))
}

// supportsTemperature reports whether the model accepts a temperature
// parameter at all. Reasoning-tuned variants reject the field, so it must be
// omitted rather than defaulted.
func supportsTemperature(modelID string) bool {
	return !strings.HasPrefix(modelID, "o1") && !strings.HasPrefix(modelID, "o3")
}

// answerTemperature pins grounded-answer generation. Query expansion runs
// hotter than this on purpose; answers stay deterministic over the retrieved
// passages.
const answerTemperature = 0.0

// answerTemperatureFor returns the pinned answer temperature, or nil for
// models that reject the parameter outright.
func answerTemperatureFor(modelID string) *float64 {
	if !supportsTemperature(modelID) {
		return nil
	}
	t := answerTemperature
	return &t
}

// supportsSystemRole reports whether the model accepts a leading system
// message; reasoning-tuned variants want it delivered as a user message.
func supportsSystemRole(modelID string) bool {
	return !strings.HasPrefix(modelID, "o1") && !strings.HasPrefix(modelID, "o3")
}

// ollamaModelName strips the catalog prefix that distinguishes locally served
// models from the remote families.
func ollamaModelName(modelID string) string {
	return strings.TrimPrefix(modelID, "ollama-")
}
