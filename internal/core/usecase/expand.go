package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ikolomin/siterag/internal/core/domain"
	"github.com/ikolomin/siterag/internal/core/ports"
)

const maxGeneratedQueries = 5

// Expansion always samples hotter than answer generation to favor diversity
// of phrasing across the generated queries.
const expansionTemperature = 1.0

const expandSystemMessage = `You generate web search queries.
Given a user's question, produce 3-5 alternative search queries that are topically related to the question but phrased so that each one would surface different search results than the original question and than each other.
Return only the queries.`

const expandUserMessage = `Generate search queries for the following question:

{query}`

var generatedQueriesSchema = []byte(`{
  "type": "object",
  "properties": {
    "queries": {
      "type": "array",
      "items": {"type": "string"},
      "minItems": 3,
      "maxItems": 5,
      "description": "A list of 3-5 semantically similar queries to the original question"
    }
  },
  "required": ["queries"],
  "additionalProperties": false
}`)

// QueryExpander asks a model for semantically distinct rephrasings of the
// user's question. Used only by multi-query retrieval.
type QueryExpander struct {
	resolver ports.ModelResolver
}

func NewQueryExpander(resolver ports.ModelResolver) *QueryExpander {
	return &QueryExpander{resolver: resolver}
}

// Expand returns at most maxGeneratedQueries paraphrases in the order the
// model produced them. The original question is not included.
func (e *QueryExpander) Expand(ctx context.Context, question, modelID string) ([]string, error) {
	client, err := e.resolver.Resolve(modelID)
	if err != nil {
		return nil, err
	}

	messages := []domain.Message{
		{Role: domain.RoleSystem, Content: expandSystemMessage},
		{Role: domain.RoleUser, Content: strings.Replace(expandUserMessage, "{query}", question, 1)},
	}
	temperature := expansionTemperature
	raw, err := client.GenerateStructured(ctx, messages, ports.StructuredSchema{
		Name:   "generated_search_queries",
		Schema: generatedQueriesSchema,
	}, ports.GenerateOptions{Temperature: &temperature})
	if err != nil {
		return nil, domain.WrapError(domain.ErrExpansion, "generate queries", err)
	}

	var decoded struct {
		Queries []string `json:"queries"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, domain.WrapError(domain.ErrExpansion, "decode queries", err)
	}
	if len(decoded.Queries) == 0 {
		return nil, domain.WrapError(domain.ErrExpansion, "generate queries", fmt.Errorf("model returned no queries"))
	}
	if len(decoded.Queries) > maxGeneratedQueries {
		decoded.Queries = decoded.Queries[:maxGeneratedQueries]
	}
	return decoded.Queries, nil
}
