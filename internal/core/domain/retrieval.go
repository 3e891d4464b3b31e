package domain

import "strings"

// Passage is one retrieved unit of previously indexed page text.
// Immutable once returned from the vector store.
type Passage struct {
	ID      string  `json:"id,omitempty"`
	Content string  `json:"content"`
	URL     string  `json:"url"`
	Score   float64 `json:"score,omitempty"`
}

type QueryMode string

const (
	QueryModePage QueryMode = "page"
	QueryModeSite QueryMode = "site"
)

type RetrievalMode string

const (
	RetrievalModeSingle RetrievalMode = "single"
	RetrievalModeMulti  RetrievalMode = "multi"
)

// DedupePassages drops passages whose content was already seen, keeping the
// first occurrence and the original relative order.
func DedupePassages(passages []Passage) []Passage {
	seen := make(map[string]struct{}, len(passages))
	out := make([]Passage, 0, len(passages))
	for _, p := range passages {
		if _, ok := seen[p.Content]; ok {
			continue
		}
		seen[p.Content] = struct{}{}
		out = append(out, p)
	}
	return out
}

// JoinPassageContents renders passages into the text block substituted into
// the system prompt and recorded as a turn grounding.
func JoinPassageContents(passages []Passage, sep string) string {
	contents := make([]string, 0, len(passages))
	for _, p := range passages {
		contents = append(contents, p.Content)
	}
	return strings.Join(contents, sep)
}
