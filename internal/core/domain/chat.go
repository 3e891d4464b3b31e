package domain

import "time"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the conversation history. The pipeline only ever
// prepends a system message and inserts context messages before user
// messages; assistant messages are never mutated.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TurnGrounding associates a conversation turn index (0-based running message
// count at the time the answer was grounded) with the passage text used to
// ground it. Records are append-only per session.
type TurnGrounding struct {
	SessionID    string    `json:"session_id"`
	TurnIndex    int       `json:"turn_index"`
	PassagesText string    `json:"passages_text"`
	CreatedAt    time.Time `json:"created_at"`
}

// ChatRequest is one question turn arriving from the client.
type ChatRequest struct {
	SessionID     string        `json:"session_id"`
	Messages      []Message     `json:"messages"`
	CurrentURL    string        `json:"current_url"`
	QueryMode     QueryMode     `json:"query_mode"`
	RetrievalMode RetrievalMode `json:"retrieval_mode"`
	Model         string        `json:"model"`
	ContextStuff  bool          `json:"context_stuff"`
	MaxDocuments  int           `json:"max_documents,omitempty"`
}

// StreamChunk is one incremental fragment of the generated answer. Err, when
// set, terminates the stream; partial text already emitted stands.
type StreamChunk struct {
	Text string
	Err  error
}
