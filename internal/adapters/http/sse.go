package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ikolomin/siterag/internal/core/domain"
)

type ssePayload struct {
	Delta string `json:"delta,omitempty"`
	Error string `json:"error,omitempty"`
}

// streamSSE forwards answer fragments to the client as they arrive. Each
// fragment is one SSE data event; the stream terminates with [DONE]. A chunk
// carrying an error ends the stream with an error event instead.
func streamSSE(w http.ResponseWriter, chunks <-chan domain.StreamChunk) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming is not supported by response writer")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for chunk := range chunks {
		if chunk.Err != nil {
			if err := writeSSEEvent(w, ssePayload{Error: chunk.Err.Error()}); err != nil {
				return err
			}
			flusher.Flush()
			return chunk.Err
		}
		if chunk.Text == "" {
			continue
		}
		if err := writeSSEEvent(w, ssePayload{Delta: chunk.Text}); err != nil {
			return err
		}
		flusher.Flush()
	}

	if _, err := io.WriteString(w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func writeSSEEvent(w io.Writer, payload ssePayload) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", encoded)
	return err
}
