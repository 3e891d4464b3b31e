package ports

import (
	"context"

	"github.com/ikolomin/siterag/internal/core/domain"
)

// ChatService is the inbound contract for grounded question answering.
// The returned channel yields incremental answer fragments and closes when
// generation finishes; cancelling ctx aborts the in-flight provider call.
type ChatService interface {
	Stream(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamChunk, error)
}

// CaptureRequester is the inbound contract for scheduling page/site capture.
type CaptureRequester interface {
	Request(ctx context.Context, job domain.CaptureJob) (*domain.CaptureJob, error)
}

// CaptureReader is the inbound read model for capture job state.
type CaptureReader interface {
	GetByID(ctx context.Context, id string) (*domain.CaptureJob, error)
}

// CaptureProcessor is the inbound contract for asynchronous capture
// processing.
type CaptureProcessor interface {
	ProcessByID(ctx context.Context, jobID string) error
}
