package service

import (
	"context"

	"github.com/tubetalk/tubetalk/internal/model"
)

// CaptionSource yields a video's caption segments in time order.
type CaptionSource interface {
	GetTranscript(ctx context.Context, videoID string) ([]model.TranscriptSegment, error)
}

// Embedder maps text to a fixed-length vector. Implemented by ai.Manager and
// the embedcache wrappers.
type Embedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
}

// Answerer turns assembled context plus a question into answer text.
// Implemented by ai.Manager.
type Answerer interface {
	Answer(ctx context.Context, contextText, question string) (string, error)
}
