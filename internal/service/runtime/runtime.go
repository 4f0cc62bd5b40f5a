package runtime

import (
	"context"

	"github.com/pocketlm/core/internal/model/llm"
)

// Request carries a fully rendered prompt plus the sampling options the
// runtime should apply. The prompt already contains every role tag and
// control token; the runtime must not re-template it.
type Request struct {
	Prompt  string
	Options llm.GenOptions
}

// Completion is the final result of a non-streaming generation.
type Completion struct {
	Content         string
	TokensPredicted int
	TokensEvaluated int
}

// Chunk is one streamed fragment of a generation. Stop marks the final
// fragment; its Content may be empty.
type Chunk struct {
	Content string
	Stop    bool
}

// Stream yields generation chunks in order. Recv returns io.EOF once the
// final chunk has been delivered. Close releases the underlying
// connection and is safe to call at any point.
type Stream interface {
	Recv() (Chunk, error)
	Close() error
}

// Props describes the model the runtime currently has loaded.
type Props struct {
	ModelPath   string
	ContextSize int
	SlotCount   int
}

// Completer abstracts the local inference runtime.
type Completer interface {
	Complete(ctx context.Context, req Request) (Completion, error)
	Stream(ctx context.Context, req Request) (Stream, error)
}
