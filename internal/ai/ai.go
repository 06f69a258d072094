package ai

import (
	"context"

	"google.golang.org/genai"
)

// Request is a single completion call against the model service.
type Request struct {
	// Op names the calling operation in logs and errors (e.g. "extract skills").
	Op string
	// Model overrides the completer's default model when set.
	Model           string
	Prompt          string
	Temperature     float32
	MaxOutputTokens int32
	// Schema constrains structured completions. Ignored by Complete.
	Schema *genai.Schema
}

// Structured is the decoded JSON value of a structured completion together
// with the raw text it was decoded from.
type Structured struct {
	Raw   string
	Value any
}

// Completer is the model capability the analysis pipeline depends on.
type Completer interface {
	// Complete returns free text.
	Complete(ctx context.Context, req Request) (string, error)
	// CompleteStructured returns a JSON value produced under req.Schema.
	CompleteStructured(ctx context.Context, req Request) (*Structured, error)
}
