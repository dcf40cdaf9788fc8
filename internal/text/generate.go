package text

import "context"

// Pipeline is a loaded text-generation model.
type Pipeline interface {
	Generate(ctx context.Context, prompt string, maxLength int) (string, error)
}

// PipelineLoader builds a Pipeline. It is called at most once per
// successful load.
type PipelineLoader func(context.Context) (Pipeline, error)
