package text

import (
	"context"
	"fmt"

	"github.com/dmorgan81/unigen/internal/log"
	"github.com/dmorgan81/unigen/internal/metrics"
)

const fallbackNotice = "\n\n[text generation fallback: no text backend configured]"

// Service generates text and never fails the caller: backend problems are
// reported inside the returned string.
type Service struct {
	available bool
	pipeline  *lazy[Pipeline]
}

func NewService(available bool, load PipelineLoader) *Service {
	return &Service{
		available: available,
		pipeline:  &lazy[Pipeline]{build: load},
	}
}

func (s *Service) Generate(ctx context.Context, prompt string, maxLength int) (string, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("text")

	if !s.available {
		log.Info("text backend unavailable, using fallback")
		metrics.TextFallback("unavailable")
		return prompt + fallbackNotice, nil
	}

	out, err := s.generate(ctx, prompt, maxLength)
	if err != nil {
		log.Error("local text generation failed", "error", err)
		metrics.TextFallback("failed")
		return fmt.Sprintf("[text generation failed locally: %v] %s", err, prompt), nil
	}
	return out, nil
}

func (s *Service) generate(ctx context.Context, prompt string, maxLength int) (string, error) {
	pipe, err := s.pipeline.get(ctx)
	if err != nil {
		return "", err
	}
	return pipe.Generate(ctx, prompt, maxLength)
}
