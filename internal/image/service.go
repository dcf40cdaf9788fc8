package image

import (
	"context"
	"errors"

	"github.com/dmorgan81/unigen/internal/log"
)

var ErrNoBackend = errors.New("no image generation method available; start a local diffusion server")

// Defaults are applied to every local render.
type Defaults struct {
	Model  string
	Height int
	Width  int
	Steps  int
	Device Device
}

type Service struct {
	available bool
	local     Generator
	defaults  Defaults
}

func NewService(available bool, local Generator, defaults Defaults) *Service {
	return &Service{available: available, local: local, defaults: defaults}
}

// Generate returns a PNG for prompt. There is only the local backend, so
// preferLocal does not change which one is used.
func (s *Service) Generate(ctx context.Context, prompt string, preferLocal bool) ([]byte, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("image").With("prefer_local", preferLocal)

	if !s.available {
		return nil, ErrNoBackend
	}

	log.Info("using local image backend")
	data, err := s.local.Generate(ctx, Params{
		Model:  s.defaults.Model,
		Prompt: prompt,
		Height: s.defaults.Height,
		Width:  s.defaults.Width,
		Steps:  s.defaults.Steps,
		Device: s.defaults.Device.Name,
		DType:  s.defaults.Device.DType,
	})
	if err != nil {
		return nil, err
	}
	return ToPNG(data)
}
