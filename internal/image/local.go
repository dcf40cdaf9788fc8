package image

import (
	"context"
	"io"
	"net/http"

	"github.com/dmorgan81/unigen/internal/backend"
	"github.com/dmorgan81/unigen/internal/log"
)

// maxImageBytes bounds a single rendered image read from the backend.
const maxImageBytes = 64 << 20

// LocalGenerator renders images on a diffusion server running next to the
// service.
type LocalGenerator struct {
	Client *backend.Client
}

func (g *LocalGenerator) Generate(ctx context.Context, params Params) ([]byte, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("image").With(
		"model", params.Model,
		"device", params.Device,
		"height", params.Height,
		"width", params.Width,
		"steps", params.Steps,
	)
	log.Info("generating image via local diffusion server")

	resp, err := g.Client.Do(ctx, http.MethodPost, "/txt2img", params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, err
	}
	log.Info("received image", "bytes", len(data), "content-type", resp.Header.Get("Content-Type"))
	return data, nil
}
