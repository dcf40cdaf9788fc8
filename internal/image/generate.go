package image

import "context"

type Params struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
	Steps  int    `json:"num_inference_steps"`
	Device string `json:"device"`
	DType  string `json:"torch_dtype"`
}

// Generator renders an image for params and returns the encoded image bytes
// exactly as the backend produced them.
type Generator interface {
	Generate(context.Context, Params) ([]byte, error)
}
