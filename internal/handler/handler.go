package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmorgan81/unigen/internal/image"
	"github.com/dmorgan81/unigen/internal/log"
	"github.com/dmorgan81/unigen/internal/metrics"
	"github.com/dmorgan81/unigen/internal/store"
	"github.com/dmorgan81/unigen/internal/text"
	"github.com/samber/do"
)

const DefaultTextMaxLength = 150

type Input struct {
	Prompt           string `json:"prompt"`
	TextMaxLength    int    `json:"text_max_length"`
	PreferLocalImage bool   `json:"prefer_local_image"`
	SaveToS3         bool   `json:"save_to_s3"`
}

// NewInput returns an Input holding the request defaults.
func NewInput() Input {
	return Input{TextMaxLength: DefaultTextMaxLength}
}

func (i Input) validate() error {
	if strings.TrimSpace(i.Prompt) == "" {
		return errors.New("prompt is required")
	}
	if i.TextMaxLength <= 0 {
		return errors.New("text_max_length must be positive")
	}
	return nil
}

func (i Input) toMetadata(model string) map[string]string {
	return store.EncodeMetadata(map[string]string{
		"date":   time.Now().UTC().Format(time.RFC3339),
		"model":  model,
		"prompt": i.Prompt,
	})
}

// Output carries the generated text, the PNG bytes, and the storage URL when
// an upload succeeded.
type Output struct {
	Text     string
	Image    []byte
	ImageURL string
}

type TextGenerator interface {
	Generate(ctx context.Context, prompt string, maxLength int) (string, error)
}

type ImageGenerator interface {
	Generate(ctx context.Context, prompt string, preferLocal bool) ([]byte, error)
}

type Kind int

const (
	KindInvalidInput Kind = iota + 1
	KindText
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindText:
		return "text_error"
	case KindImage:
		return "image_error"
	default:
		return "unknown"
	}
}

// Error is returned by Handle for failures that end the request.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindText:
		return fmt.Sprintf("Text generation error: %v", e.Err)
	case KindImage:
		return fmt.Sprintf("Image generation error: %v", e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Handler struct {
	text      TextGenerator
	image     ImageGenerator
	uploader  store.Uploader
	keyPrefix string
	model     string
}

func New(text TextGenerator, image ImageGenerator, uploader store.Uploader, keyPrefix, model string) *Handler {
	return &Handler{
		text:      text,
		image:     image,
		uploader:  uploader,
		keyPrefix: keyPrefix,
		model:     model,
	}
}

func NewHandler(i *do.Injector) (*Handler, error) {
	return New(
		do.MustInvoke[*text.Service](i),
		do.MustInvoke[*image.Service](i),
		do.MustInvoke[store.Uploader](i),
		do.MustInvokeNamed[string](i, "key_prefix"),
		do.MustInvokeNamed[string](i, "image_model"),
	), nil
}

// Handle runs one generate request: validate, text, image, then the optional
// upload. Text problems come back inside Output.Text and upload problems only
// drop the URL; validation and image failures end the request.
func (h *Handler) Handle(ctx context.Context, input Input) (Output, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("handler").With(
		"text_max_length", input.TextMaxLength,
		"prefer_local_image", input.PreferLocalImage,
		"save_to_s3", input.SaveToS3,
	)
	log.Info("handling generate request")

	out, err := h.handle(ctx, input)
	var herr *Error
	switch {
	case errors.As(err, &herr):
		metrics.GenerateRequest(herr.Kind.String())
	case err != nil:
		metrics.GenerateRequest("unknown")
	default:
		metrics.GenerateRequest("ok")
	}
	return out, err
}

func (h *Handler) handle(ctx context.Context, input Input) (Output, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("handler")

	if err := input.validate(); err != nil {
		log.Info("rejecting request", "reason", err)
		return Output{}, &Error{Kind: KindInvalidInput, Err: err}
	}

	start := time.Now()
	txt, err := h.text.Generate(ctx, input.Prompt, input.TextMaxLength)
	metrics.ObserveStage("text", start)
	if err != nil {
		log.Error("text generation failed", "error", err)
		return Output{}, &Error{Kind: KindText, Err: err}
	}

	start = time.Now()
	img, err := h.image.Generate(ctx, input.Prompt, input.PreferLocalImage)
	metrics.ObserveStage("image", start)
	if err != nil {
		log.Error("image generation failed", "error", err)
		return Output{}, &Error{Kind: KindImage, Err: err}
	}

	out := Output{Text: txt, Image: img}
	if input.SaveToS3 && len(img) > 0 {
		out.ImageURL = h.upload(ctx, input, img)
	}
	return out, nil
}

// upload stores img and returns its URL, or "" when the upload failed.
func (h *Handler) upload(ctx context.Context, input Input, img []byte) string {
	log := log.FromContextOrDiscard(ctx).WithGroup("handler")
	start := time.Now()
	defer metrics.ObserveStage("upload", start)

	url, err := h.uploader.Upload(ctx, store.UploadParams{
		Name:        store.MakeKey(h.keyPrefix, "png"),
		Data:        img,
		ContentType: "image/png",
		Metadata:    input.toMetadata(h.model),
	})
	metrics.Upload(err == nil)
	if err != nil {
		log.Error("upload failed; returning inline image instead", "error", err)
		return ""
	}
	return url
}
