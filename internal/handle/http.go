package handle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmorgan81/unigen/internal/capability"
	"github.com/dmorgan81/unigen/internal/feed"
	"github.com/dmorgan81/unigen/internal/handler"
	"github.com/dmorgan81/unigen/internal/image"
	"github.com/dmorgan81/unigen/internal/log"
	"github.com/dmorgan81/unigen/internal/prompt"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/do"
	"github.com/samber/lo"
)

// maxBodyBytes caps the size of a /generate request body.
const maxBodyBytes = 1 << 20

type Generator interface {
	Handle(context.Context, handler.Input) (handler.Output, error)
}

type Catalog interface {
	List() []prompt.Example
	Random(context.Context) prompt.Example
}

type FeedGenerator interface {
	Generate(context.Context) ([]byte, error)
}

type GenerateResponse struct {
	Text        string  `json:"text"`
	ImageBase64 *string `json:"image_base64"`
	ImageS3URL  *string `json:"image_s3_url"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type API struct {
	generator    Generator
	capabilities capability.Set
	catalog      Catalog
	feed         FeedGenerator
}

func New(generator Generator, capabilities capability.Set, catalog Catalog, feed FeedGenerator) *API {
	return &API{
		generator:    generator,
		capabilities: capabilities,
		catalog:      catalog,
		feed:         feed,
	}
}

func NewAPI(i *do.Injector) (*API, error) {
	return New(
		do.MustInvoke[*handler.Handler](i),
		do.MustInvoke[capability.Set](i),
		do.MustInvoke[*prompt.Catalog](i),
		do.MustInvoke[*feed.Generator](i),
	), nil
}

// Routes returns the full HTTP surface wrapped in the request logging
// middleware.
func (a *API) Routes(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("GET /features", a.handleFeatures)
	mux.HandleFunc("POST /generate", a.handleGenerate)
	mux.HandleFunc("GET /prompts", a.handleListPrompts)
	mux.HandleFunc("GET /prompts/random", a.handleRandomPrompt)
	mux.HandleFunc("GET /feed", a.handleFeed)
	mux.Handle("GET /metrics", promhttp.Handler())
	return withLogger(log.FromContextOrDiscard(ctx), mux)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleFeatures(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.capabilities.Features())
}

func (a *API) handleGenerate(w http.ResponseWriter, r *http.Request) {
	log := log.FromContextOrDiscard(r.Context())

	input := handler.NewInput()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&input); err != nil {
		log.Info("invalid request body", "error", err)
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out, err := a.generator.Handle(r.Context(), input)
	if err != nil {
		writeDetail(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, GenerateResponse{
		Text:        out.Text,
		ImageBase64: lo.Ternary(len(out.Image) > 0, lo.ToPtr(image.ToBase64(out.Image)), nil),
		ImageS3URL:  lo.Ternary(out.ImageURL != "", lo.ToPtr(out.ImageURL), nil),
	})
}

func (a *API) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]prompt.Example{"prompts": a.catalog.List()})
}

func (a *API) handleRandomPrompt(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.catalog.Random(r.Context()))
}

func (a *API) handleFeed(w http.ResponseWriter, r *http.Request) {
	rss, err := a.feed.Generate(r.Context())
	if errors.Is(err, feed.ErrNoBucket) {
		writeDetail(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		log.FromContextOrDiscard(r.Context()).Error("feed generation failed", "error", err)
		writeDetail(w, http.StatusInternalServerError, "feed generation failed")
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(rss)
}

func statusFor(err error) int {
	var herr *handler.Error
	if errors.As(err, &herr) && herr.Kind == handler.KindInvalidInput {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
