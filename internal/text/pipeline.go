package text

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmorgan81/unigen/internal/backend"
	"github.com/dmorgan81/unigen/internal/log"
)

var ErrEmptyOutput = errors.New("pipeline returned no sequences")

type modelInfo struct {
	ModelID    string `json:"model_id"`
	PadTokenID *int   `json:"pad_token_id"`
	EOSTokenID *int   `json:"eos_token_id"`
}

type generateParameters struct {
	MaxLength          int  `json:"max_length"`
	DoSample           bool `json:"do_sample"`
	NumReturnSequences int  `json:"num_return_sequences"`
	Truncation         bool `json:"truncation"`
	PadTokenID         *int `json:"pad_token_id,omitempty"`
}

type generateRequest struct {
	Model      string             `json:"model"`
	Inputs     string             `json:"inputs"`
	Parameters generateParameters `json:"parameters"`
}

type generatedSequence struct {
	GeneratedText string `json:"generated_text"`
}

// HTTPPipeline is a text-generation pipeline served by a local model server.
type HTTPPipeline struct {
	client     *backend.Client
	model      string
	padTokenID *int
}

// NewHTTPLoader returns a loader that confirms the model server is serving
// model and reads its tokenizer settings.
func NewHTTPLoader(client *backend.Client, model string) PipelineLoader {
	return func(ctx context.Context) (Pipeline, error) {
		log := log.FromContextOrDiscard(ctx).WithGroup("text").With("model", model)
		log.Info("loading text pipeline")

		var info modelInfo
		if err := client.DoJSON(ctx, http.MethodGet, "/info", nil, &info); err != nil {
			return nil, fmt.Errorf("loading text pipeline: %w", err)
		}
		if info.ModelID != "" && info.ModelID != model {
			return nil, fmt.Errorf("loading text pipeline: server is serving %q, want %q", info.ModelID, model)
		}

		pad := info.PadTokenID
		if pad == nil {
			if info.EOSTokenID != nil {
				log.Info("tokenizer has no pad token, using eos", "eos_token_id", *info.EOSTokenID)
				pad = info.EOSTokenID
			} else {
				log.Warn("tokenizer has neither pad nor eos token")
			}
		}
		return &HTTPPipeline{client: client, model: model, padTokenID: pad}, nil
	}
}

func (p *HTTPPipeline) Generate(ctx context.Context, prompt string, maxLength int) (string, error) {
	var out []generatedSequence
	err := p.client.DoJSON(ctx, http.MethodPost, "/generate", generateRequest{
		Model:  p.model,
		Inputs: prompt,
		Parameters: generateParameters{
			MaxLength:          maxLength,
			DoSample:           true,
			NumReturnSequences: 1,
			Truncation:         true,
			PadTokenID:         p.padTokenID,
		},
	}, &out)
	if err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", ErrEmptyOutput
	}
	return out[0].GeneratedText, nil
}
