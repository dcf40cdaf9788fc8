package capability

import (
	"context"
	"time"

	"github.com/dmorgan81/unigen/internal/log"
)

// Set records which optional backends answered at startup. It is computed
// once by Detect and never changes afterwards.
type Set struct {
	TextBackend bool
	Image       bool
}

// Features is the public view served on /features. Text is always available
// because the text service has an in-band fallback.
type Features struct {
	Text  bool `json:"text"`
	Image bool `json:"image"`
}

func (s Set) Features() Features {
	return Features{Text: true, Image: s.Image}
}

type Prober interface {
	Configured() bool
	Probe(context.Context) error
}

// Detect probes each backend once. Probe errors mean "unavailable" and are
// only logged.
func Detect(ctx context.Context, timeout time.Duration, text, image Prober) Set {
	log := log.FromContextOrDiscard(ctx).WithGroup("capability")

	set := Set{
		TextBackend: probe(ctx, timeout, "text", text),
		Image:       probe(ctx, timeout, "image", image),
	}
	log.Info("detected capabilities", "text_backend", set.TextBackend, "image", set.Image)
	return set
}

func probe(ctx context.Context, timeout time.Duration, name string, p Prober) bool {
	log := log.FromContextOrDiscard(ctx).WithGroup("capability").With("backend", name)
	if p == nil || !p.Configured() {
		log.Debug("backend not configured")
		return false
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := p.Probe(ctx); err != nil {
		log.Debug("backend probe failed", "error", err)
		return false
	}
	return true
}
