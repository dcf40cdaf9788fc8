package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/dmorgan81/unigen/internal/log"
	"github.com/dmorgan81/unigen/internal/param"
	"github.com/samber/do"
	"github.com/samber/lo"
)

type Example struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

var defaultExamples = []Example{
	{"Cozy fantasy tavern (art)", "A cozy fantasy tavern at sunset, warm lighting, detailed digital painting"},
	{"Friendly robot assistant (illustration)", "A friendly robot assistant explaining AI to children, colorful children's book illustration"},
	{"Product description (marketing)", "Write a concise, persuasive product description for a solar-powered backpack that charges devices on the go."},
	{"Professional meeting request (email)", "Write a short professional email requesting a 30-minute meeting next week to discuss project milestones."},
	{"Surreal landscape (art)", "A surreal landscape with floating islands and neon waterfalls, ultra-detailed, cinematic lighting"},
}

// Catalog serves example prompts. Entries come from Parameter Store values
// of the form "name|prompt" when a path is configured.
type Catalog struct {
	examples []Example

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewCatalog(i *do.Injector) (*Catalog, error) {
	path := do.MustInvokeNamed[string](i, "prompts_param")
	if path == "" {
		return newCatalog(defaultExamples), nil
	}

	examples, err := load(do.MustInvoke[param.Fetcher](i), path)
	if err != nil {
		log := do.MustInvoke[*slog.Logger](i).WithGroup("catalog")
		log.Warn("loading example prompts failed, using defaults", "path", path, "error", err)
		return newCatalog(defaultExamples), nil
	}
	return newCatalog(lo.Ternary(len(examples) > 0, examples, defaultExamples)), nil
}

func load(f param.Fetcher, path string) ([]Example, error) {
	values, err := f.FetchAll(context.Background(), path)
	if err != nil {
		return nil, err
	}
	return Parse(values)
}

func newCatalog(examples []Example) *Catalog {
	return &Catalog{
		examples: examples,
		rnd:      rand.New(rand.NewSource(time.Now().UTC().UnixNano())),
	}
}

// Parse turns "name|prompt" pairs into examples.
func Parse(values []string) ([]Example, error) {
	examples := make([]Example, 0, len(values))
	for _, v := range values {
		name, text, ok := strings.Cut(v, "|")
		if !ok || strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("malformed example prompt %q, want name|prompt", v)
		}
		examples = append(examples, Example{Name: strings.TrimSpace(name), Prompt: strings.TrimSpace(text)})
	}
	return examples, nil
}

func (c *Catalog) List() []Example {
	return append([]Example(nil), c.examples...)
}

func (c *Catalog) Random(ctx context.Context) Example {
	log := log.FromContextOrDiscard(ctx).WithGroup("catalog")
	log.Info("picking random example prompt")

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.examples[c.rnd.Intn(len(c.examples))]
}
