package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/joistio/joist/internal/coders"
	"github.com/joistio/joist/internal/logging"
	"github.com/joistio/joist/internal/transforms"
)

// GenerateFnName is the registered DoFn name for the model-enrichment
// transform.
const GenerateFnName = "ai.generate"

func init() {
	transforms.RegisterDoFn(GenerateFnName, func() transforms.DoFn {
		return &GenerateFn{}
	})
}

// GenerateConfig configures a GenerateFn.
type GenerateConfig struct {
	// Provider names the backing model API: "gemini", "anthropic" or
	// "mock".
	Provider string `json:"provider"`

	// PromptTemplate is passed each element through fmt.Sprintf. It must
	// contain exactly one %s verb.
	PromptTemplate string `json:"prompt_template"`

	Config
}

// GenerateFn prompts a generative model once per element and emits a KV of
// the element and the model's text response. The provider is constructed
// lazily at the first bundle so workers can build the DoFn from its
// payload without credentials present.
type GenerateFn struct {
	cfg      GenerateConfig
	provider Provider
	logger   *logging.Logger
}

// NewGenerateFn builds a GenerateFn around an existing provider, bypassing
// the config-driven construction path.
func NewGenerateFn(provider Provider, promptTemplate string) *GenerateFn {
	return &GenerateFn{
		cfg:      GenerateConfig{Provider: provider.Name(), PromptTemplate: promptTemplate},
		provider: provider,
	}
}

// Configure implements transforms.Configurable.
func (g *GenerateFn) Configure(config json.RawMessage) error {
	if err := json.Unmarshal(config, &g.cfg); err != nil {
		return fmt.Errorf("ai.generate: decode config: %w", err)
	}
	if g.cfg.PromptTemplate == "" {
		return fmt.Errorf("ai.generate: prompt_template is required")
	}
	return nil
}

func (g *GenerateFn) StartBundle(ctx context.Context) error {
	if g.logger == nil {
		g.logger = logging.GetLogger("transforms.ai")
	}
	if g.provider == nil {
		provider, err := NewProvider(ctx, g.cfg.Provider, g.cfg.Config)
		if err != nil {
			return err
		}
		g.provider = provider
		g.logger.Debug("using provider %s (%s)", provider.Name(), provider.Model())
	}
	return nil
}

func (g *GenerateFn) ProcessElement(ctx context.Context, element interface{}, emit transforms.Emitter) error {
	text, ok := element.(string)
	if !ok {
		return fmt.Errorf("ai.generate: element is %T, want string", element)
	}

	prompt := fmt.Sprintf(g.cfg.PromptTemplate, text)
	response, err := g.provider.Generate(ctx, prompt)
	if err != nil {
		return fmt.Errorf("ai.generate: %w", err)
	}

	emit(coders.KV{Key: text, Value: response})
	return nil
}

func (g *GenerateFn) FinishBundle(context.Context, transforms.Emitter) error {
	return nil
}
