package examples

import (
	"fmt"

	"github.com/joistio/joist/internal/coders"
	"github.com/joistio/joist/internal/pipeline"
	"github.com/joistio/joist/internal/transforms"
	"github.com/joistio/joist/internal/transforms/ai"
	"github.com/joistio/joist/internal/transforms/sqlio"
	"github.com/joistio/joist/internal/transforms/webapi"
)

// WebEnrichConfig configures the enrichment demo pipeline.
type WebEnrichConfig struct {
	// Terms are the keys to enrich.
	Terms []string

	// Endpoint, when set, enriches each term against an HTTP JSON API
	// instead of a generative model. It must contain one %s verb.
	Endpoint string

	// Provider selects the generative model when Endpoint is empty:
	// "gemini", "anthropic" or "mock".
	Provider string

	// PromptTemplate is the model prompt, with one %s verb for the term.
	PromptTemplate string

	// OutputDSN, when set, writes results to this SQLite database.
	OutputDSN string

	// Table is the target table for OutputDSN. Defaults to "enrichments".
	Table string
}

// WebEnrich builds a pipeline that fans a list of terms out against an
// external API, either an HTTP lookup service or a generative model, and
// returns the pipeline plus the id of its output collection.
func WebEnrich(cfg WebEnrichConfig) (*pipeline.Pipeline, string, error) {
	if len(cfg.Terms) == 0 {
		return nil, "", fmt.Errorf("webenrich: no terms to enrich")
	}
	if cfg.Provider == "" {
		cfg.Provider = "mock"
	}
	if cfg.PromptTemplate == "" {
		cfg.PromptTemplate = "Describe %q in one sentence."
	}
	if cfg.Table == "" {
		cfg.Table = "enrichments"
	}

	p := pipeline.New()
	root := pipeline.NewRoot(p)

	values := make([]interface{}, len(cfg.Terms))
	for i, term := range cfg.Terms {
		values[i] = term
	}
	terms, err := root.Apply(transforms.NewCreate("terms", values...).
		WithOutputCoder(&pipeline.CoderSpec{URN: coders.StringCoderURN}))
	if err != nil {
		return nil, "", err
	}

	var enrich *transforms.ParDo
	if cfg.Endpoint != "" {
		enrich = transforms.NewParDo("enrich", webapi.EnrichFnName).
			WithConfig(webapi.Config{Endpoint: cfg.Endpoint})
	} else {
		enrich = transforms.NewParDo("enrich", ai.GenerateFnName).
			WithConfig(ai.GenerateConfig{Provider: cfg.Provider, PromptTemplate: cfg.PromptTemplate})
	}
	kvSpec := &pipeline.CoderSpec{
		URN: coders.KVCoderURN,
		ComponentCoderIDs: []string{
			p.RegisterCoderURN(coders.StringCoderURN),
			p.RegisterCoderURN(coders.JSONCoderURN),
		},
	}
	enriched, err := terms.Apply(enrich.WithOutputCoder(kvSpec))
	if err != nil {
		return nil, "", err
	}

	if cfg.OutputDSN == "" {
		return p, enriched.ID(), nil
	}

	sink, err := enriched.Apply(transforms.NewParDo("store", sqlio.WriteFnName).
		WithConfig(sqlio.Config{DSN: cfg.OutputDSN, Table: cfg.Table}).
		WithOutputCoder(&pipeline.CoderSpec{URN: coders.UnitCoderURN}))
	if err != nil {
		return nil, "", err
	}
	return p, sink.ID(), nil
}
