// Package examples assembles the demo pipelines shipped with the CLI.
package examples

import (
	"fmt"
	"strings"

	"github.com/joistio/joist/internal/coders"
	"github.com/joistio/joist/internal/pipeline"
	"github.com/joistio/joist/internal/transforms"
	"github.com/joistio/joist/internal/transforms/textio"
)

// WordCount builds the classic counting pipeline over literal lines. It
// returns the pipeline and the id of the formatted output collection.
func WordCount(lines ...string) (*pipeline.Pipeline, string, error) {
	p := pipeline.New()
	root := pipeline.NewRoot(p)

	values := make([]interface{}, len(lines))
	for i, line := range lines {
		values[i] = line
	}
	source, err := root.Apply(transforms.NewCreate("lines", values...).
		WithOutputCoder(&pipeline.CoderSpec{URN: coders.StringCoderURN}))
	if err != nil {
		return nil, "", err
	}

	formatted, err := countWords(p, source)
	if err != nil {
		return nil, "", err
	}
	return p, formatted.ID(), nil
}

// WordCountFiles builds the counting pipeline over a text file, writing
// "word: count" lines to the output path.
func WordCountFiles(inputPath, outputPath string) (*pipeline.Pipeline, string, error) {
	p := pipeline.New()
	root := pipeline.NewRoot(p)

	source, err := root.Apply(textio.Read("read", inputPath))
	if err != nil {
		return nil, "", err
	}
	formatted, err := countWords(p, source)
	if err != nil {
		return nil, "", err
	}
	sink, err := formatted.Apply(textio.Write("write", outputPath))
	if err != nil {
		return nil, "", err
	}
	return p, sink.ID(), nil
}

func countWords(p *pipeline.Pipeline, lines *pipeline.Collection) (*pipeline.Collection, error) {
	kvSpec := &pipeline.CoderSpec{
		URN: coders.KVCoderURN,
		ComponentCoderIDs: []string{
			p.RegisterCoderURN(coders.StringCoderURN),
			p.RegisterCoderURN(coders.VarIntCoderURN),
		},
	}

	words, err := lines.Apply(transforms.FlatMap("split", func(line string) []string {
		return strings.Fields(strings.ToLower(line))
	}).WithOutputCoder(&pipeline.CoderSpec{URN: coders.StringCoderURN}))
	if err != nil {
		return nil, err
	}

	pairs, err := words.Apply(transforms.Map("pair", func(word string) coders.KV {
		return coders.KV{Key: word, Value: 1}
	}).WithOutputCoder(kvSpec))
	if err != nil {
		return nil, err
	}

	grouped, err := pairs.Apply(transforms.NewGroupByKey())
	if err != nil {
		return nil, err
	}

	counts, err := grouped.Apply(transforms.Map("count", func(kv coders.KV) coders.KV {
		return coders.KV{Key: kv.Key, Value: len(kv.Value.([]interface{}))}
	}).WithOutputCoder(kvSpec))
	if err != nil {
		return nil, err
	}

	return counts.Apply(transforms.Map("format", func(kv coders.KV) string {
		return fmt.Sprintf("%s: %d", kv.Key, kv.Value)
	}).WithOutputCoder(&pipeline.CoderSpec{URN: coders.StringCoderURN}))
}
