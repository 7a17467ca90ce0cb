package commands

import (
	"fmt"

	"github.com/joistio/joist/internal/examples"
	"github.com/joistio/joist/internal/pipeline"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph {wordcount|webenrich}",
	Short: "Print the serialized pipeline graph of an example as JSON",
	Long: `Build one of the example pipelines without running it and print its
portable graph representation. The output is the same JSON a runner
receives when a pipeline is submitted.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"wordcount", "webenrich"},
	Run:       runGraph,
}

func runGraph(cmd *cobra.Command, args []string) {
	var (
		p   *pipeline.Pipeline
		err error
	)
	switch args[0] {
	case "wordcount":
		p, _, err = examples.WordCount("the quick brown fox")
	case "webenrich":
		p, _, err = examples.WebEnrich(examples.WebEnrichConfig{Terms: []string{"fox"}})
	default:
		err = fmt.Errorf("unknown example: %s", args[0])
	}
	HandleError(err, "Failed to build pipeline")

	data, err := p.Graph().Marshal()
	HandleError(err, "Failed to serialize graph")
	fmt.Println(string(data))
}
