package commands

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joistio/joist/internal/config"
	"github.com/joistio/joist/internal/examples"
	"github.com/joistio/joist/internal/pipeline"
	"github.com/joistio/joist/internal/runner"
	"github.com/spf13/cobra"
)

var (
	runParallelism int
	runQuiet       bool

	wordcountInput  string
	wordcountOutput string

	enrichEndpoint string
	enrichProvider string
	enrichPrompt   string
	enrichSQLite   string
	enrichTable    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an example pipeline on the direct runner",
}

var wordcountCmd = &cobra.Command{
	Use:   "wordcount [line ...]",
	Short: "Count words from arguments or from a text file",
	Long: `Count words either from the lines given as arguments or, with --input,
from a text file (gzip supported via the .gz extension). With --output the
formatted counts are written to a file instead of printed.`,
	Run: runWordcount,
}

var webenrichCmd = &cobra.Command{
	Use:   "webenrich term [term ...]",
	Short: "Enrich terms via an HTTP API or a generative model",
	Args:  cobra.MinimumNArgs(1),
	Run:   runWebenrich,
}

func init() {
	runCmd.PersistentFlags().IntVar(&runParallelism, "parallelism", config.DefaultMaxBundleParallelism,
		"Maximum concurrent bundles per stage")
	runCmd.PersistentFlags().BoolVar(&runQuiet, "quiet", false, "Suppress the progress spinner")

	wordcountCmd.Flags().StringVar(&wordcountInput, "input", "", "Path to a text file to count words from")
	wordcountCmd.Flags().StringVar(&wordcountOutput, "output", "", "Path to write formatted counts to")

	webenrichCmd.Flags().StringVar(&enrichEndpoint, "endpoint", "",
		"HTTP JSON endpoint with one %s verb for the term. When empty a generative model is used instead.")
	webenrichCmd.Flags().StringVar(&enrichProvider, "ai-provider", "mock",
		"Generative model provider: gemini, anthropic or mock")
	webenrichCmd.Flags().StringVar(&enrichPrompt, "prompt", "",
		"Prompt template with one %s verb for the term")
	webenrichCmd.Flags().StringVar(&enrichSQLite, "sqlite-out", "",
		"SQLite DSN to store enrichments in (e.g. file:enrich.db)")
	webenrichCmd.Flags().StringVar(&enrichTable, "table", "enrichments", "Target table for --sqlite-out")

	runCmd.AddCommand(wordcountCmd)
	runCmd.AddCommand(webenrichCmd)
}

func runWordcount(cmd *cobra.Command, args []string) {
	var (
		p      *pipeline.Pipeline
		output string
		err    error
	)
	if wordcountInput != "" {
		if wordcountOutput == "" {
			HandleError(fmt.Errorf("--output is required with --input"), "Invalid arguments")
		}
		p, output, err = examples.WordCountFiles(wordcountInput, wordcountOutput)
	} else {
		if len(args) == 0 {
			HandleError(fmt.Errorf("no input lines given and --input not set"), "Invalid arguments")
		}
		p, output, err = examples.WordCount(args...)
	}
	HandleError(err, "Failed to build pipeline")

	result := executePipeline(p, "counting words")
	if wordcountInput != "" {
		printSummary(result, fmt.Sprintf("counts written to %s", wordcountOutput))
		return
	}
	printResult(result, output)
}

func runWebenrich(cmd *cobra.Command, args []string) {
	p, output, err := examples.WebEnrich(examples.WebEnrichConfig{
		Terms:          args,
		Endpoint:       enrichEndpoint,
		Provider:       enrichProvider,
		PromptTemplate: enrichPrompt,
		OutputDSN:      enrichSQLite,
		Table:          enrichTable,
	})
	HandleError(err, "Failed to build pipeline")

	result := executePipeline(p, "enriching terms")
	if enrichSQLite != "" {
		printSummary(result, fmt.Sprintf("enrichments stored in %s (table %s)", enrichSQLite, enrichTable))
		return
	}
	printResult(result, output)
}

// executePipeline runs the pipeline on the direct runner with a spinner on
// stderr so piped stdout stays clean.
func executePipeline(p *pipeline.Pipeline, activity string) *runner.PipelineResult {
	if err := setupLog(logLevelFlags); err != nil {
		HandleError(err, "Failed to setup logging")
	}

	var spin *spinner.Spinner
	if !runQuiet {
		spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		spin.Suffix = " " + activity + "..."
		spin.Start()
	}

	r := runner.New(runner.WithMaxParallelism(runParallelism))
	result, err := r.Run(context.Background(), p)

	if spin != nil {
		spin.Stop()
	}
	HandleError(err, "Pipeline failed")
	return result
}

// printResult renders the output collection and a one-line job summary.
func printResult(result *runner.PipelineResult, collectionID string) {
	elements, err := result.Elements(collectionID)
	HandleError(err, "Failed to read results")

	rendered := make([]string, 0, len(elements))
	for _, el := range elements {
		rendered = append(rendered, fmt.Sprintf("%v", el))
	}
	sort.Strings(rendered)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Result"})
	for i, line := range rendered {
		t.AppendRow(table.Row{i + 1, line})
	}
	t.AppendFooter(table.Row{"Job", fmt.Sprintf("%s (%s)", result.JobID, result.State)})
	t.SetStyle(table.StyleLight)
	t.Render()
}

func printSummary(result *runner.PipelineResult, note string) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendRow(table.Row{"Job", result.JobID})
	t.AppendRow(table.Row{"State", string(result.State)})
	t.AppendRow(table.Row{"Output", note})
	t.SetStyle(table.StyleLight)
	t.Render()
}
