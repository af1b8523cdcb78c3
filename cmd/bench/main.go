// Command bench runs benchmarks for the anonymous-credentials engine.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/kdenhartog/indy-crypto/internal/benchmarks"
)

func main() {
	name := flag.String("name", "Default", "Name of the benchmark")
	attributes := flag.Int("attributes", 4, "Number of attributes per claim")
	revealed := flag.Int("revealed", 1, "Number of attributes revealed in proofs")
	iterations := flag.Int("iterations", 10, "Number of iterations for each benchmark")
	revocation := flag.Bool("revocation", false, "Issue claims with revocation support")
	output := flag.String("output", "", "Output file path (empty for stdout)")
	format := flag.String("format", "text", "Output format (text, csv, chart)")

	flag.Parse()

	config := benchmarks.BenchmarkConfig{
		Name:           *name,
		AttributeCount: *attributes,
		RevealedCount:  *revealed,
		Iterations:     *iterations,
		WithRevocation: *revocation,
	}

	if config.AttributeCount < 1 {
		fmt.Fprintln(os.Stderr, "Error: Attribute count must be at least 1")
		os.Exit(1)
	}
	if config.RevealedCount < 0 || config.RevealedCount > config.AttributeCount {
		fmt.Fprintf(os.Stderr, "Error: Revealed count must be between 0 and %d\n", config.AttributeCount)
		os.Exit(1)
	}
	if config.Iterations < 1 {
		fmt.Fprintln(os.Stderr, "Error: Iterations must be at least 1")
		os.Exit(1)
	}

	runner := benchmarks.NewRunner(config)

	fmt.Printf("Running %s benchmarks (keygen takes a while)...\n", config.Name)
	results, err := runner.RunAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running benchmarks: %v\n", err)
		os.Exit(1)
	}

	reporter := benchmarks.NewReporter(
		benchmarks.OutputFormat(strings.ToLower(*format)),
		*output,
	)
	if err := reporter.Report(results); err != nil {
		fmt.Fprintf(os.Stderr, "Error reporting results: %v\n", err)
		os.Exit(1)
	}
}
