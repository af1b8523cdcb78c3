package benchmarks

import (
	"fmt"
	"io"
	"os"

	chart "github.com/wcharczuk/go-chart/v2"
)

// OutputFormat selects how results are reported.
type OutputFormat string

const (
	// FormatText writes a plain-text table.
	FormatText OutputFormat = "text"
	// FormatCSV writes comma-separated values.
	FormatCSV OutputFormat = "csv"
	// FormatChart renders a PNG bar chart of per-operation latency.
	FormatChart OutputFormat = "chart"
)

// Reporter writes benchmark results in the chosen format.
type Reporter struct {
	format OutputFormat
	output string
}

// NewReporter creates a reporter. An empty output path means stdout for the
// textual formats; the chart format requires a file path.
func NewReporter(format OutputFormat, output string) *Reporter {
	return &Reporter{format: format, output: output}
}

// Report writes the results.
func (r *Reporter) Report(results []Result) error {
	switch r.format {
	case FormatCSV:
		return r.withWriter(func(w io.Writer) error { return writeCSV(w, results) })
	case FormatChart:
		if r.output == "" {
			return fmt.Errorf("chart output requires a file path")
		}
		return writeChart(r.output, results)
	default:
		return r.withWriter(func(w io.Writer) error { return writeText(w, results) })
	}
}

func (r *Reporter) withWriter(f func(io.Writer) error) error {
	if r.output == "" {
		return f(os.Stdout)
	}
	file, err := os.Create(r.output)
	if err != nil {
		return err
	}
	defer file.Close()
	return f(file)
}

func writeText(w io.Writer, results []Result) error {
	for _, res := range results {
		if _, err := fmt.Fprintf(w, "%-10s %6d iterations  total %-14v per-op %v\n",
			res.Operation, res.Iterations, res.Total, res.PerOp); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(w io.Writer, results []Result) error {
	if _, err := fmt.Fprintln(w, "operation,iterations,total_ns,per_op_ns"); err != nil {
		return err
	}
	for _, res := range results {
		if _, err := fmt.Fprintf(w, "%s,%d,%d,%d\n",
			res.Operation, res.Iterations, res.Total.Nanoseconds(), res.PerOp.Nanoseconds()); err != nil {
			return err
		}
	}
	return nil
}

func writeChart(path string, results []Result) error {
	bars := make([]chart.Value, 0, len(results))
	for _, res := range results {
		bars = append(bars, chart.Value{
			Label: res.Operation,
			Value: float64(res.PerOp.Milliseconds()),
		})
	}

	graph := chart.BarChart{
		Title:    "Per-operation latency (ms)",
		Width:    800,
		Height:   500,
		BarWidth: 80,
		Bars:     bars,
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return graph.Render(chart.PNG, file)
}
