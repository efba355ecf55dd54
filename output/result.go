// Package output renders and exports benchmark results.
package output

import (
	"fmt"
	"os"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/olekukonko/tablewriter"

	"genperf/latency"
)

// Result is the exportable record of one benchmark case.
type Result struct {
	RunID     string    `json:"runID"`
	Name      string    `json:"name"`
	ModelType string    `json:"modelType"`
	Model     string    `json:"model"`
	BatchSize int       `json:"batchSize"`
	Length    int       `json:"length"`
	Warmup    int       `json:"warmup"`
	Samples   int       `json:"samples"`
	Timestamp time.Time `json:"timestamp"`

	// Latency statistics in milliseconds, per token per batch element.
	AvgMs    float64 `json:"avgMs"`
	P50Ms    float64 `json:"p50Ms"`
	P90Ms    float64 `json:"p90Ms"`
	P95Ms    float64 `json:"p95Ms"`
	P99Ms    float64 `json:"p99Ms"`
	P999Ms   float64 `json:"p999Ms"`
	MinMs    float64 `json:"minMs"`
	MaxMs    float64 `json:"maxMs"`
	StdDevMs float64 `json:"stdDevMs"`
}

// BuildResult assembles a Result from the raw sample set. The percentile
// block comes from the latency summary; min/max/stddev are computed over the
// same post-warmup window. The bool result is false when warm-up removal
// leaves nothing to aggregate.
func BuildResult(runID, name, modelType, model string, batchSize, length, warmup int, samples []float64) (Result, bool) {
	s, ok := latency.Summarize(samples, warmup)
	if !ok {
		return Result{}, false
	}

	if warmup < 0 {
		warmup = 0
	}
	retained := samples[min(warmup, len(samples)):]
	minVal, _ := stats.Min(retained)
	maxVal, _ := stats.Max(retained)
	stdDev, _ := stats.StandardDeviation(retained)

	return Result{
		RunID:     runID,
		Name:      name,
		ModelType: modelType,
		Model:     model,
		BatchSize: batchSize,
		Length:    length,
		Warmup:    warmup,
		Samples:   s.Count,
		Timestamp: time.Now().UTC(),
		AvgMs:     s.Avg * 1000,
		P50Ms:     s.P50 * 1000,
		P90Ms:     s.P90 * 1000,
		P95Ms:     s.P95 * 1000,
		P99Ms:     s.P99 * 1000,
		P999Ms:    s.P999 * 1000,
		MinMs:     minVal * 1000,
		MaxMs:     maxVal * 1000,
		StdDevMs:  stdDev * 1000,
	}, true
}

func initTable(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	return table
}

// ShowResults prints the summary table for a finished run.
func ShowResults(results []Result) {
	table := initTable([]string{"Case", "Model Type", "Batch", "Length", "Samples",
		"Avg (ms)", "P50 (ms)", "P90 (ms)", "P95 (ms)", "P99 (ms)", "P99.9 (ms)", "StdDev (ms)"})
	for _, r := range results {
		table.Append([]string{
			r.Name,
			r.ModelType,
			fmt.Sprintf("%d", r.BatchSize),
			fmt.Sprintf("%d", r.Length),
			fmt.Sprintf("%d", r.Samples),
			fmt.Sprintf("%.2f", r.AvgMs),
			fmt.Sprintf("%.2f", r.P50Ms),
			fmt.Sprintf("%.2f", r.P90Ms),
			fmt.Sprintf("%.2f", r.P95Ms),
			fmt.Sprintf("%.2f", r.P99Ms),
			fmt.Sprintf("%.2f", r.P999Ms),
			fmt.Sprintf("%.2f", r.StdDevMs),
		})
	}
	table.Render()
}
