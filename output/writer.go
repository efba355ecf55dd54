package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// WriteJSON writes the results to path as a JSON array.
func WriteJSON(path string, results []Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return nil
}

var csvHeader = []string{
	"run_id", "case", "model_type", "model", "batch_size", "length", "warmup",
	"samples", "timestamp",
	"avg_ms", "p50_ms", "p90_ms", "p95_ms", "p99_ms", "p999_ms",
	"min_ms", "max_ms", "stddev_ms",
}

// WriteCSV writes the results to path as CSV, one row per case.
func WriteCSV(path string, results []Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, r := range results {
		row := []string{
			r.RunID,
			r.Name,
			r.ModelType,
			r.Model,
			fmt.Sprintf("%d", r.BatchSize),
			fmt.Sprintf("%d", r.Length),
			fmt.Sprintf("%d", r.Warmup),
			fmt.Sprintf("%d", r.Samples),
			r.Timestamp.Format(time.RFC3339),
			fmt.Sprintf("%.4f", r.AvgMs),
			fmt.Sprintf("%.4f", r.P50Ms),
			fmt.Sprintf("%.4f", r.P90Ms),
			fmt.Sprintf("%.4f", r.P95Ms),
			fmt.Sprintf("%.4f", r.P99Ms),
			fmt.Sprintf("%.4f", r.P999Ms),
			fmt.Sprintf("%.4f", r.MinMs),
			fmt.Sprintf("%.4f", r.MaxMs),
			fmt.Sprintf("%.4f", r.StdDevMs),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", r.Name, err)
		}
	}

	w.Flush()
	return w.Error()
}
