// Package latency aggregates per-request generation latencies and renders
// tail percentile reports.
package latency

import (
	"fmt"
	"io"
	"sort"
)

// Summary holds the aggregate statistics for one benchmark run. All values
// are in seconds.
type Summary struct {
	Count int
	Avg   float64
	P50   float64
	P90   float64
	P95   float64
	P99   float64
	P999  float64
}

// Percentile selects the p-th percentile from an ascending-sorted set using
// the nearest-rank method: rank = (n-1)*p/100 + 1, truncated to its floor.
// There is no interpolation between adjacent points. The truncating rank is
// kept as-is so that reported numbers line up with historical runs.
func Percentile(sorted []float64, p float64) float64 {
	rank := float64(len(sorted)-1)*p/100.0 + 1
	return sorted[int(rank)-1]
}

// Summarize drops the first warmup samples, sorts the remainder, and computes
// the average and tail percentiles. The second return value is false when no
// samples remain after warm-up removal. The input slice is not modified.
func Summarize(samples []float64, warmup int) (Summary, bool) {
	if warmup < 0 {
		warmup = 0
	}
	if warmup > len(samples) {
		warmup = len(samples)
	}
	retained := make([]float64, len(samples)-warmup)
	copy(retained, samples[warmup:])

	count := len(retained)
	if count == 0 {
		return Summary{}, false
	}
	sort.Float64s(retained)

	sum := 0.0
	for _, s := range retained {
		sum += s
	}

	return Summary{
		Count: count,
		Avg:   sum / float64(count),
		P50:   Percentile(retained, 50),
		P90:   Percentile(retained, 90),
		P95:   Percentile(retained, 95),
		P99:   Percentile(retained, 99),
		P999:  Percentile(retained, 99.9),
	}, true
}

// Report renders the latency statistics for samples under the given title,
// excluding the first warmup entries. Values are printed in milliseconds with
// two decimal places. When no samples remain after warm-up removal nothing is
// written; that is not an error.
func Report(w io.Writer, samples []float64, title string, warmup int) {
	s, ok := Summarize(samples, warmup)
	if !ok {
		return
	}

	fmt.Fprintf(w, "====== latency stats %s ======\n", title)
	fmt.Fprintf(w, "\tAvg Latency: %8.2f ms\n", s.Avg*1000)
	fmt.Fprintf(w, "\tP50 Latency: %8.2f ms\n", s.P50*1000)
	fmt.Fprintf(w, "\tP90 Latency: %8.2f ms\n", s.P90*1000)
	fmt.Fprintf(w, "\tP95 Latency: %8.2f ms\n", s.P95*1000)
	fmt.Fprintf(w, "\tP99 Latency: %8.2f ms\n", s.P99*1000)
	fmt.Fprintf(w, "\t999 Latency: %8.2f ms\n", s.P999*1000)
}
