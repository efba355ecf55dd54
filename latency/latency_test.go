package latency

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportSingleSample(t *testing.T) {
	var buf bytes.Buffer
	Report(&buf, []float64{1.0}, "single", 0)

	out := buf.String()
	assert.Contains(t, out, "====== latency stats single ======")
	for _, label := range []string{"Avg", "P50", "P90", "P95", "P99", "999"} {
		assert.Contains(t, out, "\t"+label+" Latency:  1000.00 ms")
	}
}

func TestReportWorkedExample(t *testing.T) {
	var buf bytes.Buffer
	Report(&buf, []float64{0.1, 0.2, 0.3, 0.4, 0.5}, "five", 0)

	out := buf.String()
	// rank(50) = (5-1)*0.5+1 = 3.0 -> third value, rank(90) = 4.6 -> fourth.
	assert.Contains(t, out, "\tP50 Latency:   300.00 ms")
	assert.Contains(t, out, "\tP90 Latency:   400.00 ms")
	assert.Contains(t, out, "\tP95 Latency:   400.00 ms")
	assert.Contains(t, out, "\tP99 Latency:   400.00 ms")
	assert.Contains(t, out, "\t999 Latency:   400.00 ms")
	assert.Contains(t, out, "\tAvg Latency:   300.00 ms")
}

func TestReportNoOpWhenAllWarmup(t *testing.T) {
	for _, tc := range []struct {
		samples []float64
		warmup  int
	}{
		{nil, 0},
		{nil, 1},
		{[]float64{0.5}, 1},
		{[]float64{0.5, 0.6}, 2},
		{[]float64{0.5, 0.6}, 5},
	} {
		var buf bytes.Buffer
		Report(&buf, tc.samples, "empty", tc.warmup)
		assert.Zero(t, buf.Len(), "expected no output for %v warmup=%d", tc.samples, tc.warmup)
	}
}

func TestReportDropsWarmupPrefix(t *testing.T) {
	// The first sample is a cold-start outlier and must not show up in the
	// statistics once the default warm-up of one is applied.
	samples := []float64{9.0, 0.2, 0.2, 0.2}

	var buf bytes.Buffer
	Report(&buf, samples, "warm", 1)
	assert.Contains(t, buf.String(), "\tAvg Latency:   200.00 ms")
	assert.NotContains(t, buf.String(), "9000.00")
}

func TestSummarizeAverage(t *testing.T) {
	samples := []float64{0.010, 0.025, 0.040, 0.015, 0.300}
	sum := 0.0
	for _, s := range samples {
		sum += s
	}

	s, ok := Summarize(samples, 0)
	require.True(t, ok)
	assert.Equal(t, len(samples), s.Count)
	assert.InDelta(t, sum/float64(len(samples)), s.Avg, 1e-12)
}

func TestSummarizeNearestRankFloor(t *testing.T) {
	// With 10 values 1..10, rank(99) = 9*0.99+1 = 9.91 -> floor 9 -> value 9.
	sorted := make([]float64, 10)
	for i := range sorted {
		sorted[i] = float64(i + 1)
	}
	assert.Equal(t, 9.0, Percentile(sorted, 99))
	assert.Equal(t, 9.0, Percentile(sorted, 99.9))
	assert.Equal(t, 5.0, Percentile(sorted, 50))
	assert.Equal(t, 9.0, Percentile(sorted, 90))
}

func TestReportIdempotent(t *testing.T) {
	samples := []float64{0.3, 0.1, 0.4, 0.1, 0.5}

	var first, second bytes.Buffer
	Report(&first, samples, "twice", 1)
	Report(&second, samples, "twice", 1)
	assert.Equal(t, first.String(), second.String())
}

func TestReportOrderIndependent(t *testing.T) {
	samples := []float64{0.08, 0.02, 0.05, 0.01, 0.09, 0.03, 0.07}

	var want bytes.Buffer
	Report(&want, samples, "perm", 0)

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 10; i++ {
		shuffled := make([]float64, len(samples))
		copy(shuffled, samples)
		r.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		var got bytes.Buffer
		Report(&got, shuffled, "perm", 0)
		assert.Equal(t, want.String(), got.String())
	}
}

func TestReportDoesNotMutateInput(t *testing.T) {
	samples := []float64{0.5, 0.1, 0.3}
	Report(&bytes.Buffer{}, samples, "mutate", 0)
	assert.Equal(t, []float64{0.5, 0.1, 0.3}, samples)
}

func TestReportLineShape(t *testing.T) {
	var buf bytes.Buffer
	Report(&buf, []float64{0.123456}, "shape", 0)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "====== latency stats shape ======", lines[0])
	for _, line := range lines[1:] {
		assert.True(t, strings.HasPrefix(line, "\t"), "stat lines are tab-indented: %q", line)
		assert.True(t, strings.HasSuffix(line, " ms"), "stat lines end in ms: %q", line)
		assert.Contains(t, line, "123.46")
	}
}
