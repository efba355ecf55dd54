package latency

import (
	"sync"
	"time"

	"github.com/jamiealquiza/tachymeter"
)

// Collector accumulates latency samples as requests complete.
type Collector interface {
	Add(seconds float64)    // Add records one sample, in seconds.
	Samples() []float64     // Samples returns a copy of everything recorded, in order.
	Len() int               // Len reports the number of samples recorded.
	Reset()                 // Reset discards all recorded samples.
}

// ArrayCollector keeps every sample in memory, in arrival order. Storage is
// O(n), which is fine for a bounded benchmarking run.
type ArrayCollector struct {
	mu      sync.Mutex
	samples []float64
}

// NewArrayCollector creates an empty ArrayCollector.
func NewArrayCollector() *ArrayCollector {
	return &ArrayCollector{samples: []float64{}}
}

// Add records one sample, in seconds.
func (c *ArrayCollector) Add(seconds float64) {
	c.mu.Lock()
	c.samples = append(c.samples, seconds)
	c.mu.Unlock()
}

// Samples returns a copy of the recorded samples in arrival order.
func (c *ArrayCollector) Samples() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]float64, len(c.samples))
	copy(out, c.samples)
	return out
}

// Len reports the number of samples recorded so far.
func (c *ArrayCollector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples)
}

// Reset discards all recorded samples.
func (c *ArrayCollector) Reset() {
	c.mu.Lock()
	c.samples = []float64{}
	c.mu.Unlock()
}

// StepWindow tracks a sliding window of engine step durations using
// tachymeter. It backs the live percentile readout on the progress bar while
// a run is in flight; the final report always comes from the full sample set
// instead.
type StepWindow struct {
	tach *tachymeter.Tachymeter
}

// NewStepWindow creates a window over the last size step durations.
func NewStepWindow(size int) *StepWindow {
	return &StepWindow{tach: tachymeter.New(&tachymeter.Config{Size: size})}
}

// Observe records one step duration.
func (w *StepWindow) Observe(d time.Duration) {
	w.tach.AddTime(d)
}

// P50 returns the median step duration over the current window.
func (w *StepWindow) P50() time.Duration {
	return w.tach.Calc().Time.P50
}

// Reset clears the window.
func (w *StepWindow) Reset() {
	w.tach.Reset()
}
