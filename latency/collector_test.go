package latency

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestArrayCollectorOrder(t *testing.T) {
	c := NewArrayCollector()
	c.Add(0.3)
	c.Add(0.1)
	c.Add(0.2)

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []float64{0.3, 0.1, 0.2}, c.Samples())

	c.Reset()
	assert.Zero(t, c.Len())
	assert.Empty(t, c.Samples())
}

func TestArrayCollectorCopies(t *testing.T) {
	c := NewArrayCollector()
	c.Add(0.1)

	got := c.Samples()
	got[0] = 99.0
	assert.Equal(t, []float64{0.1}, c.Samples())
}

func TestArrayCollectorConcurrentAdd(t *testing.T) {
	c := NewArrayCollector()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Add(0.001)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800, c.Len())
}

func TestStepWindow(t *testing.T) {
	w := NewStepWindow(16)
	for i := 0; i < 10; i++ {
		w.Observe(10 * time.Millisecond)
	}
	assert.Equal(t, 10*time.Millisecond, w.P50())

	w.Reset()
	w.Observe(20 * time.Millisecond)
	assert.Equal(t, 20*time.Millisecond, w.P50())
}
