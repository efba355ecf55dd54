package bench

import (
	"strings"
	"testing"

	"genperf/engine"
)

func newMockEngine() *engine.Engine {
	cfg := engine.NewConfig("",
		engine.WithMaxSeqs(64),
		engine.WithNumKVBlocks(256),
	)
	return engine.NewMockEngine(cfg)
}

func TestRunProducesOneSamplePerPrompt(t *testing.T) {
	e := newMockEngine()
	defer e.Close()

	prompts := []string{"first prompt", "second prompt", "third prompt"}
	params := FixedLengthParams(4, engine.WithTemperature(0.6))

	samples, err := Run(e, prompts, params, Options{BatchSize: 2, Length: 4})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(samples) != len(prompts) {
		t.Fatalf("Expected %d samples, got %d", len(prompts), len(samples))
	}
	for i, s := range samples {
		if s <= 0 {
			t.Errorf("Sample %d should be positive, got %v", i, s)
		}
	}
}

func TestRunValidation(t *testing.T) {
	e := newMockEngine()
	defer e.Close()

	params := FixedLengthParams(4)
	if _, err := Run(e, nil, params, Options{BatchSize: 1, Length: 4}); err == nil {
		t.Errorf("Expected error for empty prompt set")
	}
	if _, err := Run(e, []string{"p"}, params, Options{BatchSize: 0, Length: 4}); err == nil {
		t.Errorf("Expected error for zero batch size")
	}
	if _, err := Run(e, []string{"p"}, params, Options{BatchSize: 1, Length: 0}); err == nil {
		t.Errorf("Expected error for zero length")
	}
}

func TestRunErrorsNameTheCase(t *testing.T) {
	e := newMockEngine()
	defer e.Close()

	params := FixedLengthParams(4)
	_, err := Run(e, []string{"p"}, params, Options{Title: "gpt2-b8", BatchSize: 0, Length: 4})
	if err == nil {
		t.Fatalf("Expected error for zero batch size")
	}
	if !strings.Contains(err.Error(), "gpt2-b8") {
		t.Errorf("Error should name the case, got: %v", err)
	}

	_, err = Run(e, nil, params, Options{BatchSize: 1, Length: 4})
	if err == nil || !strings.Contains(err.Error(), "bench") {
		t.Errorf("Untitled runs should fall back to a generic name, got: %v", err)
	}
}

func TestFixedLengthParams(t *testing.T) {
	params := FixedLengthParams(32, engine.WithTemperature(0.6), engine.WithTopK(50))

	if params.MaxTokens != 32 || params.MinTokens != 32 {
		t.Errorf("Expected min == max == 32, got min=%d max=%d", params.MinTokens, params.MaxTokens)
	}
	if !params.IgnoreEOS {
		t.Errorf("Fixed-length runs must ignore EOS")
	}
	if params.Temperature != 0.6 || params.TopK != 50 {
		t.Errorf("Caller options should still apply")
	}
}
