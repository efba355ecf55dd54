package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func writeAccelConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accel.json")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadAccelConfig(t *testing.T) {
	cfg, err := LoadAccelConfig(writeAccelConfig(t, `{"zero_optimization": {"stage": 3}}`))
	if err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if cfg.ZeroOptimization.Stage != 3 {
		t.Errorf("Expected stage 3, got %d", cfg.ZeroOptimization.Stage)
	}
}

func TestLoadAccelConfigRejectsOtherStages(t *testing.T) {
	for _, stage := range []int{0, 1, 2} {
		_, err := LoadAccelConfig(writeAccelConfig(t, fmt.Sprintf(`{"zero_optimization": {"stage": %d}}`, stage)))
		if err == nil {
			t.Errorf("Stage %d should be rejected", stage)
		}
	}
}

func TestLoadAccelConfigErrors(t *testing.T) {
	if _, err := LoadAccelConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Errorf("Missing file should error")
	}
	if _, err := LoadAccelConfig(writeAccelConfig(t, "not json")); err == nil {
		t.Errorf("Malformed JSON should error")
	}
}

// orderRecordingRunner tags each result with the position it was asked for,
// so merge order is observable.
type orderRecordingRunner struct{}

func (r *orderRecordingRunner) Run(seqs []*Sequence, isPrefill bool) ([]int, error) {
	out := make([]int, len(seqs))
	for i, seq := range seqs {
		out[i] = int(seq.SeqID)
	}
	return out, nil
}

func (r *orderRecordingRunner) Close() error { return nil }

type failingRunner struct{}

func (r *failingRunner) Run(seqs []*Sequence, isPrefill bool) ([]int, error) {
	return nil, fmt.Errorf("backend exploded")
}

func (r *failingRunner) Close() error { return nil }

func TestShardedRunnerMergesInOrder(t *testing.T) {
	sr, err := NewShardedRunner(3, func(shard int) (ModelRunner, error) {
		return &orderRecordingRunner{}, nil
	})
	if err != nil {
		t.Fatalf("NewShardedRunner failed: %v", err)
	}
	defer sr.Close()

	params := NewSamplingParams()
	seqs := make([]*Sequence, 7)
	for i := range seqs {
		seqs[i] = NewSequence([]int{1, 2}, params, 256)
	}

	out, err := sr.Run(seqs, true)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(out) != len(seqs) {
		t.Fatalf("Expected %d tokens, got %d", len(seqs), len(out))
	}
	for i, tok := range out {
		if tok != int(seqs[i].SeqID) {
			t.Errorf("Position %d: expected token %d, got %d", i, seqs[i].SeqID, tok)
		}
	}
}

func TestShardedRunnerSmallBatch(t *testing.T) {
	sr, err := NewShardedRunner(4, func(shard int) (ModelRunner, error) {
		return &orderRecordingRunner{}, nil
	})
	if err != nil {
		t.Fatalf("NewShardedRunner failed: %v", err)
	}
	defer sr.Close()

	seqs := []*Sequence{NewSequence([]int{1}, NewSamplingParams(), 256)}
	out, err := sr.Run(seqs, false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(out) != 1 || out[0] != int(seqs[0].SeqID) {
		t.Errorf("Single-sequence batch mishandled: %v", out)
	}
}

func TestShardedRunnerPropagatesErrors(t *testing.T) {
	sr, err := NewShardedRunner(2, func(shard int) (ModelRunner, error) {
		if shard == 1 {
			return &failingRunner{}, nil
		}
		return &orderRecordingRunner{}, nil
	})
	if err != nil {
		t.Fatalf("NewShardedRunner failed: %v", err)
	}
	defer sr.Close()

	params := NewSamplingParams()
	seqs := make([]*Sequence, 4)
	for i := range seqs {
		seqs[i] = NewSequence([]int{1}, params, 256)
	}

	if _, err := sr.Run(seqs, true); err == nil {
		t.Errorf("Expected shard failure to propagate")
	}
}

func TestShardedRunnerConstructorFailure(t *testing.T) {
	_, err := NewShardedRunner(2, func(shard int) (ModelRunner, error) {
		if shard == 1 {
			return nil, fmt.Errorf("no device")
		}
		return &orderRecordingRunner{}, nil
	})
	if err == nil {
		t.Errorf("Expected constructor failure to propagate")
	}

	if _, err := NewShardedRunner(0, nil); err == nil {
		t.Errorf("Expected error for zero shards")
	}
}
