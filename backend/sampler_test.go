package backend

import (
	"math/rand"
	"testing"

	"genperf/engine"
)

func newTestSeq(opts ...engine.SamplingOption) *engine.Sequence {
	return engine.NewSequence([]int{1, 2, 3}, engine.NewSamplingParams(opts...), 256)
}

func TestSamplerTopKOne(t *testing.T) {
	s := newSampler(rand.New(rand.NewSource(1)))
	logits := []float32{0.1, 5.0, 0.2, 0.3}
	seq := newTestSeq(engine.WithTopK(1), engine.WithTopP(1.0))

	for i := 0; i < 20; i++ {
		if got := s.sample(logits, seq); got != 1 {
			t.Fatalf("top-k=1 must pick the argmax, got %d", got)
		}
	}
}

func TestSamplerDeterministicWithSeed(t *testing.T) {
	logits := []float32{1.0, 2.0, 3.0, 2.5, 0.5}
	seq := newTestSeq(engine.WithTemperature(0.8))

	a := newSampler(rand.New(rand.NewSource(42)))
	b := newSampler(rand.New(rand.NewSource(42)))
	for i := 0; i < 50; i++ {
		ta, tb := a.sample(logits, seq), b.sample(logits, seq)
		if ta != tb {
			t.Fatalf("draw %d diverged: %d vs %d", i, ta, tb)
		}
	}
}

func TestSamplerNucleusExcludesTail(t *testing.T) {
	s := newSampler(rand.New(rand.NewSource(7)))
	// Token 0 carries almost all the mass; a tight nucleus must never pick
	// the tail tokens.
	logits := []float32{10.0, 0.0, 0.0, 0.0}
	seq := newTestSeq(engine.WithTopP(0.5))

	for i := 0; i < 100; i++ {
		if got := s.sample(logits, seq); got != 0 {
			t.Fatalf("nucleus sampling leaked tail token %d", got)
		}
	}
}

func TestSamplerRepetitionPenalty(t *testing.T) {
	s := newSampler(rand.New(rand.NewSource(3)))
	// Tokens 1..3 are already in the sequence. With a strong penalty and
	// otherwise equal logits, token 0 dominates.
	logits := []float32{2.0, 2.0, 2.0, 2.0}
	seq := newTestSeq(engine.WithRepetitionPenalty(100.0), engine.WithTopK(1), engine.WithTopP(1.0))

	if got := s.sample(logits, seq); got != 0 {
		t.Fatalf("expected unpenalized token 0, got %d", got)
	}
}
