package engine

import (
	"testing"
)

func testConfig() *Config {
	return NewConfig("",
		WithMaxSeqs(8),
		WithMaxBatchedTokens(4096),
		WithNumKVBlocks(64),
		WithEOS(2),
	)
}

func TestSchedulerPrefillThenDecode(t *testing.T) {
	s := NewScheduler(testConfig())
	params := NewSamplingParams(WithMaxTokens(4))

	s.Add(NewSequence([]int{1, 2, 3}, params, 256))
	s.Add(NewSequence([]int{4, 5}, params, 256))

	seqs, isPrefill := s.Schedule()
	if !isPrefill {
		t.Errorf("First step should be prefill")
	}
	if len(seqs) != 2 {
		t.Errorf("Expected both sequences in the prefill batch, got %d", len(seqs))
	}

	s.Postprocess(seqs, []int{10, 11})

	seqs, isPrefill = s.Schedule()
	if isPrefill {
		t.Errorf("Second step should be decode")
	}
	if len(seqs) != 2 {
		t.Errorf("Expected both sequences in the decode batch, got %d", len(seqs))
	}
}

func TestSchedulerRespectsTokenBudget(t *testing.T) {
	cfg := NewConfig("",
		WithMaxSeqs(8),
		WithMaxModelLen(512),
		WithMaxBatchedTokens(512),
		WithNumKVBlocks(64),
		WithEOS(2),
	)
	s := NewScheduler(cfg)
	params := NewSamplingParams(WithMaxTokens(4))

	long := make([]int, 400)
	for i := range long {
		long[i] = i + 1
	}
	s.Add(NewSequence(long, params, 256))
	s.Add(NewSequence(long, params, 256))

	seqs, isPrefill := s.Schedule()
	if !isPrefill || len(seqs) != 1 {
		t.Fatalf("Token budget should admit only one sequence, got %d (prefill=%v)", len(seqs), isPrefill)
	}
}

func TestSchedulerFinishesAtEOS(t *testing.T) {
	s := NewScheduler(testConfig())
	params := NewSamplingParams(WithMaxTokens(100))

	seq := NewSequence([]int{1, 2, 3}, params, 256)
	s.Add(seq)

	seqs, _ := s.Schedule()
	s.Postprocess(seqs, []int{2}) // EOS

	if !seq.IsFinished() {
		t.Errorf("Sequence should finish on EOS")
	}
	if !s.IsFinished() {
		t.Errorf("Scheduler should be drained")
	}
}

func TestSchedulerHonorsMinTokens(t *testing.T) {
	s := NewScheduler(testConfig())
	params := NewSamplingParams(WithMaxTokens(100), WithMinTokens(3))

	seq := NewSequence([]int{1, 2, 3}, params, 256)
	s.Add(seq)

	seqs, _ := s.Schedule()
	s.Postprocess(seqs, []int{2}) // EOS too early

	if seq.IsFinished() {
		t.Errorf("EOS before MinTokens must not finish the sequence")
	}

	seqs, _ = s.Schedule()
	s.Postprocess(seqs, []int{7})
	seqs, _ = s.Schedule()
	s.Postprocess(seqs, []int{2}) // EOS at MinTokens

	if !seq.IsFinished() {
		t.Errorf("EOS at MinTokens should finish the sequence")
	}
}

func TestSchedulerFixedLengthRun(t *testing.T) {
	s := NewScheduler(testConfig())
	params := NewSamplingParams(WithMaxTokens(5), WithMinTokens(5), WithIgnoreEOS(true))

	seq := NewSequence([]int{1, 2, 3}, params, 256)
	s.Add(seq)

	steps := 0
	for !s.IsFinished() {
		seqs, _ := s.Schedule()
		tokens := make([]int, len(seqs))
		for i := range tokens {
			tokens[i] = 2 // EOS every step; must be ignored
		}
		s.Postprocess(seqs, tokens)
		steps++
	}

	if seq.NumCompletionTokens() != 5 {
		t.Errorf("Expected exactly 5 completion tokens, got %d", seq.NumCompletionTokens())
	}
	if steps != 5 {
		t.Errorf("Expected 5 steps, got %d", steps)
	}
}
