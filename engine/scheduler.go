package engine

import "container/list"

// Scheduler batches sequences into prefill and decode steps under the
// engine's token and sequence budgets.
type Scheduler struct {
	maxSeqs          int
	maxBatchedTokens int
	eos              int
	blockManager     *BlockManager
	waiting          *list.List
	running          *list.List
}

// NewScheduler creates a scheduler for the given config.
func NewScheduler(config *Config) *Scheduler {
	return &Scheduler{
		maxSeqs:          config.MaxSeqs,
		maxBatchedTokens: config.MaxBatchedTokens,
		eos:              config.EOS,
		blockManager:     NewBlockManager(config.NumKVBlocks, config.KVBlockSize),
		waiting:          list.New(),
		running:          list.New(),
	}
}

// IsFinished reports whether every queued sequence has completed.
func (s *Scheduler) IsFinished() bool {
	return s.waiting.Len() == 0 && s.running.Len() == 0
}

// Add queues a sequence for prefill.
func (s *Scheduler) Add(seq *Sequence) {
	s.waiting.PushBack(seq)
}

// Schedule selects the sequences for the next step. The bool result is true
// for a prefill step, false for decode. Prefill takes priority: new work is
// admitted whenever the waiting queue is non-empty and budget remains.
func (s *Scheduler) Schedule() ([]*Sequence, bool) {
	scheduled := make([]*Sequence, 0)
	numSeqs := 0
	numBatchedTokens := 0

	for s.waiting.Len() > 0 && numSeqs < s.maxSeqs {
		elem := s.waiting.Front()
		seq := elem.Value.(*Sequence)

		if numBatchedTokens+seq.Len() > s.maxBatchedTokens || !s.blockManager.CanAllocate(seq) {
			break
		}

		numSeqs++
		s.blockManager.Allocate(seq)
		numBatchedTokens += seq.Len() - seq.NumCachedTokens
		seq.Status = StatusRunning

		s.waiting.Remove(elem)
		s.running.PushBack(seq)
		scheduled = append(scheduled, seq)
	}

	if len(scheduled) > 0 {
		return scheduled, true
	}

	// Decode step. Sequences that cannot grow get preempted, victims taken
	// from the back of the running queue first.
	for s.running.Len() > 0 && numSeqs < s.maxSeqs {
		elem := s.running.Front()
		seq := elem.Value.(*Sequence)
		s.running.Remove(elem)

		for !s.blockManager.CanAppend(seq) {
			if s.running.Len() > 0 {
				last := s.running.Back()
				s.running.Remove(last)
				s.preempt(last.Value.(*Sequence))
			} else {
				s.preempt(seq)
				break
			}
		}

		if seq.Status == StatusRunning {
			numSeqs++
			s.blockManager.MayAppend(seq)
			scheduled = append(scheduled, seq)
		}
	}

	if len(scheduled) == 0 {
		panic("no sequences scheduled")
	}

	// Keep the scheduled sequences at the front of the running queue.
	for i := len(scheduled) - 1; i >= 0; i-- {
		s.running.PushFront(scheduled[i])
	}

	return scheduled, false
}

func (s *Scheduler) preempt(seq *Sequence) {
	seq.Status = StatusWaiting
	s.blockManager.Deallocate(seq)
	s.waiting.PushFront(seq)
}

// Postprocess appends the sampled tokens and retires finished sequences. A
// sequence finishes on EOS only after MinTokens completion tokens, or
// unconditionally at MaxTokens.
func (s *Scheduler) Postprocess(seqs []*Sequence, tokenIDs []int) {
	for i, seq := range seqs {
		tokenID := tokenIDs[i]
		seq.AppendToken(tokenID)

		if !seq.canFinishAt(tokenID, s.eos) {
			continue
		}

		seq.Status = StatusFinished
		s.blockManager.Deallocate(seq)
		for elem := s.running.Front(); elem != nil; elem = elem.Next() {
			if elem.Value.(*Sequence).SeqID == seq.SeqID {
				s.running.Remove(elem)
				break
			}
		}
	}
}
