package engine

import "sync/atomic"

// SequenceStatus represents the lifecycle state of a sequence.
type SequenceStatus int

const (
	StatusWaiting SequenceStatus = iota
	StatusRunning
	StatusFinished
)

// Sequence is the engine-side state of a single generation request.
type Sequence struct {
	SeqID           int64
	Status          SequenceStatus
	TokenIDs        []int
	LastToken       int
	NumTokens       int
	NumPromptTokens int
	NumCachedTokens int
	BlockTable      []int
	BlockSize       int
	Params          SamplingParams
}

var seqCounter int64

// NewSequence creates a sequence from prompt token ids. The sampling
// parameters are copied so later mutation of the shared params cannot affect
// an in-flight request.
func NewSequence(tokenIDs []int, params *SamplingParams, blockSize int) *Sequence {
	seqID := atomic.AddInt64(&seqCounter, 1) - 1

	tokens := make([]int, len(tokenIDs))
	copy(tokens, tokenIDs)

	return &Sequence{
		SeqID:           seqID,
		Status:          StatusWaiting,
		TokenIDs:        tokens,
		LastToken:       tokens[len(tokens)-1],
		NumTokens:       len(tokens),
		NumPromptTokens: len(tokens),
		BlockTable:      make([]int, 0),
		BlockSize:       blockSize,
		Params:          *params,
	}
}

// Len returns the total number of tokens in the sequence.
func (s *Sequence) Len() int {
	return s.NumTokens
}

// IsFinished returns true once generation for this sequence has completed.
func (s *Sequence) IsFinished() bool {
	return s.Status == StatusFinished
}

// NumCompletionTokens returns the number of generated tokens so far.
func (s *Sequence) NumCompletionTokens() int {
	return s.NumTokens - s.NumPromptTokens
}

// PromptTokenIDs returns the prompt portion of the sequence.
func (s *Sequence) PromptTokenIDs() []int {
	return s.TokenIDs[:s.NumPromptTokens]
}

// CompletionTokenIDs returns the generated portion of the sequence.
func (s *Sequence) CompletionTokenIDs() []int {
	return s.TokenIDs[s.NumPromptTokens:]
}

// NumCachedBlocks returns the number of fully prefix-cached blocks.
func (s *Sequence) NumCachedBlocks() int {
	return s.NumCachedTokens / s.BlockSize
}

// NumBlocks returns the number of KV blocks the sequence occupies.
func (s *Sequence) NumBlocks() int {
	return (s.NumTokens + s.BlockSize - 1) / s.BlockSize
}

// LastBlockNumTokens returns how many tokens sit in the final block.
func (s *Sequence) LastBlockNumTokens() int {
	return s.NumTokens - (s.NumBlocks()-1)*s.BlockSize
}

// Block returns the token ids stored in the i-th block, or nil when i is out
// of range.
func (s *Sequence) Block(i int) []int {
	if i < 0 || i >= s.NumBlocks() {
		return nil
	}
	start := i * s.BlockSize
	end := start + s.BlockSize
	if end > len(s.TokenIDs) {
		end = len(s.TokenIDs)
	}
	return s.TokenIDs[start:end]
}

// AppendToken appends a generated token.
func (s *Sequence) AppendToken(tokenID int) {
	s.TokenIDs = append(s.TokenIDs, tokenID)
	s.LastToken = tokenID
	s.NumTokens++
}

// canFinishAt reports whether a freshly sampled token ends the sequence,
// honoring MinTokens and IgnoreEOS. The completion count already includes the
// sampled token when this is called.
func (s *Sequence) canFinishAt(tokenID, eos int) bool {
	if s.NumCompletionTokens() >= s.Params.MaxTokens {
		return true
	}
	if s.Params.IgnoreEOS || tokenID != eos {
		return false
	}
	return s.NumCompletionTokens() >= s.Params.MinTokens
}
