package engine

import "fmt"

// SamplingParams holds the per-request sampling parameters.
type SamplingParams struct {
	Temperature       float64
	TopK              int     // 0 disables top-k filtering
	TopP              float64 // nucleus mass; 1.0 disables
	RepetitionPenalty float64 // 1.0 disables
	MaxTokens         int
	MinTokens         int // EOS is suppressed before this many completion tokens
	IgnoreEOS         bool
}

// SamplingOption is a functional option for SamplingParams.
type SamplingOption func(*SamplingParams)

// NewSamplingParams creates SamplingParams with default values, then the
// supplied options. Invalid parameters panic.
func NewSamplingParams(opts ...SamplingOption) *SamplingParams {
	sp := &SamplingParams{
		Temperature:       1.0,
		TopK:              0,
		TopP:              0.9,
		RepetitionPenalty: 1.0,
		MaxTokens:         64,
		MinTokens:         0,
		IgnoreEOS:         false,
	}

	for _, opt := range opts {
		opt(sp)
	}

	if err := sp.validate(); err != nil {
		panic(err)
	}

	return sp
}

func (sp *SamplingParams) validate() error {
	if sp.Temperature <= 1e-10 {
		return fmt.Errorf("greedy sampling is not permitted (temperature too low)")
	}
	if sp.TopK < 0 {
		return fmt.Errorf("top-k must be >= 0")
	}
	if sp.TopP <= 0 || sp.TopP > 1 {
		return fmt.Errorf("top-p must be in (0, 1]")
	}
	if sp.RepetitionPenalty <= 0 {
		return fmt.Errorf("repetition penalty must be > 0")
	}
	if sp.MaxTokens < 1 {
		return fmt.Errorf("max tokens must be >= 1")
	}
	if sp.MinTokens < 0 || sp.MinTokens > sp.MaxTokens {
		return fmt.Errorf("min tokens must be in [0, max tokens]")
	}
	return nil
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) SamplingOption {
	return func(sp *SamplingParams) {
		sp.Temperature = t
	}
}

// WithTopK sets the top-k cutoff.
func WithTopK(k int) SamplingOption {
	return func(sp *SamplingParams) {
		sp.TopK = k
	}
}

// WithTopP sets the nucleus sampling mass.
func WithTopP(p float64) SamplingOption {
	return func(sp *SamplingParams) {
		sp.TopP = p
	}
}

// WithRepetitionPenalty sets the repetition penalty.
func WithRepetitionPenalty(p float64) SamplingOption {
	return func(sp *SamplingParams) {
		sp.RepetitionPenalty = p
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(n int) SamplingOption {
	return func(sp *SamplingParams) {
		sp.MaxTokens = n
	}
}

// WithMinTokens sets the minimum number of tokens to generate before EOS is
// honored. Benchmarks use MinTokens == MaxTokens to pin the decode length.
func WithMinTokens(n int) SamplingOption {
	return func(sp *SamplingParams) {
		sp.MinTokens = n
	}
}

// WithIgnoreEOS sets whether EOS is ignored entirely.
func WithIgnoreEOS(b bool) SamplingOption {
	return func(sp *SamplingParams) {
		sp.IgnoreEOS = b
	}
}
