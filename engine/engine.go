package engine

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"

	"genperf/latency"
)

// Output is the result of one generation request.
type Output struct {
	SeqID    int64
	Text     string
	TokenIDs []int
}

// Engine drives batched autoregressive generation: it owns the scheduler,
// the model runner, and the tokenizer.
type Engine struct {
	config    *Config
	runner    ModelRunner
	tokenizer Tokenizer
	scheduler *Scheduler
	window    *latency.StepWindow
}

// NewEngine wires an engine from its components.
func NewEngine(config *Config, runner ModelRunner, tokenizer Tokenizer) *Engine {
	return &Engine{
		config:    config,
		runner:    runner,
		tokenizer: tokenizer,
		scheduler: NewScheduler(config),
		window:    latency.NewStepWindow(64),
	}
}

// NewMockEngine builds an engine on the mock runner and tokenizer.
func NewMockEngine(config *Config) *Engine {
	if config.EOS == -1 {
		config.EOS = 2
	}
	return NewEngine(config, NewMockModelRunner(config), NewMockTokenizer(config.EOS))
}

// Close releases the model runner.
func (e *Engine) Close() error {
	return e.runner.Close()
}

// Tokenizer exposes the engine's tokenizer.
func (e *Engine) Tokenizer() Tokenizer {
	return e.tokenizer
}

// AddRequest tokenizes prompt and queues it for generation, returning the
// sequence id.
func (e *Engine) AddRequest(prompt string, params *SamplingParams) (int64, error) {
	tokenIDs, err := e.tokenizer.Encode(prompt)
	if err != nil {
		return 0, fmt.Errorf("failed to encode prompt: %w", err)
	}
	return e.AddTokenRequest(tokenIDs, params)
}

// AddTokenRequest queues already-tokenized input, returning the sequence id.
func (e *Engine) AddTokenRequest(tokenIDs []int, params *SamplingParams) (int64, error) {
	if len(tokenIDs) == 0 {
		return 0, fmt.Errorf("empty prompt")
	}
	if len(tokenIDs) > e.config.MaxModelLen {
		return 0, fmt.Errorf("prompt of %d tokens exceeds max model length %d", len(tokenIDs), e.config.MaxModelLen)
	}
	seq := NewSequence(tokenIDs, params, e.config.KVBlockSize)
	e.scheduler.Add(seq)
	return seq.SeqID, nil
}

// Step runs one scheduler step. It returns the outputs of sequences that
// finished during the step and the token count processed: positive for a
// prefill step, negative for decode.
func (e *Engine) Step() ([]Output, int, error) {
	seqs, isPrefill := e.scheduler.Schedule()

	tokenIDs, err := e.runner.Run(seqs, isPrefill)
	if err != nil {
		return nil, 0, fmt.Errorf("model inference failed: %w", err)
	}

	e.scheduler.Postprocess(seqs, tokenIDs)

	var outputs []Output
	for _, seq := range seqs {
		if !seq.IsFinished() {
			continue
		}
		text, err := e.tokenizer.Decode(seq.CompletionTokenIDs())
		if err != nil {
			return nil, 0, fmt.Errorf("failed to decode tokens: %w", err)
		}
		outputs = append(outputs, Output{
			SeqID:    seq.SeqID,
			Text:     text,
			TokenIDs: seq.CompletionTokenIDs(),
		})
	}

	numTokens := 0
	if isPrefill {
		for _, seq := range seqs {
			numTokens += seq.Len()
		}
	} else {
		numTokens = -len(seqs)
	}

	return outputs, numTokens, nil
}

// IsFinished reports whether all queued requests have completed.
func (e *Engine) IsFinished() bool {
	return e.scheduler.IsFinished()
}

// Generate runs the given prompts to completion and returns outputs in
// prompt order. A single SamplingParams applies to every prompt.
func (e *Engine) Generate(prompts []string, params *SamplingParams, progress bool) ([]Output, error) {
	tokenPrompts := make([][]int, len(prompts))
	for i, p := range prompts {
		tokenIDs, err := e.tokenizer.Encode(p)
		if err != nil {
			return nil, fmt.Errorf("failed to encode prompt %d: %w", i, err)
		}
		tokenPrompts[i] = tokenIDs
	}
	paramsList := make([]*SamplingParams, len(prompts))
	for i := range paramsList {
		paramsList[i] = params
	}
	return e.GenerateTokens(tokenPrompts, paramsList, progress)
}

// GenerateTokens runs already-tokenized prompts to completion, one
// SamplingParams per prompt, and returns outputs in prompt order.
func (e *Engine) GenerateTokens(prompts [][]int, paramsList []*SamplingParams, progress bool) ([]Output, error) {
	if len(paramsList) != len(prompts) {
		return nil, fmt.Errorf("number of sampling params must match number of prompts")
	}

	seqIDs := make([]int64, len(prompts))
	for i, tokenIDs := range prompts {
		id, err := e.AddTokenRequest(tokenIDs, paramsList[i])
		if err != nil {
			return nil, err
		}
		seqIDs[i] = id
	}

	var bar *progressbar.ProgressBar
	if progress {
		bar = progressbar.NewOptions(len(prompts),
			progressbar.OptionSetDescription("Generating"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}

	outputsBySeq := make(map[int64]Output, len(prompts))
	var prefillThroughput, decodeThroughput float64
	decodeSteps := 0

	e.window.Reset()
	for !e.IsFinished() {
		start := time.Now()
		stepOutputs, numTokens, err := e.Step()
		if err != nil {
			return nil, err
		}
		elapsed := time.Since(start)

		if numTokens < 0 {
			e.window.Observe(elapsed)
			decodeSteps++
		}

		if progress {
			if numTokens > 0 {
				prefillThroughput = float64(numTokens) / elapsed.Seconds()
			} else {
				decodeThroughput = float64(-numTokens) / elapsed.Seconds()
			}
			desc := fmt.Sprintf("Generating [Prefill: %dtok/s, Decode: %dtok/s]",
				int(prefillThroughput), int(decodeThroughput))
			if decodeSteps > 0 {
				desc += fmt.Sprintf(" [step p50 %.1fms]", e.window.P50().Seconds()*1000)
			}
			bar.Describe(desc)
		}

		for _, out := range stepOutputs {
			outputsBySeq[out.SeqID] = out
			if progress {
				bar.Add(1)
			}
		}
	}

	if progress {
		bar.Finish()
		fmt.Println()
	}

	outputs := make([]Output, len(prompts))
	for i, id := range seqIDs {
		out, ok := outputsBySeq[id]
		if !ok {
			return nil, fmt.Errorf("sequence %d never finished", id)
		}
		outputs[i] = out
	}

	return outputs, nil
}
