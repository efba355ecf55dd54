// Package bench runs timed batched-generation passes against an engine and
// collects normalized latency samples.
package bench

import (
	"fmt"
	"time"

	"genperf/engine"
	"genperf/latency"
	"genperf/logging"
)

// Options configure one benchmark run.
type Options struct {
	Title     string // names the case in logs and error messages
	BatchSize int
	Length    int // tokens generated per request
	Warmup    int // leading samples excluded from statistics
	Progress  bool
}

// Run executes one timed generation call per prompt. Matching the historical
// harness, every call feeds the same batch: the final prompt replicated
// BatchSize times, so the iteration count controls the sample count while the
// workload stays fixed. Each sample is the call's wall-clock time normalized
// per generated token and per batch element.
func Run(e *engine.Engine, prompts []string, params *engine.SamplingParams, opts Options) ([]float64, error) {
	title := opts.Title
	if title == "" {
		title = "bench"
	}
	if len(prompts) == 0 {
		return nil, fmt.Errorf("%s: no prompts to benchmark", title)
	}
	if opts.BatchSize < 1 {
		return nil, fmt.Errorf("%s: batch size must be >= 1", title)
	}
	if opts.Length < 1 {
		return nil, fmt.Errorf("%s: generation length must be >= 1", title)
	}

	tokenIDs, err := e.Tokenizer().Encode(prompts[len(prompts)-1])
	if err != nil {
		return nil, fmt.Errorf("%s: failed to encode benchmark prompt: %w", title, err)
	}

	batch := make([][]int, opts.BatchSize)
	paramsList := make([]*engine.SamplingParams, opts.BatchSize)
	for i := range batch {
		batch[i] = tokenIDs
		paramsList[i] = params
	}

	collector := latency.NewArrayCollector()
	for i := range prompts {
		logging.MemUsage(fmt.Sprintf("%s before generate %d", title, i))
		start := time.Now()

		if _, err := e.GenerateTokens(batch, paramsList, opts.Progress); err != nil {
			return nil, fmt.Errorf("%s: generation %d failed: %w", title, i, err)
		}

		elapsed := time.Since(start).Seconds()
		logging.MemUsage(fmt.Sprintf("%s after generate %d", title, i))

		collector.Add(elapsed / float64(opts.Length) / float64(opts.BatchSize))
	}

	return collector.Samples(), nil
}

// FixedLengthParams builds sampling parameters that generate exactly length
// tokens per request, the way latency benchmarks want it: EOS cannot end a
// request early because min and max tokens coincide.
func FixedLengthParams(length int, opts ...engine.SamplingOption) *engine.SamplingParams {
	all := make([]engine.SamplingOption, 0, len(opts)+3)
	all = append(all, opts...)
	all = append(all,
		engine.WithMaxTokens(length),
		engine.WithMinTokens(length),
		engine.WithIgnoreEOS(true),
	)
	return engine.NewSamplingParams(all...)
}
