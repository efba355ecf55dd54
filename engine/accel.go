package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// AccelConfig mirrors the accelerated-inference config file: a JSON document
// whose zero_optimization block selects the weight partitioning stage.
type AccelConfig struct {
	ZeroOptimization struct {
		Stage int `json:"stage"`
	} `json:"zero_optimization"`
}

// stageWeights is the only partitioning stage the engine accepts: full weight
// partitioning across shards.
const stageWeights = 3

// LoadAccelConfig reads and validates an accelerator config file.
func LoadAccelConfig(path string) (*AccelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read accel config %s: %w", path, err)
	}

	var cfg AccelConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse accel config %s: %w", path, err)
	}

	if cfg.ZeroOptimization.Stage != stageWeights {
		return nil, fmt.Errorf("sharded inference is only supported for stage %d weight partitioning, got stage %d",
			stageWeights, cfg.ZeroOptimization.Stage)
	}

	return &cfg, nil
}

// ShardedRunner fans each scheduled batch out across shard runners and
// merges the sampled tokens back in batch order.
type ShardedRunner struct {
	shards []ModelRunner
}

// NewShardedRunner builds n shard runners with the given constructor. On any
// construction failure the already-built shards are closed.
func NewShardedRunner(n int, newRunner func(shard int) (ModelRunner, error)) (*ShardedRunner, error) {
	if n < 1 {
		return nil, fmt.Errorf("shard count must be >= 1")
	}

	shards := make([]ModelRunner, 0, n)
	for i := 0; i < n; i++ {
		r, err := newRunner(i)
		if err != nil {
			for _, s := range shards {
				s.Close()
			}
			return nil, fmt.Errorf("failed to build shard %d: %w", i, err)
		}
		shards = append(shards, r)
	}

	return &ShardedRunner{shards: shards}, nil
}

// Run splits seqs into contiguous chunks, one per shard, and runs them
// concurrently. Results land at their original batch positions.
func (r *ShardedRunner) Run(seqs []*Sequence, isPrefill bool) ([]int, error) {
	n := len(r.shards)
	if len(seqs) < n {
		n = len(seqs)
	}
	if n <= 1 {
		return r.shards[0].Run(seqs, isPrefill)
	}

	tokenIDs := make([]int, len(seqs))
	errs := make([]error, n)
	chunk := (len(seqs) + n - 1) / n

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		lo := i * chunk
		hi := lo + chunk
		if hi > len(seqs) {
			hi = len(seqs)
		}

		wg.Add(1)
		go func(shard, lo, hi int) {
			defer wg.Done()
			out, err := r.shards[shard].Run(seqs[lo:hi], isPrefill)
			if err != nil {
				errs[shard] = err
				return
			}
			copy(tokenIDs[lo:hi], out)
		}(i, lo, hi)
	}
	wg.Wait()

	for shard, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("shard %d failed: %w", shard, err)
		}
	}

	return tokenIDs, nil
}

// Close closes every shard, returning the first error seen.
func (r *ShardedRunner) Close() error {
	var firstErr error
	for _, s := range r.shards {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
