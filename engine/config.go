// Package engine implements the batched autoregressive generation engine
// that genperf benchmarks drive.
package engine

import (
	"fmt"
	"os"
)

// Config holds the engine configuration.
type Config struct {
	ModelDir         string
	MaxBatchedTokens int
	MaxSeqs          int
	MaxModelLen      int
	KVBlockSize      int
	NumKVBlocks      int
	Shards           int
	EOS              int
}

// ConfigOption is a functional option for Config.
type ConfigOption func(*Config)

// NewConfig creates a Config with default values applied, then the supplied
// options. Invalid combinations panic, keeping misconfiguration a startup
// failure rather than a mid-run one.
func NewConfig(modelDir string, opts ...ConfigOption) *Config {
	c := &Config{
		ModelDir:         modelDir,
		MaxBatchedTokens: 16384,
		MaxSeqs:          512,
		MaxModelLen:      4096,
		KVBlockSize:      256,
		NumKVBlocks:      1024,
		Shards:           1,
		EOS:              -1,
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.validate(); err != nil {
		panic(err)
	}

	return c
}

func (c *Config) validate() error {
	if c.ModelDir != "" {
		if _, err := os.Stat(c.ModelDir); os.IsNotExist(err) {
			return fmt.Errorf("model directory does not exist: %s", c.ModelDir)
		}
	}

	if c.KVBlockSize <= 0 || c.KVBlockSize%256 != 0 {
		return fmt.Errorf("kv block size must be a positive multiple of 256")
	}

	if c.NumKVBlocks < 1 {
		return fmt.Errorf("need at least one kv cache block")
	}

	if c.Shards < 1 || c.Shards > 8 {
		return fmt.Errorf("shards must be between 1 and 8")
	}

	if c.MaxBatchedTokens < c.MaxModelLen {
		return fmt.Errorf("max batched tokens must be >= max model length")
	}

	return nil
}

// WithMaxBatchedTokens sets the per-step token budget.
func WithMaxBatchedTokens(n int) ConfigOption {
	return func(c *Config) {
		c.MaxBatchedTokens = n
	}
}

// WithMaxSeqs sets the maximum number of concurrently running sequences.
func WithMaxSeqs(n int) ConfigOption {
	return func(c *Config) {
		c.MaxSeqs = n
	}
}

// WithMaxModelLen sets the maximum model sequence length.
func WithMaxModelLen(n int) ConfigOption {
	return func(c *Config) {
		c.MaxModelLen = n
	}
}

// WithKVBlockSize sets the KV cache block size in tokens.
func WithKVBlockSize(n int) ConfigOption {
	return func(c *Config) {
		c.KVBlockSize = n
	}
}

// WithNumKVBlocks sets the number of KV cache blocks.
func WithNumKVBlocks(n int) ConfigOption {
	return func(c *Config) {
		c.NumKVBlocks = n
	}
}

// WithShards sets how many model shards serve each batch.
func WithShards(n int) ConfigOption {
	return func(c *Config) {
		c.Shards = n
	}
}

// WithEOS sets the end-of-sequence token id.
func WithEOS(id int) ConfigOption {
	return func(c *Config) {
		c.EOS = id
	}
}
