// Package backend provides the real tokenizer and model runner
// implementations behind the engine interfaces.
package backend

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/daulet/tokenizers"

	"genperf/logging"
)

// HFTokenizer wraps a HuggingFace tokenizer loaded either from a local
// tokenizer.json or from the hub.
type HFTokenizer struct {
	tk  *tokenizers.Tokenizer
	eos int
}

// NewHFTokenizer loads a tokenizer for nameOrPath. A path containing a
// tokenizer.json is loaded from disk; anything else is treated as a hub model
// id and downloaded into cacheDir. The pad token is the EOS token, matching
// how decoder-only models are benchmarked.
func NewHFTokenizer(nameOrPath string, eos int, cacheDir string) (*HFTokenizer, error) {
	var tk *tokenizers.Tokenizer
	var err error

	local := filepath.Join(nameOrPath, "tokenizer.json")
	if _, statErr := os.Stat(local); statErr == nil {
		tk, err = tokenizers.FromFile(local)
		if err != nil {
			return nil, fmt.Errorf("failed to load tokenizer from %s: %w", local, err)
		}
	} else {
		logging.Infof("downloading tokenizer %s", nameOrPath)
		tk, err = tokenizers.FromPretrained(nameOrPath, tokenizers.WithCacheDir(cacheDir))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch tokenizer %s: %w", nameOrPath, err)
		}
	}

	return &HFTokenizer{tk: tk, eos: eos}, nil
}

// Encode converts text to token ids without adding special tokens, matching
// the historical harness.
func (t *HFTokenizer) Encode(text string) ([]int, error) {
	ids, _ := t.tk.Encode(text, false)
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out, nil
}

// Decode converts token ids back to text, skipping special tokens.
func (t *HFTokenizer) Decode(tokenIDs []int) (string, error) {
	ids := make([]uint32, len(tokenIDs))
	for i, id := range tokenIDs {
		ids[i] = uint32(id)
	}
	return t.tk.Decode(ids, true), nil
}

// EOSTokenID returns the EOS token id, which also serves as the pad token.
func (t *HFTokenizer) EOSTokenID() int {
	return t.eos
}

// VocabSize returns the tokenizer's vocabulary size.
func (t *HFTokenizer) VocabSize() int {
	return int(t.tk.VocabSize())
}

// Close releases the native tokenizer.
func (t *HFTokenizer) Close() error {
	return t.tk.Close()
}
