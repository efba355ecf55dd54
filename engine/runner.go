package engine

// ModelRunner executes one model step over a batch of sequences and returns
// the next token id for each. Implementations wrap whatever actually does the
// math: an ONNX session, a remote inference server, or a mock.
type ModelRunner interface {
	Run(seqs []*Sequence, isPrefill bool) ([]int, error)
	Close() error
}

// Tokenizer converts between text and token ids.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(tokenIDs []int) (string, error)
	EOSTokenID() int
}

// MockModelRunner produces deterministic tokens without any model behind it.
// The benchmark's --mock path and the engine tests run on it.
type MockModelRunner struct {
	config *Config
	vocab  int
}

// NewMockModelRunner creates a mock runner for the given config.
func NewMockModelRunner(config *Config) *MockModelRunner {
	return &MockModelRunner{
		config: config,
		vocab:  32000,
	}
}

// Run derives each next token from the sequence id and position, emitting EOS
// at a fixed cadence so finish handling gets exercised.
func (m *MockModelRunner) Run(seqs []*Sequence, isPrefill bool) ([]int, error) {
	tokenIDs := make([]int, len(seqs))
	for i, seq := range seqs {
		tokenID := int((seq.SeqID + int64(seq.NumTokens)) % int64(m.vocab))
		if seq.NumCompletionTokens() > 10 && seq.NumCompletionTokens()%20 == 0 {
			tokenID = m.config.EOS
		}
		tokenIDs[i] = tokenID
	}
	return tokenIDs, nil
}

// Close is a no-op for the mock runner.
func (m *MockModelRunner) Close() error {
	return nil
}

// MockTokenizer maps characters to small token ids. Good enough to drive the
// engine without a vocabulary on disk.
type MockTokenizer struct {
	eosTokenID int
}

// NewMockTokenizer creates a mock tokenizer with the given EOS id.
func NewMockTokenizer(eosTokenID int) *MockTokenizer {
	return &MockTokenizer{eosTokenID: eosTokenID}
}

// Encode maps each rune to a token id.
func (t *MockTokenizer) Encode(text string) ([]int, error) {
	tokens := make([]int, 0, len(text))
	for _, c := range text {
		tokens = append(tokens, int(c)%1000)
	}
	return tokens, nil
}

// Decode maps token ids back to printable runes, dropping EOS.
func (t *MockTokenizer) Decode(tokenIDs []int) (string, error) {
	out := make([]rune, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		if id != t.eosTokenID {
			out = append(out, rune(id%95+32))
		}
	}
	return string(out), nil
}

// EOSTokenID returns the EOS token id.
func (t *MockTokenizer) EOSTokenID() int {
	return t.eosTokenID
}
