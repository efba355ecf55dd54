package backend

import (
	"fmt"
	"math/rand"
	"path/filepath"

	ort "github.com/yalue/onnxruntime_go"

	"genperf/engine"
)

// ONNXRunner executes the model through ONNX Runtime. One runner serves one
// shard; it must not be shared across goroutines.
type ONNXRunner struct {
	modelPath string
	vocabSize int
	options   *ort.SessionOptions
	sampler   *sampler
}

// NewONNXRunner prepares a runner for the exported model under modelDir. The
// ONNX Runtime environment is initialized once per process and shared by all
// runners.
func NewONNXRunner(modelDir string, vocabSize int, seed int64) (*ONNXRunner, error) {
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	if err := options.SetIntraOpNumThreads(4); err != nil {
		options.Destroy()
		return nil, fmt.Errorf("failed to set threads: %w", err)
	}

	return &ONNXRunner{
		modelPath: filepath.Join(modelDir, "model.onnx"),
		vocabSize: vocabSize,
		options:   options,
		sampler:   newSampler(rand.New(rand.NewSource(seed))),
	}, nil
}

// Run executes one forward pass per sequence and samples the next token from
// the last position's logits.
func (r *ONNXRunner) Run(seqs []*engine.Sequence, isPrefill bool) ([]int, error) {
	if len(seqs) == 0 {
		return nil, fmt.Errorf("no sequences to process")
	}

	tokenIDs := make([]int, len(seqs))
	for i, seq := range seqs {
		logits, err := r.forward(seq.TokenIDs)
		if err != nil {
			return nil, fmt.Errorf("sequence %d: %w", seq.SeqID, err)
		}
		tokenIDs[i] = r.sampler.sample(logits, seq)
	}

	return tokenIDs, nil
}

// forward runs the model over inputIDs and returns the logits of the final
// position.
func (r *ONNXRunner) forward(inputIDs []int) ([]float32, error) {
	inputShape := ort.NewShape(1, int64(len(inputIDs)))
	inputData := make([]int64, len(inputIDs))
	for i, id := range inputIDs {
		inputData[i] = int64(id)
	}

	inputTensor, err := ort.NewTensor(inputShape, inputData)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputShape := ort.NewShape(1, int64(len(inputIDs)), int64(r.vocabSize))
	outputData := make([]float32, len(inputIDs)*r.vocabSize)
	outputTensor, err := ort.NewTensor(outputShape, outputData)
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	session, err := ort.NewAdvancedSession(
		r.modelPath,
		[]string{"input_ids"},
		[]string{"logits"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		r.options,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Destroy()

	if err := session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	logits := outputTensor.GetData()
	last := logits[(len(inputIDs)-1)*r.vocabSize : len(inputIDs)*r.vocabSize]
	out := make([]float32, r.vocabSize)
	copy(out, last)
	return out, nil
}

// Close releases the session options. The shared runtime environment stays
// up for other runners in the process.
func (r *ONNXRunner) Close() error {
	r.options.Destroy()
	return nil
}
