package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"genperf/backend"
	"genperf/bench"
	"genperf/config"
	"genperf/engine"
	"genperf/latency"
	"genperf/logging"
	"genperf/models"
	"genperf/output"
)

var (
	cfgfile     string
	id          string
	modelType   string
	modelPath   string
	tokPath     string
	prompt      string
	sampleInput string
	length      int
	batchSize   int
	warmup      int
	iterations  int
	temperature float64
	topK        int
	topP        float64
	repPenalty  float64
	prefix      string
	paddingText string
	xlmLanguage string
	seed        int64
	eosID       int
	maxModelLen int
	accelPath   string
	shards      int
	mock        bool
	debug       bool
	quiet       bool
	noProgress  bool
	jsonPath    string
	csvPath     string
)

var rootCmd = &cobra.Command{
	Use:   "genperf",
	Short: "A tool to benchmark batched text-generation latency",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		if debug {
			logging.SetDebug()
		}
		if quiet {
			logging.SetQuiet()
		}

		uid := id
		if uid == "" {
			uid = uuid.New().String()
		}

		var cases []config.Case
		if cfgfile != "" {
			cs, err := config.ParseConf(cfgfile)
			if err != nil {
				return err
			}
			cases = cs
		} else {
			c := caseFromFlags()
			if err := validateFlagCase(&c); err != nil {
				return err
			}
			cases = []config.Case{c}
		}

		logging.Infof("run %s: %d case(s)", uid, len(cases))

		var results []output.Result
		for _, c := range cases {
			res, err := runCase(uid, c)
			if err != nil {
				return fmt.Errorf("case %s: %w", c.Name, err)
			}
			if res != nil {
				results = append(results, *res)
			}
		}

		if len(results) > 0 {
			output.ShowResults(results)
		}
		if jsonPath != "" {
			if err := output.WriteJSON(jsonPath, results); err != nil {
				return err
			}
			logging.Infof("wrote %s", jsonPath)
		}
		if csvPath != "" {
			if err := output.WriteCSV(csvPath, results); err != nil {
				return err
			}
			logging.Infof("wrote %s", csvPath)
		}

		return nil
	},
}

// caseFromFlags assembles a single ad-hoc case from the command line.
func caseFromFlags() config.Case {
	return config.Case{
		Name:              "cli",
		ModelType:         modelType,
		Model:             modelPath,
		Tokenizer:         tokPath,
		BatchSize:         batchSize,
		Length:            length,
		Warmup:            warmup,
		Iterations:        iterations,
		Temperature:       temperature,
		TopK:              topK,
		TopP:              topP,
		RepetitionPenalty: repPenalty,
		Prompt:            prompt,
		PromptFile:        sampleInput,
		Prefix:            prefix,
		Shards:            shards,
		Mock:              mock,
	}
}

func validateFlagCase(c *config.Case) error {
	if c.ModelType == "" {
		return fmt.Errorf("--model-type is required")
	}
	if !c.Mock && c.Model == "" {
		return fmt.Errorf("--model is required unless --mock is set")
	}
	if c.Prompt == "" && c.PromptFile == "" {
		return fmt.Errorf("either --prompt or --sample-input is required")
	}
	if c.Shards < 1 || c.Shards > 8 {
		return fmt.Errorf("--shards must be between 1 and 8")
	}
	if _, err := models.Lookup(c.ModelType); err != nil {
		return err
	}
	return nil
}

// resolvePrompts builds the prompt list for a case: the prompt file wins,
// otherwise the inline prompt is repeated once per iteration so the sample
// count matches.
func resolvePrompts(c config.Case) ([]string, error) {
	if c.PromptFile != "" {
		return config.ReadPrompts(c.PromptFile)
	}
	if c.Prompt == "" {
		return nil, fmt.Errorf("no prompt or prompt file given")
	}
	prompts := make([]string, c.Iterations)
	for i := range prompts {
		prompts[i] = c.Prompt
	}
	return prompts, nil
}

// buildRunner constructs the model runner for a case, sharding it when asked.
func buildRunner(c config.Case, cfg *engine.Config, vocabSize int) (engine.ModelRunner, error) {
	newShard := func(shard int) (engine.ModelRunner, error) {
		if c.Mock {
			return engine.NewMockModelRunner(cfg), nil
		}
		return backend.NewONNXRunner(c.Model, vocabSize, seed+int64(shard))
	}

	if c.Shards > 1 {
		if accelPath == "" {
			return nil, fmt.Errorf("--accel-config is required to run %d shards", c.Shards)
		}
		if _, err := engine.LoadAccelConfig(accelPath); err != nil {
			return nil, err
		}
		logging.Infof("sharded inference across %d shards", c.Shards)
		return engine.NewShardedRunner(c.Shards, newShard)
	}

	return newShard(0)
}

func runCase(uid string, c config.Case) (*output.Result, error) {
	family, err := models.Lookup(c.ModelType)
	if err != nil {
		return nil, err
	}
	if family.Kind == models.KindSeq2Seq {
		logging.Debugf("%s is a seq2seq family; prompts feed the encoder", family.Name)
	}
	if family.SpaceBeforePunct {
		logging.Debugf("%s prefers space-before-punctuation tokenization", family.Name)
	}

	prompts, err := resolvePrompts(c)
	if err != nil {
		return nil, err
	}

	prepOpts := models.PrepareOptions{
		Prefix:      c.Prefix,
		PaddingText: paddingText,
		Temperature: c.Temperature,
		Language:    xlmLanguage,
	}
	for i, p := range prompts {
		prepared, err := models.PreparePrompt(family, prepOpts, p)
		if err != nil {
			return nil, err
		}
		prompts[i] = prepared
	}

	genLen := models.AdjustLength(c.Length, maxModelLen)

	modelDir := ""
	if !c.Mock {
		if _, err := os.Stat(c.Model); err != nil {
			return nil, fmt.Errorf("model path %s: %w", c.Model, err)
		}
		modelDir = c.Model
	}

	cfg := engine.NewConfig(modelDir,
		engine.WithMaxModelLen(maxModelLen),
		engine.WithMaxBatchedTokens(maxModelLen*c.BatchSize),
		engine.WithMaxSeqs(c.BatchSize),
		engine.WithShards(c.Shards),
		engine.WithEOS(eosID),
	)

	var tokenizer engine.Tokenizer
	vocabSize := 0
	if c.Mock {
		tokenizer = engine.NewMockTokenizer(cfg.EOS)
	} else {
		tokSource := c.Tokenizer
		if tokSource == "" {
			tokSource = c.Model
		}
		hf, err := backend.NewHFTokenizer(tokSource, eosID, os.TempDir())
		if err != nil {
			return nil, err
		}
		defer hf.Close()
		tokenizer = hf
		vocabSize = hf.VocabSize()
	}

	runner, err := buildRunner(c, cfg, vocabSize)
	if err != nil {
		return nil, err
	}

	e := engine.NewEngine(cfg, runner, tokenizer)
	defer e.Close()

	params := bench.FixedLengthParams(genLen,
		engine.WithTemperature(c.Temperature),
		engine.WithTopK(c.TopK),
		engine.WithTopP(c.TopP),
		engine.WithRepetitionPenalty(c.RepetitionPenalty),
	)

	logging.Infof("case %s: family=%s batch=%d length=%d iterations=%d",
		c.Name, family.Name, c.BatchSize, genLen, len(prompts))

	samples, err := bench.Run(e, prompts, params, bench.Options{
		Title:     c.Name,
		BatchSize: c.BatchSize,
		Length:    genLen,
		Warmup:    c.Warmup,
		Progress:  !noProgress,
	})
	if err != nil {
		return nil, err
	}

	latency.Report(os.Stdout, samples, c.Name, c.Warmup)

	res, ok := output.BuildResult(uid, c.Name, c.ModelType, c.Model,
		c.BatchSize, genLen, c.Warmup, samples)
	if !ok {
		logging.Warnf("case %s: all %d sample(s) consumed by warm-up, nothing to report", c.Name, len(samples))
		return nil, nil
	}
	return &res, nil
}

func main() {
	rootCmd.Flags().StringVarP(&cfgfile, "config", "c", "", "benchmark suite yaml file; overrides the single-case flags")
	rootCmd.Flags().StringVar(&id, "uuid", "", "run id; generated when empty")
	rootCmd.Flags().StringVar(&modelType, "model-type", "", "model family: "+fmt.Sprint(models.Names()))
	rootCmd.Flags().StringVar(&modelPath, "model", "", "path to the exported model directory")
	rootCmd.Flags().StringVar(&tokPath, "tokenizer", "", "tokenizer path or hub id; defaults to the model path")
	rootCmd.Flags().StringVar(&prompt, "prompt", "", "inline prompt text")
	rootCmd.Flags().StringVar(&sampleInput, "sample-input", "", "prompt file, one prompt per line")
	rootCmd.Flags().IntVar(&length, "length", 20, "tokens to generate per request")
	rootCmd.Flags().IntVar(&batchSize, "batch-size", 1, "batch size")
	rootCmd.Flags().IntVar(&warmup, "warmup", 1, "leading samples excluded from statistics")
	rootCmd.Flags().IntVar(&iterations, "iterations", 10, "timed generation calls when --prompt is used")
	rootCmd.Flags().Float64Var(&temperature, "temperature", 1.0, "sampling temperature; 1.0 has no effect")
	rootCmd.Flags().IntVar(&topK, "k", 0, "top-k cutoff; 0 disables")
	rootCmd.Flags().Float64Var(&topP, "p", 0.9, "nucleus sampling mass")
	rootCmd.Flags().Float64Var(&repPenalty, "repetition-penalty", 1.0, "repetition penalty; mostly useful for ctrl, then use 1.2")
	rootCmd.Flags().StringVar(&prefix, "prefix", "", "text added prior to input")
	rootCmd.Flags().StringVar(&paddingText, "padding-text", "", "deprecated, the use of --prefix is preferred")
	rootCmd.Flags().StringVar(&xlmLanguage, "xlm-language", "", "optional language when used with the xlm family")
	rootCmd.Flags().Int64Var(&seed, "seed", 42, "random seed for initialization")
	rootCmd.Flags().IntVar(&eosID, "eos-id", 50256, "EOS (and pad) token id for the model")
	rootCmd.Flags().IntVar(&maxModelLen, "max-model-len", 4096, "maximum model sequence length")
	rootCmd.Flags().StringVar(&accelPath, "accel-config", "", "path to the sharded-inference config json")
	rootCmd.Flags().IntVar(&shards, "shards", 1, "model shards serving each batch")
	rootCmd.Flags().BoolVar(&mock, "mock", false, "run against the mock backend instead of a real model")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.Flags().BoolVar(&quiet, "quiet", false, "log errors only, keeping stdout clean for the report")
	rootCmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	rootCmd.Flags().StringVar(&jsonPath, "json", "", "write results to this json file")
	rootCmd.Flags().StringVar(&csvPath, "csv", "", "write results to this csv file")

	if err := rootCmd.Execute(); err != nil {
		logging.Error(err)
		os.Exit(1)
	}
}
