// Package config parses benchmark suite definitions and prompt files.
package config

import (
	"bufio"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"genperf/models"
)

// Case describes one benchmark case in a suite file.
type Case struct {
	Name              string  `yaml:"-"`
	ModelType         string  `yaml:"modelType"`
	Model             string  `yaml:"model,omitempty"`
	Tokenizer         string  `yaml:"tokenizer,omitempty"`
	BatchSize         int     `yaml:"batchSize,omitempty"`
	Length            int     `yaml:"length,omitempty"`
	Warmup            int     `yaml:"warmup,omitempty"`
	Iterations        int     `yaml:"iterations,omitempty"`
	Temperature       float64 `yaml:"temperature,omitempty"`
	TopK              int     `yaml:"topK,omitempty"`
	TopP              float64 `yaml:"topP,omitempty"`
	RepetitionPenalty float64 `yaml:"repetitionPenalty,omitempty"`
	Prompt            string  `yaml:"prompt,omitempty"`
	PromptFile        string  `yaml:"promptFile,omitempty"`
	Prefix            string  `yaml:"prefix,omitempty"`
	Shards            int     `yaml:"shards,omitempty"`
	Mock              bool    `yaml:"mock,omitempty"`
}

// applyDefaults fills the zero values a suite file may omit.
func (c *Case) applyDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = 1
	}
	if c.Length == 0 {
		c.Length = 20
	}
	if c.Warmup == 0 {
		c.Warmup = 1
	}
	if c.Iterations == 0 {
		c.Iterations = 10
	}
	if c.Temperature == 0 {
		c.Temperature = 1.0
	}
	if c.TopP == 0 {
		c.TopP = 0.9
	}
	if c.RepetitionPenalty == 0 {
		c.RepetitionPenalty = 1.0
	}
	if c.Shards == 0 {
		c.Shards = 1
	}
}

func (c *Case) validate() error {
	if _, err := models.Lookup(c.ModelType); err != nil {
		return err
	}
	if !c.Mock && c.Model == "" {
		return fmt.Errorf("case %q: model path is required unless mock is set", c.Name)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("case %q: batch size must be > 0", c.Name)
	}
	if c.Length < 1 {
		return fmt.Errorf("case %q: length must be > 0", c.Name)
	}
	if c.Warmup < 0 {
		return fmt.Errorf("case %q: warmup must be >= 0", c.Name)
	}
	if c.Iterations < 1 {
		return fmt.Errorf("case %q: iterations must be > 0", c.Name)
	}
	if c.Shards < 1 || c.Shards > 8 {
		return fmt.Errorf("case %q: shards must be between 1 and 8", c.Name)
	}
	return nil
}

// ParseConf reads a suite file mapping case names to case definitions and
// returns the cases with defaults applied, keyed order preserved by the
// yaml document.
func ParseConf(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// Decode through a yaml.Node to keep the document's case order; a plain
	// map would shuffle it.
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("config %s is empty", path)
	}
	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config %s: expected a mapping of case names", path)
	}

	cases := make([]Case, 0, len(doc.Content)/2)
	for i := 0; i+1 < len(doc.Content); i += 2 {
		var c Case
		if err := doc.Content[i+1].Decode(&c); err != nil {
			return nil, fmt.Errorf("config %s: case %q: %w", path, doc.Content[i].Value, err)
		}
		c.Name = doc.Content[i].Value
		c.applyDefaults()
		if err := c.validate(); err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}

	if len(cases) == 0 {
		return nil, fmt.Errorf("config %s defines no cases", path)
	}

	return cases, nil
}

// ReadPrompts loads a prompt file, one prompt per line. Blank lines are
// skipped.
func ReadPrompts(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open prompt file %s: %w", path, err)
	}
	defer f.Close()

	var prompts []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		prompts = append(prompts, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", path, err)
	}
	if len(prompts) == 0 {
		return nil, fmt.Errorf("prompt file %s has no prompts", path)
	}

	return prompts, nil
}
