package models

import (
	"fmt"
	"strings"

	"genperf/logging"
)

// PaddingPrefix is the long-form padding text prepended for memory-model
// families (xlnet, transfo-xl), which produce poor continuations from short
// prompts. Proposed by Aman Rusia.
const PaddingPrefix = `In 1991, the remains of Russian Tsar Nicholas II and his family
(except for Alexei and Maria) are discovered.
The voice of Nicholas's young son, Tsarevich Alexei Nikolaevich, narrates the
remainder of the story. 1883 Western Siberia,
a young Grigori Rasputin is asked by his father and a group of men to perform magic.
Rasputin has a vision and denounces one of the men as a horse thief. Although his
father initially slaps him for making such an accusation, Rasputin watches as the
man is chased outside and beaten. Twenty years later, Rasputin sees a vision of
the Virgin Mary, prompting him to become a priest. Rasputin quickly becomes famous,
with people, even a bishop, begging for his blessing. <eod> </s> <eos>`

// PrepareOptions carries the caller-supplied knobs that influence prompt
// preparation for some families.
type PrepareOptions struct {
	Prefix      string // text added before the prompt
	PaddingText string // deprecated override of the default padding prefix
	Temperature float64

	// Language and Languages configure xlm language embedding selection.
	Language  string
	Languages []string

	// ControlCodes lists the tokenizer's known ctrl control codes.
	ControlCodes []string
}

// PrepareFunc transforms a raw prompt into the text actually fed to the
// tokenizer for a given family.
type PrepareFunc func(opts PrepareOptions, prompt string) (string, error)

// PreparePrompt applies the family-specific preparation to prompt, defaulting
// to plain prefix concatenation for families without quirks. The family's
// control-code and language tables apply unless the caller overrides them.
func PreparePrompt(f Family, opts PrepareOptions, prompt string) (string, error) {
	if opts.ControlCodes == nil {
		opts.ControlCodes = f.ControlCodes
	}
	if opts.Languages == nil {
		opts.Languages = f.Languages
	}
	if f.Prepare != nil {
		return f.Prepare(opts, prompt)
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = opts.PaddingText
	}
	return prefix + prompt, nil
}

// prepareCTRL leaves the prompt untouched but warns about settings known to
// produce poor samples.
func prepareCTRL(opts PrepareOptions, prompt string) (string, error) {
	if opts.Temperature > 0.7 {
		logging.Info("CTRL typically works better with lower temperatures (and lower top_k).")
	}
	if !startsWithControlCode(opts.ControlCodes, prompt) {
		logging.Warn("You are not starting your generation from a control code so you won't get good results")
	}
	return prompt, nil
}

func startsWithControlCode(codes []string, prompt string) bool {
	for _, code := range codes {
		if strings.HasPrefix(prompt, code) {
			return true
		}
	}
	return false
}

// preparePadded prepends the padding prefix (or its overrides) so xlnet and
// transfo-xl have enough context to continue from.
func preparePadded(opts PrepareOptions, prompt string) (string, error) {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = opts.PaddingText
	}
	if prefix == "" {
		prefix = PaddingPrefix
	}
	return prefix + prompt, nil
}

// prepareXLM validates the requested language against the model's language
// embedding table. Unlike the interactive original, an unknown language is a
// hard error: a benchmark run has no terminal to prompt on.
func prepareXLM(opts PrepareOptions, prompt string) (string, error) {
	if len(opts.Languages) == 0 {
		return prompt, nil
	}
	for _, lang := range opts.Languages {
		if lang == opts.Language {
			return prompt, nil
		}
	}
	return "", fmt.Errorf("xlm language %q not available, pick one of: %s",
		opts.Language, strings.Join(opts.Languages, ", "))
}
