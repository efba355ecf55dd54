// Package models describes the supported model families and their
// prompt-preparation quirks.
package models

import (
	"fmt"
	"sort"
	"strings"
)

// Kind distinguishes the two generation architectures we benchmark.
type Kind int

const (
	KindCausal Kind = iota
	KindSeq2Seq
)

// MaxGenerationLength is a hard cap on requested output length so a bad flag
// cannot drive the decode loop forever.
const MaxGenerationLength = 10000

// Family holds the per-family settings for one supported model family.
type Family struct {
	Name    string
	Kind    Kind
	Prepare PrepareFunc // nil means plain prefix + prompt

	// SpaceBeforePunct enables the tokenizer quirk wanted by word-level
	// vocabularies such as transfo-xl.
	SpaceBeforePunct bool

	// ControlCodes lists the control codes a prompt should start with (ctrl).
	ControlCodes []string

	// Languages lists the language embeddings the family supports (xlm).
	Languages []string
}

// ctrlControlCodes are the domain control codes the ctrl vocabulary reserves.
var ctrlControlCodes = []string{
	"Pregnancy", "Christianity", "Explain", "Fitness", "Saving", "Ask", "Ass",
	"Joke", "Questions", "Thoughts", "Retail", "Feminism", "Writing", "Atheism",
	"Netflix", "Computing", "Opinion", "Alone", "Funny", "Gaming", "Human",
	"India", "Joker", "Diet", "Legal", "Norman", "Tip", "Weight", "Movies",
	"Running", "Science", "Horror", "Confession", "Finance", "Politics",
	"Scary", "Support", "Technologies", "Teenage", "Event", "Learned",
	"Notion", "Wikipedia", "Books", "Extract", "Confessions", "Conspiracy",
	"Links", "Narcissus", "Relationship", "Relationships", "Reviews", "News",
	"Translation", "multilingual",
}

// xlmLanguages are the language embeddings of the XNLI-15 xlm checkpoints.
var xlmLanguages = []string{
	"ar", "bg", "de", "el", "en", "es", "fr", "hi",
	"ru", "sw", "th", "tr", "ur", "vi", "zh",
}

var registry = map[string]Family{
	"t5":         {Name: "t5", Kind: KindSeq2Seq},
	"opt":        {Name: "opt", Kind: KindCausal},
	"gpt2":       {Name: "gpt2", Kind: KindCausal},
	"gptneo":     {Name: "gptneo", Kind: KindCausal},
	"ctrl":       {Name: "ctrl", Kind: KindCausal, Prepare: prepareCTRL, ControlCodes: ctrlControlCodes},
	"openai-gpt": {Name: "openai-gpt", Kind: KindCausal},
	"xlnet":      {Name: "xlnet", Kind: KindCausal, Prepare: preparePadded},
	"transfo-xl": {Name: "transfo-xl", Kind: KindCausal, Prepare: preparePadded, SpaceBeforePunct: true},
	"xlm":        {Name: "xlm", Kind: KindCausal, Prepare: prepareXLM, Languages: xlmLanguages},
}

// Lookup resolves a model family by name, case-insensitively.
func Lookup(name string) (Family, error) {
	f, ok := registry[strings.ToLower(name)]
	if !ok {
		return Family{}, fmt.Errorf("unsupported model family %q, expected one of: %s",
			name, strings.Join(Names(), ", "))
	}
	return f, nil
}

// Names returns the supported family names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AdjustLength clamps a requested output length to what the model can hold.
// A negative request means "as much as the model allows", falling back to
// MaxGenerationLength when the model does not declare a maximum.
func AdjustLength(length, maxSeqLen int) int {
	switch {
	case length < 0 && maxSeqLen > 0:
		return maxSeqLen
	case maxSeqLen > 0 && length > maxSeqLen:
		return maxSeqLen
	case length < 0:
		return MaxGenerationLength
	}
	return length
}
