package backend

import (
	"math"
	"math/rand"
	"sort"

	"genperf/engine"
)

// sampler draws next tokens from logits under a sequence's sampling
// parameters.
type sampler struct {
	rng *rand.Rand
}

func newSampler(rng *rand.Rand) *sampler {
	return &sampler{rng: rng}
}

// sample applies repetition penalty, temperature, top-k, and top-p in that
// order, then draws from the resulting distribution.
func (s *sampler) sample(logits []float32, seq *engine.Sequence) int {
	p := seq.Params

	scaled := make([]float64, len(logits))
	for i, l := range logits {
		scaled[i] = float64(l)
	}

	if p.RepetitionPenalty != 1.0 {
		seen := make(map[int]bool, seq.NumTokens)
		for _, id := range seq.TokenIDs {
			seen[id] = true
		}
		for id := range seen {
			if id < 0 || id >= len(scaled) {
				continue
			}
			if scaled[id] > 0 {
				scaled[id] /= p.RepetitionPenalty
			} else {
				scaled[id] *= p.RepetitionPenalty
			}
		}
	}

	for i := range scaled {
		scaled[i] /= p.Temperature
	}

	// Softmax with the max subtracted for stability.
	maxLogit := math.Inf(-1)
	for _, l := range scaled {
		if l > maxLogit {
			maxLogit = l
		}
	}
	probs := make([]float64, len(scaled))
	sum := 0.0
	for i, l := range scaled {
		probs[i] = math.Exp(l - maxLogit)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}

	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return probs[idx[a]] > probs[idx[b]]
	})

	cutoff := len(idx)
	if p.TopK > 0 && p.TopK < cutoff {
		cutoff = p.TopK
	}
	if p.TopP < 1.0 {
		mass := 0.0
		for i := 0; i < cutoff; i++ {
			mass += probs[idx[i]]
			if mass >= p.TopP {
				cutoff = i + 1
				break
			}
		}
	}

	kept := idx[:cutoff]
	keptMass := 0.0
	for _, i := range kept {
		keptMass += probs[i]
	}

	target := s.rng.Float64() * keptMass
	acc := 0.0
	for _, i := range kept {
		acc += probs[i]
		if acc >= target {
			return i
		}
	}
	return kept[len(kept)-1]
}
