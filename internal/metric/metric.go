// Package metric holds the perplexity math. Everything here is a pure
// function of the token probabilities handed back by the scorer.
package metric

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidProbability is returned when a token probability falls outside
// (0, 1]. A zero or non-finite probability means the scorer produced garbage
// for this sentence; we never patch it with a default.
var ErrInvalidProbability = errors.New("token probability outside (0, 1]")

// Result is the outcome of a perplexity computation.
//
// Unbounded is set when there were no scoreable tokens at all. In that case
// Perplexity and MeanNLL are meaningless and must not be read.
type Result struct {
	Perplexity float64
	MeanNLL    float64
	Tokens     int
	Unbounded  bool
}

// NLL returns the negative log-likelihood -ln(p) of a single token.
func NLL(p float64) float64 {
	return -math.Log(p)
}

// Compute turns a sequence of token probabilities into a perplexity:
//
//	mean NLL = (Σ -ln(p_i)) / n
//	perplexity = exp(mean NLL)
//
// An empty sequence yields an unbounded result. Any probability outside
// (0, 1] fails the whole computation with ErrInvalidProbability.
func Compute(probs []float64) (Result, error) {
	if len(probs) == 0 {
		return Result{Unbounded: true}, nil
	}

	var totalNLL float64
	for i, p := range probs {
		if p <= 0 || p > 1 || math.IsNaN(p) {
			return Result{}, fmt.Errorf("token %d: p=%v: %w", i, p, ErrInvalidProbability)
		}
		totalNLL += NLL(p)
	}

	meanNLL := totalNLL / float64(len(probs))

	return Result{
		Perplexity: math.Exp(meanNLL),
		MeanNLL:    meanNLL,
		Tokens:     len(probs),
	}, nil
}
