// Package scorer defines the language-model scoring collaborator: given a
// sentence it returns per-token probabilities under the model. The batch
// processor receives a Scorer at construction so tests can substitute a
// deterministic mock for the real HTTP client.
package scorer

import "context"

// TokenProb is one (token id, probability-given-context) pair.
// Probabilities must be in (0, 1]; anything else is a scoring failure.
type TokenProb struct {
	ID   int     `json:"id"`
	Prob float64 `json:"prob"`
}

// Scorer scores one sentence at a time. Implementations are NOT required
// to be safe for concurrent calls; the pipeline invokes them strictly
// sequentially.
type Scorer interface {
	Score(ctx context.Context, sentence string) ([]TokenProb, error)
}
