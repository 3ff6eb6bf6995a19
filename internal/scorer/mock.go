package scorer

import "context"

// Mock is a deterministic in-memory Scorer for tests. Sentences found in
// Scripts return their scripted probabilities; anything else falls back to
// Default. Calls counts every invocation so tests can prove that resumed
// runs do no rescoring.
type Mock struct {
	Scripts map[string][]TokenProb
	Default []TokenProb
	Err     error

	Calls int
}

func (m *Mock) Score(_ context.Context, sentence string) ([]TokenProb, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if tokens, ok := m.Scripts[sentence]; ok {
		return tokens, nil
	}
	return m.Default, nil
}
