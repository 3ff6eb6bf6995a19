package batch

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GonzoDMX/perplex/internal/scorer"
	"github.com/GonzoDMX/perplex/internal/store"
)

const (
	sentenceTech = "Cette technologie transforme notre société"
	sentenceAI   = "L'intelligence artificielle fascine"
)

func openTestStore(t *testing.T) (*store.Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "perplexity.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s, path
}

// frenchMock scores the two-sentence end-to-end input with fixed
// probability sequences: [0.5, 0.5] => perplexity 2, [0.25] => 4.
func frenchMock() *scorer.Mock {
	return &scorer.Mock{
		Scripts: map[string][]scorer.TokenProb{
			sentenceTech: {{ID: 101, Prob: 0.5}, {ID: 102, Prob: 0.5}},
			sentenceAI:   {{ID: 201, Prob: 0.25}},
		},
	}
}

func TestRun_EndToEnd(t *testing.T) {
	s, _ := openTestStore(t)
	mock := frenchMock()
	p := New(s, mock, Options{BatchSize: 10})

	count, err := p.Ingest("Cette technologie transforme notre société. L'intelligence artificielle fascine.")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stats.Scored)
	require.Equal(t, 0, stats.Failed)
	require.Equal(t, 1, stats.Batches)

	units, err := s.Query(store.QuerySpec{SortBy: store.SortByPerplexity, Descending: true})
	require.NoError(t, err)
	require.Len(t, units, 2)

	// [0.25] has the higher perplexity, so the AI sentence lists first.
	require.Equal(t, sentenceAI, units[0].Text)
	require.InDelta(t, 4.0, units[0].Perplexity, 1e-9)
	require.Equal(t, sentenceTech, units[1].Text)
	require.InDelta(t, 2.0, units[1].Perplexity, 1e-9)
}

func TestRun_ResumedRunDoesNoRescoring(t *testing.T) {
	s, path := openTestStore(t)
	mock := frenchMock()

	p := New(s, mock, Options{})
	_, err := p.Ingest("Cette technologie transforme notre société. L'intelligence artificielle fascine.")
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, mock.Calls)

	statsBefore, err := s.Stats()
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Re-run the whole pipeline on the same input against the same store.
	s2, err := store.Open(path)
	require.NoError(t, err)
	defer s2.Close()

	p2 := New(s2, mock, Options{})
	_, err = p2.Ingest("Cette technologie transforme notre société. L'intelligence artificielle fascine.")
	require.NoError(t, err)

	runStats, err := p2.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, runStats.Scored+runStats.Failed)
	require.Equal(t, 2, mock.Calls, "resumed run must not call the scorer")

	statsAfter, err := s2.Stats()
	require.NoError(t, err)
	require.Equal(t, statsBefore, statsAfter)
}

func TestRun_ResumesAfterInterruption(t *testing.T) {
	s, path := openTestStore(t)
	mock := &scorer.Mock{Default: []scorer.TokenProb{{ID: 1, Prob: 0.5}}}

	p := New(s, mock, Options{BatchSize: 1})
	_, err := p.Ingest("Première phrase du document. Deuxième phrase du document. Troisième phrase du document.")
	require.NoError(t, err)

	// Cancel after the first sentence is scored: batch one commits, the
	// second batch is cut off before its commit.
	ctx, cancel := context.WithCancel(context.Background())
	p.progress = func(pr Progress) {
		if pr.Processed == 1 {
			cancel()
		}
	}

	_, err = p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.NoError(t, s.Close())

	s2, err := store.Open(path)
	require.NoError(t, err)
	defer s2.Close()

	st, err := s2.Stats()
	require.NoError(t, err)
	require.Equal(t, 1, st.Done)
	require.Equal(t, 2, st.Pending)

	// The next run picks up exactly the leftover units.
	p2 := New(s2, mock, Options{BatchSize: 1})
	runStats, err := p2.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, runStats.Scored)

	st, err = s2.Stats()
	require.NoError(t, err)
	require.Equal(t, 3, st.Done)
	require.Equal(t, 0, st.Pending)
}

func TestRun_BatchBoundaries(t *testing.T) {
	s, _ := openTestStore(t)
	mock := &scorer.Mock{Default: []scorer.TokenProb{{ID: 1, Prob: 0.9}}}

	p := New(s, mock, Options{BatchSize: 2})
	_, err := p.Ingest("Première phrase assez longue. Deuxième phrase assez longue. Troisième phrase assez longue.")
	require.NoError(t, err)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, stats.Scored)
	require.Equal(t, 2, stats.Batches)
}

func TestRun_ScoringFailureIsLocal(t *testing.T) {
	s, _ := openTestStore(t)

	mock := &scorer.Mock{
		Scripts: map[string][]scorer.TokenProb{
			// No scoreable tokens: undefined perplexity.
			"Une phrase sans aucun token": {},
			// Invalid probability: collaborator failure.
			"Une phrase avec un zéro":  {{ID: 1, Prob: 0.0}},
			"Une phrase parfaitement": {{ID: 1, Prob: 0.5}, {ID: 2, Prob: 0.5}},
		},
	}

	p := New(s, mock, Options{})
	_, err := p.Ingest("Une phrase sans aucun token. Une phrase avec un zéro. Une phrase parfaitement.")
	require.NoError(t, err)

	stats, err := p.Run(context.Background())
	require.NoError(t, err, "per-sentence failures must not abort the run")
	require.Equal(t, 1, stats.Scored)
	require.Equal(t, 2, stats.Failed)

	units, err := s.Query(store.QuerySpec{IncludeFailed: true, Descending: true})
	require.NoError(t, err)
	require.Len(t, units, 3)

	for _, u := range units {
		switch u.Text {
		case "Une phrase sans aucun token":
			require.True(t, u.Unbounded())
			require.Contains(t, u.ErrorMsg, "undefined perplexity")
		case "Une phrase avec un zéro":
			require.True(t, u.Unbounded())
			require.Contains(t, u.ErrorMsg, "invalid scorer output")
		case "Une phrase parfaitement":
			require.Equal(t, store.StatusDone, u.Status)
			require.InDelta(t, 2.0, u.Perplexity, 1e-9)
		}
	}
}

func TestRun_ScorerErrorRecordedAsFailed(t *testing.T) {
	s, _ := openTestStore(t)
	mock := &scorer.Mock{Err: errors.New("model crashed")}

	p := New(s, mock, Options{})
	_, err := p.Ingest("Une phrase qui ne sera jamais notée.")
	require.NoError(t, err)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Failed)

	units, err := s.Query(store.QuerySpec{IncludeFailed: true})
	require.NoError(t, err)
	require.Len(t, units, 1)
	require.Contains(t, units[0].ErrorMsg, "model crashed")
}

func TestIngest_Idempotent(t *testing.T) {
	s, _ := openTestStore(t)
	p := New(s, frenchMock(), Options{})

	text := "Cette technologie transforme notre société. L'intelligence artificielle fascine."

	_, err := p.Ingest(text)
	require.NoError(t, err)
	_, err = p.Ingest(text)
	require.NoError(t, err)

	st, err := s.Stats()
	require.NoError(t, err)
	require.Equal(t, 2, st.Total)
}
