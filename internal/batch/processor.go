// Package batch drives the resumable scoring pipeline: ingest sentences
// into the store, then claim, score and commit them in bounded batches.
package batch

import (
	"context"
	"fmt"

	"github.com/GonzoDMX/perplex/internal/logging"
	"github.com/GonzoDMX/perplex/internal/metric"
	"github.com/GonzoDMX/perplex/internal/scorer"
	"github.com/GonzoDMX/perplex/internal/segment"
	"github.com/GonzoDMX/perplex/internal/store"
)

// DefaultBatchSize bounds the work lost on a crash: everything scored
// since the last commit is redone on the next run.
const DefaultBatchSize = 100

// Progress is one observable pipeline event. The processor emits these and
// stays ignorant of how they are presented.
type Progress struct {
	Total      int
	Processed  int
	Position   int
	Text       string
	Perplexity float64
	Failed     bool
	Reason     string
}

// ProgressFunc consumes progress events. May be nil.
type ProgressFunc func(Progress)

// RunStats summarizes one processor run.
type RunStats struct {
	Scored  int
	Failed  int
	Batches int
}

// Processor owns one pipeline run against a writable store. The scorer is
// injected at construction; it is called strictly sequentially, one
// sentence at a time.
type Processor struct {
	store     *store.Store
	scorer    scorer.Scorer
	batchSize int
	logger    *logging.Logger
	progress  ProgressFunc
}

// Options tunes a Processor. Zero values fall back to defaults.
type Options struct {
	BatchSize int
	Logger    *logging.Logger
	Progress  ProgressFunc
}

func New(st *store.Store, sc scorer.Scorer, opts Options) *Processor {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewDiscard()
	}

	return &Processor{
		store:     st,
		scorer:    sc,
		batchSize: batchSize,
		logger:    logger,
		progress:  opts.Progress,
	}
}

// Ingest segments text into sentences and registers each one in source
// order. Registration is idempotent, so ingesting the same text again
// (same run or a later one) adds nothing. Returns the number of segmented
// sentences.
func (p *Processor) Ingest(text string) (int, error) {
	sentences := segment.Split(text)

	for _, s := range sentences {
		if _, err := p.store.Register(s.Text, s.Position); err != nil {
			return 0, fmt.Errorf("ingest failed: %w", err)
		}
	}

	p.logger.Info("ingested %d sentences", len(sentences))

	return len(sentences), nil
}

// Run claims pending units batch by batch, scores them and commits each
// batch atomically. Stops when no pending units remain (drain) or ctx is
// cancelled. Cancellation mid-batch simply abandons the uncommitted
// outcomes; the units stay pending and the next run re-claims them.
func (p *Processor) Run(ctx context.Context) (RunStats, error) {
	var stats RunStats

	st, err := p.store.Stats()
	if err != nil {
		return stats, err
	}
	remaining := st.Pending

	for {
		units, err := p.store.PendingBatch(p.batchSize)
		if err != nil {
			return stats, err
		}
		if len(units) == 0 {
			return stats, nil
		}

		outcomes := make([]store.Outcome, 0, len(units))
		for _, unit := range units {
			if err := ctx.Err(); err != nil {
				// Uncommitted outcomes are discarded on purpose: the
				// commit is the only durability boundary.
				return stats, err
			}

			outcome := p.scoreUnit(ctx, unit)
			outcomes = append(outcomes, outcome)

			if outcome.Status == store.StatusDone {
				stats.Scored++
			} else {
				stats.Failed++
			}

			if p.progress != nil {
				p.progress(Progress{
					Total:      remaining,
					Processed:  stats.Scored + stats.Failed,
					Position:   unit.Position,
					Text:       unit.Text,
					Perplexity: outcome.Perplexity,
					Failed:     outcome.Status == store.StatusFailed,
					Reason:     outcome.Reason,
				})
			}
		}

		if err := p.store.CommitBatch(outcomes); err != nil {
			return stats, err
		}
		stats.Batches++

		p.logger.Debug("committed batch of %d (scored=%d failed=%d)", len(outcomes), stats.Scored, stats.Failed)
	}
}

// scoreUnit resolves a single unit. Scoring failures are local: they turn
// into a failed outcome and never abort the run.
func (p *Processor) scoreUnit(ctx context.Context, unit store.Unit) store.Outcome {
	tokens, err := p.scorer.Score(ctx, unit.Text)
	if err != nil {
		return store.Failed(unit.ID, fmt.Sprintf("scorer error: %v", err))
	}

	probs := make([]float64, len(tokens))
	for i, tp := range tokens {
		probs[i] = tp.Prob
	}

	res, err := metric.Compute(probs)
	if err != nil {
		return store.Failed(unit.ID, fmt.Sprintf("invalid scorer output: %v", err))
	}
	if res.Unbounded {
		return store.Failed(unit.ID, "undefined perplexity: no scoreable tokens")
	}

	return store.Done(unit.ID, res.Perplexity)
}
