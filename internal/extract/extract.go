// Package extract is the read-only query layer over the unit store:
// sorting, filtering and export of accumulated perplexity results. It
// never mutates the store.
package extract

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/GonzoDMX/perplex/internal/store"
)

// ComplexityScore is the derived complexity metric: perplexity × ln(length).
// Monotone in both inputs, so long surprising sentences outrank short ones
// with a single rare token. This formula is a fixed contract; changing it
// reshuffles every ranking built on it.
func ComplexityScore(perplexity float64, length int) float64 {
	return perplexity * math.Log(float64(length))
}

// Row is one result line ready for presentation.
// Complexity is populated only by the complexity ranking.
type Row struct {
	Text       string
	Perplexity float64
	Unbounded  bool
	Length     int
	Complexity float64
}

// Extractor reads a store that may not exist yet. A missing database is
// not an error: every query just returns zero rows.
type Extractor struct {
	st *store.Store
}

// Open attaches to the database at path read-only.
func Open(path string) (*Extractor, error) {
	st, err := store.OpenReadOnly(path)
	if errors.Is(err, store.ErrNotFound) {
		return &Extractor{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Extractor{st: st}, nil
}

func (e *Extractor) Close() error {
	if e.st == nil {
		return nil
	}
	return e.st.Close()
}

// Stats returns the store's progress counters, or zeros for a missing store.
func (e *Extractor) Stats() (store.Stats, error) {
	if e.st == nil {
		return store.Stats{}, nil
	}
	return e.st.Stats()
}

// TopPerplexity returns the n highest-perplexity sentences, unbounded
// (failed) units first since their perplexity exceeds every finite value.
func (e *Extractor) TopPerplexity(n int) ([]Row, error) {
	return e.query(store.QuerySpec{
		SortBy:        store.SortByPerplexity,
		Descending:    true,
		Limit:         n,
		IncludeFailed: true,
	})
}

// BottomPerplexity returns the n lowest-perplexity sentences. Unbounded
// units are excluded: they cannot rank low.
func (e *Extractor) BottomPerplexity(n int) ([]Row, error) {
	return e.query(store.QuerySpec{
		SortBy: store.SortByPerplexity,
		Limit:  n,
	})
}

// MostComplex ranks sentences by the derived complexity score, excluding
// unbounded units and anything shorter than minLength characters (short
// high-perplexity outliers would otherwise dominate the ranking).
func (e *Extractor) MostComplex(n, minLength int) ([]Row, error) {
	rows, err := e.query(store.QuerySpec{
		SortBy:    store.SortByPosition,
		MinLength: minLength,
	})
	if err != nil {
		return nil, err
	}

	for i := range rows {
		rows[i].Complexity = ComplexityScore(rows[i].Perplexity, rows[i].Length)
	}

	// Stable sort keeps source order on ties, matching the store's own
	// tie-breaking discipline.
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Complexity > rows[j].Complexity
	})

	if n > 0 && len(rows) > n {
		rows = rows[:n]
	}

	return rows, nil
}

// Search returns sentences containing keyword, highest perplexity first.
// Matching is case-insensitive unless caseSensitive is set.
func (e *Extractor) Search(keyword string, caseSensitive bool) ([]Row, error) {
	return e.query(store.QuerySpec{
		SortBy:        store.SortByPerplexity,
		Descending:    true,
		Search:        keyword,
		CaseSensitive: caseSensitive,
		IncludeFailed: true,
	})
}

// ByPerplexity is the default listing: everything sorted by perplexity
// descending, optionally bounded by a [min, max] range and a row limit.
// A contradictory range (min > max) is rejected before the store is read.
func (e *Extractor) ByPerplexity(limit int, minPerplexity, maxPerplexity *float64) ([]Row, error) {
	spec := store.QuerySpec{
		SortBy:        store.SortByPerplexity,
		Descending:    true,
		Limit:         limit,
		MinPerplexity: minPerplexity,
		MaxPerplexity: maxPerplexity,
		IncludeFailed: minPerplexity == nil && maxPerplexity == nil,
	}

	// Validate even when the store is missing: bad arguments are the
	// caller's bug regardless of what is on disk.
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	return e.query(spec)
}

// ByLength sorts sentences by character count.
func (e *Extractor) ByLength(limit int, descending bool) ([]Row, error) {
	return e.query(store.QuerySpec{
		SortBy:     store.SortByLength,
		Descending: descending,
		Limit:      limit,
	})
}

func (e *Extractor) query(spec store.QuerySpec) ([]Row, error) {
	if e.st == nil {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	units, err := e.st.Query(spec)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, len(units))
	for i, u := range units {
		rows[i] = Row{
			Text:       u.Text,
			Perplexity: u.Perplexity,
			Unbounded:  u.Unbounded(),
			Length:     u.Length,
		}
	}

	return rows, nil
}

// FormatPerplexity renders a row's perplexity to two decimals, or the
// unbounded marker when it is undefined.
func FormatPerplexity(r Row) string {
	if r.Unbounded {
		return "∞"
	}
	return fmt.Sprintf("%.2f", r.Perplexity)
}
