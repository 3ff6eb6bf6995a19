package store

import (
	"fmt"
	"strings"
)

// SortKey selects the ordering of a query result.
type SortKey string

const (
	SortByPerplexity SortKey = "perplexity"
	SortByLength     SortKey = "length"
	SortByPosition   SortKey = "position"
)

// QuerySpec describes a read-only query over the units. Filters compose
// conjunctively. A zero Limit means no limit.
type QuerySpec struct {
	SortBy     SortKey
	Descending bool
	Limit      int

	// Filters
	MinPerplexity *float64
	MaxPerplexity *float64
	MinLength     int
	Search        string
	CaseSensitive bool

	// IncludeFailed also returns failed units. Their perplexity is
	// undefined (unbounded), so they sort as larger than every finite
	// value: first on a descending perplexity sort, last on ascending.
	IncludeFailed bool
}

// Validate rejects contradictory filter combinations before any SQL runs.
func (q QuerySpec) Validate() error {
	if q.MinPerplexity != nil && q.MaxPerplexity != nil && *q.MinPerplexity > *q.MaxPerplexity {
		return fmt.Errorf("%w: min perplexity %.2f > max perplexity %.2f", ErrInvalidQuery, *q.MinPerplexity, *q.MaxPerplexity)
	}
	if q.MinLength < 0 {
		return fmt.Errorf("%w: negative min length %d", ErrInvalidQuery, q.MinLength)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrInvalidQuery, q.Limit)
	}
	switch q.SortBy {
	case SortByPerplexity, SortByLength, SortByPosition, "":
	default:
		return fmt.Errorf("%w: unknown sort key %q", ErrInvalidQuery, q.SortBy)
	}
	return nil
}

// Query returns processed units matching the spec. Pending units are never
// part of a query result; readers only see resolved work.
func (s *Store) Query(q QuerySpec) ([]Unit, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var sb strings.Builder
	var params []any

	sb.WriteString(`
		SELECT id, text, position, length, status, perplexity, error_msg, updated_at
		FROM sentences`)

	if q.IncludeFailed {
		sb.WriteString(" WHERE status IN (?, ?)")
		params = append(params, StatusDone, StatusFailed)
	} else {
		sb.WriteString(" WHERE status = ?")
		params = append(params, StatusDone)
	}

	// Range filters compare against perplexity, so failed units (NULL
	// perplexity) drop out of range-filtered results automatically.
	if q.MinPerplexity != nil {
		sb.WriteString(" AND perplexity >= ?")
		params = append(params, *q.MinPerplexity)
	}
	if q.MaxPerplexity != nil {
		sb.WriteString(" AND perplexity <= ?")
		params = append(params, *q.MaxPerplexity)
	}
	if q.MinLength > 0 {
		sb.WriteString(" AND length >= ?")
		params = append(params, q.MinLength)
	}
	if q.Search != "" {
		if q.CaseSensitive {
			sb.WriteString(" AND instr(text, ?) > 0")
			params = append(params, q.Search)
		} else {
			sb.WriteString(" AND instr(lower(text), lower(?)) > 0")
			params = append(params, q.Search)
		}
	}

	sb.WriteString(orderClause(q))

	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		params = append(params, q.Limit)
	}

	rows, err := s.db.Query(sb.String(), params...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	return scanUnits(rows)
}

func orderClause(q QuerySpec) string {
	dir := "ASC"
	if q.Descending {
		dir = "DESC"
	}

	switch q.SortBy {
	case SortByLength:
		return " ORDER BY length " + dir + ", position ASC"
	case SortByPosition:
		return " ORDER BY position " + dir
	default:
		// Failed units carry NULL perplexity and rank as unbounded:
		// above every finite value descending, below ascending.
		if q.Descending {
			return " ORDER BY (perplexity IS NULL) DESC, perplexity DESC, position ASC"
		}
		return " ORDER BY (perplexity IS NULL) ASC, perplexity ASC, position ASC"
	}
}
