package extract

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Format selects how a query result is serialized. The format never
// changes which rows are in the result, only their rendering.
type Format string

const (
	FormatTable      Format = "table"
	FormatDelimited  Format = "delimited"
	FormatStructured Format = "structured"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatTable, FormatDelimited, FormatStructured:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown format %q (want table, delimited or structured)", s)
	}
}

// Write serializes rows to w in the chosen format. withComplexity adds the
// derived complexity column for complexity rankings.
func Write(w io.Writer, format Format, rows []Row, withComplexity bool) error {
	switch format {
	case FormatTable:
		return writeTable(w, rows, withComplexity)
	case FormatDelimited:
		return writeDelimited(w, rows, withComplexity)
	case FormatStructured:
		return writeStructured(w, rows, withComplexity)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// WriteReport emits the human-readable line format: `sentence [[pp]]`.
func WriteReport(w io.Writer, rows []Row) error {
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%s [[%s]]\n", r.Text, FormatPerplexity(r)); err != nil {
			return err
		}
	}
	return nil
}

func writeTable(w io.Writer, rows []Row, withComplexity bool) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)

	header := table.Row{"#", "Sentence", "Perplexity", "Length"}
	if withComplexity {
		header = append(header, "Complexity")
	}
	t.AppendHeader(header)

	for i, r := range rows {
		row := table.Row{i + 1, r.Text, FormatPerplexity(r), r.Length}
		if withComplexity {
			row = append(row, fmt.Sprintf("%.1f", r.Complexity))
		}
		t.AppendRow(row)
	}

	t.Render()
	return nil
}

func writeDelimited(w io.Writer, rows []Row, withComplexity bool) error {
	cw := csv.NewWriter(w)

	header := []string{"sentence", "perplexity", "length"}
	if withComplexity {
		header = append(header, "complexity")
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range rows {
		record := []string{r.Text, csvPerplexity(r), strconv.Itoa(r.Length)}
		if withComplexity {
			record = append(record, strconv.FormatFloat(r.Complexity, 'f', -1, 64))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func csvPerplexity(r Row) string {
	if r.Unbounded {
		return "inf"
	}
	return strconv.FormatFloat(r.Perplexity, 'f', -1, 64)
}

type structuredRow struct {
	Sentence   string   `json:"sentence"`
	Perplexity *float64 `json:"perplexity"` // null when unbounded
	Unbounded  bool     `json:"unbounded,omitempty"`
	Length     int      `json:"length"`
	Complexity *float64 `json:"complexity,omitempty"`
}

func writeStructured(w io.Writer, rows []Row, withComplexity bool) error {
	out := make([]structuredRow, len(rows))
	for i, r := range rows {
		sr := structuredRow{
			Sentence:  r.Text,
			Unbounded: r.Unbounded,
			Length:    r.Length,
		}
		if !r.Unbounded {
			pp := r.Perplexity
			sr.Perplexity = &pp
		}
		if withComplexity {
			c := r.Complexity
			sr.Complexity = &c
		}
		out[i] = sr
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
