package batch

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// ConsoleReporter renders progress events as per-sentence console lines,
// the reporting layer the CLIs attach to a Processor.
type ConsoleReporter struct {
	w io.Writer

	ok   *color.Color
	fail *color.Color
}

func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{
		w:    w,
		ok:   color.New(color.FgGreen),
		fail: color.New(color.FgRed),
	}
}

// Report is a ProgressFunc.
func (r *ConsoleReporter) Report(p Progress) {
	prefix := fmt.Sprintf("  Sentence %s/%s (position %d)... ",
		humanize.Comma(int64(p.Processed)), humanize.Comma(int64(p.Total)), p.Position)

	if p.Failed {
		fmt.Fprintf(r.w, "%s%s (%s)\n", prefix, r.fail.Sprint("✗"), p.Reason)
		return
	}

	fmt.Fprintf(r.w, "%s%s (%.2f)\n", prefix, r.ok.Sprint("✓"), p.Perplexity)
}
