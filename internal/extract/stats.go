package extract

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/GonzoDMX/perplex/internal/store"
)

// WriteStats renders the store's progress summary, shared by both CLIs.
func WriteStats(w io.Writer, st store.Stats) {
	color.New(color.Bold).Fprintln(w, "=== STATISTICS ===")
	fmt.Fprintf(w, "Total sentences:     %d\n", st.Total)
	fmt.Fprintf(w, "Processed (done):    %d\n", st.Done)
	fmt.Fprintf(w, "Remaining (pending): %d\n", st.Pending)

	if st.Failed > 0 {
		fmt.Fprintf(w, "Failed (unbounded):  %d\n", st.Failed)
	}
	if st.Total > 0 {
		processed := st.Done + st.Failed
		fmt.Fprintf(w, "Completion:          %.1f%%\n", float64(processed)/float64(st.Total)*100)
	}
	if st.Done > 0 {
		fmt.Fprintf(w, "Mean perplexity:     %.2f\n", st.MeanPerplexity)
		fmt.Fprintf(w, "Min/max perplexity:  %.2f / %.2f\n", st.MinPerplexity, st.MaxPerplexity)
	}
}
