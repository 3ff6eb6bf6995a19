package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/GonzoDMX/perplex/internal/extract"
	"github.com/GonzoDMX/perplex/internal/store"
)

func main() {
	if err := buildRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func buildRootCommand() *cobra.Command {
	var (
		outputPath    string
		formatName    string
		limit         int
		topN          int
		bottomN       int
		complexN      int
		minLength     int
		minPerplexity float64
		maxPerplexity float64
		search        string
		caseSensitive bool
		statsOnly     bool
	)

	cmd := &cobra.Command{
		Use:           "perplexextract <database>",
		Short:         "Query and export perplexity results from a processed store",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var minPtr, maxPtr *float64
			if cmd.Flags().Changed("min-perplexity") {
				minPtr = &minPerplexity
			}
			if cmd.Flags().Changed("max-perplexity") {
				maxPtr = &maxPerplexity
			}

			// Contradictory filters are the caller's bug; reject them
			// before opening anything.
			if minPtr != nil && maxPtr != nil && *minPtr > *maxPtr {
				return fmt.Errorf("%w: --min-perplexity %.2f > --max-perplexity %.2f", store.ErrInvalidQuery, *minPtr, *maxPtr)
			}

			format, err := extract.ParseFormat(formatName)
			if err != nil {
				return err
			}

			e, err := extract.Open(args[0])
			if err != nil {
				return err
			}
			defer e.Close()

			st, err := e.Stats()
			if err != nil {
				return err
			}
			extract.WriteStats(os.Stdout, st)

			if statsOnly {
				return nil
			}

			// Selection mirrors the flag precedence: top, bottom,
			// complex, search, then the default range listing.
			var (
				rows           []extract.Row
				title          string
				withComplexity bool
			)
			switch {
			case topN > 0:
				rows, err = e.TopPerplexity(topN)
				title = fmt.Sprintf("TOP %d - HIGHEST PERPLEXITY", topN)
			case bottomN > 0:
				rows, err = e.BottomPerplexity(bottomN)
				title = fmt.Sprintf("TOP %d - LOWEST PERPLEXITY", bottomN)
			case complexN > 0:
				rows, err = e.MostComplex(complexN, minLength)
				title = fmt.Sprintf("TOP %d - MOST COMPLEX SENTENCES (perplexity × ln(length))", complexN)
				withComplexity = true
			case search != "":
				rows, err = e.Search(search, caseSensitive)
				title = fmt.Sprintf("SEARCH: %q - BY DESCENDING PERPLEXITY", search)
			default:
				rows, err = e.ByPerplexity(limit, minPtr, maxPtr)
				title = "SENTENCES BY DESCENDING PERPLEXITY"
			}
			if err != nil {
				return err
			}

			if outputPath != "" {
				f, err := os.Create(outputPath)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()

				if err := extract.Write(f, format, rows, withComplexity); err != nil {
					return err
				}
				fmt.Printf("Results saved to %s (format: %s)\n", outputPath, format)
				return nil
			}

			return renderConsole(os.Stdout, cmd, format, title, rows, withComplexity)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write results to this file instead of stdout")
	cmd.Flags().StringVarP(&formatName, "format", "f", string(extract.FormatTable), "output format: table, delimited or structured")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "maximum number of sentences to return")
	cmd.Flags().IntVarP(&topN, "top", "t", 0, "show the N highest-perplexity sentences")
	cmd.Flags().IntVarP(&bottomN, "bottom", "b", 0, "show the N lowest-perplexity sentences")
	cmd.Flags().IntVarP(&complexN, "complex", "c", 0, "show the N most complex sentences (perplexity + length)")
	cmd.Flags().IntVar(&minLength, "min-length", 50, "minimum character length for --complex")
	cmd.Flags().Float64Var(&minPerplexity, "min-perplexity", 0, "minimum perplexity filter")
	cmd.Flags().Float64Var(&maxPerplexity, "max-perplexity", 0, "maximum perplexity filter")
	cmd.Flags().StringVarP(&search, "search", "s", "", "return sentences containing this keyword")
	cmd.Flags().BoolVar(&caseSensitive, "case-sensitive", false, "case-sensitive --search matching")
	cmd.Flags().BoolVar(&statsOnly, "stats-only", false, "print store statistics and exit")

	return cmd
}

// renderConsole prints the titled listing. Without an explicit --format
// the human-readable `sentence [[perplexity]]` lines are used; an explicit
// format renders the same rows through the chosen serializer.
func renderConsole(w io.Writer, cmd *cobra.Command, format extract.Format, title string, rows []extract.Row, withComplexity bool) error {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No sentences found.")
		return nil
	}

	color.New(color.Bold).Fprintln(w, title)

	if !cmd.Flags().Changed("format") {
		return extract.WriteReport(w, rows)
	}
	return extract.Write(w, format, rows, withComplexity)
}
