package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/GonzoDMX/perplex/internal/batch"
	"github.com/GonzoDMX/perplex/internal/config"
	"github.com/GonzoDMX/perplex/internal/extract"
	"github.com/GonzoDMX/perplex/internal/ingest"
	"github.com/GonzoDMX/perplex/internal/logging"
	"github.com/GonzoDMX/perplex/internal/scorer"
	"github.com/GonzoDMX/perplex/internal/store"
)

func main() {
	cmd := buildRootCommand(config.Load())
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func buildRootCommand(cfg *config.Config) *cobra.Command {
	var (
		inputPath   string
		outputPath  string
		dbPath      string
		batchSize   int
		statsOnly   bool
		resultsOnly bool
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "perplexbatch",
		Short: "Resumable batch computation of per-sentence perplexity",
		Long: `perplexbatch splits a long text into sentences, scores each one with a
language-model scoring service and stores the per-sentence perplexity in a
SQLite database. Interrupted runs resume where the last committed batch
left off; nothing already scored is ever redone.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			logLevel := cfg.LogLevel
			if verbose {
				logLevel = "debug"
			}
			logger := logging.New(logLevel)

			if statsOnly {
				return printStoreStats(dbPath)
			}
			if resultsOnly {
				return printResults(dbPath, outputPath)
			}
			if inputPath == "" {
				return errors.New("--input is required (or use --stats-only / --results-only)")
			}

			return runPipeline(cfg, logger, inputPath, outputPath, dbPath, batchSize)
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "input text file to process (.txt, .md, .pdf, .docx)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the sorted report to this file")
	cmd.Flags().StringVarP(&dbPath, "database", "d", cfg.Database, "SQLite database file")
	cmd.Flags().IntVarP(&batchSize, "batch-size", "b", cfg.BatchSize, "units committed per batch (bounds crash loss)")
	cmd.Flags().BoolVarP(&statsOnly, "stats-only", "s", false, "print store statistics and exit")
	cmd.Flags().BoolVarP(&resultsOnly, "results-only", "r", false, "print sorted results and exit")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	return cmd
}

func runPipeline(cfg *config.Config, logger *logging.Logger, inputPath, outputPath, dbPath string, batchSize int) error {
	// 1. Read and report the input
	logger.Info("reading input file: %s", inputPath)
	text, err := ingest.ReadDocument(inputPath)
	if err != nil {
		return err
	}
	logger.Info("input size: %s", humanize.Bytes(uint64(len(text))))

	// 2. Open the store for writing (fails fast if another writer runs)
	s, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	// 3. Wire the scoring client into the processor
	client, err := scorer.NewClient(cfg.Scorer, logger)
	if err != nil {
		return err
	}

	reporter := batch.NewConsoleReporter(os.Stdout)
	processor := batch.New(s, client, batch.Options{
		BatchSize: batchSize,
		Logger:    logger,
		Progress:  reporter.Report,
	})

	// 4. Ingest (idempotent: a re-run adds nothing)
	count, err := processor.Ingest(text)
	if err != nil {
		return err
	}
	logger.Info("segmented %s sentences", humanize.Comma(int64(count)))

	st, err := s.Stats()
	if err != nil {
		return err
	}
	extract.WriteStats(os.Stdout, st)

	// 5. Process until drained or interrupted. Ctrl-C is always safe:
	// only committed batches are durable, the rest stays pending.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runStats, err := processor.Run(ctx)
	interrupted := errors.Is(err, context.Canceled)
	if err != nil && !interrupted {
		return err
	}
	if interrupted {
		fmt.Println("\nInterrupted. Committed progress is saved; re-run to resume.")
	}
	logger.Info("run finished: scored=%d failed=%d batches=%d", runStats.Scored, runStats.Failed, runStats.Batches)

	st, err = s.Stats()
	if err != nil {
		return err
	}
	extract.WriteStats(os.Stdout, st)

	if outputPath != "" && !interrupted {
		// Release the writer before the read-only report pass.
		if err := s.Close(); err != nil {
			return err
		}
		return writeReportFile(dbPath, outputPath)
	}

	return nil
}

func printStoreStats(dbPath string) error {
	e, err := extract.Open(dbPath)
	if err != nil {
		return err
	}
	defer e.Close()

	st, err := e.Stats()
	if err != nil {
		return err
	}
	extract.WriteStats(os.Stdout, st)

	return nil
}

func printResults(dbPath, outputPath string) error {
	e, err := extract.Open(dbPath)
	if err != nil {
		return err
	}
	defer e.Close()

	rows, err := e.ByPerplexity(0, nil, nil)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("No results available.")
		return nil
	}

	fmt.Println("SENTENCES BY DESCENDING PERPLEXITY")
	if err := extract.WriteReport(os.Stdout, rows); err != nil {
		return err
	}

	if outputPath != "" {
		return writeRowsToFile(rows, outputPath)
	}

	return nil
}

func writeReportFile(dbPath, outputPath string) error {
	e, err := extract.Open(dbPath)
	if err != nil {
		return err
	}
	defer e.Close()

	rows, err := e.ByPerplexity(0, nil, nil)
	if err != nil {
		return err
	}

	return writeRowsToFile(rows, outputPath)
}

func writeRowsToFile(rows []extract.Row, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	if err := extract.WriteReport(f, rows); err != nil {
		return err
	}

	fmt.Printf("Results saved to %s\n", outputPath)
	return nil
}
