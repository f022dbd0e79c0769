package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/plancheck/internal/pipeline"
	"github.com/ppiankov/plancheck/internal/worker"
)

var (
	batchAuthority string
	batchList      string
	concurrency    int
	outputDir      string
	batchMarkdown  bool
	batchTimeout   time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [drawings...]",
	Short: "Check many drawings in parallel",
	Long: `Batch checks many drawings against one authority's rule set concurrently:
- Read drawing paths from the arguments and/or a list file (one per line, # comments)
- Check drawings in parallel with a configurable worker count
- Write one JSON (and optionally Markdown) report per drawing

Example:
  plancheck batch plans/*.pdf --authority DLF
  plancheck batch --list drawings.txt --authority NCC --concurrency 8 --output-dir ./reports`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVarP(&batchAuthority, "authority", "a", "UNKNOWN", "authority whose rule set to check against")
	batchCmd.Flags().StringVar(&batchList, "list", "", "file listing drawing paths, one per line")
	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default: concurrency.workers)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "", "output directory for reports (default: output.directory)")
	batchCmd.Flags().BoolVar(&batchMarkdown, "md", false, "also write Markdown reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	paths := append([]string{}, args...)
	if batchList != "" {
		listed, err := worker.ReadPathsFromFile(batchList)
		if err != nil {
			return fmt.Errorf("read list: %w", err)
		}
		paths = append(paths, listed...)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no drawings given (pass paths or --list)")
	}

	workers := concurrency
	if workers <= 0 {
		workers = cfg.Concurrency.Workers
	}
	dir := outputDir
	if dir == "" {
		dir = cfg.Output.Directory
	}
	writeMarkdown := batchMarkdown || cfg.Output.Markdown

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  plancheck batch\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Authority:    %s\n", batchAuthority)
	fmt.Fprintf(os.Stderr, "  Drawings:     %d\n", len(paths))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", dir)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	results := worker.NewBatchChecker(a.pipeline, workers).ProcessFiles(ctx, batchAuthority, paths)

	renderer := pipeline.NewRenderer(os.Stderr)
	successCount, failureCount, nonCompliant := 0, 0, 0
	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}

		jsonPath, mdPath := pipeline.ReportPaths(dir, result.Path)
		if err := renderer.RenderJSON(result.Report, jsonPath); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", result.Path, err)
			continue
		}
		if writeMarkdown {
			if err := renderer.RenderMarkdown(result.Report, mdPath); err != nil {
				failureCount++
				fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", result.Path, err)
				continue
			}
		}

		successCount++
		s := result.Report.Summary
		if s.Failed > 0 {
			nonCompliant++
		}
		fmt.Fprintf(os.Stderr, "✓ %s (index: %d/100, %d passed, %d failed)\n", result.Path, s.Index, s.Passed, s.Failed)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:          %d drawings\n", len(results))
	fmt.Fprintf(os.Stderr, "  Checked:        %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Non-compliant:  %d\n", nonCompliant)
	fmt.Fprintf(os.Stderr, "  Failures:       %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:         %s\n", dir)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 {
		return fmt.Errorf("%d of %d drawings could not be checked", failureCount, len(results))
	}
	return nil
}
