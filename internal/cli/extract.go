package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/plancheck/internal/model"
	"github.com/ppiankov/plancheck/internal/pipeline"
)

var (
	extractAuthority string
	extractJSON      string
	extractTimeout   time.Duration
	extractDev       bool
	extractProvider  string
	extractModel     string
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <document|url>",
	Short: "Extract a rule set from a building-code document",
	Long: `Extract reads a building-code document (PDF, HTML or text, local or by URL),
asks the configured language model for checkable clauses, normalizes each one
into a rule and saves the deduplicated rule set for the authority.

The saved set replaces any previous set for the same authority. Every generated
rule is marked for human review.

Example:
  plancheck extract ncc-part-d.pdf --authority NCC
  plancheck extract https://codes.example.org/dlf.pdf --authority DLF --llm-provider gemini
  DEV_MODE=true plancheck extract sample.txt --authority DEV`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVarP(&extractAuthority, "authority", "a", "UNKNOWN", "authority the rules belong to")
	extractCmd.Flags().StringVar(&extractJSON, "json", "", "also write the extraction report to this path")
	extractCmd.Flags().DurationVar(&extractTimeout, "timeout", 30*time.Minute, "overall extraction timeout")
	extractCmd.Flags().BoolVar(&extractDev, "dev", false, "use canned model output instead of a provider")
	extractCmd.Flags().StringVar(&extractProvider, "llm-provider", "", "LLM provider (openai, anthropic, ollama, gemini, dev)")
	extractCmd.Flags().StringVar(&extractModel, "llm-model", "", "LLM model name")
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), extractTimeout)
	defer cancel()

	if extractDev {
		cfg.Extraction.DevMode = true
	}
	if extractProvider != "" {
		cfg.LLM.Provider = extractProvider
	}
	if extractModel != "" {
		cfg.LLM.Model = extractModel
	}

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	target := args[0]
	if verbose {
		fmt.Fprintf(os.Stderr, "⚙️  Extracting rules for %s from %s...\n", extractAuthority, target)
	}

	var report *model.ExtractionReport
	if isURL(target) {
		report, err = a.pipeline.ExtractRulesFromURL(ctx, extractAuthority, target)
	} else {
		report, err = a.pipeline.ExtractRulesFromFile(ctx, extractAuthority, target)
	}
	if err != nil {
		return fmt.Errorf("extract failed: %w", err)
	}

	renderer := pipeline.NewRenderer(os.Stderr)
	if extractJSON != "" {
		if err := renderer.RenderJSON(report, extractJSON); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
	}
	renderer.RenderExtractionSummary(report)
	return nil
}
