package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/plancheck/internal/model"
	"github.com/ppiankov/plancheck/internal/pipeline"
)

var (
	checkAuthority string
	checkJSON      string
	checkMD        string
	checkText      bool
	checkStrict    bool
	checkTimeout   time.Duration
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check <drawing|url>",
	Short: "Check one drawing against an authority's rule set",
	Long: `Check extracts the text of a drawing (PDF, HTML or plain text, local or by URL)
and evaluates every rule of the authority's rule set against it.

Each rule is reported as pass, fail, unhandled (unknown check type) or invalid
(malformed rule), together with the phrases and measurements that decided it.

Example:
  plancheck check plans/a-101.pdf --authority DLF
  plancheck check ocr.txt --authority NCC --json report.json --md report.md
  plancheck check --text "CORRIDOR WIDTH 1200 MM" --authority NCC`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&checkAuthority, "authority", "a", "UNKNOWN", "authority whose rule set to check against")
	checkCmd.Flags().StringVar(&checkJSON, "json", "", "write the JSON report to this path")
	checkCmd.Flags().StringVar(&checkMD, "md", "", "write a Markdown report to this path")
	checkCmd.Flags().BoolVar(&checkText, "text", false, "treat the argument as drawing text instead of a path")
	checkCmd.Flags().BoolVar(&checkStrict, "strict", false, "exit with an error when any rule fails")
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 2*time.Minute, "overall check timeout")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), checkTimeout)
	defer cancel()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	target := args[0]
	var report *model.CheckReport
	switch {
	case checkText:
		report, err = a.pipeline.CheckText(ctx, checkAuthority, "", target)
	case isURL(target):
		report, err = a.pipeline.CheckURL(ctx, checkAuthority, target)
	default:
		report, err = a.pipeline.CheckFile(ctx, checkAuthority, target)
	}
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}

	renderer := pipeline.NewRenderer(os.Stderr)
	if checkJSON != "" {
		if err := renderer.RenderJSON(report, checkJSON); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", checkJSON)
		}
	} else {
		if err := writeJSON(os.Stdout, report); err != nil {
			return err
		}
	}
	if checkMD != "" {
		if err := renderer.RenderMarkdown(report, checkMD); err != nil {
			return fmt.Errorf("render failed: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", checkMD)
		}
	}
	renderer.RenderSummary(report)

	if checkStrict && report.Summary.Failed > 0 {
		return fmt.Errorf("%d of %d rules failed", report.Summary.Failed, report.Summary.Total)
	}
	return nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
