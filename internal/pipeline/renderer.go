package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ppiankov/plancheck/internal/model"
)

// Renderer writes check and extraction reports as JSON, Markdown and a terminal summary
type Renderer struct {
	out io.Writer
}

// NewRenderer creates a Renderer printing summaries to out (stderr when nil)
func NewRenderer(out io.Writer) *Renderer {
	if out == nil {
		out = os.Stderr
	}
	return &Renderer{out: out}
}

// ReportPaths returns the JSON and Markdown report paths for a checked drawing
func ReportPaths(dir, source string) (string, string) {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "report"
	}
	stem := filepath.Join(dir, base+".check")
	return stem + ".json", stem + ".md"
}

// RenderJSON writes v as indented JSON
func (r *Renderer) RenderJSON(v any, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write JSON: %w", err)
	}
	return nil
}

// RenderMarkdown writes a human-readable check report
func (r *Renderer) RenderMarkdown(report *model.CheckReport, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(MarkdownReport(report)), 0644); err != nil {
		return fmt.Errorf("write markdown: %w", err)
	}
	return nil
}

// MarkdownReport formats a check report as Markdown
func MarkdownReport(report *model.CheckReport) string {
	var b strings.Builder
	s := report.Summary

	fmt.Fprintf(&b, "# Compliance check: %s\n\n", report.Authority)
	if report.Source != "" {
		fmt.Fprintf(&b, "- **Drawing:** %s\n", report.Source)
	}
	fmt.Fprintf(&b, "- **Checked:** %s\n", report.CheckedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- **Compliance index:** %d/100 (confidence: %s)\n", s.Index, s.Confidence)
	fmt.Fprintf(&b, "- **Rules:** %d total, %d passed, %d failed, %d unhandled, %d invalid\n\n",
		s.Total, s.Passed, s.Failed, s.Unhandled, s.Invalid)

	if len(s.CriticalFailures) > 0 {
		fmt.Fprintf(&b, "**Critical failures:** %s\n\n", strings.Join(s.CriticalFailures, ", "))
	}

	if len(s.Signals) > 0 {
		b.WriteString("## Signals\n\n")
		for _, sig := range s.Signals {
			fmt.Fprintf(&b, "- [%s] %s\n", sig.Severity, sig.Description)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Results\n\n")
	b.WriteString("| Rule | Type | Status | Evidence |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, res := range report.Results {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			cell(res.ID), cell(string(res.Type)), statusLabel(res.Status), cell(evidence(res)))
	}

	if len(report.Validation) > 0 {
		b.WriteString("\n## Rule set issues\n\n")
		for _, issue := range report.Validation {
			id := issue.RuleID
			if id == "" {
				id = "#" + strconv.Itoa(issue.Index)
			}
			fmt.Fprintf(&b, "- %s %s: %s\n", issue.Severity, id, issue.Message)
		}
	}

	return b.String()
}

func statusLabel(s model.Status) string {
	switch s {
	case model.StatusPass:
		return "✓ pass"
	case model.StatusFail:
		return "✗ fail"
	}
	return string(s)
}

func evidence(res model.EvaluationResult) string {
	var parts []string
	if len(res.FoundMatches) > 0 {
		parts = append(parts, "found "+strings.Join(quoteAll(res.FoundMatches), ", "))
	}
	if res.RequiredMM != nil {
		parts = append(parts, "required "+strconv.FormatFloat(*res.RequiredMM, 'f', -1, 64)+" mm")
	}
	if len(res.Matched) > 0 {
		tokens := make([]string, len(res.Matched))
		for i, tok := range res.Matched {
			tokens[i] = tok.Token
		}
		parts = append(parts, "matched "+strings.Join(tokens, ", "))
	} else if res.RequiredMM != nil {
		parts = append(parts, fmt.Sprintf("%d measurements, none matched", len(res.FoundNumbers)))
	}
	if res.Reason != "" {
		parts = append(parts, res.Reason)
	}
	if res.Note != "" {
		parts = append(parts, res.Note)
	}
	return strings.Join(parts, "; ")
}

func quoteAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strconv.Quote(s)
	}
	return out
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// RenderSummary prints a short check summary
func (r *Renderer) RenderSummary(report *model.CheckReport) {
	s := report.Summary
	source := report.Source
	if source == "" {
		source = "(text)"
	}
	fmt.Fprintf(r.out, "\n%s against %s\n", source, report.Authority)
	fmt.Fprintf(r.out, "  Compliance index: %d/100 (confidence: %s)\n", s.Index, s.Confidence)
	fmt.Fprintf(r.out, "  Passed: %d  Failed: %d  Unhandled: %d  Invalid: %d\n", s.Passed, s.Failed, s.Unhandled, s.Invalid)
	if len(s.CriticalFailures) > 0 {
		fmt.Fprintf(r.out, "  Critical failures: %s\n", strings.Join(s.CriticalFailures, ", "))
	}
	for _, sig := range s.Signals {
		fmt.Fprintf(r.out, "  [%s] %s\n", sig.Severity, sig.Description)
	}
}

// RenderExtractionSummary prints a short rule generation summary
func (r *Renderer) RenderExtractionSummary(report *model.ExtractionReport) {
	fmt.Fprintf(r.out, "\nExtracted %d rules for %s", report.Count, report.Authority)
	if report.Source != "" {
		fmt.Fprintf(r.out, " from %s", report.Source)
	}
	fmt.Fprintf(r.out, "\n  Chunks: %d  Candidates: %d  Dropped: %d\n", report.Chunks, report.Candidates, report.Dropped)
	for _, issue := range report.Validation {
		fmt.Fprintf(r.out, "  %s %s: %s\n", issue.Severity, issue.RuleID, issue.Message)
	}
}
