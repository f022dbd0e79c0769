package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/plancheck/internal/model"
	"github.com/ppiankov/plancheck/internal/rulegen"
	"github.com/ppiankov/plancheck/internal/validate"
)

var rulesFile string

// rulesCmd represents the rules command
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and validate stored rule sets",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rule sets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		sets, err := a.store.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("list rule sets: %w", err)
		}
		if len(sets) == 0 {
			fmt.Fprintf(os.Stderr, "No rule sets found\n")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "AUTHORITY\tRULES\tUPDATED")
		for _, s := range sets {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", s.Authority, s.Count, s.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	},
}

var rulesShowCmd = &cobra.Command{
	Use:   "show <authority>",
	Short: "Print a stored rule set as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		slug, rules, err := a.pipeline.Rules(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("load rules: %w", err)
		}
		return writeJSON(os.Stdout, map[string]any{
			"authority": slug,
			"count":     len(rules),
			"rules":     rules,
		})
	},
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate [authority]",
	Short: "Validate a stored rule set or a rule file",
	Long: `Validate reports problems that make rules invalid (errors) or likely to behave
differently than their author meant (warnings).

Example:
  plancheck rules validate NCC
  plancheck rules validate --file rules/DLF.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRulesValidate,
}

var rulesImportCmd = &cobra.Command{
	Use:   "import <authority> <file>",
	Short: "Save a rule file as the authority's rule set",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rules, err := readRuleFile(args[1])
		if err != nil {
			return err
		}
		issues := validate.ValidateRuleSet(rules)
		if validate.HasErrors(issues) {
			printIssues(os.Stderr, issues)
			return fmt.Errorf("rule file has errors; fix them before importing")
		}

		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		slug := rulegen.AuthoritySlug(args[0])
		if err := a.store.Save(cmd.Context(), slug, rules); err != nil {
			return fmt.Errorf("save rules: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✓ Imported %d rules for %s\n", len(rules), slug)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesShowCmd)
	rulesCmd.AddCommand(rulesValidateCmd)
	rulesCmd.AddCommand(rulesImportCmd)

	rulesValidateCmd.Flags().StringVar(&rulesFile, "file", "", "validate a rule file instead of a stored set")
}

func runRulesValidate(cmd *cobra.Command, args []string) error {
	var (
		rules  []model.Rule
		source string
		err    error
	)

	switch {
	case rulesFile != "":
		source = rulesFile
		rules, err = readRuleFile(rulesFile)
		if err != nil {
			return err
		}
	case len(args) == 1:
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		source, rules, err = a.pipeline.Rules(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("load rules: %w", err)
		}
	default:
		return fmt.Errorf("give an authority or --file")
	}

	issues := validate.ValidateRuleSet(rules)
	errs, warns := validate.Count(issues)
	printIssues(os.Stdout, issues)
	fmt.Fprintf(os.Stderr, "%s: %d rules, %d errors, %d warnings\n", source, len(rules), errs, warns)

	if errs > 0 {
		return fmt.Errorf("rule set has %d errors", errs)
	}
	return nil
}

func readRuleFile(path string) ([]model.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	rules, err := model.ParseRuleSet(data)
	if err != nil {
		return nil, fmt.Errorf("parse rule file: %w", err)
	}
	return rules, nil
}

func printIssues(w io.Writer, issues []model.Issue) {
	for _, issue := range issues {
		id := issue.RuleID
		if id == "" {
			id = fmt.Sprintf("#%d", issue.Index)
		}
		fmt.Fprintf(w, "%-7s %s: %s\n", issue.Severity, id, issue.Message)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}
