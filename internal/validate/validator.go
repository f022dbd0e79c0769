// Package validate lints rule sets before they are saved or used, so authors see
// problems up front instead of as invalid results in every check report.
package validate

import (
	"fmt"
	"strings"

	"github.com/ppiankov/plancheck/internal/extract"
	"github.com/ppiankov/plancheck/internal/model"
)

var knownSeverities = map[string]bool{
	"":         true,
	"critical": true,
	"warning":  true,
	"info":     true,
}

// ValidateRuleSet returns every problem found in rules, in rule order.
// Errors mark rules the checker will report as invalid; warnings mark rules that run but
// are likely wrong.
func ValidateRuleSet(rules []model.Rule) []model.Issue {
	issues := []model.Issue{}
	seen := make(map[string]int)

	for i, rule := range rules {
		add := func(sev model.IssueSeverity, format string, args ...any) {
			issues = append(issues, model.Issue{
				RuleID:   rule.ID,
				Index:    i,
				Severity: sev,
				Message:  fmt.Sprintf(format, args...),
			})
		}

		if rule.DecodeError != "" {
			add(model.IssueError, "rule could not be decoded: %s", rule.DecodeError)
			continue
		}

		id := strings.TrimSpace(rule.ID)
		if id == "" {
			add(model.IssueError, "missing id")
		} else if first, dup := seen[id]; dup {
			add(model.IssueError, "duplicate id (first used by rule %d)", first)
		} else {
			seen[id] = i
		}

		if !knownSeverities[strings.ToLower(rule.Severity)] {
			add(model.IssueWarning, "unknown severity %q", rule.Severity)
		}
		if rule.Confidence < 0 || rule.Confidence > 1 {
			add(model.IssueWarning, "confidence %v outside 0..1", rule.Confidence)
		}

		tc := rule.TechnicalCheck
		if tc == nil {
			add(model.IssueError, "missing technical_check")
			continue
		}

		switch model.CheckType(strings.ToLower(strings.TrimSpace(string(tc.Type)))) {
		case "":
			add(model.IssueError, "missing technical_check.type")
		case model.CheckKeyword, model.CheckPresence:
			validateKeyword(tc, add)
		case model.CheckNumeric:
			validateNumeric(tc, add)
		default:
			add(model.IssueWarning, "check type %q is not handled and will be reported unhandled", tc.Type)
		}
	}

	return issues
}

type addFunc func(sev model.IssueSeverity, format string, args ...any)

func validateKeyword(tc *model.TechnicalCheck, add addFunc) {
	phrases := 0
	for _, p := range tc.ExampleTextMatches {
		if strings.TrimSpace(p) != "" {
			phrases++
		}
	}
	if phrases == 0 {
		add(model.IssueError, "keyword rule has no example_text_matches")
	}
	if phrases < len(tc.ExampleTextMatches) {
		add(model.IssueWarning, "blank phrases in example_text_matches are ignored")
	}
}

func validateNumeric(tc *model.TechnicalCheck, add addFunc) {
	if !tc.HasValue() {
		add(model.IssueError, "numeric rule has no value")
	} else if _, err := tc.NumericValue(); err != nil {
		add(model.IssueError, "numeric rule value is not a number: %v", err)
	}

	op := model.Operator(strings.TrimSpace(string(tc.Operator)))
	switch {
	case op == "":
		add(model.IssueError, "numeric rule has no operator")
	case !op.Valid():
		add(model.IssueError, "unsupported operator %q", tc.Operator)
	}

	if _, known := extract.UnitFactor(tc.Units); !known {
		add(model.IssueWarning, "unknown unit %q will be treated as mm", tc.Units)
	}
}

// HasErrors reports whether any issue is an error
func HasErrors(issues []model.Issue) bool {
	for _, issue := range issues {
		if issue.Severity == model.IssueError {
			return true
		}
	}
	return false
}

// Count returns the number of errors and warnings
func Count(issues []model.Issue) (errors, warnings int) {
	for _, issue := range issues {
		switch issue.Severity {
		case model.IssueError:
			errors++
		case model.IssueWarning:
			warnings++
		}
	}
	return errors, warnings
}
