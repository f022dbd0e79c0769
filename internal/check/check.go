package check

import (
	"strings"

	"github.com/ppiankov/plancheck/internal/extract"
	"github.com/ppiankov/plancheck/internal/model"
)

// Check evaluates every rule against text and returns one result per rule, in rule order.
// The text is lower-cased once and scanned for measurements once; all rules share both.
// A failing or malformed rule never stops the rules after it.
func Check(rules []model.Rule, text string) []model.EvaluationResult {
	lowered := strings.ToLower(text)
	tokens := extract.ExtractNumbers(text)

	results := make([]model.EvaluationResult, 0, len(rules))
	for _, rule := range rules {
		results = append(results, Evaluate(rule, tokens, lowered))
	}
	return results
}
