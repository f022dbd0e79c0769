// Package check decides, rule by rule, whether drawing text satisfies a rule set.
// Everything here is a pure function of its inputs: no I/O, no logging, no shared state.
package check

import (
	"fmt"
	"math"
	"strings"

	"github.com/ppiankov/plancheck/internal/extract"
	"github.com/ppiankov/plancheck/internal/model"
)

// EqualTolerance absorbs floating point conversion noise for the "=" operator.
// It is not an engineering tolerance: a rule cannot express "900 mm give or take 5".
const EqualTolerance = 1e-6

// Evaluate checks one rule against the shared token sequence and the lower-cased text
func Evaluate(rule model.Rule, tokens []model.NumericToken, lowered string) model.EvaluationResult {
	res := model.EvaluationResult{
		ID:       rule.ID,
		Severity: rule.Severity,
	}

	if rule.DecodeError != "" {
		return invalid(res, "rule could not be decoded: "+rule.DecodeError)
	}

	tc := rule.TechnicalCheck
	if tc == nil {
		return invalid(res, "missing technical_check")
	}

	res.Type = model.CheckType(strings.ToLower(strings.TrimSpace(string(tc.Type))))

	switch res.Type {
	case "":
		return invalid(res, "missing technical_check.type")
	case model.CheckPresence, model.CheckKeyword:
		return evaluateKeyword(res, tc, lowered)
	case model.CheckNumeric:
		return evaluateNumeric(res, tc, tokens)
	default:
		res.Status = model.StatusUnhandled
		res.Unhandled = true
		res.Reason = fmt.Sprintf("check type %q is not handled", tc.Type)
		return res
	}
}

func evaluateKeyword(res model.EvaluationResult, tc *model.TechnicalCheck, lowered string) model.EvaluationResult {
	phrases := 0
	found := []string{}
	for _, phrase := range tc.ExampleTextMatches {
		needle := strings.ToLower(strings.TrimSpace(phrase))
		if needle == "" {
			continue
		}
		phrases++
		if strings.Contains(lowered, needle) {
			found = append(found, phrase)
		}
	}

	if phrases == 0 {
		return invalid(res, "keyword rule has no example_text_matches")
	}

	res.FoundMatches = found
	return decided(res, len(found) > 0)
}

func evaluateNumeric(res model.EvaluationResult, tc *model.TechnicalCheck, tokens []model.NumericToken) model.EvaluationResult {
	if !tc.HasValue() {
		return invalid(res, "numeric rule has no value")
	}
	op := model.Operator(strings.TrimSpace(string(tc.Operator)))
	if op == "" {
		return invalid(res, "numeric rule has no operator")
	}

	res.FoundNumbers = tokens
	if res.FoundNumbers == nil {
		res.FoundNumbers = []model.NumericToken{}
	}
	res.Matched = []model.NumericToken{}

	value, err := tc.NumericValue()
	if err != nil {
		res.Reason = err.Error()
		return decided(res, false)
	}
	if !op.Valid() {
		res.Reason = fmt.Sprintf("unsupported operator %q", tc.Operator)
		return decided(res, false)
	}

	factor, known := extract.UnitFactor(tc.Units)
	if !known {
		res.Note = fmt.Sprintf("unknown unit %q treated as mm", tc.Units)
	}
	required := value * factor
	res.RequiredMM = &required

	matched := []model.NumericToken{}
	for _, tok := range tokens {
		if Compare(op, tok.Parsed.MM, required) {
			matched = append(matched, tok)
		}
	}
	res.Matched = matched

	return decided(res, len(matched) > 0)
}

// Compare applies op to a found magnitude and a required magnitude, both in millimetres
func Compare(op model.Operator, found, required float64) bool {
	switch op {
	case model.OpGreaterEqual:
		return found >= required
	case model.OpLessEqual:
		return found <= required
	case model.OpGreater:
		return found > required
	case model.OpLess:
		return found < required
	case model.OpEqual:
		return math.Abs(found-required) < EqualTolerance
	}
	return false
}

func decided(res model.EvaluationResult, ok bool) model.EvaluationResult {
	res.OK = &ok
	if ok {
		res.Status = model.StatusPass
	} else {
		res.Status = model.StatusFail
	}
	return res
}

func invalid(res model.EvaluationResult, reason string) model.EvaluationResult {
	res.Status = model.StatusInvalid
	res.Unhandled = true
	res.Reason = reason
	return res
}
