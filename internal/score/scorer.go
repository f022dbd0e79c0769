// Package score rolls evaluation results up into a compliance summary. Every number in
// the summary is explained by a signal carrying its inputs and formula.
package score

import (
	"fmt"
	"math"
	"strings"

	"github.com/ppiankov/plancheck/internal/model"
)

// lowCoverageRatio is the share of evaluable rules below which a report is low confidence
const lowCoverageRatio = 0.5

// Summarize counts results per status and derives the compliance index and signals.
// rules is optional; when it lines up with results it adds review-required signals.
func Summarize(results []model.EvaluationResult, rules []model.Rule) model.Summary {
	s := model.Summary{Total: len(results)}

	numericEvaluated := 0
	numericWithoutTokens := 0

	for _, res := range results {
		switch res.Status {
		case model.StatusPass:
			s.Passed++
		case model.StatusFail:
			s.Failed++
			if strings.EqualFold(res.Severity, "critical") {
				s.CriticalFailures = append(s.CriticalFailures, res.ID)
			}
		case model.StatusUnhandled:
			s.Unhandled++
		case model.StatusInvalid:
			s.Invalid++
		}

		if res.Type == model.CheckNumeric && res.Evaluable() {
			numericEvaluated++
			if len(res.FoundNumbers) == 0 {
				numericWithoutTokens++
			}
		}
	}

	evaluable := s.Passed + s.Failed
	s.Index = complianceIndex(s.Passed, evaluable)
	s.Confidence = confidence(s, evaluable)

	if sig, ok := criticalSignal(s); ok {
		s.Signals = append(s.Signals, sig)
	}
	if s.Unhandled > 0 {
		s.Signals = append(s.Signals, model.Signal{
			Type:        model.SignalUnhandledRules,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("%d rule(s) use check types the checker does not handle", s.Unhandled),
			Data:        map[string]interface{}{"unhandled": s.Unhandled},
		})
	}
	if s.Invalid > 0 {
		s.Signals = append(s.Signals, model.Signal{
			Type:        model.SignalInvalidRules,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("%d malformed rule(s) were skipped", s.Invalid),
			Data:        map[string]interface{}{"invalid": s.Invalid},
		})
	}
	if numericEvaluated > 0 && numericWithoutTokens == numericEvaluated {
		s.Signals = append(s.Signals, model.Signal{
			Type:        model.SignalNoMeasurements,
			Severity:    model.SeverityWarning,
			Description: "No measurements found in the drawing text; numeric rules cannot pass",
			Data:        map[string]interface{}{"numeric_rules": numericEvaluated},
		})
	}
	if sig, ok := coverageSignal(s, evaluable); ok {
		s.Signals = append(s.Signals, sig)
	}
	if sig, ok := reviewSignal(results, rules); ok {
		s.Signals = append(s.Signals, sig)
	}

	return s
}

// complianceIndex is passed / evaluable × 100, rounded; zero when nothing was evaluable
func complianceIndex(passed, evaluable int) int {
	if evaluable == 0 {
		return 0
	}
	return int(math.Round(float64(passed) / float64(evaluable) * 100))
}

func confidence(s model.Summary, evaluable int) string {
	if evaluable == 0 || s.Total == 0 {
		return "low"
	}
	coverage := float64(evaluable) / float64(s.Total)
	switch {
	case coverage < lowCoverageRatio:
		return "low"
	case s.Invalid > 0 || s.Unhandled > 0:
		return "medium"
	default:
		return "high"
	}
}

func criticalSignal(s model.Summary) (model.Signal, bool) {
	if len(s.CriticalFailures) == 0 {
		return model.Signal{}, false
	}
	return model.Signal{
		Type:        model.SignalCriticalFailure,
		Severity:    model.SeverityCritical,
		Description: fmt.Sprintf("%d critical rule(s) failed: %s", len(s.CriticalFailures), strings.Join(s.CriticalFailures, ", ")),
		Data: map[string]interface{}{
			"rules": s.CriticalFailures,
		},
	}, true
}

func coverageSignal(s model.Summary, evaluable int) (model.Signal, bool) {
	if s.Total == 0 {
		return model.Signal{
			Type:        model.SignalLowCoverage,
			Severity:    model.SeverityCritical,
			Description: "Rule set is empty",
			Data:        map[string]interface{}{"total": 0},
		}, true
	}

	ratio := float64(evaluable) / float64(s.Total)
	if ratio >= lowCoverageRatio {
		return model.Signal{}, false
	}
	return model.Signal{
		Type:        model.SignalLowCoverage,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("Only %d of %d rules could be evaluated", evaluable, s.Total),
		Data: map[string]interface{}{
			"evaluable": evaluable,
			"total":     s.Total,
			"ratio":     ratio,
			"formula":   "(passed + failed) / total",
		},
	}, true
}

// reviewSignal lists decided rules whose authors asked for a human to confirm the result
func reviewSignal(results []model.EvaluationResult, rules []model.Rule) (model.Signal, bool) {
	if len(rules) != len(results) {
		return model.Signal{}, false
	}

	var ids []string
	for i, rule := range rules {
		if rule.HumanReviewRequired && results[i].Evaluable() {
			ids = append(ids, results[i].ID)
		}
	}
	if len(ids) == 0 {
		return model.Signal{}, false
	}
	return model.Signal{
		Type:        model.SignalReviewRequired,
		Severity:    model.SeverityInfo,
		Description: fmt.Sprintf("%d result(s) need human review", len(ids)),
		Data:        map[string]interface{}{"rules": ids},
	}, true
}
