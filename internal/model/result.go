package model

import "encoding/json"

// UnitToken is a parsed measurement: the literal as written, its magnitude and unit,
// and the magnitude converted to millimetres
type UnitToken struct {
	Raw       string  `json:"raw"`
	Magnitude float64 `json:"magnitude"`
	Unit      string  `json:"unit"` // mm, cm or m; mm when the literal carried no unit
	MM        float64 `json:"mm"`
}

// NumericToken is a measurement found in document text together with the text around it.
// Offset is the byte offset of the literal in the source text.
type NumericToken struct {
	Token   string    `json:"token"`
	Parsed  UnitToken `json:"parsed"`
	Context string    `json:"context"`
	Offset  int       `json:"offset"`
}

// Status classifies a single evaluation result
type Status string

const (
	StatusPass      Status = "pass"
	StatusFail      Status = "fail"
	StatusUnhandled Status = "unhandled" // Check type not recognized; no pass/fail semantics
	StatusInvalid   Status = "invalid"   // Rule is malformed; no pass/fail semantics
)

// EvaluationResult is the outcome of one rule against one document.
// OK is nil for unhandled and invalid rules so no consumer can read them as pass or fail.
type EvaluationResult struct {
	ID        string    `json:"id"`
	Type      CheckType `json:"type"`
	OK        *bool     `json:"ok"`
	Status    Status    `json:"status"`
	Unhandled bool      `json:"unhandled,omitempty"`

	// Keyword / presence evidence
	FoundMatches []string `json:"found_matches,omitempty"`

	// Numeric evidence
	RequiredMM   *float64       `json:"required_mm,omitempty"`
	FoundNumbers []NumericToken `json:"found_numbers,omitempty"`
	Matched      []NumericToken `json:"matched,omitempty"`

	Reason   string `json:"reason,omitempty"` // Why a rule failed without a comparison or was invalid
	Note     string `json:"note,omitempty"`   // Assumptions made during evaluation
	Severity string `json:"severity,omitempty"`
}

// MarshalJSON writes the evidence lists of evaluated rules even when they are empty,
// so a failing keyword rule still reports "found_matches": []. Nil lists are left out.
func (r EvaluationResult) MarshalJSON() ([]byte, error) {
	type plain EvaluationResult
	return json.Marshal(struct {
		plain
		FoundMatches *[]string       `json:"found_matches,omitempty"`
		FoundNumbers *[]NumericToken `json:"found_numbers,omitempty"`
		Matched      *[]NumericToken `json:"matched,omitempty"`
	}{
		plain:        plain(r),
		FoundMatches: present(r.FoundMatches),
		FoundNumbers: present(r.FoundNumbers),
		Matched:      present(r.Matched),
	})
}

func present[T any](s []T) *[]T {
	if s == nil {
		return nil
	}
	return &s
}

// Passed reports whether the rule was evaluated and satisfied
func (r EvaluationResult) Passed() bool {
	return r.OK != nil && *r.OK
}

// Evaluable reports whether the result carries pass/fail semantics
func (r EvaluationResult) Evaluable() bool {
	return r.Status == StatusPass || r.Status == StatusFail
}
