package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CheckType selects how a rule is evaluated against drawing text
type CheckType string

const (
	CheckPresence CheckType = "presence" // Any configured phrase must appear
	CheckKeyword  CheckType = "keyword"  // Same semantics as presence
	CheckNumeric  CheckType = "numeric"  // A measurement must satisfy a comparison
)

// Operator is a numeric comparison operator
type Operator string

const (
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpEqual        Operator = "="
)

// Valid reports whether the operator is one the evaluator understands
func (o Operator) Valid() bool {
	switch o {
	case OpGreaterEqual, OpLessEqual, OpGreater, OpLess, OpEqual:
		return true
	}
	return false
}

// Rule is a machine-readable building-code rule
type Rule struct {
	ID                  string          `json:"id"`
	Authority           string          `json:"authority,omitempty"`
	SectionTitle        string          `json:"section_title,omitempty"`
	ClauseReference     string          `json:"clause_reference,omitempty"`
	ShortDescription    string          `json:"short_description,omitempty"`
	TechnicalCheck      *TechnicalCheck `json:"technical_check,omitempty"`
	HumanReviewRequired bool            `json:"human_review_required,omitempty"`
	Severity            string          `json:"severity,omitempty"`
	Confidence          float64         `json:"confidence,omitempty"`
	RawClauseText       string          `json:"raw_clause_text,omitempty"`
	NotesForReviewer    string          `json:"notes_for_reviewer,omitempty"`

	// DecodeError is set when the rule could not be decoded from its source document
	DecodeError string `json:"-"`
}

// TechnicalCheck is the tagged check definition; which fields matter depends on Type
type TechnicalCheck struct {
	Type               CheckType       `json:"type"`
	FieldPath          string          `json:"field_path,omitempty"`
	Operator           Operator        `json:"operator,omitempty"`
	Value              json.RawMessage `json:"value,omitempty"`
	Units              string          `json:"units,omitempty"`
	ExampleTextMatches []string        `json:"example_text_matches,omitempty"`
}

// HasValue reports whether a value was supplied at all (null counts as absent)
func (c *TechnicalCheck) HasValue() bool {
	v := strings.TrimSpace(string(c.Value))
	return v != "" && v != "null"
}

// NumericValue interprets Value as a number. JSON numbers and numeric strings are accepted.
func (c *TechnicalCheck) NumericValue() (float64, error) {
	if !c.HasValue() {
		return 0, fmt.Errorf("value is missing")
	}

	var f float64
	if err := json.Unmarshal(c.Value, &f); err == nil {
		return f, nil
	}

	var s string
	if err := json.Unmarshal(c.Value, &s); err != nil {
		return 0, fmt.Errorf("value %s is not a number", string(c.Value))
	}

	parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, fmt.Errorf("value %q is not a number", s)
	}
	return parsed, nil
}

// ParseRuleSet decodes a JSON array of rules, or an object carrying one under "rules"
// (the shape GET /rules answers with). A rule that fails to decode does not fail the set:
// it is kept in position with DecodeError set so it can be reported as invalid.
func ParseRuleSet(data []byte) ([]Rule, error) {
	raws, err := ruleSetItems(data)
	if err != nil {
		return nil, fmt.Errorf("decode rule set: %w", err)
	}

	rules := make([]Rule, 0, len(raws))
	for i, raw := range raws {
		var r Rule
		if err := json.Unmarshal(raw, &r); err != nil {
			rules = append(rules, Rule{
				ID:          looseID(raw, i),
				DecodeError: err.Error(),
			})
			continue
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func ruleSetItems(data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		var raws []json.RawMessage
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, err
		}
		return raws, nil
	}

	var wrapper struct {
		Rules []json.RawMessage `json:"rules"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, err
	}
	if wrapper.Rules == nil {
		return nil, errors.New("object has no rules array")
	}
	return wrapper.Rules, nil
}

// looseID recovers an id from a rule that did not decode into Rule
func looseID(raw json.RawMessage, index int) string {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		if id, ok := obj["id"].(string); ok && id != "" {
			return id
		}
	}
	return fmt.Sprintf("#%d", index)
}
