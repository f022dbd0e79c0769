package check

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/ppiankov/plancheck/internal/model"
)

func keywordRule(id string, phrases ...string) model.Rule {
	return model.Rule{
		ID: id,
		TechnicalCheck: &model.TechnicalCheck{
			Type:               model.CheckKeyword,
			ExampleTextMatches: phrases,
		},
	}
}

func numericRule(id string, op model.Operator, value, units string) model.Rule {
	return model.Rule{
		ID: id,
		TechnicalCheck: &model.TechnicalCheck{
			Type:     model.CheckNumeric,
			Operator: op,
			Value:    json.RawMessage(value),
			Units:    units,
		},
	}
}

func TestEvaluate_KeywordFindsSubset(t *testing.T) {
	rule := keywordRule("KW-1", "title block", "revision")
	text := "Drawing REVISION C issued for comment"

	res := Evaluate(rule, nil, strings.ToLower(text))

	if !res.Passed() {
		t.Fatalf("Expected keyword rule to pass, got %+v", res)
	}
	if !reflect.DeepEqual(res.FoundMatches, []string{"revision"}) {
		t.Errorf("Expected found matches [revision], got %v", res.FoundMatches)
	}
	if res.Type != model.CheckKeyword {
		t.Errorf("Expected type keyword, got %q", res.Type)
	}
}

func TestEvaluate_PresenceFails(t *testing.T) {
	rule := keywordRule("P-1", "fire exit")
	rule.TechnicalCheck.Type = model.CheckPresence

	res := Evaluate(rule, nil, "ground floor plan")

	if res.OK == nil || *res.OK {
		t.Fatalf("Expected ok=false, got %+v", res)
	}
	if res.Status != model.StatusFail {
		t.Errorf("Expected status fail, got %q", res.Status)
	}
	if len(res.FoundMatches) != 0 {
		t.Errorf("Expected no matches, got %v", res.FoundMatches)
	}
}

func TestCheck_NumericMinimumPasses(t *testing.T) {
	rules := []model.Rule{numericRule("N-1", model.OpGreaterEqual, `900`, "mm")}

	results := Check(rules, "corridor width shall not be less than 900 mm")

	res := results[0]
	if !res.Passed() {
		t.Fatalf("Expected numeric rule to pass, got %+v", res)
	}
	if len(res.Matched) == 0 || res.Matched[0].Parsed.MM != 900 {
		t.Errorf("Expected a matched token of 900 mm, got %+v", res.Matched)
	}
	if res.RequiredMM == nil || *res.RequiredMM != 900 {
		t.Errorf("Expected required 900 mm, got %v", res.RequiredMM)
	}
}

func TestCheck_NumericMetresRequirementFails(t *testing.T) {
	rules := []model.Rule{numericRule("N-2", model.OpGreaterEqual, `1`, "m")}

	res := Check(rules, "clear opening 900 mm")[0]

	if res.OK == nil || *res.OK {
		t.Fatalf("Expected ok=false, got %+v", res)
	}
	if *res.RequiredMM != 1000 {
		t.Errorf("Expected required 1000 mm, got %v", *res.RequiredMM)
	}
	if len(res.FoundNumbers) != 1 {
		t.Errorf("Expected the 900 mm token as evidence, got %+v", res.FoundNumbers)
	}
	if len(res.Matched) != 0 {
		t.Errorf("Expected no matched tokens, got %+v", res.Matched)
	}
}

func TestCheck_EqualityTolerance(t *testing.T) {
	rules := []model.Rule{
		numericRule("EQ-1", model.OpEqual, `900`, "mm"),
		numericRule("EQ-2", model.OpEqual, `901`, "mm"),
	}

	results := Check(rules, "door leaf 900.0000001 mm")

	if !results[0].Passed() {
		t.Errorf("Expected 900.0000001 to equal 900, got %+v", results[0])
	}
	if results[1].Passed() {
		t.Errorf("Expected 900.0000001 not to equal 901")
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		op       model.Operator
		found    float64
		required float64
		want     bool
	}{
		{model.OpGreaterEqual, 900, 900, true},
		{model.OpGreaterEqual, 899.9, 900, false},
		{model.OpLessEqual, 900, 900, true},
		{model.OpLessEqual, 901, 900, false},
		{model.OpGreater, 900, 900, false},
		{model.OpGreater, 901, 900, true},
		{model.OpLess, 899, 900, true},
		{model.OpLess, 900, 900, false},
		{model.OpEqual, 900.0000001, 900, true},
		{model.OpEqual, 900.001, 900, false},
		{model.Operator("~"), 900, 900, false},
	}

	for _, tt := range tests {
		if got := Compare(tt.op, tt.found, tt.required); got != tt.want {
			t.Errorf("Compare(%q, %v, %v) = %v, want %v", tt.op, tt.found, tt.required, got, tt.want)
		}
	}
}

func TestEvaluate_UnrecognizedTypeIsUnhandled(t *testing.T) {
	rule := model.Rule{
		ID:             "X-1",
		TechnicalCheck: &model.TechnicalCheck{Type: "geometry"},
	}

	res := Evaluate(rule, nil, "anything")

	if res.OK != nil {
		t.Errorf("Expected ok to be nil for unhandled rule, got %v", *res.OK)
	}
	if !res.Unhandled || res.Status != model.StatusUnhandled {
		t.Errorf("Expected unhandled status, got %+v", res)
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Contains(data, []byte(`"ok":null`)) {
		t.Errorf("Expected ok:null in JSON, got %s", data)
	}
}

func TestEvaluate_FailingResultsKeepEmptyEvidence(t *testing.T) {
	tests := []struct {
		name    string
		rule    model.Rule
		present []string
		absent  []string
	}{
		{
			name:    "keyword",
			rule:    keywordRule("K", "fire exit"),
			present: []string{`"found_matches":[]`},
			absent:  []string{`"found_numbers"`, `"matched"`},
		},
		{
			name:    "numeric",
			rule:    numericRule("W", model.OpGreaterEqual, `900`, "mm"),
			present: []string{`"found_numbers":[]`, `"matched":[]`},
			absent:  []string{`"found_matches"`},
		},
		{
			name:   "invalid",
			rule:   model.Rule{ID: "M"},
			absent: []string{`"found_matches"`, `"found_numbers"`, `"matched"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(Check([]model.Rule{tt.rule}, "ground floor plan")[0])
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			for _, want := range tt.present {
				if !bytes.Contains(data, []byte(want)) {
					t.Errorf("Expected %s in %s", want, data)
				}
			}
			for _, unwanted := range tt.absent {
				if bytes.Contains(data, []byte(unwanted)) {
					t.Errorf("Expected no %s in %s", unwanted, data)
				}
			}
		})
	}
}

func TestEvaluate_MalformedRules(t *testing.T) {
	tests := []struct {
		name string
		rule model.Rule
	}{
		{"missing technical_check", model.Rule{ID: "M-1"}},
		{"missing type", model.Rule{ID: "M-2", TechnicalCheck: &model.TechnicalCheck{}}},
		{"keyword without phrases", keywordRule("M-3", "", "  ")},
		{"numeric without value", numericRule("M-4", model.OpGreaterEqual, ``, "mm")},
		{"numeric with null value", numericRule("M-5", model.OpGreaterEqual, `null`, "mm")},
		{"numeric without operator", numericRule("M-6", "", `900`, "mm")},
		{"undecodable", model.Rule{ID: "M-7", DecodeError: "json: cannot unmarshal"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(tt.rule, nil, "900 mm")
			if res.Status != model.StatusInvalid {
				t.Errorf("Expected status invalid, got %q", res.Status)
			}
			if res.OK != nil {
				t.Errorf("Expected ok to be nil, got %v", *res.OK)
			}
			if res.Reason == "" {
				t.Error("Expected a reason")
			}
		})
	}
}

func TestEvaluate_NumericValueHandling(t *testing.T) {
	tokens := []model.NumericToken{{Token: "900 mm", Parsed: model.UnitToken{MM: 900}}}

	t.Run("non-numeric value fails with reason", func(t *testing.T) {
		res := Evaluate(numericRule("V-1", model.OpGreaterEqual, `"wide"`, "mm"), tokens, "")
		if res.OK == nil || *res.OK {
			t.Fatalf("Expected ok=false, got %+v", res)
		}
		if res.Reason == "" {
			t.Error("Expected a reason")
		}
		if len(res.Matched) != 0 {
			t.Errorf("Expected no matches, got %+v", res.Matched)
		}
	})

	t.Run("numeric string accepted", func(t *testing.T) {
		res := Evaluate(numericRule("V-2", model.OpGreaterEqual, `"900"`, "mm"), tokens, "")
		if !res.Passed() {
			t.Errorf("Expected pass, got %+v", res)
		}
	})

	t.Run("unsupported operator fails with reason", func(t *testing.T) {
		res := Evaluate(numericRule("V-3", "!=", `900`, "mm"), tokens, "")
		if res.OK == nil || *res.OK || res.Reason == "" {
			t.Errorf("Expected failure with reason, got %+v", res)
		}
	})

	t.Run("unknown unit treated as mm", func(t *testing.T) {
		res := Evaluate(numericRule("V-4", model.OpGreaterEqual, `900`, "furlong"), tokens, "")
		if !res.Passed() {
			t.Errorf("Expected pass, got %+v", res)
		}
		if res.Note == "" {
			t.Error("Expected a note about the unit")
		}
	})

	t.Run("empty unit is mm", func(t *testing.T) {
		res := Evaluate(numericRule("V-5", model.OpGreaterEqual, `90`, ""), tokens, "")
		if *res.RequiredMM != 90 || res.Note != "" {
			t.Errorf("Expected 90 mm without note, got %+v", res)
		}
	})
}

func TestCheck_YearDoesNotSatisfyThreshold(t *testing.T) {
	rules := []model.Rule{numericRule("Y-1", model.OpGreaterEqual, `1500`, "mm")}

	res := Check(rules, "Drawing issued 2025, see page2")[0]

	if res.Passed() {
		t.Errorf("Expected the year not to satisfy the rule, got matches %+v", res.Matched)
	}
	if len(res.FoundNumbers) != 0 {
		t.Errorf("Expected no measurements, got %+v", res.FoundNumbers)
	}
}

func TestCheck_OrderAndNoShortCircuit(t *testing.T) {
	rules := []model.Rule{
		numericRule("A", model.OpGreaterEqual, `5000`, "mm"),
		{ID: "B"},
		keywordRule("C", "stair"),
		{ID: "D", TechnicalCheck: &model.TechnicalCheck{Type: "area"}},
		numericRule("E", model.OpLessEqual, `190`, "mm"),
	}

	results := Check(rules, "STAIR riser 175 mm, going 250 mm")

	if len(results) != len(rules) {
		t.Fatalf("Expected %d results, got %d", len(rules), len(results))
	}
	for i, res := range results {
		if res.ID != rules[i].ID {
			t.Errorf("result %d: expected id %s, got %s", i, rules[i].ID, res.ID)
		}
	}

	wantStatus := []model.Status{
		model.StatusFail,
		model.StatusInvalid,
		model.StatusPass,
		model.StatusUnhandled,
		model.StatusPass,
	}
	for i, res := range results {
		if res.Status != wantStatus[i] {
			t.Errorf("result %s: expected status %s, got %s", res.ID, wantStatus[i], res.Status)
		}
	}
}

func TestCheck_Deterministic(t *testing.T) {
	data := []byte(`[
		{"id": "R1", "technical_check": {"type": "keyword", "example_text_matches": ["title block", "scale"]}},
		{"id": "R2", "technical_check": {"type": "numeric", "operator": ">=", "value": 2.1, "units": "m"}},
		{"id": "R3", "technical_check": {"type": "numeric", "operator": "<", "value": "x"}},
		{"id": "R4", "technical_check": "broken"},
		{"id": "R5", "technical_check": {"type": "elevation"}}
	]`)
	rules, err := model.ParseRuleSet(data)
	if err != nil {
		t.Fatalf("ParseRuleSet: %v", err)
	}
	text := "TITLE BLOCK - Scale 1:50 - headroom 2100 mm, ceiling 2.4 m, rev-03, 2024"

	first, err := json.Marshal(Check(rules, text))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := json.Marshal(Check(rules, text))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Errorf("Expected byte-identical output\nfirst:  %s\nsecond: %s", first, second)
	}

	results := Check(rules, text)
	if results[3].Status != model.StatusInvalid {
		t.Errorf("Expected undecodable rule R4 to be invalid, got %q", results[3].Status)
	}
	if !results[1].Passed() || len(results[1].Matched) != 2 {
		t.Errorf("Expected R2 to match 2100 mm and 2.4 m, got %+v", results[1].Matched)
	}
}
