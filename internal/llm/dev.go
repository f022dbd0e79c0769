package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/plancheck/internal/model"
)

// DevProvider returns canned, deterministic output so the whole generation pipeline can
// run without network access or API keys (DEV_MODE=true).
type DevProvider struct{}

// NewDevProvider creates a new dev provider
func NewDevProvider() *DevProvider {
	return &DevProvider{}
}

// Name returns the provider name
func (p *DevProvider) Name() string {
	return "dev"
}

// IsAvailable always succeeds
func (p *DevProvider) IsAvailable(ctx context.Context) bool {
	return true
}

// Complete answers extraction prompts with two sample clauses and normalization prompts
// with a rule built from the input object
func (p *DevProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out any
	if strings.Contains(strings.ToLower(req.Prompt), extractionMarker) {
		out = devCandidates()
	} else {
		out = devNormalize(req.Prompt)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal dev response: %w", err)
	}

	return &CompletionResponse{
		Text:  string(data),
		Model: "dev",
	}, nil
}

func devCandidates() []model.Candidate {
	return []model.Candidate{
		{
			ClauseReference:   "EX-1",
			Summary:           "Minimum corridor width 900 mm",
			ClauseText:        "Corridor width shall not be less than 900 mm.",
			SuggestedType:     "numeric",
			NumericParam:      "corridor width",
			Operator:          ">=",
			NumericValue:      json.RawMessage("900"),
			SuggestedSeverity: "critical",
		},
		{
			ClauseReference:   "EX-2",
			Summary:           "Title block must contain revision number and date",
			ClauseText:        "Each drawing shall contain a title block with revision number and date.",
			SuggestedType:     "presence",
			Keywords:          []string{"title block", "revision", "date"},
			SuggestedSeverity: "warning",
		},
	}
}

func devNormalize(prompt string) model.Rule {
	var c model.Candidate
	if obj, ok := between(prompt, "INPUT OBJECT:", "AUTHORITY:"); ok {
		_ = json.Unmarshal([]byte(obj), &c)
	}

	authority := "DEV"
	if rest, ok := between(prompt, "AUTHORITY:", "\n"); ok && rest != "" {
		authority = rest
	}

	ref := c.ClauseReference
	if ref == "" {
		ref = "EX-1"
	}
	checkType := model.CheckType(c.SuggestedType)
	if checkType == "" {
		checkType = model.CheckKeyword
	}
	severity := c.SuggestedSeverity
	if severity == "" {
		severity = "warning"
	}
	summary := c.Summary
	if summary == "" {
		summary = "Auto-normalized rule"
	}

	tc := &model.TechnicalCheck{
		Type:               checkType,
		FieldPath:          "annotations.title_block",
		ExampleTextMatches: c.Keywords,
	}
	if checkType == model.CheckNumeric {
		tc.FieldPath = "plan.dimensions.unknown"
		tc.Operator = model.Operator(c.Operator)
		tc.Value = c.NumericValue
		tc.Units = "mm"
	}

	return model.Rule{
		ID:                  authority + "-" + ref,
		Authority:           authority,
		SectionTitle:        "Auto-extracted",
		ClauseReference:     ref,
		ShortDescription:    summary,
		TechnicalCheck:      tc,
		HumanReviewRequired: true,
		Severity:            severity,
		Confidence:          0.6,
		RawClauseText:       c.ClauseText,
		NotesForReviewer:    "DEV_MODE mock result",
	}
}

// between returns the trimmed text after the first from and before the next to
func between(s, from, to string) (string, bool) {
	i := strings.Index(s, from)
	if i < 0 {
		return "", false
	}
	rest := s[i+len(from):]
	if j := strings.Index(rest, to); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSpace(rest), true
}
