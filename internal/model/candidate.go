package model

import "encoding/json"

// Candidate is a raw clause suggested by the extraction model before normalization
type Candidate struct {
	ClauseReference   string          `json:"clause_reference"`
	Summary           string          `json:"summary"`
	ClauseText        string          `json:"clause_text"`
	SuggestedType     string          `json:"suggested_type"`
	NumericParam      string          `json:"numeric_param,omitempty"`
	Operator          string          `json:"operator,omitempty"`
	NumericValue      json.RawMessage `json:"numeric_value,omitempty"`
	Keywords          []string        `json:"keywords,omitempty"`
	SuggestedSeverity string          `json:"suggested_severity,omitempty"`

	// SourcePreview is the start of the chunk the candidate came from, kept for reviewers
	SourcePreview string `json:"source_preview,omitempty"`
}
