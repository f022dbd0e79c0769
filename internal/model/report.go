package model

import "time"

// CheckReport is the complete result of checking one drawing against one rule set
type CheckReport struct {
	Authority  string    `json:"authority"`
	Source     string    `json:"source,omitempty"` // File name or URL of the drawing
	CheckedAt  time.Time `json:"checked_at"`       // When the check ran
	TextLength int       `json:"text_length"`      // Characters of extracted text

	Results []EvaluationResult `json:"results"`
	Summary Summary            `json:"summary"`

	Validation []Issue `json:"validation,omitempty"` // Rule-set problems found before checking
}

// Summary is the transparent roll-up of a check run
type Summary struct {
	Total            int      `json:"total"`
	Passed           int      `json:"passed"`
	Failed           int      `json:"failed"`
	Unhandled        int      `json:"unhandled"`
	Invalid          int      `json:"invalid"`
	CriticalFailures []string `json:"critical_failures,omitempty"` // Ids of failed critical rules
	Index            int      `json:"compliance_index"`            // passed / evaluable × 100
	Confidence       string   `json:"confidence"`                  // "low", "medium", "high"
	Signals          []Signal `json:"signals,omitempty"`
}

// Signal represents a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalCriticalFailure SignalType = "critical_failure" // A rule marked critical failed
	SignalUnhandledRules  SignalType = "unhandled_rules"  // Rules with unrecognized check types
	SignalInvalidRules    SignalType = "invalid_rules"    // Malformed rules skipped
	SignalNoMeasurements  SignalType = "no_measurements"  // Numeric rules but no numbers in text
	SignalLowCoverage     SignalType = "low_coverage"     // Few rules could be evaluated
	SignalReviewRequired  SignalType = "review_required"  // Rules flagged for human review
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// IssueSeverity says whether a rule-set problem makes a rule unusable
type IssueSeverity string

const (
	IssueError   IssueSeverity = "error"   // The rule will be reported invalid or cannot be told apart
	IssueWarning IssueSeverity = "warning" // The rule runs, but probably not as its author meant
)

// Issue is a problem found while validating a rule set
type Issue struct {
	RuleID   string        `json:"rule_id"`
	Index    int           `json:"index"`
	Severity IssueSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// ExtractionReport is the result of generating rules from a code document
type ExtractionReport struct {
	Authority   string    `json:"authority"`
	Source      string    `json:"source,omitempty"`
	ExtractedAt time.Time `json:"extracted_at"`
	Chunks      int       `json:"chunks"`
	Candidates  int       `json:"candidates"`
	Dropped     int       `json:"dropped"` // Candidates the normalizer rejected or dedupe removed
	Count       int       `json:"count"`
	Rules       []Rule    `json:"rules"`
	Validation  []Issue   `json:"validation,omitempty"`
}
