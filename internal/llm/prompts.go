package llm

import (
	"encoding/json"
	"fmt"
)

// System prompts for the two generation passes
const (
	ExtractionSystem    = "You are a building code analyst. Output JSON only."
	NormalizationSystem = "You are a normalizer. Output JSON only."
)

// extractionMarker lets the dev provider tell the two passes apart
const extractionMarker = "extract clauses that can be turned into an automated compliance check"

// ExtractionPrompt asks the model for candidate clauses in one chunk of code text
func ExtractionPrompt(chunk string) string {
	return fmt.Sprintf("INPUT: Begin with the following building code text delimited by triple backticks:\n"+
		"```\n%s\n```\n\n"+
		"TASK: From the provided text, %s.\n"+
		"Only include clauses a reviewer could verify from the text of an architectural drawing: "+
		"a measurable dimension (width, height, depth, clearance, setback) or required annotations "+
		"(title block, scale, north point, revision).\n\n"+
		"Return a strict JSON array. Each element has these fields:\n"+
		"  clause_reference   string  clause or section number as printed\n"+
		"  summary            string  one-line plain description\n"+
		"  clause_text        string  the clause wording, verbatim\n"+
		"  suggested_type     string  \"numeric\" for a measurable limit, \"presence\" for required text\n"+
		"  numeric_param      string  what is measured (numeric only)\n"+
		"  operator           string  one of >=, <=, >, <, = (numeric only)\n"+
		"  numeric_value      number  the limit (numeric only)\n"+
		"  keywords           array   lower-case phrases that must appear (presence only)\n"+
		"  suggested_severity string  critical, warning or info\n"+
		"Return [] when no clause qualifies.", chunk, extractionMarker)
}

// NormalizationPrompt asks the model to turn one candidate into a rule object
func NormalizationPrompt(candidate any, authoritySlug string) (string, error) {
	obj, err := json.Marshal(candidate)
	if err != nil {
		return "", fmt.Errorf("marshal candidate: %w", err)
	}
	return fmt.Sprintf("INPUT OBJECT:\n%s\nAUTHORITY:%s\n\n"+
		"TASK: Normalize the input object into one rule. Return a single JSON object with fields:\n"+
		"  id                   string  \"<AUTHORITY>-<clause_reference>\"\n"+
		"  authority            string\n"+
		"  section_title        string\n"+
		"  clause_reference     string\n"+
		"  short_description    string\n"+
		"  technical_check      object  {type, field_path, operator, value, units, example_text_matches}\n"+
		"                               type is \"numeric\", \"presence\" or \"keyword\"; units is mm, cm or m;\n"+
		"                               value is a number for numeric checks\n"+
		"  human_review_required boolean\n"+
		"  severity             string  critical, warning or info\n"+
		"  confidence           number  0 to 1\n"+
		"  raw_clause_text      string  verbatim clause\n"+
		"  notes_for_reviewer   string\n"+
		"Return null if the clause cannot be checked automatically.", obj, authoritySlug), nil
}
