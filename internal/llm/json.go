package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when a model response contains no parseable JSON
var ErrNoJSON = errors.New("no JSON in model response")

// ParseJSONMaybeArray pulls JSON out of a model response. It tries the whole text, then
// the span from the first '[' to the last ']', then the first '{' to the last '}', so
// prose or code fences around the payload are ignored.
func ParseJSONMaybeArray(raw string) (json.RawMessage, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrNoJSON
	}

	if json.Valid([]byte(raw)) {
		return json.RawMessage(raw), nil
	}

	for _, pair := range [][2]string{{"[", "]"}, {"{", "}"}} {
		start := strings.Index(raw, pair[0])
		end := strings.LastIndex(raw, pair[1])
		if start < 0 || end <= start {
			continue
		}
		candidate := raw[start : end+1]
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), nil
		}
	}

	return nil, ErrNoJSON
}

// IsJSONArray reports whether a parsed payload is an array
func IsJSONArray(data json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(data))
	return strings.HasPrefix(trimmed, "[")
}
