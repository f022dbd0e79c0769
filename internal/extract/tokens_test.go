package extract

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func tokenTexts(text string) []string {
	var out []string
	for _, tok := range ExtractNumbers(text) {
		out = append(out, tok.Token)
	}
	return out
}

func TestExtractNumbers_Measurements(t *testing.T) {
	text := "corridor width shall not be less than 900 mm"

	tokens := ExtractNumbers(text)
	if len(tokens) != 1 {
		t.Fatalf("Expected 1 token, got %d: %+v", len(tokens), tokens)
	}

	tok := tokens[0]
	if tok.Token != "900 mm" {
		t.Errorf("Expected token '900 mm', got %q", tok.Token)
	}
	if tok.Parsed.MM != 900 {
		t.Errorf("Expected 900 mm, got %v", tok.Parsed.MM)
	}
	if tok.Offset != strings.Index(text, "900") {
		t.Errorf("Expected offset %d, got %d", strings.Index(text, "900"), tok.Offset)
	}
	if tok.Context != "width shall not be less than 900 mm" {
		t.Errorf("Unexpected context %q", tok.Context)
	}
}

func TestExtractNumbers_Boundaries(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"page reference", "see page2 for details", nil},
		{"page reference then measurement", "page2 of 10", []string{"10"}},
		{"standalone year", "Issued 2025", nil},
		{"year before comma", "In 2025, the door was 900 mm", []string{"900 mm"}},
		{"year with unit is a measurement", "raise by 2025 mm", []string{"2025 mm"}},
		{"not a year", "span of 2100", []string{"2100"}},
		{"unitless dimension in year range", "height=2040", nil},
		{"unitless leaf size in year range", "door leaf 1950", nil},
		{"date", "Date: 01-jan-2025", nil},
		{"iso date", "issued 2024-03-01", nil},
		{"revision code", "Rev-02", nil},
		{"drawing number", "see A-101 and A101", nil},
		{"scale", "Scale 1:100", nil},
		{"label colon", "Width:900mm", []string{"900mm"}},
		{"label comma", "clear width,1200 mm", []string{"1200 mm"}},
		{"label colon without unit", "Corridor Width:900", []string{"900"}},
		{"measurement after drawing code", "A-101, Width:900mm", []string{"900mm"}},
		{"comma between numbers", "items 3,45 apart", nil},
		{"fraction", "1/2 height", nil},
		{"imperial glued", "900ft", nil},
		{"imperial spaced", "900 ft", nil},
		{"inches mark", `12" clear`, nil},
		{"percent", "gradient 50%", nil},
		{"other quantity", "load 35 kN", nil},
		{"area", "room of 12 m²", nil},
		{"ordinal", "the 2nd floor", nil},
		{"version", "v1.2 release", nil},
		{"figure", "Fig.3 shows", nil},
		{"clause number", "Clause 4.2.1 requires 850 mm", []string{"850 mm"}},
		{"unit then joiner", "a 900mm-wide door", []string{"900mm"}},
		{"glued unit", "10cm upstand", []string{"10cm"}},
		{"upper case unit", "WIDTH 900 MM", []string{"900 MM"}},
		{"metres", "headroom 2.1 m clear", []string{"2.1 m"}},
		{"spelled-out metres", "headroom 2.1 metres", nil},
		{"spelled-out meters", "ceiling 2.4 meters high", nil},
		{"spelled-out millimetres", "gap of 10 millimetres", nil},
		{"unit on next line", "1.2\nm wide", []string{"1.2\nm"}},
		{"unknown glued suffix", "900mmx", nil},
		{"bare number before word", "900 wide", []string{"900"}},
		{"sentence end", "must be 900.", []string{"900"}},
		{"thousands", "at least 1,200 mm", []string{"1,200 mm"}},
		{"decimal comma", "1,5 m", nil},
		{"negative", "offset -5 mm", []string{"-5 mm"}},
		{"hyphen is not a sign after a word", "x-5 mm", nil},
		{"dimension pair", "900×2100", []string{"900", "2100"}},
		{"order preserved", "min 900 mm and max 1200 mm", []string{"900 mm", "1200 mm"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenTexts(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractNumbers(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestExtractNumbers_ParsedValues(t *testing.T) {
	tokens := ExtractNumbers("door 0.9 m, lobby 1,500 mm, kerb 15cm")

	want := []float64{900, 1500, 150}
	if len(tokens) != len(want) {
		t.Fatalf("Expected %d tokens, got %d: %+v", len(want), len(tokens), tokens)
	}
	for i, tok := range tokens {
		if tok.Parsed.MM != want[i] {
			t.Errorf("token %d (%q): expected %v mm, got %v", i, tok.Token, want[i], tok.Parsed.MM)
		}
	}
}

func TestExtractNumbers_LineBreakBeforeUnit(t *testing.T) {
	tokens := ExtractNumbers("clear opening 1.2\nm wide")
	if len(tokens) != 1 {
		t.Fatalf("Expected 1 token, got %d: %+v", len(tokens), tokens)
	}
	if tokens[0].Parsed.MM != 1200 || tokens[0].Parsed.Unit != "m" {
		t.Errorf("Expected 1200 mm with unit m, got %+v", tokens[0].Parsed)
	}
}

func TestExtractNumbers_ContextWindow(t *testing.T) {
	text := strings.Repeat("x", 40) + " 5 mm " + strings.Repeat("y", 40)

	tokens := ExtractNumbers(text)
	if len(tokens) != 1 {
		t.Fatalf("Expected 1 token, got %d", len(tokens))
	}

	want := strings.Repeat("x", 29) + " 5 mm " + strings.Repeat("y", 29)
	if tokens[0].Context != want {
		t.Errorf("Expected context %q, got %q", want, tokens[0].Context)
	}
}

func TestExtractNumbers_ContextCountsRunes(t *testing.T) {
	text := strings.Repeat("é", 50) + " 900 mm " + strings.Repeat("ü", 50)

	tokens := ExtractNumbers(text)
	if len(tokens) != 1 {
		t.Fatalf("Expected 1 token, got %d", len(tokens))
	}

	ctx := tokens[0].Context
	if !utf8.ValidString(ctx) {
		t.Fatalf("Context is not valid UTF-8: %q", ctx)
	}
	want := strings.Repeat("é", 29) + " 900 mm " + strings.Repeat("ü", 29)
	if ctx != want {
		t.Errorf("Expected context %q, got %q", want, ctx)
	}
}

func TestExtractNumbers_Deterministic(t *testing.T) {
	text := "Door 900 mm, stair riser 175 mm, going 250mm, rev-03, 2024, headroom 2 m"

	first := ExtractNumbers(text)
	second := ExtractNumbers(text)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical results, got %+v and %+v", first, second)
	}
	if len(first) != 4 {
		t.Errorf("Expected 4 tokens, got %d: %q", len(first), tokenTexts(text))
	}
}

func TestExtractNumbers_Empty(t *testing.T) {
	if got := ExtractNumbers(""); len(got) != 0 {
		t.Errorf("Expected no tokens, got %+v", got)
	}
	if got := ExtractNumbers("no numbers here"); len(got) != 0 {
		t.Errorf("Expected no tokens, got %+v", got)
	}
}
