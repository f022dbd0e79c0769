package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/plancheck/internal/model"
)

// ContextRadius is how many characters of surrounding text each side of a token are kept
const ContextRadius = 30

// Units that mark a number as some other quantity when written after it ("900 ft", "35 kN")
var foreignUnits = map[string]bool{
	"ft": true, "feet": true, "foot": true, "inch": true, "inches": true,
	"km": true, "kg": true, "kn": true, "kpa": true, "mpa": true, "pa": true,
	"mm2": true, "mm3": true, "cm2": true, "cm3": true, "m2": true, "m3": true,
	"sqm": true, "sqft": true, "lux": true, "lx": true, "db": true, "kw": true,
	"hz": true, "deg": true, "ml": true, "m²": true, "mm²": true, "cm²": true, "m³": true,
	// spelled-out lengths are not read as mm, cm or m
	"metre": true, "metres": true, "meter": true, "meters": true,
	"centimetre": true, "centimetres": true, "centimeter": true, "centimeters": true,
	"millimetre": true, "millimetres": true, "millimeter": true, "millimeters": true,
}

// ExtractNumbers scans text left to right for length measurements and returns them in
// order of appearance. Boundary rules:
//
//   - a literal is [sign] digits [,ddd...] [.digits]; a sign only counts when the rune
//     before it is not a letter or digit
//   - the literal must not continue a word ("page2", "v1.2") or a compound such as a date,
//     revision code or scale ("01-jan-2025", "rev-02", "1:100"); a label ending in a colon
//     or comma ("Width:900mm") is not a compound, only a digit on the far side makes one
//   - a unit mm, cm or m may follow directly or after whitespace, a line break included;
//     other letters glued to the
//     digits ("900ft", "2nd") reject the literal, a separate word leaves a bare number
//     unless it names another quantity ("900 ft", "35 kN", "50%", 12")
//   - a bare four-digit integer from 1900 to 2099 is read as a year and skipped
//
// Literals that fail a rule are skipped along with the rest of their compound run.
func ExtractNumbers(text string) []model.NumericToken {
	var tokens []model.NumericToken

	i := 0
	for i < len(text) {
		if !isASCIIDigit(text[i]) {
			_, size := utf8.DecodeRuneInString(text[i:])
			i += size
			continue
		}

		start, end, unit, ok := scanToken(text, i)
		if !ok {
			i = skipCompound(text, i)
			continue
		}

		raw := text[start:end]
		if unit == "" && isYear(raw) {
			i = end
			continue
		}

		parsed, err := Normalize(raw)
		if err != nil {
			i = skipCompound(text, i)
			continue
		}

		tokens = append(tokens, model.NumericToken{
			Token:   raw,
			Parsed:  parsed,
			Context: contextWindow(text, start, end),
			Offset:  start,
		})
		i = end
	}

	return tokens
}

// scanToken reads one candidate whose first digit is at i. It returns the token span,
// the unit as written and whether the candidate passes the boundary rules.
func scanToken(text string, i int) (start, end int, unit string, ok bool) {
	start = i

	prev, prevSize := runeBefore(text, i)
	switch {
	case prev == utf8.RuneError:
		// start of text
	case isWordRune(prev) || prev == '.':
		return 0, 0, "", false
	case prev == '-' || prev == '+':
		before, _ := runeBefore(text, i-prevSize)
		if isWordRune(before) {
			return 0, 0, "", false
		}
		start = i - prevSize
	case isJoiner(prev):
		before, _ := runeBefore(text, i-prevSize)
		if joins(prev, before) {
			return 0, 0, "", false
		}
	}

	j, _ := scanLiteral(text, i)

	// Look past optional whitespace for a unit or another word
	k := j
	for k < len(text) {
		r, size := runeAt(text, k)
		if !unicode.IsSpace(r) {
			break
		}
		k += size
	}
	glued := k == j

	word, wordEnd := wordAt(text, k)
	lower := strings.ToLower(word)
	if word != "" {
		if _, known := UnitFactor(lower); known && lower != "" {
			return start, wordEnd, lower, true
		}
		if glued || foreignUnits[lower] {
			return 0, 0, "", false
		}
		return start, j, "", true
	}

	next, nextSize := runeAt(text, k)
	switch {
	case next == '%' || next == '°' || next == '"' || next == '\'':
		return 0, 0, "", false
	case !glued:
		return start, j, "", true
	case next == '.' || isJoiner(next):
		after, _ := runeAt(text, k+nextSize)
		if joins(next, after) {
			return 0, 0, "", false
		}
	}
	return start, j, "", true
}

// wordAt returns the run of letters, digits and underscores starting at i
func wordAt(text string, i int) (string, int) {
	j := i
	for j < len(text) {
		r, size := runeAt(text, j)
		if !isWordRune(r) {
			break
		}
		j += size
	}
	return text[i:j], j
}

// skipCompound advances past the word or compound containing i. It stops at a colon or
// comma so a measurement after a rejected code ("A-101, Width:900mm") is still scanned.
func skipCompound(text string, i int) int {
	for i < len(text) {
		r, size := runeAt(text, i)
		if isWordRune(r) {
			i += size
			continue
		}
		if r == '.' || r == '-' || r == '/' {
			next, _ := runeAt(text, i+size)
			if isWordRune(next) {
				i += size
				continue
			}
		}
		break
	}
	return i
}

// isYear reports whether a bare literal looks like a calendar year
func isYear(raw string) bool {
	if len(raw) != 4 {
		return false
	}
	for k := 0; k < 4; k++ {
		if !isASCIIDigit(raw[k]) {
			return false
		}
	}
	return raw >= "1900" && raw <= "2099"
}

// contextWindow returns up to ContextRadius runes either side of text[start:end], trimmed
func contextWindow(text string, start, end int) string {
	from := start
	for n := 0; n < ContextRadius && from > 0; n++ {
		_, size := utf8.DecodeLastRuneInString(text[:from])
		from -= size
	}
	to := end
	for n := 0; n < ContextRadius && to < len(text); n++ {
		_, size := utf8.DecodeRuneInString(text[to:])
		to += size
	}
	return strings.TrimSpace(text[from:to])
}

func isWordRune(r rune) bool {
	return r != utf8.RuneError && (unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_')
}

// joins reports whether sep binds a literal to the rune on its far side into a compound.
// Hyphens, slashes and dots bind to any letter or digit ("rev-02", "1/2", "v1.2");
// colons and commas only to digits ("1:100", "1,5") so labels stay separate.
func joins(sep, far rune) bool {
	switch sep {
	case ':', ',':
		return far != utf8.RuneError && unicode.IsDigit(far)
	}
	return isWordRune(far)
}

func isJoiner(r rune) bool {
	switch r {
	case '-', '/', ':', ',':
		return true
	}
	return false
}
