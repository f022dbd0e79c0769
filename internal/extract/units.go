package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/plancheck/internal/model"
)

var (
	// ErrNoNumber is returned when a token does not start with a numeric literal
	ErrNoNumber = errors.New("no numeric literal")
	// ErrUnknownUnit is returned when the text after the number is not mm, cm or m
	ErrUnknownUnit = errors.New("unknown unit")
)

// UnitFactor returns the millimetre conversion factor for a unit symbol.
// The empty unit means millimetres. ok is false for anything other than mm, cm or m.
func UnitFactor(unit string) (factor float64, ok bool) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "", "mm":
		return 1, true
	case "cm":
		return 10, true
	case "m":
		return 1000, true
	}
	return 1, false
}

// Normalize parses a signed, optionally decimal literal with an optional unit suffix
// ("900", "-1.5 m", "10cm", "1.2\nm") into a UnitToken. The suffix must be exactly mm, cm
// or m, separated from the number by any whitespace; Unit holds the lower-case symbol.
func Normalize(token string) (model.UnitToken, error) {
	s := strings.TrimSpace(token)

	i := 0
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		i++
	}
	end, ok := scanLiteral(s, i)
	if !ok {
		return model.UnitToken{}, fmt.Errorf("normalize %q: %w", token, ErrNoNumber)
	}

	magnitude, err := parseLiteral(s[:end])
	if err != nil {
		return model.UnitToken{}, fmt.Errorf("normalize %q: %w", token, ErrNoNumber)
	}

	unit := strings.ToLower(strings.TrimLeftFunc(s[end:], unicode.IsSpace))
	factor, known := UnitFactor(unit)
	if !known {
		return model.UnitToken{}, fmt.Errorf("normalize %q: %w", token, ErrUnknownUnit)
	}
	if unit == "" {
		unit = "mm"
	}

	return model.UnitToken{
		Raw:       s,
		Magnitude: magnitude,
		Unit:      unit,
		MM:        magnitude * factor,
	}, nil
}

// scanLiteral scans digits with optional three-digit comma groups and an optional
// decimal part starting at i. It returns the end offset and whether any digit was read.
func scanLiteral(s string, i int) (int, bool) {
	start := i
	for i < len(s) && isASCIIDigit(s[i]) {
		i++
	}
	if i == start {
		return start, false
	}

	// Thousands groups: "1,200" or "12,500,000" but not "1,20" or "1,2000"
	if i-start <= 3 {
		for i < len(s) && s[i] == ',' && threeDigits(s, i+1) {
			i += 4
		}
	}

	if i+1 < len(s) && s[i] == '.' && isASCIIDigit(s[i+1]) {
		i++
		for i < len(s) && isASCIIDigit(s[i]) {
			i++
		}
	}
	return i, true
}

// threeDigits reports whether s has exactly three digits at i not followed by a fourth
func threeDigits(s string, i int) bool {
	if i+3 > len(s) {
		return false
	}
	for j := i; j < i+3; j++ {
		if !isASCIIDigit(s[j]) {
			return false
		}
	}
	return i+3 == len(s) || !isASCIIDigit(s[i+3])
}

func parseLiteral(lit string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(lit, ",", ""), 64)
}

func isASCIIDigit(b byte) bool {
	return b >= '0' && b <= '9'
}


// runeBefore returns the rune ending at byte offset i, or utf8.RuneError at the start
func runeBefore(s string, i int) (rune, int) {
	if i <= 0 {
		return utf8.RuneError, 0
	}
	return utf8.DecodeLastRuneInString(s[:i])
}

// runeAt returns the rune starting at byte offset i, or utf8.RuneError at the end
func runeAt(s string, i int) (rune, int) {
	if i >= len(s) {
		return utf8.RuneError, 0
	}
	return utf8.DecodeRuneInString(s[i:])
}
