package rulegen

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultChunkSize is the largest chunk, in characters, sent to the extraction model
const DefaultChunkSize = 11000

// ChunkText splits text into paragraphs (separated by blank lines) and packs them into
// chunks of at most maxChars characters. A paragraph longer than maxChars is cut on rune
// boundaries. Empty input yields no chunks; no chunk is ever empty.
func ChunkText(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultChunkSize
	}

	var chunks []string
	var buf strings.Builder
	bufLen := 0

	push := func() {
		if bufLen > 0 {
			chunks = append(chunks, buf.String())
		}
		buf.Reset()
		bufLen = 0
	}

	for _, para := range paragraphs(text) {
		for _, piece := range splitRunes(para, maxChars) {
			n := utf8.RuneCountInString(piece)
			sep := 0
			if bufLen > 0 {
				sep = 2
			}
			if bufLen+sep+n > maxChars {
				push()
				sep = 0
			}
			if sep > 0 {
				buf.WriteString("\n\n")
			}
			buf.WriteString(piece)
			bufLen += sep + n
		}
	}
	push()

	return chunks
}

// paragraphs returns the trimmed, non-empty paragraphs of text
func paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var out []string
	var current []string
	flush := func() {
		if p := strings.TrimSpace(strings.Join(current, "\n")); p != "" {
			out = append(out, p)
		}
		current = current[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return out
}

func splitRunes(s string, max int) []string {
	if utf8.RuneCountInString(s) <= max {
		return []string{s}
	}

	var parts []string
	runes := []rune(s)
	for len(runes) > max {
		parts = append(parts, string(runes[:max]))
		runes = runes[max:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

// preview returns the first n runes of s
func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// AuthoritySlug turns an authority name into the key used for rule ids and rule-set names:
// whitespace runs become "_", letters are upper-cased, empty becomes UNKNOWN.
// Runes other than letters, digits, '-' and '_' also become "_" so the slug is a safe file name.
func AuthoritySlug(authority string) string {
	fields := strings.Fields(authority)
	if len(fields) == 0 {
		return "UNKNOWN"
	}
	slug := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, strings.Join(fields, "_"))
	return strings.ToUpper(slug)
}
